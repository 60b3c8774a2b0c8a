package services

import "context"

type contextKey int

const (
	projectIDKey contextKey = iota
	fileIndexKey
	stageKey
	requestIDKey
)

// WithProjectID tags ctx with the project being processed. Empty IDs are ignored.
func WithProjectID(ctx context.Context, id string) context.Context {
	return withString(ctx, projectIDKey, id)
}

func ProjectIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, projectIDKey)
}

// WithFileIndex tags ctx with the zero-based file position inside a project.
func WithFileIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, fileIndexKey, index)
}

func FileIndexFromContext(ctx context.Context) (int, bool) {
	idx, ok := ctx.Value(fileIndexKey).(int)
	return idx, ok
}

// WithStage tags ctx with the processing stage, such as "encode".
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithRequestID tags ctx with a correlation ID. The queue worker uses one
// per run so every line logged during that run can be grouped.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
