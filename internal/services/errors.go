package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrConfiguration         = errors.New("configuration error")
	ErrNotFound              = errors.New("not found")
	ErrInvalidOperation      = errors.New("invalid operation")
	ErrExternalTool          = errors.New("external tool error")
	ErrProcessSpawn          = errors.New("process spawn error")
	ErrEncodeTimeout         = errors.New("encode timeout")
	ErrEncodeNonZeroExit     = errors.New("encode non-zero exit")
	ErrMissingOutput         = errors.New("missing output")
	ErrProbeUnavailable      = errors.New("probe unavailable")
	ErrCancellationRequested = errors.New("cancellation requested")
	ErrPersistence           = errors.New("persistence error")
)

// FailureCause classifies why a file did not complete.
type FailureCause string

const (
	CauseNone             FailureCause = ""
	CauseSpawnError       FailureCause = "spawn_error"
	CauseTimeout          FailureCause = "timeout"
	CauseNonZeroExit      FailureCause = "nonzero_exit"
	CauseMissingOutput    FailureCause = "missing_output"
	CauseCanceled         FailureCause = "canceled"
	CauseProbeUnavailable FailureCause = "probe_unavailable"
	CauseValidation       FailureCause = "validation"
	CauseUnknown          FailureCause = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// CauseOf maps an error returned by the encode path to its failure cause.
func CauseOf(err error) FailureCause {
	switch {
	case err == nil:
		return CauseNone
	case errors.Is(err, ErrCancellationRequested):
		return CauseCanceled
	case errors.Is(err, ErrEncodeTimeout):
		return CauseTimeout
	case errors.Is(err, ErrProcessSpawn):
		return CauseSpawnError
	case errors.Is(err, ErrEncodeNonZeroExit):
		return CauseNonZeroExit
	case errors.Is(err, ErrMissingOutput):
		return CauseMissingOutput
	case errors.Is(err, ErrProbeUnavailable):
		return CauseProbeUnavailable
	case errors.Is(err, ErrValidation):
		return CauseValidation
	default:
		return CauseUnknown
	}
}

// IsCancellation reports whether err represents a requested stop rather than a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancellationRequested)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
