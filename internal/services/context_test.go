package services_test

import (
	"context"
	"testing"

	"vidqueue/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProjectID(ctx, "p-1")
	ctx = services.WithFileIndex(ctx, 3)
	ctx = services.WithStage(ctx, "encode")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ProjectIDFromContext(ctx); !ok || id != "p-1" {
		t.Fatalf("unexpected project id: %v %v", id, ok)
	}
	if idx, ok := services.FileIndexFromContext(ctx); !ok || idx != 3 {
		t.Fatalf("unexpected file index: %v %v", idx, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "encode" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithProjectID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.ProjectIDFromContext(ctx); ok {
		t.Fatal("expected no project id")
	}
	if _, ok := services.FileIndexFromContext(ctx); ok {
		t.Fatal("expected no file index")
	}
}
