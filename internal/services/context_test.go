package services_test

import (
	"context"
	"testing"

	"bundleid/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-42")
	ctx = services.WithRecordKey(ctx, "slack")
	ctx = services.WithStrategy(ctx, "github_search")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if key, ok := services.RecordKeyFromContext(ctx); !ok || key != "slack" {
		t.Fatalf("unexpected record key: %v %v", key, ok)
	}
	if name, ok := services.StrategyFromContext(ctx); !ok || name != "github_search" {
		t.Fatalf("unexpected strategy: %v %v", name, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStrategy(ctx, "")
	ctx = services.WithRecordKey(ctx, "")
	if _, ok := services.StrategyFromContext(ctx); ok {
		t.Fatal("expected no strategy value")
	}
	if _, ok := services.RecordKeyFromContext(ctx); ok {
		t.Fatal("expected no record key value")
	}
}
