package observability

import (
	"context"
	"testing"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{Enabled: false}, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("Setup() returned nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetup_DefaultEndpoint(t *testing.T) {
	cfg := Config{
		Enabled:     true,
		Endpoint:    "", // empty should fall back to DefaultEndpoint
		Environment: "test",
		ServiceName: "test-service",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("Setup() returned nil shutdown")
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetup_CollectorUnavailable_GracefulDegradation(t *testing.T) {
	// The exporter is constructed lazily, so an unreachable collector
	// must not fail startup; spans just never leave the process.
	cfg := Config{
		Enabled:     true,
		Endpoint:    "localhost:1", // nothing listens here
		Environment: "test",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("Setup() returned nil shutdown")
	}
	_ = shutdown(ctx) // flush may fail against a dead endpoint; must not panic
}

func TestDefaultEndpoint_Value(t *testing.T) {
	t.Parallel()

	if DefaultEndpoint != "localhost:4318" {
		t.Errorf("DefaultEndpoint = %q, want %q", DefaultEndpoint, "localhost:4318")
	}
}
