package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arbelos/keel/internal/model"
)

func TestBuildEngine_DegradedFallbackServesFailedWork(t *testing.T) {
	eng, err := buildEngine(model.DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer eng.Shutdown()

	req := model.ReliableRequest{
		SessionID: "cli-test",
		Operation: "flaky",
		Timeout:   time.Second,
	}
	resp, err := eng.ExecuteQuick(context.Background(), req, func(ctx context.Context) (string, error) {
		return "", errors.New("provider unavailable")
	})
	if err != nil {
		t.Fatalf("ExecuteQuick failed: %v", err)
	}

	if !resp.Execution.FallbackUsed {
		t.Fatal("a failing work function should be served by the registered fallback chain")
	}
	if resp.Execution.FallbackName != "graceful-degradation" {
		t.Errorf("expected graceful-degradation, got %s", resp.Execution.FallbackName)
	}
	if resp.Output == "" {
		t.Error("degraded fallback should produce placeholder output")
	}
}

func TestBuildEngine_CachedFallbackReplaysLastGoodResponse(t *testing.T) {
	eng, err := buildEngine(model.DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer eng.Shutdown()

	req := model.ReliableRequest{
		SessionID: "cli-test",
		Operation: "flaky",
		Timeout:   time.Second,
	}
	ctx := context.Background()

	if _, err := eng.ExecuteQuick(ctx, req, func(ctx context.Context) (string, error) {
		return "the good answer", nil
	}); err != nil {
		t.Fatalf("priming call failed: %v", err)
	}

	resp, err := eng.ExecuteQuick(ctx, req, func(ctx context.Context) (string, error) {
		return "", errors.New("provider unavailable")
	})
	if err != nil {
		t.Fatalf("ExecuteQuick failed: %v", err)
	}

	if resp.Execution.FallbackName != "cached-response" {
		t.Errorf("expected cached-response, got %s", resp.Execution.FallbackName)
	}
	if resp.Output != "the good answer" {
		t.Errorf("cached fallback should replay the last good output, got %q", resp.Output)
	}
}
