package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBatchProcessor_Process(t *testing.T) {
	upper := func(ctx context.Context, input string) (interface{}, error) {
		return strings.ToUpper(input), nil
	}
	processor := NewBatchProcessor(upper, 2)

	results := processor.Process(context.Background(), []string{"alpha", "beta", "gamma"})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	byInput := make(map[string]string)
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error for %s: %v", r.Input, r.Err)
		}
		byInput[r.Input] = r.Value.(string)
	}
	if byInput["alpha"] != "ALPHA" || byInput["gamma"] != "GAMMA" {
		t.Errorf("unexpected results: %v", byInput)
	}
}

func TestBatchProcessor_ManyInputsWithLowConcurrency(t *testing.T) {
	echo := func(ctx context.Context, input string) (interface{}, error) {
		return input, nil
	}
	processor := NewBatchProcessor(echo, 2)

	inputs := make([]string, 200)
	for i := range inputs {
		inputs[i] = fmt.Sprintf("line-%d", i)
	}

	done := make(chan []*BatchResult)
	go func() {
		done <- processor.Process(context.Background(), inputs)
	}()

	select {
	case results := <-done:
		if len(results) != len(inputs) {
			t.Errorf("expected %d results, got %d", len(inputs), len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("batch stalled with inputs far exceeding worker capacity")
	}
}

func TestBatchProcessor_PropagatesErrors(t *testing.T) {
	failing := func(ctx context.Context, input string) (interface{}, error) {
		if input == "bad" {
			return nil, errors.New("boom")
		}
		return input, nil
	}
	processor := NewBatchProcessor(failing, 2)

	results := processor.Process(context.Background(), []string{"ok", "bad"})
	failures := 0
	for _, r := range results {
		if r.GetError() != nil {
			failures++
			if r.Input != "bad" {
				t.Errorf("wrong input failed: %s", r.Input)
			}
		}
	}
	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
}

func TestBatchProcessor_EmptyInput(t *testing.T) {
	processor := NewBatchProcessor(func(ctx context.Context, s string) (interface{}, error) {
		return s, nil
	}, 2)
	if results := processor.Process(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputs.txt")
	content := "https://example.com/a\n\n# comment\nhttps://example.com/b\nhttps://example.com/a\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	lines, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines failed: %v", err)
	}
	want := []string{"https://example.com/a", "https://example.com/b"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %s, want %s", i, lines[i], want[i])
		}
	}
}

func TestReadLines_MissingFile(t *testing.T) {
	if _, err := ReadLines("/nonexistent/inputs.txt"); err == nil {
		t.Error("missing file should error")
	}
}
