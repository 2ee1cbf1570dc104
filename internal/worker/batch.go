package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// BatchFunc processes one input line from a batch
type BatchFunc func(ctx context.Context, input string) (interface{}, error)

// BatchResult pairs an input with its outcome
type BatchResult struct {
	Input string
	Value interface{}
	Err   error
}

// GetError returns the processing error, if any
func (r *BatchResult) GetError() error {
	return r.Err
}

// batchJob adapts one input to the pool's Job interface
type batchJob struct {
	input string
	fn    BatchFunc
}

func (j *batchJob) Execute(ctx context.Context) Result {
	value, err := j.fn(ctx, j.input)
	return &BatchResult{Input: j.input, Value: value, Err: err}
}

// BatchProcessor runs one function over many inputs on a worker pool
type BatchProcessor struct {
	fn          BatchFunc
	concurrency int
}

// NewBatchProcessor creates a batch processor with the given concurrency
func NewBatchProcessor(fn BatchFunc, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &BatchProcessor{fn: fn, concurrency: concurrency}
}

// Process runs every input through the batch function concurrently. Results
// come back in completion order; match them to inputs via BatchResult.Input.
func (b *BatchProcessor) Process(ctx context.Context, inputs []string) []*BatchResult {
	if len(inputs) == 0 {
		return []*BatchResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()
	for _, input := range inputs {
		pool.Submit(&batchJob{input: input, fn: b.fn})
	}

	results := pool.Wait()
	out := make([]*BatchResult, len(results))
	for i, r := range results {
		out[i] = r.(*BatchResult)
	}
	return out
}

// ProcessFile reads inputs from a file, one per line, and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string) ([]*BatchResult, error) {
	inputs, err := ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	return b.Process(ctx, inputs), nil
}

// ReadLines reads non-empty, non-comment lines from a file, deduplicated in
// order of first appearance
func ReadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return lines, nil
}
