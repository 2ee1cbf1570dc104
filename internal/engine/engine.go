package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/checkpoint"
	"github.com/arbelos/keel/internal/confidence"
	"github.com/arbelos/keel/internal/consistency"
	"github.com/arbelos/keel/internal/factcheck"
	"github.com/arbelos/keel/internal/model"
	"github.com/arbelos/keel/internal/timeout"
)

// Components are the five collaborators the engine sequences
type Components struct {
	Protector   *timeout.Protector
	Scorer      *confidence.Scorer
	FactCheck   *factcheck.Checker
	Consistency *consistency.Manager
	Checkpoints *checkpoint.Manager
}

// Engine sequences timeout-protected execution, confidence scoring, fact
// checking, consistency checking, and checkpointing into one structured
// response per request. Component failures downgrade to warnings; only
// strict-mode threshold violations surface as errors.
type Engine struct {
	cfg     model.EngineConfig
	comps   Components
	history HistoryStore
	bus     *bus.Bus
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState is the mutable per-session state consumed by auto-checkpoint
type sessionState struct {
	mu    sync.Mutex
	state model.CheckpointState
}

// New creates the engine. All five components are required.
func New(cfg model.EngineConfig, comps Components, history HistoryStore, b *bus.Bus, logger *zap.Logger) (*Engine, error) {
	if comps.Protector == nil || comps.Scorer == nil || comps.FactCheck == nil ||
		comps.Consistency == nil || comps.Checkpoints == nil {
		return nil, fmt.Errorf("all five components are required")
	}
	if history == nil {
		history = NewMemoryHistory(cfg.HistoryLimit)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		comps:    comps,
		history:  history,
		bus:      b,
		logger:   logger,
		sessions: make(map[string]*sessionState),
	}, nil
}

// Components exposes the engine's collaborators for direct use, such as
// profile management
func (e *Engine) Components() Components {
	return e.comps
}

// Execute runs one request through the full pipeline. The returned response
// is always populated on a nil error; a non-nil error is either a request
// validation failure or a strict-mode violation.
func (e *Engine) Execute(ctx context.Context, req model.ReliableRequest, work timeout.Work) (*model.ReliableResponse, error) {
	if req.SessionID == "" {
		return nil, ErrSessionRequired
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Operation == "" {
		req.Operation = "default"
	}

	e.publish(bus.TopicRequestStarted, req.SessionID, req)
	start := time.Now()

	resp := &model.ReliableResponse{
		RequestID: req.ID,
		SessionID: req.SessionID,
		CreatedAt: start.UTC(),
	}

	resp.Execution = e.comps.Protector.Execute(ctx, req.Operation, work, timeout.Options{
		Timeout: req.Timeout,
		Retries: timeout.UseDefaultRetries,
	})
	resp.Success = resp.Execution.Success
	resp.Output = resp.Execution.Output

	if !resp.Execution.Success {
		resp.Confidence = failedScore(resp.Execution.Error)
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("execution failed: %s", resp.Execution.Error))
		e.history.Append(req.SessionID, resp)
		e.publish(bus.TopicRequestFailed, req.SessionID, resp)
		return resp, nil
	}
	if resp.Execution.FallbackUsed {
		resp.Warnings = append(resp.Warnings,
			fmt.Sprintf("primary execution failed, served by fallback %q", resp.Execution.FallbackName))
	}

	resp.Confidence = e.comps.Scorer.ScoreResponse(resp.Output, confidence.ScoreOptions{
		Query:   req.Input,
		Sources: req.Sources,
		Domain:  req.Domain,
		Facts:   req.KnownFacts,
	})
	resp.Warnings = append(resp.Warnings, resp.Confidence.Warnings...)
	resp.Suggestions = append(resp.Suggestions, resp.Confidence.Suggestions...)

	if req.RequireFactCheck {
		e.runFactCheck(ctx, req, resp)
	}
	if req.RequireConsistency && req.ProfileID != "" {
		e.runConsistency(req, resp)
	}
	if req.Checkpoint {
		e.runCheckpoint(req, resp)
	}

	if err := e.strictGate(resp); err != nil {
		e.history.Append(req.SessionID, resp)
		e.publish(bus.TopicRequestFailed, req.SessionID, resp)
		return nil, err
	}

	e.history.Append(req.SessionID, resp)
	e.publish(bus.TopicRequestCompleted, req.SessionID, resp)
	e.logger.Debug("request completed",
		zap.String("request_id", req.ID),
		zap.String("session_id", req.SessionID),
		zap.Int("confidence", resp.Confidence.Overall),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// ExecuteReliable runs the full pipeline: fact check, consistency when a
// profile is given, and a checkpoint on success
func (e *Engine) ExecuteReliable(ctx context.Context, req model.ReliableRequest, work timeout.Work) (*model.ReliableResponse, error) {
	req.RequireFactCheck = true
	req.RequireConsistency = req.ProfileID != ""
	req.Checkpoint = true
	return e.Execute(ctx, req, work)
}

// ExecuteQuick runs timeout protection and confidence scoring only
func (e *Engine) ExecuteQuick(ctx context.Context, req model.ReliableRequest, work timeout.Work) (*model.ReliableResponse, error) {
	req.RequireFactCheck = false
	req.RequireConsistency = false
	req.Checkpoint = false
	return e.Execute(ctx, req, work)
}

// ExecuteVerified adds a fact check against the caller's sources
func (e *Engine) ExecuteVerified(ctx context.Context, req model.ReliableRequest, sources []model.Source, work timeout.Work) (*model.ReliableResponse, error) {
	req.Sources = sources
	req.RequireFactCheck = true
	req.RequireConsistency = false
	req.Checkpoint = false
	return e.Execute(ctx, req, work)
}

func (e *Engine) runFactCheck(ctx context.Context, req model.ReliableRequest, resp *model.ReliableResponse) {
	report, err := e.comps.FactCheck.CheckResponse(ctx, resp.Output, factcheck.CheckOptions{
		Domain:     req.Domain,
		KnownFacts: req.KnownFacts,
		Sources:    req.Sources,
	})
	if err != nil {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("fact check failed: %v", err))
		return
	}
	resp.FactCheck = report
	resp.Warnings = append(resp.Warnings, report.Warnings...)
	if report.OverallStatus == model.StatusFalse {
		resp.Warnings = append(resp.Warnings, "response contains claims contradicted by high-quality sources")
	}
}

func (e *Engine) runConsistency(req model.ReliableRequest, resp *model.ReliableResponse) {
	check, err := e.comps.Consistency.CheckConsistency(req.ProfileID, req.Input, resp.Output)
	if err != nil {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("consistency check failed: %v", err))
		return
	}
	resp.Consistency = check
	if !check.IsConsistent {
		resp.Warnings = append(resp.Warnings,
			fmt.Sprintf("output drifted from profile baseline (drift %.2f)", check.Drift.Score))
		if check.Drift.Recommendation != "" {
			resp.Suggestions = append(resp.Suggestions, check.Drift.Recommendation)
		}
	}

	// The new execution joins the baseline after it has been checked
	if err := e.comps.Consistency.RecordExecution(req.ProfileID, req.Input, resp.Output,
		resp.Execution.Elapsed, model.TokenUsage{}, nil); err != nil {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("record execution: %v", err))
	}
}

// runCheckpoint snapshots session state after a successful execution. A
// persistence failure never fails the request.
func (e *Engine) runCheckpoint(req model.ReliableRequest, resp *model.ReliableResponse) {
	state := e.GetCurrentState(req.SessionID)
	cp, err := e.comps.Checkpoints.CreateCheckpoint(req.SessionID, state, model.TriggerManual, "", "post-request")
	if err != nil {
		e.logger.Warn("checkpoint failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("checkpoint failed: %v", err))
		return
	}
	resp.Checkpoint = cp
}

// strictGate enforces the reliability thresholds in strict mode
func (e *Engine) strictGate(resp *model.ReliableResponse) error {
	if !e.cfg.StrictMode {
		return nil
	}
	if resp.Confidence != nil && resp.Confidence.Overall < e.cfg.MinConfidenceThreshold {
		return &StrictModeError{
			RequestID: resp.RequestID,
			Violation: ViolationLowConfidence,
			Detail:    fmt.Sprintf("confidence %d below threshold %d", resp.Confidence.Overall, e.cfg.MinConfidenceThreshold),
		}
	}
	if resp.FactCheck != nil && resp.FactCheck.OverallStatus == model.StatusFalse {
		return &StrictModeError{
			RequestID: resp.RequestID,
			Violation: ViolationFactCheck,
			Detail:    "fact check found false claims",
		}
	}
	return nil
}

// UpdateState mutates a session's shared state under its lock
func (e *Engine) UpdateState(sessionID string, mutate func(*model.CheckpointState)) {
	ss := e.sessionFor(sessionID)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	mutate(&ss.state)
}

// GetCurrentState returns a deep copy of a session's shared state
func (e *Engine) GetCurrentState(sessionID string) model.CheckpointState {
	ss := e.sessionFor(sessionID)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	data, err := json.Marshal(ss.state)
	if err != nil {
		return model.CheckpointState{}
	}
	var out model.CheckpointState
	if err := json.Unmarshal(data, &out); err != nil {
		return model.CheckpointState{}
	}
	return out
}

// RestoreState replaces a session's shared state from a checkpoint
func (e *Engine) RestoreState(sessionID string, checkpointID string) error {
	state, err := e.comps.Checkpoints.RestoreCheckpoint(checkpointID)
	if err != nil {
		return err
	}
	ss := e.sessionFor(sessionID)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.state = state
	return nil
}

// StartAutoSave installs periodic auto-checkpoints fed by the session's
// shared state
func (e *Engine) StartAutoSave(sessionID string) {
	e.comps.Checkpoints.StartAutoSave(sessionID, func() model.CheckpointState {
		return e.GetCurrentState(sessionID)
	})
}

// StopAutoSave cancels a session's auto-checkpoint timer
func (e *Engine) StopAutoSave(sessionID string) {
	e.comps.Checkpoints.StopAutoSave(sessionID)
}

// Shutdown stops all background work
func (e *Engine) Shutdown() {
	e.comps.Checkpoints.Shutdown()
}

func (e *Engine) sessionFor(sessionID string) *sessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	ss, ok := e.sessions[sessionID]
	if !ok {
		ss = &sessionState{}
		e.sessions[sessionID] = ss
	}
	return ss
}

func (e *Engine) publish(topic bus.Topic, sessionID string, payload interface{}) {
	if e.bus != nil {
		e.bus.Publish(topic, sessionID, payload)
	}
}

// failedScore is the zero-ish confidence attached to failed executions
func failedScore(reason string) *model.ConfidenceScore {
	return &model.ConfidenceScore{
		Overall:     0,
		Grade:       model.GradeF,
		Explanation: fmt.Sprintf("execution failed: %s", reason),
	}
}
