package checkpoint

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/model"
)

// StateProvider supplies the current session state for auto-save snapshots
type StateProvider func() model.CheckpointState

// initializer is implemented by stores that need preparation before use
type initializer interface {
	Initialize() error
}

// Manager snapshots session state into a Store and restores snapshots on
// demand. Stored checkpoints are immutable; both create and restore deep-copy
// the state so callers cannot mutate a stored snapshot.
type Manager struct {
	cfg    model.CheckpointConfig
	store  Store
	bus    *bus.Bus
	logger *zap.Logger

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	timers map[string]chan struct{} // Session id -> auto-save stop channel

	created int64
}

// NewManager creates a checkpoint manager. A nil store gets an in-memory one.
func NewManager(cfg model.CheckpointConfig, store Store, b *bus.Bus, logger *zap.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 5 * time.Minute
	}
	return &Manager{
		cfg:    cfg,
		store:  store,
		bus:    b,
		logger: logger,
		timers: make(map[string]chan struct{}),
	}
}

// Initialize prepares the backing store. Safe to call more than once.
func (m *Manager) Initialize() error {
	m.initOnce.Do(func() {
		if init, ok := m.store.(initializer); ok {
			m.initErr = init.Initialize()
		}
	})
	return m.initErr
}

// CreateCheckpoint persists an immutable snapshot of the given state
func (m *Manager) CreateCheckpoint(sessionID string, state model.CheckpointState, trigger model.CheckpointTrigger, label, reason string) (*model.Checkpoint, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if err := m.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	copied, err := copyState(state)
	if err != nil {
		return nil, fmt.Errorf("snapshot state: %w", err)
	}

	cp := &model.Checkpoint{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Trigger:   trigger,
		Label:     label,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
		State:     copied,
	}
	if err := m.store.Create(cp); err != nil {
		return nil, fmt.Errorf("persist checkpoint: %w", err)
	}
	atomic.AddInt64(&m.created, 1)

	if m.cfg.MaxPerSession > 0 {
		if err := m.store.Prune(sessionID, m.cfg.MaxPerSession); err != nil {
			m.logger.Warn("checkpoint prune failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	m.logger.Debug("checkpoint created",
		zap.String("checkpoint_id", cp.ID),
		zap.String("session_id", sessionID),
		zap.String("trigger", string(trigger)))
	if m.bus != nil {
		m.bus.Publish(bus.TopicCheckpointCreated, sessionID, cp)
	}
	return cp, nil
}

// RestoreCheckpoint returns a deep copy of a snapshot's state
func (m *Manager) RestoreCheckpoint(checkpointID string) (model.CheckpointState, error) {
	cp, ok, err := m.store.Get(checkpointID)
	if err != nil {
		return model.CheckpointState{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return model.CheckpointState{}, fmt.Errorf("checkpoint %s not found", checkpointID)
	}

	state, err := copyState(cp.State)
	if err != nil {
		return model.CheckpointState{}, fmt.Errorf("copy state: %w", err)
	}

	if m.bus != nil {
		m.bus.Publish(bus.TopicCheckpointRestored, cp.SessionID, cp)
	}
	return state, nil
}

// GetCheckpoints lists a session's checkpoints newest-first
func (m *Manager) GetCheckpoints(sessionID string) ([]*model.Checkpoint, error) {
	return m.store.List(sessionID)
}

// StartAutoSave installs a periodic auto-triggered checkpoint for a session.
// Starting an already auto-saved session restarts its timer.
func (m *Manager) StartAutoSave(sessionID string, provider StateProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stop, ok := m.timers[sessionID]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	m.timers[sessionID] = stop

	go func() {
		ticker := time.NewTicker(m.cfg.AutoSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := m.CreateCheckpoint(sessionID, provider(), model.TriggerAuto, "", "auto-save"); err != nil {
					m.logger.Warn("auto-save failed", zap.String("session_id", sessionID), zap.Error(err))
				}
			}
		}
	}()
}

// StopAutoSave cancels a session's auto-save timer
func (m *Manager) StopAutoSave(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stop, ok := m.timers[sessionID]; ok {
		close(stop)
		delete(m.timers, sessionID)
	}
}

// StopAllAutoSave cancels every auto-save timer
func (m *Manager) StopAllAutoSave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, stop := range m.timers {
		close(stop)
		delete(m.timers, id)
	}
}

// Shutdown stops all timers. The store needs no flushing; every create is
// written through immediately.
func (m *Manager) Shutdown() {
	m.StopAllAutoSave()
}

// Created reports how many checkpoints this manager has persisted
func (m *Manager) Created() int64 {
	return atomic.LoadInt64(&m.created)
}

// copyState deep-copies via a JSON round-trip so stored and restored state
// share no references with the caller's value
func copyState(state model.CheckpointState) (model.CheckpointState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return model.CheckpointState{}, err
	}
	var out model.CheckpointState
	if err := json.Unmarshal(data, &out); err != nil {
		return model.CheckpointState{}, err
	}
	return out, nil
}
