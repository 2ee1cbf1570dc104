package consistency

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/model"
)

// Manager pins model+prompt configurations into named profiles, records
// executions against them, and flags drift from the historical baseline.
type Manager struct {
	cfg    model.ConsistencyConfig
	store  ProfileStore
	bus    *bus.Bus
	logger *zap.Logger

	// Guards profile mutation; the store interface does not promise
	// atomic read-modify-write
	mu sync.Mutex

	checks     int64
	consistent int64
}

// Stats summarizes drift checking for health reporting
type Stats struct {
	Profiles    int     `json:"profiles"`
	Executions  int     `json:"executions"`
	ChecksRun   int64   `json:"checks_run"`
	SuccessRate float64 `json:"success_rate"` // Fraction of checks that were consistent
}

// NewManager creates a consistency manager. A nil store gets an in-memory one.
func NewManager(cfg model.ConsistencyConfig, store ProfileStore, b *bus.Bus, logger *zap.Logger) *Manager {
	if store == nil {
		store = NewMemoryProfileStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = 0.35
	}
	if cfg.InputSimilarityFloor <= 0 {
		cfg.InputSimilarityFloor = 0.6
	}
	return &Manager{cfg: cfg, store: store, bus: b, logger: logger}
}

// CreateProfile pins a model+prompt configuration under a fresh id
func (m *Manager) CreateProfile(name, modelID, systemPrompt string, config map[string]string) (*model.ConsistencyProfile, error) {
	if name == "" {
		return nil, fmt.Errorf("profile name is required")
	}
	if modelID == "" {
		return nil, fmt.Errorf("model id is required")
	}

	profile := &model.ConsistencyProfile{
		ID:           uuid.NewString(),
		Name:         name,
		ModelID:      modelID,
		SystemPrompt: systemPrompt,
		Config:       config,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.Save(profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	m.logger.Info("consistency profile created",
		zap.String("profile_id", profile.ID),
		zap.String("name", name),
		zap.String("model_id", modelID))
	if m.bus != nil {
		m.bus.Publish(bus.TopicProfileCreated, "", profile)
	}
	return profile, nil
}

// GetProfile returns a profile by id
func (m *Manager) GetProfile(id string) (*model.ConsistencyProfile, error) {
	profile, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("profile %s not found", id)
	}
	return profile, nil
}

// RecordExecution appends one run to the profile's history. History past the
// configured maximum is trimmed oldest-first.
func (m *Manager) RecordExecution(profileID, input, output string, duration time.Duration, usage model.TokenUsage, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.store.Get(profileID)
	if !ok {
		return fmt.Errorf("profile %s not found", profileID)
	}

	profile.Executions = append(profile.Executions, model.ExecutionRecord{
		Input:      input,
		Output:     output,
		Duration:   duration,
		TokenUsage: usage,
		Metadata:   metadata,
		Timestamp:  time.Now().UTC(),
	})
	if m.cfg.MaxHistory > 0 && len(profile.Executions) > m.cfg.MaxHistory {
		trimmed := make([]model.ExecutionRecord, m.cfg.MaxHistory)
		copy(trimmed, profile.Executions[len(profile.Executions)-m.cfg.MaxHistory:])
		profile.Executions = trimmed
	}
	return m.store.Save(profile)
}

// CheckConsistency compares a new output against the profile's baseline of
// records with similar inputs. With no comparable baseline the output is
// trivially consistent.
func (m *Manager) CheckConsistency(profileID, input, output string) (*model.ConsistencyCheck, error) {
	m.mu.Lock()
	profile, ok := m.store.Get(profileID)
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("profile %s not found", profileID)
	}
	baseline := make([]model.ExecutionRecord, 0)
	for _, rec := range profile.Executions {
		if tokenSimilarity(input, rec.Input) >= m.cfg.InputSimilarityFloor {
			baseline = append(baseline, rec)
		}
	}
	m.mu.Unlock()

	check := &model.ConsistencyCheck{
		ProfileID:    profileID,
		IsConsistent: true,
		BaselineSize: len(baseline),
		CheckedAt:    time.Now().UTC(),
	}
	if len(baseline) > 0 {
		check.Drift = analyzeDrift(output, baseline, m.cfg.DriftThreshold)
		check.IsConsistent = check.Drift.Score <= m.cfg.DriftThreshold
	}

	atomic.AddInt64(&m.checks, 1)
	if check.IsConsistent {
		atomic.AddInt64(&m.consistent, 1)
	} else {
		m.logger.Warn("consistency drift detected",
			zap.String("profile_id", profileID),
			zap.Float64("drift", check.Drift.Score),
			zap.Float64("threshold", m.cfg.DriftThreshold))
		if m.bus != nil {
			m.bus.Publish(bus.TopicDriftDetected, "", check)
		}
	}
	return check, nil
}

// GetStats aggregates profile counts and the check success rate
func (m *Manager) GetStats() Stats {
	profiles := m.store.List()
	executions := 0
	for _, p := range profiles {
		executions += len(p.Executions)
	}

	checks := atomic.LoadInt64(&m.checks)
	consistent := atomic.LoadInt64(&m.consistent)
	rate := 1.0
	if checks > 0 {
		rate = float64(consistent) / float64(checks)
	}
	return Stats{
		Profiles:    len(profiles),
		Executions:  executions,
		ChecksRun:   checks,
		SuccessRate: rate,
	}
}
