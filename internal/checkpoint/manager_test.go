package checkpoint

import (
	"testing"
	"time"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/model"
)

func testState() model.CheckpointState {
	return model.CheckpointState{
		Conversation: []model.ConversationTurn{
			{Role: "user", Content: "plan the launch"},
			{Role: "assistant", Content: "drafting a plan"},
		},
		Tasks:  []string{"draft", "review"},
		Agents: []string{"planner"},
		Memory: map[string]interface{}{"phase": "draft"},
	}
}

func TestCreateAndRestore(t *testing.T) {
	b := bus.New()
	created, restored := 0, 0
	b.Subscribe(bus.TopicCheckpointCreated, func(bus.Event) { created++ })
	b.Subscribe(bus.TopicCheckpointRestored, func(bus.Event) { restored++ })

	m := NewManager(model.CheckpointConfig{}, nil, b, nil)
	cp, err := m.CreateCheckpoint("sess-1", testState(), model.TriggerManual, "before-review", "")
	if err != nil {
		t.Fatalf("CreateCheckpoint failed: %v", err)
	}
	if cp.ID == "" || cp.SessionID != "sess-1" || cp.Trigger != model.TriggerManual {
		t.Errorf("unexpected checkpoint: %+v", cp)
	}

	state, err := m.RestoreCheckpoint(cp.ID)
	if err != nil {
		t.Fatalf("RestoreCheckpoint failed: %v", err)
	}
	if len(state.Conversation) != 2 || len(state.Tasks) != 2 {
		t.Errorf("restored state does not match: %+v", state)
	}
	if created != 1 || restored != 1 {
		t.Errorf("expected 1 created and 1 restored event, got %d/%d", created, restored)
	}
}

func TestRestore_IndependentOfLaterMutation(t *testing.T) {
	m := NewManager(model.CheckpointConfig{}, nil, nil, nil)

	original := testState()
	cp, err := m.CreateCheckpoint("sess-1", original, model.TriggerManual, "", "")
	if err != nil {
		t.Fatalf("CreateCheckpoint failed: %v", err)
	}

	// Mutate everything reachable from the original after the snapshot
	original.Tasks[0] = "mutated"
	original.Conversation[0].Content = "mutated"
	original.Memory["phase"] = "mutated"

	state, err := m.RestoreCheckpoint(cp.ID)
	if err != nil {
		t.Fatalf("RestoreCheckpoint failed: %v", err)
	}
	if state.Tasks[0] != "draft" {
		t.Errorf("snapshot leaked task mutation: %s", state.Tasks[0])
	}
	if state.Conversation[0].Content != "plan the launch" {
		t.Errorf("snapshot leaked conversation mutation: %s", state.Conversation[0].Content)
	}
	if state.Memory["phase"] != "draft" {
		t.Errorf("snapshot leaked memory mutation: %v", state.Memory["phase"])
	}

	// Mutating a restored copy must not affect later restores
	state.Tasks[0] = "mutated-restore"
	again, _ := m.RestoreCheckpoint(cp.ID)
	if again.Tasks[0] != "draft" {
		t.Errorf("restore returned shared state: %s", again.Tasks[0])
	}
}

func TestRestore_NotFound(t *testing.T) {
	m := NewManager(model.CheckpointConfig{}, nil, nil, nil)
	if _, err := m.RestoreCheckpoint("missing"); err == nil {
		t.Error("unknown checkpoint should error")
	}
}

func TestGetCheckpoints_NewestFirst(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(model.CheckpointConfig{}, store, nil, nil)

	first, _ := m.CreateCheckpoint("sess-1", testState(), model.TriggerManual, "first", "")
	// Distinct timestamps so ordering is unambiguous
	second := &model.Checkpoint{
		ID:        "cp-later",
		SessionID: "sess-1",
		Trigger:   model.TriggerManual,
		Label:     "second",
		CreatedAt: first.CreatedAt.Add(time.Second),
	}
	if err := store.Create(second); err != nil {
		t.Fatalf("store create failed: %v", err)
	}
	m.CreateCheckpoint("sess-2", testState(), model.TriggerManual, "other-session", "")

	cps, err := m.GetCheckpoints("sess-1")
	if err != nil {
		t.Fatalf("GetCheckpoints failed: %v", err)
	}
	if len(cps) != 2 {
		t.Fatalf("expected 2 checkpoints for sess-1, got %d", len(cps))
	}
	if cps[0].Label != "second" || cps[1].Label != "first" {
		t.Errorf("expected newest-first order, got %s then %s", cps[0].Label, cps[1].Label)
	}
}

func TestCreate_PrunesOldest(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(model.CheckpointConfig{MaxPerSession: 2}, store, nil, nil)

	base := time.Now().UTC()
	for i, label := range []string{"a", "b", "c"} {
		cp := &model.Checkpoint{
			ID:        "cp-" + label,
			SessionID: "sess-1",
			Trigger:   model.TriggerManual,
			Label:     label,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Create(cp); err != nil {
			t.Fatalf("store create failed: %v", err)
		}
		if err := store.Prune("sess-1", 2); err != nil {
			t.Fatalf("prune failed: %v", err)
		}
	}

	cps, _ := m.GetCheckpoints("sess-1")
	if len(cps) != 2 {
		t.Fatalf("expected 2 checkpoints after prune, got %d", len(cps))
	}
	if cps[0].Label != "c" || cps[1].Label != "b" {
		t.Errorf("prune should drop the oldest, got %s then %s", cps[0].Label, cps[1].Label)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	m := NewManager(model.CheckpointConfig{Dir: dir}, store, nil, nil)

	cp, err := m.CreateCheckpoint("sess-1", testState(), model.TriggerManual, "persisted", "")
	if err != nil {
		t.Fatalf("CreateCheckpoint failed: %v", err)
	}

	// A second manager over the same directory sees the snapshot
	other := NewManager(model.CheckpointConfig{Dir: dir}, NewFileStore(dir), nil, nil)
	state, err := other.RestoreCheckpoint(cp.ID)
	if err != nil {
		t.Fatalf("RestoreCheckpoint from disk failed: %v", err)
	}
	if len(state.Conversation) != 2 || state.Memory["phase"] != "draft" {
		t.Errorf("persisted state does not match: %+v", state)
	}

	cps, err := other.GetCheckpoints("sess-1")
	if err != nil || len(cps) != 1 {
		t.Fatalf("expected 1 listed checkpoint, got %d (err %v)", len(cps), err)
	}
}

func TestAutoSave(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(model.CheckpointConfig{AutoSaveInterval: 20 * time.Millisecond}, store, nil, nil)

	m.StartAutoSave("sess-1", func() model.CheckpointState {
		return testState()
	})
	time.Sleep(70 * time.Millisecond)
	m.StopAutoSave("sess-1")
	saved := m.Created()
	if saved < 1 {
		t.Fatal("auto-save produced no checkpoints")
	}

	cps, _ := m.GetCheckpoints("sess-1")
	for _, cp := range cps {
		if cp.Trigger != model.TriggerAuto {
			t.Errorf("auto-save checkpoint has trigger %s", cp.Trigger)
		}
	}

	// Timer must stop producing snapshots once cancelled
	time.Sleep(50 * time.Millisecond)
	if m.Created() != saved {
		t.Error("auto-save kept running after stop")
	}
}

func TestShutdownStopsAllTimers(t *testing.T) {
	m := NewManager(model.CheckpointConfig{AutoSaveInterval: 10 * time.Millisecond}, nil, nil, nil)
	m.StartAutoSave("sess-1", testState)
	m.StartAutoSave("sess-2", testState)
	m.Shutdown()

	count := m.Created()
	time.Sleep(40 * time.Millisecond)
	if m.Created() != count {
		t.Error("timers survived shutdown")
	}
}
