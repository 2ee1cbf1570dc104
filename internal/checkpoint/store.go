package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/arbelos/keel/internal/model"
)

// Store persists checkpoints. Implementations must treat stored checkpoints
// as immutable.
type Store interface {
	Create(cp *model.Checkpoint) error
	Get(id string) (*model.Checkpoint, bool, error)
	List(sessionID string) ([]*model.Checkpoint, error)
	Prune(sessionID string, keep int) error
}

// MemoryStore keeps checkpoints in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*model.Checkpoint
}

// NewMemoryStore creates an empty in-memory checkpoint store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*model.Checkpoint)}
}

// Create stores a checkpoint
func (s *MemoryStore) Create(cp *model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[cp.ID]; exists {
		return fmt.Errorf("checkpoint %s already exists", cp.ID)
	}
	s.byID[cp.ID] = cp
	return nil
}

// Get returns a checkpoint by id
func (s *MemoryStore) Get(id string) (*model.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.byID[id]
	return cp, ok, nil
}

// List returns a session's checkpoints newest-first
func (s *MemoryStore) List(sessionID string) ([]*model.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Checkpoint
	for _, cp := range s.byID {
		if cp.SessionID == sessionID {
			out = append(out, cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Prune drops the oldest checkpoints beyond keep for one session
func (s *MemoryStore) Prune(sessionID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var session []*model.Checkpoint
	for _, cp := range s.byID {
		if cp.SessionID == sessionID {
			session = append(session, cp)
		}
	}
	sortNewestFirst(session)
	for _, cp := range session[min(keep, len(session)):] {
		delete(s.byID, cp.ID)
	}
	return nil
}

// FileStore persists each checkpoint as one JSON file under dir
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed checkpoint store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Initialize creates the checkpoint directory
func (s *FileStore) Initialize() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	return nil
}

// Create writes the checkpoint to disk
func (s *FileStore) Create(cp *model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	path := s.path(cp.ID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("checkpoint %s already exists", cp.ID)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Get reads a checkpoint from disk
func (s *FileStore) Get(id string) (*model.Checkpoint, bool, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, false, fmt.Errorf("decode checkpoint %s: %w", id, err)
	}
	return &cp, true, nil
}

// List returns a session's checkpoints newest-first
func (s *FileStore) List(sessionID string) ([]*model.Checkpoint, error) {
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	var out []*model.Checkpoint
	for _, cp := range all {
		if cp.SessionID == sessionID {
			out = append(out, cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Prune drops the oldest checkpoint files beyond keep for one session
func (s *FileStore) Prune(sessionID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.List(sessionID)
	if err != nil {
		return err
	}
	for _, cp := range session[min(keep, len(session)):] {
		if err := os.Remove(s.path(cp.ID)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune checkpoint %s: %w", cp.ID, err)
		}
	}
	return nil
}

func (s *FileStore) readAll() ([]*model.Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}

	var out []*model.Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		cp, ok, err := s.Get(id)
		if err != nil || !ok {
			continue // Skip unreadable files rather than failing the listing
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func sortNewestFirst(cps []*model.Checkpoint) {
	sort.Slice(cps, func(i, j int) bool {
		if cps[i].CreatedAt.Equal(cps[j].CreatedAt) {
			return cps[i].ID > cps[j].ID
		}
		return cps[i].CreatedAt.After(cps[j].CreatedAt)
	})
}
