package consistency

import (
	"sync"

	"github.com/arbelos/keel/internal/model"
)

// ProfileStore persists consistency profiles and their execution history
type ProfileStore interface {
	Save(profile *model.ConsistencyProfile) error
	Get(id string) (*model.ConsistencyProfile, bool)
	List() []*model.ConsistencyProfile
	Delete(id string) error
}

// MemoryProfileStore keeps profiles in process memory
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*model.ConsistencyProfile
}

// NewMemoryProfileStore creates an empty in-memory profile store
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[string]*model.ConsistencyProfile),
	}
}

// Save stores or replaces a profile
func (s *MemoryProfileStore) Save(profile *model.ConsistencyProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile
	return nil
}

// Get returns the profile with the given id
func (s *MemoryProfileStore) Get(id string) (*model.ConsistencyProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return p, ok
}

// List returns all stored profiles in unspecified order
func (s *MemoryProfileStore) List() []*model.ConsistencyProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ConsistencyProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}

// Delete removes a profile; deleting an unknown id is a no-op
func (s *MemoryProfileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)
	return nil
}
