package store

import (
	"context"
	"sort"
	"sync"

	"github.com/favourlabs/favour/pkg/fault"
	"github.com/favourlabs/favour/pkg/favour"
)

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	favours map[string]favour.Favour
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{favours: make(map[string]favour.Favour)}
}

func (s *MemoryStore) Create(ctx context.Context, f favour.Favour) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.favours[f.ID]; ok {
		return fault.New(fault.RegistrationFailure, "favour already exists")
	}
	s.favours[f.ID] = cloneFavour(f)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (favour.Favour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.favours[id]
	if !ok {
		return favour.Favour{}, fault.New(fault.NotFound, "favour not found")
	}
	return cloneFavour(f), nil
}

func (s *MemoryStore) SetEvidence(ctx context.Context, id, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.favours[id]
	if !ok {
		return fault.New(fault.NotFound, "favour not found")
	}
	f.Evidence = path
	s.favours[id] = f
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.favours[id]; !ok {
		return fault.New(fault.NotFound, "favour not found")
	}
	delete(s.favours, id)
	return nil
}

func (s *MemoryStore) ListByParty(ctx context.Context, partyID string) ([]favour.Favour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []favour.Favour
	for _, f := range s.favours {
		if f.Debtor.ID == partyID || f.Recipient.ID == partyID {
			out = append(out, cloneFavour(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneFavour(f favour.Favour) favour.Favour {
	if f.Rewards != nil {
		rewards := make(map[string]int, len(f.Rewards))
		for k, v := range f.Rewards {
			rewards[k] = v
		}
		f.Rewards = rewards
	}
	return f
}
