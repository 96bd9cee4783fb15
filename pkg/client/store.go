package client

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/favourlabs/favour/pkg/favour"
)

// Patch is a partial favour used for optimistic cache updates. Nil fields are
// left unchanged.
type Patch struct {
	Evidence *string
	Rewards  map[string]int
}

// Update is delivered to subscribers when a cached favour changes.
// Favour is nil when the record was removed from the cache.
type Update struct {
	ID     string
	Favour *favour.Favour
}

// Store caches favour records by id in front of the remote store.
//
// Fetch is the source-of-truth refresh; InvalidateWith applies a local patch
// without a round trip. The two are not serialized against each other: a
// later out-of-order fetch response can overwrite an optimistic patch with
// older remote data. For this single-writer-per-field record that
// update-wins-over-fetch model is accepted; callers needing stronger
// consistency would have to add a per-key version stamp.
type Store struct {
	remote Remote

	mu      sync.RWMutex
	cache   map[string]favour.Favour
	subs    map[string]map[int]func(Update)
	nextSub int

	group singleflight.Group
}

// NewStore creates an empty cache in front of remote.
func NewStore(remote Remote) *Store {
	return &Store{
		remote: remote,
		cache:  make(map[string]favour.Favour),
		subs:   make(map[string]map[int]func(Update)),
	}
}

// Fetch returns the cached favour for id, fetching it from the remote store
// on a miss. Concurrent callers for the same id share one in-flight request
// and one cached value.
func (s *Store) Fetch(ctx context.Context, id, credential string) (favour.Favour, error) {
	s.mu.RLock()
	f, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}
	return s.refresh(ctx, id, credential)
}

// Refresh re-validates id against the remote store, overwriting the cached
// value. De-duplicated the same way as Fetch.
func (s *Store) Refresh(ctx context.Context, id, credential string) (favour.Favour, error) {
	return s.refresh(ctx, id, credential)
}

func (s *Store) refresh(ctx context.Context, id, credential string) (favour.Favour, error) {
	v, err, _ := s.group.Do(id, func() (any, error) {
		f, err := s.remote.GetFavour(ctx, id, credential)
		if err != nil {
			return favour.Favour{}, err
		}
		s.mu.Lock()
		s.cache[id] = f
		s.mu.Unlock()
		s.notify(Update{ID: id, Favour: &f})
		return f, nil
	})
	if err != nil {
		return favour.Favour{}, err
	}
	return v.(favour.Favour), nil
}

// Peek returns the cached favour without any remote round trip.
func (s *Store) Peek(id string) (favour.Favour, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.cache[id]
	return f, ok
}

// InvalidateWith merges patch into the cached favour without a round trip and
// notifies subscribers. Every successful remote mutation must be followed by
// either this or Remove, so the cache reflects reality without waiting for a
// re-fetch. No-op when id is not cached.
func (s *Store) InvalidateWith(id string, patch Patch) (favour.Favour, bool) {
	s.mu.Lock()
	f, ok := s.cache[id]
	if !ok {
		s.mu.Unlock()
		return favour.Favour{}, false
	}
	if patch.Evidence != nil {
		f.Evidence = *patch.Evidence
	}
	if patch.Rewards != nil {
		f.Rewards = patch.Rewards
	}
	s.cache[id] = f
	s.mu.Unlock()

	s.notify(Update{ID: id, Favour: &f})
	return f, true
}

// Remove drops the favour from the cache entirely and notifies subscribers.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	_, ok := s.cache[id]
	delete(s.cache, id)
	s.mu.Unlock()
	if ok {
		s.notify(Update{ID: id})
	}
}

// Subscribe registers fn for changes to id. The returned cancel function
// detaches the subscription; it corresponds to the render subscription that
// navigating away aborts, while in-flight mutations keep running.
func (s *Store) Subscribe(id string, fn func(Update)) (cancel func()) {
	s.mu.Lock()
	if s.subs[id] == nil {
		s.subs[id] = make(map[int]func(Update))
	}
	token := s.nextSub
	s.nextSub++
	s.subs[id][token] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs[id], token)
		s.mu.Unlock()
	}
}

func (s *Store) notify(u Update) {
	s.mu.RLock()
	fns := make([]func(Update), 0, len(s.subs[u.ID]))
	for _, fn := range s.subs[u.ID] {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(u)
	}
}
