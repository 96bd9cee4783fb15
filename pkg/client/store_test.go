package client_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favourlabs/favour/pkg/client"
	"github.com/favourlabs/favour/pkg/fault"
	"github.com/favourlabs/favour/pkg/favour"
)

// fakeRemote counts calls and can be paused to hold fetches in flight.
type fakeRemote struct {
	mu      sync.Mutex
	favours map[string]favour.Favour
	gets    atomic.Int64
	gate    chan struct{} // when non-nil, GetFavour blocks until closed
}

func newFakeRemote(favours ...favour.Favour) *fakeRemote {
	m := make(map[string]favour.Favour, len(favours))
	for _, f := range favours {
		m[f.ID] = f
	}
	return &fakeRemote{favours: m}
}

func (r *fakeRemote) GetFavour(ctx context.Context, id, credential string) (favour.Favour, error) {
	r.gets.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.favours[id]
	if !ok {
		return favour.Favour{}, fault.New(fault.NotFound, "favour not found")
	}
	return f, nil
}

func (r *fakeRemote) DeleteFavour(ctx context.Context, id, credential string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.favours[id]; !ok {
		return fault.New(fault.NotFound, "favour not found")
	}
	delete(r.favours, id)
	return nil
}

func (r *fakeRemote) RegisterEvidence(ctx context.Context, id, path, credential string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.favours[id]
	if !ok {
		return fault.New(fault.NotFound, "favour not found")
	}
	f.Evidence = path
	r.favours[id] = f
	return nil
}

func testFavour() favour.Favour {
	return favour.Favour{
		ID:        "fav-1",
		Debtor:    favour.Party{ID: "u1"},
		Recipient: favour.Party{ID: "u2"},
		Rewards:   map[string]int{"coffee": 2},
	}
}

func TestStore_FetchCaches(t *testing.T) {
	remote := newFakeRemote(testFavour())
	store := client.NewStore(remote)
	ctx := context.Background()

	first, err := store.Fetch(ctx, "fav-1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "fav-1", first.ID)

	_, err = store.Fetch(ctx, "fav-1", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(1), remote.gets.Load(), "second fetch served from cache")
}

func TestStore_ConcurrentFetchesShareOneRequest(t *testing.T) {
	remote := newFakeRemote(testFavour())
	remote.gate = make(chan struct{})
	store := client.NewStore(remote)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]favour.Favour, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Fetch(context.Background(), "fav-1", "tok")
		}(i)
	}
	// Let all callers pile onto the in-flight request, then release it.
	close(remote.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "fav-1", results[i].ID)
	}
	assert.Less(t, remote.gets.Load(), int64(callers),
		"concurrent callers must share in-flight requests, not fan out")
}

func TestStore_FetchMiss(t *testing.T) {
	store := client.NewStore(newFakeRemote())
	_, err := store.Fetch(context.Background(), "absent", "tok")
	require.Error(t, err)
	assert.Equal(t, fault.NotFound, fault.CodeOf(err))

	_, ok := store.Peek("absent")
	assert.False(t, ok, "failed fetches must not populate the cache")
}

func TestStore_InvalidateWith(t *testing.T) {
	remote := newFakeRemote(testFavour())
	store := client.NewStore(remote)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "fav-1", "tok")
	require.NoError(t, err)

	var updates []client.Update
	cancel := store.Subscribe("fav-1", func(u client.Update) { updates = append(updates, u) })
	defer cancel()

	path := "favours/u1_u2_2026-08-29T10:00:00Z/evidence.png"
	merged, ok := store.InvalidateWith("fav-1", client.Patch{Evidence: &path})
	require.True(t, ok)
	assert.Equal(t, path, merged.Evidence)
	assert.Equal(t, favour.PhaseClaimed, favour.PhaseOf(merged))

	cached, ok := store.Peek("fav-1")
	require.True(t, ok)
	assert.Equal(t, path, cached.Evidence)
	assert.Equal(t, int64(1), remote.gets.Load(), "optimistic patch must not round-trip")

	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Favour)
	assert.Equal(t, path, updates[0].Favour.Evidence)
}

func TestStore_InvalidateWithUncachedIsNoop(t *testing.T) {
	store := client.NewStore(newFakeRemote())
	path := "favours/x/evidence.png"
	_, ok := store.InvalidateWith("ghost", client.Patch{Evidence: &path})
	assert.False(t, ok)
}

func TestStore_Remove(t *testing.T) {
	remote := newFakeRemote(testFavour())
	store := client.NewStore(remote)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "fav-1", "tok")
	require.NoError(t, err)

	var removed bool
	cancel := store.Subscribe("fav-1", func(u client.Update) { removed = u.Favour == nil })
	defer cancel()

	store.Remove("fav-1")
	_, ok := store.Peek("fav-1")
	assert.False(t, ok)
	assert.True(t, removed, "subscribers see the removal")

	// Removing again is harmless and silent.
	removed = false
	store.Remove("fav-1")
	assert.False(t, removed)
}

func TestStore_SubscribeCancel(t *testing.T) {
	remote := newFakeRemote(testFavour())
	store := client.NewStore(remote)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "fav-1", "tok")
	require.NoError(t, err)

	var calls int
	cancel := store.Subscribe("fav-1", func(client.Update) { calls++ })
	cancel()

	path := "favours/x/evidence.png"
	store.InvalidateWith("fav-1", client.Patch{Evidence: &path})
	assert.Zero(t, calls, "cancelled subscriptions receive nothing")
}

func TestStore_RefreshOverwritesOptimisticPatch(t *testing.T) {
	// Documented consistency model: a later fetch response overwrites an
	// optimistic patch, even with older remote data.
	remote := newFakeRemote(testFavour())
	store := client.NewStore(remote)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "fav-1", "tok")
	require.NoError(t, err)

	path := "favours/x/evidence.png"
	store.InvalidateWith("fav-1", client.Patch{Evidence: &path})

	refreshed, err := store.Refresh(ctx, "fav-1", "tok")
	require.NoError(t, err)
	assert.Empty(t, refreshed.Evidence, "remote copy wins on refresh")
}
