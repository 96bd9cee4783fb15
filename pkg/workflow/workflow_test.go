package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favourlabs/favour/pkg/blob"
	"github.com/favourlabs/favour/pkg/client"
	"github.com/favourlabs/favour/pkg/fault"
	"github.com/favourlabs/favour/pkg/favour"
	"github.com/favourlabs/favour/pkg/notify"
)

type registration struct {
	id   string
	path string
}

type fakeRemote struct {
	mu          sync.Mutex
	favours     map[string]favour.Favour
	registerErr error
	deleteErr   error
	registered  []registration
	deleted     []string
}

func (r *fakeRemote) GetFavour(ctx context.Context, id, credential string) (favour.Favour, error) {
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
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeRemote) RegisterEvidence(ctx context.Context, id, path, credential string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registerErr != nil {
		return r.registerErr
	}
	r.registered = append(r.registered, registration{id: id, path: path})
	return nil
}

type failingBlobStore struct{}

func (failingBlobStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	return errors.New("bucket unavailable")
}

func (failingBlobStore) ResolveDownloadURL(ctx context.Context, path string) (string, error) {
	return "", errors.New("bucket unavailable")
}

var (
	debtor    = favour.Party{ID: "u-debtor", Name: "Dana"}
	recipient = favour.Party{ID: "u-recipient", Name: "Rex"}
)

func pendingFavour() favour.Favour {
	return favour.Favour{
		ID:        "fav-1",
		Debtor:    debtor,
		Recipient: recipient,
		Rewards:   map[string]int{"coffee": 1},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	workflows *Workflows
	store     *client.Store
	remote    *fakeRemote
	blobs     *blob.MemoryStore
	recorder  *notify.Recorder
	now       time.Time
}

func newFixture(t *testing.T, f favour.Favour) *fixture {
	t.Helper()
	fix := &fixture{
		remote:   &fakeRemote{favours: map[string]favour.Favour{f.ID: f}},
		blobs:    blob.NewMemoryStore(),
		recorder: &notify.Recorder{},
		now:      time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	fix.store = client.NewStore(fix.remote)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fix.workflows = New(fix.store, fix.remote, fix.blobs, fix.recorder, logger).
		WithClock(func() time.Time { return fix.now })

	_, err := fix.store.Fetch(context.Background(), f.ID, "cred")
	require.NoError(t, err)
	return fix
}

func TestSubmitEvidenceHappyPath(t *testing.T) {
	f := pendingFavour()
	fix := newFixture(t, f)
	viewer := favour.Viewer{ID: debtor.ID, Credential: "cred"}

	err := fix.workflows.SubmitEvidence(context.Background(), f, viewer, Artifact{
		Data:        []byte("proof"),
		ContentType: "image/png",
	})
	require.NoError(t, err)

	wantPath := blob.EvidencePath(debtor.ID, recipient.ID, fix.now, "image/png")
	data, ok := fix.blobs.Get(wantPath)
	require.True(t, ok, "blob should be stored at the deterministic path")
	assert.Equal(t, []byte("proof"), data)

	require.Len(t, fix.remote.registered, 1)
	assert.Equal(t, registration{id: f.ID, path: wantPath}, fix.remote.registered[0])

	cached, ok := fix.store.Peek(f.ID)
	require.True(t, ok)
	assert.Equal(t, wantPath, cached.Evidence)
	assert.Equal(t, favour.PhaseClaimed, favour.PhaseOf(cached))

	entries := fix.recorder.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, notify.ActionUploadEvidence, entries[0].Action)
}

func TestSubmitEvidenceForbiddenForRecipient(t *testing.T) {
	f := pendingFavour()
	fix := newFixture(t, f)
	viewer := favour.Viewer{ID: recipient.ID, Credential: "cred"}

	err := fix.workflows.SubmitEvidence(context.Background(), f, viewer, Artifact{
		Data:        []byte("proof"),
		ContentType: "image/png",
	})
	require.Error(t, err)
	assert.Equal(t, fault.Forbidden, fault.CodeOf(err))

	assert.Equal(t, 0, fix.blobs.Len(), "nothing should be uploaded")
	assert.Empty(t, fix.remote.registered)

	cached, ok := fix.store.Peek(f.ID)
	require.True(t, ok)
	assert.Empty(t, cached.Evidence, "cache must be unchanged")
}

func TestSubmitEvidenceForbiddenOnceClaimed(t *testing.T) {
	f := pendingFavour()
	f.Evidence = "favours/existing/evidence.png"
	fix := newFixture(t, f)
	viewer := favour.Viewer{ID: debtor.ID, Credential: "cred"}

	err := fix.workflows.SubmitEvidence(context.Background(), f, viewer, Artifact{
		Data:        []byte("proof"),
		ContentType: "image/png",
	})
	require.Error(t, err)
	assert.Equal(t, fault.Forbidden, fault.CodeOf(err))
	assert.Equal(t, 0, fix.blobs.Len())
}

func TestSubmitEvidencePermissionFromFreshCachedRecord(t *testing.T) {
	// The caller holds a stale pending snapshot, but the cache already knows
	// the favour is claimed. The fresh record wins.
	f := pendingFavour()
	fix := newFixture(t, f)
	fix.store.InvalidateWith(f.ID, client.Patch{Evidence: strPtr("favours/x/evidence.png")})
	viewer := favour.Viewer{ID: debtor.ID, Credential: "cred"}

	err := fix.workflows.SubmitEvidence(context.Background(), f, viewer, Artifact{
		Data:        []byte("proof"),
		ContentType: "image/png",
	})
	require.Error(t, err)
	assert.Equal(t, fault.Forbidden, fault.CodeOf(err))
}

func TestSubmitEvidenceUploadFailureLeavesRecordPending(t *testing.T) {
	f := pendingFavour()
	fix := newFixture(t, f)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wf := New(fix.store, fix.remote, failingBlobStore{}, fix.recorder, logger)
	viewer := favour.Viewer{ID: debtor.ID, Credential: "cred"}

	err := wf.SubmitEvidence(context.Background(), f, viewer, Artifact{
		Data:        []byte("proof"),
		ContentType: "image/png",
	})
	require.Error(t, err)
	assert.Equal(t, fault.StorageFailure, fault.CodeOf(err))

	assert.Empty(t, fix.remote.registered, "registration must not start before upload succeeds")
	cached, ok := fix.store.Peek(f.ID)
	require.True(t, ok)
	assert.Empty(t, cached.Evidence)

	entries := fix.recorder.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
}

func TestSubmitEvidenceRegistrationFailureThenRetry(t *testing.T) {
	f := pendingFavour()
	fix := newFixture(t, f)
	fix.remote.registerErr = fault.New(fault.Transport, "favour service unavailable")
	viewer := favour.Viewer{ID: debtor.ID, Credential: "cred"}

	err := fix.workflows.SubmitEvidence(context.Background(), f, viewer, Artifact{
		Data:        []byte("proof"),
		ContentType: "image/png",
	})
	require.Error(t, err)
	assert.Equal(t, fault.RegistrationFailure, fault.CodeOf(err))
	assert.Equal(t, 1, fix.blobs.Len(), "the blob is uploaded and left orphaned")

	cached, ok := fix.store.Peek(f.ID)
	require.True(t, ok)
	assert.Empty(t, cached.Evidence, "record is unchanged after a registration failure")

	// Retry with a later clock re-uploads at a fresh path and succeeds.
	fix.remote.registerErr = nil
	fix.now = fix.now.Add(time.Minute)
	err = fix.workflows.SubmitEvidence(context.Background(), f, viewer, Artifact{
		Data:        []byte("proof"),
		ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, fix.blobs.Len(), "retry uses a new path, the orphan stays")

	cached, ok = fix.store.Peek(f.ID)
	require.True(t, ok)
	assert.Equal(t, blob.EvidencePath(debtor.ID, recipient.ID, fix.now, "image/png"), cached.Evidence)
	assert.Equal(t, favour.PhaseClaimed, favour.PhaseOf(cached))
}

func TestDeleteFavourByRecipient(t *testing.T) {
	f := pendingFavour()
	fix := newFixture(t, f)
	viewer := favour.Viewer{ID: recipient.ID, Credential: "cred"}

	err := fix.workflows.DeleteFavour(context.Background(), f, viewer)
	require.NoError(t, err)

	assert.Equal(t, []string{f.ID}, fix.remote.deleted)
	_, ok := fix.store.Peek(f.ID)
	assert.False(t, ok, "record should be dropped from the cache")

	entries := fix.recorder.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, notify.ActionDelete, entries[0].Action)
}

func TestDeleteFavourByDebtorRequiresClaimed(t *testing.T) {
	f := pendingFavour()
	fix := newFixture(t, f)
	viewer := favour.Viewer{ID: debtor.ID, Credential: "cred"}

	err := fix.workflows.DeleteFavour(context.Background(), f, viewer)
	require.Error(t, err)
	assert.Equal(t, fault.Forbidden, fault.CodeOf(err))
	assert.Empty(t, fix.remote.deleted, "no remote call on a permission failure")
	_, ok := fix.store.Peek(f.ID)
	assert.True(t, ok)

	// Once claimed, the debtor may delete.
	fix.store.InvalidateWith(f.ID, client.Patch{Evidence: strPtr("favours/x/evidence.png")})
	err = fix.workflows.DeleteFavour(context.Background(), f, viewer)
	require.NoError(t, err)
	assert.Equal(t, []string{f.ID}, fix.remote.deleted)
}

func TestDeleteFavourAlreadyDeletedReadsAsSuccess(t *testing.T) {
	f := pendingFavour()
	fix := newFixture(t, f)
	fix.remote.deleteErr = fault.New(fault.NotFound, "favour not found")
	viewer := favour.Viewer{ID: recipient.ID, Credential: "cred"}

	err := fix.workflows.DeleteFavour(context.Background(), f, viewer)
	require.Error(t, err)
	assert.Equal(t, fault.NotFound, fault.CodeOf(err))

	_, ok := fix.store.Peek(f.ID)
	assert.False(t, ok, "the cache converges on the remote state")

	entries := fix.recorder.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success, "the user sees the favour as deleted either way")
}

func TestDeleteFavourTransportFailureKeepsRecord(t *testing.T) {
	f := pendingFavour()
	fix := newFixture(t, f)
	fix.remote.deleteErr = fault.New(fault.Transport, "favour service unavailable")
	viewer := favour.Viewer{ID: recipient.ID, Credential: "cred"}

	err := fix.workflows.DeleteFavour(context.Background(), f, viewer)
	require.Error(t, err)
	assert.Equal(t, fault.Transport, fault.CodeOf(err))

	_, ok := fix.store.Peek(f.ID)
	assert.True(t, ok, "the record stays cached until the remote delete succeeds")

	entries := fix.recorder.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "favour service unavailable", entries[0].Message)
}

func TestEvidenceURL(t *testing.T) {
	f := pendingFavour()
	fix := newFixture(t, f)

	_, err := fix.workflows.EvidenceURL(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, fault.NotFound, fault.CodeOf(err))

	path := blob.EvidencePath(debtor.ID, recipient.ID, fix.now, "image/png")
	require.NoError(t, fix.blobs.Put(context.Background(), path, []byte("proof"), "image/png"))

	url, err := fix.workflows.EvidenceURL(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "memory://"+path, url)
}

func strPtr(s string) *string { return &s }
