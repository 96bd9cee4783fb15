// Package workflow implements the two mutating favour actions: evidence
// submission and deletion.
//
// Both workflows re-derive the viewer's permissions at call time from the
// freshest record available, never from whatever the UI rendered, and both
// end every successful remote mutation with a matching cache update, so the
// local view never shows a state the remote side has not accepted.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/favourlabs/favour/pkg/blob"
	"github.com/favourlabs/favour/pkg/client"
	"github.com/favourlabs/favour/pkg/fault"
	"github.com/favourlabs/favour/pkg/favour"
	"github.com/favourlabs/favour/pkg/notify"
)

const tracerName = "github.com/favourlabs/favour/pkg/workflow"

// Artifact is the binary evidence selected by the debtor.
type Artifact struct {
	Data        []byte
	ContentType string
}

// Workflows coordinates the blob store, the remote favour store, and the
// local cache for the mutating actions.
type Workflows struct {
	store    *client.Store
	remote   client.Remote
	blobs    blob.Store
	notifier notify.Notifier
	logger   *slog.Logger
	clock    func() time.Time
}

// New wires the workflow collaborators. A nil notifier falls back to slog; a
// nil logger falls back to slog.Default.
func New(store *client.Store, remote client.Remote, blobs blob.Store, notifier notify.Notifier, logger *slog.Logger) *Workflows {
	if logger == nil {
		logger = slog.Default().With("component", "workflow")
	}
	if notifier == nil {
		notifier = notify.SlogNotifier{Logger: logger}
	}
	return &Workflows{
		store:    store,
		remote:   remote,
		blobs:    blobs,
		notifier: notifier,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (w *Workflows) WithClock(clock func() time.Time) *Workflows {
	w.clock = clock
	return w
}

// SubmitEvidence uploads the artifact and registers it as the favour's
// evidence.
//
// Ordering invariant: registration never begins before the upload has
// completed successfully, so the remote record only ever references a durably
// stored blob. The workflow is not idempotent across its own failures: a
// retry after a registration failure re-uploads at a fresh path, orphaning
// the previous blob (accepted tradeoff).
func (w *Workflows) SubmitEvidence(ctx context.Context, f favour.Favour, viewer favour.Viewer, artifact Artifact) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "workflow.SubmitEvidence")
	defer span.End()
	span.SetAttributes(attribute.String("favour.id", f.ID))

	err := w.submitEvidence(ctx, f, viewer, artifact)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(fault.CodeOf(err)))
		w.notifier.Failure(notify.ActionUploadEvidence, notify.FailureMessage(notify.ActionUploadEvidence, err), err)
		return err
	}
	w.notifier.Success(notify.ActionUploadEvidence, notify.SuccessMessage(notify.ActionUploadEvidence))
	return nil
}

func (w *Workflows) submitEvidence(ctx context.Context, f favour.Favour, viewer favour.Viewer, artifact Artifact) error {
	// 1. Re-derive permission from the freshest cached record: the cache may
	// have changed between render and click.
	if cached, ok := w.store.Peek(f.ID); ok {
		f = cached
	}
	if !favour.PermissionsOf(f, viewer).CanUploadEvidence {
		return fault.New(fault.Forbidden, "only the debtor may submit evidence for a pending favour")
	}

	// 2. A fresh timestamp makes the path unique across repeated submissions
	// for the same pair.
	path := blob.EvidencePath(f.Debtor.ID, f.Recipient.ID, w.clock(), artifact.ContentType)

	// 3. Upload before registering. On failure the favour remains pending and
	// no remote mutation has happened.
	if err := w.blobs.Put(ctx, path, artifact.Data, artifact.ContentType); err != nil {
		return fault.Wrap(fault.StorageFailure, "", fmt.Errorf("upload evidence blob: %w", err))
	}

	// 4. Register the stored path as evidence. On failure the blob is
	// orphaned but the record is unchanged, so the caller can safely retry.
	if err := w.remote.RegisterEvidence(ctx, f.ID, path, viewer.Credential); err != nil {
		w.logger.WarnContext(ctx, "evidence registration failed after upload",
			"favour_id", f.ID, "blob_path", path, "error", err)
		return fault.Wrap(fault.RegistrationFailure, "", err)
	}

	// 5. Reflect the accepted mutation locally without waiting for a
	// re-fetch.
	w.store.InvalidateWith(f.ID, client.Patch{Evidence: &path})
	w.logger.InfoContext(ctx, "evidence submitted", "favour_id", f.ID, "blob_path", path)
	return nil
}

// EvidenceURL resolves a favour's evidence reference to a renderable URL.
// Resolution is lazy and on demand; the URL is never part of the record.
func (w *Workflows) EvidenceURL(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fault.New(fault.NotFound, "no evidence on record")
	}
	url, err := w.blobs.ResolveDownloadURL(ctx, path)
	if err != nil {
		return "", fault.Wrap(fault.StorageFailure, "", err)
	}
	return url, nil
}

// DeleteFavour issues an authorized remote delete and drops the record from
// the cache. A favour that is already gone remotely is reported to the user
// as a success (deleting twice is idempotent from their perspective) while
// the typed NotFound error is still returned to programmatic callers.
func (w *Workflows) DeleteFavour(ctx context.Context, f favour.Favour, viewer favour.Viewer) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "workflow.DeleteFavour")
	defer span.End()
	span.SetAttributes(attribute.String("favour.id", f.ID))

	if cached, ok := w.store.Peek(f.ID); ok {
		f = cached
	}
	if !favour.PermissionsOf(f, viewer).CanDelete {
		err := fault.New(fault.Forbidden, "only the recipient, or the debtor of a claimed favour, may delete it")
		span.RecordError(err)
		span.SetStatus(codes.Error, string(fault.Forbidden))
		w.notifier.Failure(notify.ActionDelete, notify.FailureMessage(notify.ActionDelete, err), err)
		return err
	}

	err := w.remote.DeleteFavour(ctx, f.ID, viewer.Credential)
	switch {
	case err == nil:
		w.store.Remove(f.ID)
		w.logger.InfoContext(ctx, "favour deleted", "favour_id", f.ID)
		w.notifier.Success(notify.ActionDelete, notify.SuccessMessage(notify.ActionDelete))
		return nil
	case errors.Is(err, fault.New(fault.NotFound, "")):
		// Already deleted remotely; converge the cache and tell the user the
		// favour is gone.
		w.store.Remove(f.ID)
		w.logger.InfoContext(ctx, "favour already deleted remotely", "favour_id", f.ID)
		w.notifier.Success(notify.ActionDelete, notify.SuccessMessage(notify.ActionDelete))
		return err
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, string(fault.CodeOf(err)))
		w.notifier.Failure(notify.ActionDelete, notify.FailureMessage(notify.ActionDelete, err), err)
		return err
	}
}
