package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/favourlabs/favour/pkg/blob"
	"github.com/favourlabs/favour/pkg/favour"
	"github.com/favourlabs/favour/pkg/store"
)

// FavourService exposes the favour store over HTTP. Authorization follows the
// same rules the client derives locally: the server is the authority and
// re-checks every mutation.
type FavourService struct {
	store  store.Store
	blobs  blob.Store
	logger *slog.Logger
	clock  func() time.Time
	newID  func() string
}

func NewFavourService(st store.Store, blobs blob.Store, logger *slog.Logger) *FavourService {
	if logger == nil {
		logger = slog.Default().With("component", "api")
	}
	return &FavourService{
		store:  st,
		blobs:  blobs,
		logger: logger,
		clock:  time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// CreateFavourRequest is the body of POST /v1/favours.
type CreateFavourRequest struct {
	Debtor          favour.Party   `json:"debtor"`
	Recipient       favour.Party   `json:"recipient"`
	Rewards         map[string]int `json:"rewards"`
	InitialEvidence string         `json:"initial_evidence,omitempty"`
}

// HandleCreate handles POST /v1/favours.
func (s *FavourService) HandleCreate(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		WriteUnauthorized(w, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	var req CreateFavourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	if viewer.ID != req.Debtor.ID && viewer.ID != req.Recipient.ID {
		WriteForbidden(w, "A favour can only be created by one of its parties")
		return
	}

	f := favour.Favour{
		ID:              s.newID(),
		Debtor:          req.Debtor,
		Recipient:       req.Recipient,
		Rewards:         req.Rewards,
		InitialEvidence: req.InitialEvidence,
		CreatedAt:       s.clock().UTC(),
	}
	if err := f.Validate(); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if err := s.store.Create(r.Context(), f); err != nil {
		WriteInternal(w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "favour created", "favour_id", f.ID, "debtor_id", f.Debtor.ID, "recipient_id", f.Recipient.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(f)
}

// HandleGet handles GET /v1/favours/{id}. Only the favour's parties may read
// it; outsiders get the same 404 as a missing record so ids do not leak.
func (s *FavourService) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		WriteUnauthorized(w, "")
		return
	}

	f, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, err)
		return
	}
	if viewer.ID != f.Debtor.ID && viewer.ID != f.Recipient.ID {
		WriteNotFound(w, "favour not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f)
}

// HandleList handles GET /v1/favours: every favour the viewer is a party to.
func (s *FavourService) HandleList(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		WriteUnauthorized(w, "")
		return
	}

	favours, err := s.store.ListByParty(r.Context(), viewer.ID)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	if favours == nil {
		favours = []favour.Favour{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(favours)
}

// HandleDelete handles DELETE /v1/favours/{id}.
func (s *FavourService) HandleDelete(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		WriteUnauthorized(w, "")
		return
	}

	id := r.PathValue("id")
	f, err := s.store.Get(r.Context(), id)
	if err != nil {
		WriteFault(w, err)
		return
	}
	if viewer.ID != f.Debtor.ID && viewer.ID != f.Recipient.ID {
		// Same 404 as a missing record so ids do not leak.
		WriteNotFound(w, "favour not found")
		return
	}

	if !favour.PermissionsOf(f, viewer).CanDelete {
		WriteForbidden(w, "only the recipient, or the debtor of a claimed favour, may delete it")
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		WriteFault(w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "favour deleted", "favour_id", id, "viewer_id", viewer.ID)
	w.WriteHeader(http.StatusNoContent)
}

// EvidenceRequest is the body of POST /v1/favours/{id}/evidence. The path
// references a blob the client has already uploaded.
type EvidenceRequest struct {
	Evidence string `json:"evidence"`
}

// HandleRegisterEvidence handles POST /v1/favours/{id}/evidence.
func (s *FavourService) HandleRegisterEvidence(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		WriteUnauthorized(w, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req EvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Evidence == "" {
		WriteBadRequest(w, "Missing required field: evidence")
		return
	}

	id := r.PathValue("id")
	f, err := s.store.Get(r.Context(), id)
	if err != nil {
		WriteFault(w, err)
		return
	}
	if viewer.ID != f.Debtor.ID && viewer.ID != f.Recipient.ID {
		WriteNotFound(w, "favour not found")
		return
	}

	if !favour.PermissionsOf(f, viewer).CanUploadEvidence {
		WriteForbidden(w, "only the debtor may submit evidence for a pending favour")
		return
	}

	if err := s.store.SetEvidence(r.Context(), id, req.Evidence); err != nil {
		WriteFault(w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "evidence registered", "favour_id", id, "blob_path", req.Evidence)

	f.Evidence = req.Evidence
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f)
}

// EvidenceURLResponse carries a short-lived download URL for evidence.
type EvidenceURLResponse struct {
	URL string `json:"url"`
}

// HandleEvidenceURL handles GET /v1/favours/{id}/evidence/url, resolving the
// stored blob path to a renderable URL on demand.
func (s *FavourService) HandleEvidenceURL(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		WriteUnauthorized(w, "")
		return
	}

	f, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, err)
		return
	}
	if viewer.ID != f.Debtor.ID && viewer.ID != f.Recipient.ID {
		WriteNotFound(w, "favour not found")
		return
	}
	if f.Evidence == "" {
		WriteNotFound(w, "no evidence on record")
		return
	}

	url, err := s.blobs.ResolveDownloadURL(r.Context(), f.Evidence)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(EvidenceURLResponse{URL: url})
}
