package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"credvault/internal/credential/issuer"
	"credvault/internal/credential/models"
	"credvault/internal/credential/summary"
	dErrors "credvault/pkg/domain-errors"
	"credvault/pkg/platform/httputil"
)

// IssuerService covers issuance and reads.
type IssuerService interface {
	Issue(ctx context.Context, req issuer.IssueRequest) (*models.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	ListByOwner(ctx context.Context, ownerRef string) ([]*models.Record, error)
}

// LifecycleService covers status transitions.
type LifecycleService interface {
	ConfirmMint(ctx context.Context, id uuid.UUID, ref models.MintRef) (*models.Record, error)
	Revoke(ctx context.Context, id uuid.UUID) (*models.Record, error)
}

// CredentialHandler handles the credential endpoints.
type CredentialHandler struct {
	issuer    IssuerService
	lifecycle LifecycleService
	logger    *slog.Logger
}

// NewCredentialHandler creates a new credential handler.
func NewCredentialHandler(issuerSvc IssuerService, lifecycleSvc LifecycleService, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{
		issuer:    issuerSvc,
		lifecycle: lifecycleSvc,
		logger:    logger,
	}
}

// Register registers the credential routes with the chi router.
func (h *CredentialHandler) Register(r chi.Router) {
	r.Post("/credentials", h.handleIssue)
	r.Get("/credentials", h.handleList)
	r.Get("/credentials/{id}", h.handleGet)
	r.Patch("/credentials/{id}/mint", h.handleMint)
	r.Patch("/credentials/{id}/revoke", h.handleRevoke)
}

func (h *CredentialHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndValidate[issueRequest](w, r, h.logger)
	if !ok {
		return
	}

	sum, err := summary.Summarize(req.Scores, req.Highlights)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.issuer.Issue(r.Context(), issuer.IssueRequest{
		WalletAddress:  req.WalletAddress,
		CandidateEmail: req.CandidateEmail,
		SchemaID:       req.SchemaID,
		Report:         req.Report,
		Summary:        sum,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCredentialResponse(rec))
}

func (h *CredentialHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.issuer.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(rec))
}

func (h *CredentialHandler) handleList(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	records, err := h.issuer.ListByOwner(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"credentials": toCredentialResponses(records),
	})
}

func (h *CredentialHandler) handleMint(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndValidate[mintRequest](w, r, h.logger)
	if !ok {
		return
	}
	rec, err := h.lifecycle.ConfirmMint(r.Context(), id, models.MintRef{
		SBTID:        req.SBTID,
		TxID:         req.TxID,
		BlockchainID: req.BlockchainID,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(rec))
}

func (h *CredentialHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.lifecycle.Revoke(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(rec))
}

func (h *CredentialHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "credential id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
