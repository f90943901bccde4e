package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"credvault/internal/disclosure/broker"
	"credvault/internal/disclosure/models"
	dErrors "credvault/pkg/domain-errors"
	"credvault/pkg/platform/httputil"
)

// BrokerService covers the share, pay, and view operations.
type BrokerService interface {
	CreateShareToken(ctx context.Context, credentialID uuid.UUID, ttl time.Duration) (*models.ShareToken, error)
	Preview(ctx context.Context, token string) (*broker.Preview, error)
	PreviewAndPay(ctx context.Context, token, employer string) (*broker.PayResult, error)
	ViewReport(ctx context.Context, token string) (*broker.View, error)
}

// DisclosureHandler handles the share and verify endpoints.
type DisclosureHandler struct {
	broker BrokerService
	logger *slog.Logger
}

// NewDisclosureHandler creates a new disclosure handler.
func NewDisclosureHandler(brokerSvc BrokerService, logger *slog.Logger) *DisclosureHandler {
	return &DisclosureHandler{broker: brokerSvc, logger: logger}
}

// Register registers the disclosure routes with the chi router.
func (h *DisclosureHandler) Register(r chi.Router) {
	r.Post("/share", h.handleShare)
	r.Post("/verify/preview", h.handlePreview)
	r.Post("/verify/pay", h.handlePay)
	r.Get("/verify/view", h.handleView)
}

func (h *DisclosureHandler) handleShare(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndValidate[shareRequest](w, r, h.logger)
	if !ok {
		return
	}
	token, err := h.broker.CreateShareToken(r.Context(), req.credentialID(), req.ttl())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toShareTokenResponse(token))
}

func (h *DisclosureHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndValidate[previewRequest](w, r, h.logger)
	if !ok {
		return
	}
	preview, err := h.broker.Preview(r.Context(), req.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPreviewResponse(preview))
}

func (h *DisclosureHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndValidate[payRequest](w, r, h.logger)
	if !ok {
		return
	}
	result, err := h.broker.PreviewAndPay(r.Context(), req.Token, req.Employer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payResponse{
		Token:     result.ViewToken,
		ExpiresAt: result.ExpiresAt,
	})
}

// handleView takes the token as a query parameter so the viewer can be a
// plain link. The middleware logger never records query strings.
func (h *DisclosureHandler) handleView(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token query parameter is required"))
		return
	}
	view, err := h.broker.ViewReport(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toViewResponse(view))
}
