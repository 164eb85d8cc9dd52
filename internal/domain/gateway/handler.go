package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cczslater/sellbuydeal-sub000/internal/middleware"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/errorhandler"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/idempotency"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/response"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/validator"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

const defaultListLimit = 20

// Handler handles credit gateway HTTP requests
type Handler struct {
	svc  *Service
	idem *idempotency.Manager
}

// NewHandler creates a gateway handler. idem may be nil.
func NewHandler(svc *Service, idem *idempotency.Manager) *Handler {
	return &Handler{svc: svc, idem: idem}
}

// GetSettings returns the current gateway settings
// GET /api/v1/gateway/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.GetSettings(r.Context())
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "SETTINGS_FAILED", "Failed to load gateway settings", err)
		return
	}
	response.OK(w, settings)
}

// Breakdown previews a payment split
// POST /api/v1/gateway/breakdown
func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	var req BreakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	b, err := h.svc.CalculateBreakdown(r.Context(), req.TotalAmount, req.CreditAmount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, b)
}

// ProcessPayment pays a seller with the caller's credits
// POST /api/v1/gateway/payments
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	req.BuyerID = userID

	key := r.Header.Get(idempotency.HeaderKey)
	scope := "gateway_payment:" + userID.String()
	if key != "" {
		rec, err := h.idem.Begin(ctx, scope, key)
		switch {
		case errors.Is(err, idempotency.ErrInvalidKey):
			response.BadRequest(w, "invalid Idempotency-Key header")
			return
		case errors.Is(err, idempotency.ErrInFlight):
			response.Conflict(w, "a request with this Idempotency-Key is still in progress")
			return
		case err != nil:
			errorhandler.HandleError(ctx, w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "Idempotency store unavailable, retry later", err)
			return
		case rec != nil:
			w.Header().Set("Idempotent-Replayed", "true")
			response.JSON(w, rec.Status, rec.Body)
			return
		}
	}

	gt, err := h.svc.ProcessPayment(ctx, req)
	if err != nil {
		if key != "" {
			h.idem.Abort(ctx, scope, key)
		}
		h.writeError(w, r, err)
		return
	}

	if key != "" {
		if err := h.idem.Complete(ctx, scope, key, http.StatusCreated, gt); err != nil {
			errorhandler.LogExternalServiceError(ctx, "redis", "idempotency_complete", err)
		}
	}
	response.Created(w, gt)
}

// ListTransactions returns the caller's payments as buyer or seller
// GET /api/v1/gateway/payments?limit&offset
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := response.PageParams(r, defaultListLimit)
	items, err := h.svc.ListTransactions(r.Context(), userID, store.Page{Limit: limit, Offset: offset})
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "PAYMENTS_FAILED", "Failed to load payments", err)
		return
	}
	response.OK(w, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// GetTransaction returns one payment visible to its buyer, seller or an admin
// GET /api/v1/gateway/payments/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}

	gt, err := h.svc.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if gt.BuyerID != userID && gt.SellerID != userID && middleware.GetRole(r.Context()) != "admin" {
		response.NotFound(w, "payment not found")
		return
	}
	response.OK(w, gt)
}

// UpdateSettings patches the gateway settings
// PUT /api/admin/gateway/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	settings, err := h.svc.UpdateSettings(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, settings)
}

// Refund refunds a completed payment, fully or partially
// POST /api/admin/gateway/payments/{id}/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid request body")
		return
	}

	gt, err := h.svc.RefundTransaction(r.Context(), id, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, gt)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrGatewayDisabled):
		response.ServiceUnavailable(w, "Credit gateway is unavailable, use another payment method")
	case errors.Is(err, ErrAmountOutOfBounds):
		response.Error(w, http.StatusBadRequest, "AMOUNT_OUT_OF_BOUNDS", err.Error())
	case errors.Is(err, ErrPartialCreditsDisabled):
		response.Error(w, http.StatusBadRequest, "PARTIAL_CREDITS_DISABLED", err.Error())
	case errors.Is(err, ErrBackupPaymentRequired):
		response.Error(w, http.StatusBadRequest, "BACKUP_PAYMENT_REQUIRED", err.Error())
	case errors.Is(err, ErrUnsupportedPaymentMethod):
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED_PAYMENT_METHOD", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidSettings):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrInsufficientBalance):
		errorhandler.InsufficientBalance(r.Context(), w, err)
	case errors.Is(err, ErrBackupPaymentFailed):
		response.PaymentRequired(w, "Backup payment failed, your credits were returned")
	case errors.Is(err, ErrTransactionNotFound):
		response.NotFound(w, "payment not found")
	case errors.Is(err, ErrInvalidStateTransition):
		response.Error(w, http.StatusConflict, "INVALID_STATE", err.Error())
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "GATEWAY_FAILED", "Gateway operation failed", err)
	}
}

// Routes returns gateway routes for authenticated users
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/settings", h.GetSettings)
	r.Post("/breakdown", h.Breakdown)
	r.Post("/payments", h.ProcessPayment)
	r.Get("/payments", h.ListTransactions)
	r.Get("/payments/{id}", h.GetTransaction)
	return r
}

// AdminRoutes returns gateway administration routes
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Put("/settings", h.UpdateSettings)
	r.Post("/payments/{id}/refund", h.Refund)
	return r
}
