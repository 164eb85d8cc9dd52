package promotion

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/credit"
	"github.com/cczslater/sellbuydeal-sub000/internal/middleware"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/errorhandler"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/response"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/validator"
)

// Handler handles promotion HTTP requests
type Handler struct {
	engine *Engine
}

// NewHandler creates new promotion handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// ListSettings returns the active catalog
// GET /api/v1/promotions/settings
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.engine.ListSettings(r.Context(), true)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "SETTINGS_FAILED", "Failed to load promotion settings", err)
		return
	}
	response.OK(w, settings)
}

// Apply purchases a promotion for a listing
// POST /api/v1/promotions
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	res, err := h.engine.ApplyPromotion(r.Context(), userID, req.ListingID, req.PromotionType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, res)
}

// ListForListing returns a listing's promotions
// GET /api/v1/promotions/listings/{listingID}?active=true
func (h *Handler) ListForListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingID")
	activeOnly := r.URL.Query().Get("active") == "true"

	items, err := h.engine.ListForListing(r.Context(), listingID, activeOnly)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "PROMOTIONS_FAILED", "Failed to load promotions", err)
		return
	}
	response.OK(w, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

// UpsertSetting creates or updates a catalog entry
// PUT /api/admin/promotions/settings/{type}
func (h *Handler) UpsertSetting(w http.ResponseWriter, r *http.Request) {
	var req SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	setting, err := h.engine.UpsertSetting(r.Context(), req.toSetting(chi.URLParam(r, "type")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, setting)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnknownPromotion):
		response.NotFound(w, "promotion type not found")
	case errors.Is(err, ErrUnknownReward):
		response.NotFound(w, "reward not found")
	case errors.Is(err, ErrInvalidListing), errors.Is(err, ErrInvalidSetting), errors.Is(err, credit.ErrInvalidAmount):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrInsufficientBalance):
		errorhandler.InsufficientBalance(r.Context(), w, err)
	case errors.Is(err, ErrConcurrentPromotion):
		response.Conflict(w, "listing promotion changed concurrently, retry")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "PROMOTION_FAILED", "Promotion operation failed", err)
	}
}

// Routes returns promotion routes for authenticated users
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/settings", h.ListSettings)
	r.Post("/", h.Apply)
	r.Get("/listings/{listingID}", h.ListForListing)
	return r
}

// AdminRoutes returns catalog management routes
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Put("/settings/{type}", h.UpsertSetting)
	return r
}
