package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cczslater/sellbuydeal-sub000/internal/middleware"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/errorhandler"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/response"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/validator"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// BoostRedeemer applies a boost reward to a listing. Implemented by the promotion engine.
type BoostRedeemer interface {
	RedeemBoost(ctx context.Context, userID, rewardID uuid.UUID, listingID string) (*BoostRedemption, error)
}

// Handler handles loyalty HTTP requests
type Handler struct {
	svc   *Service
	boost BoostRedeemer
}

func NewHandler(svc *Service, boost BoostRedeemer) *Handler {
	return &Handler{svc: svc, boost: boost}
}

// GetBalance handles GET /api/v1/loyalty/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	b, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "BALANCE_FAILED", "Failed to load points balance", err)
		return
	}
	response.OK(w, BalanceResponseFrom(b))
}

// ListTransactions handles GET /api/v1/loyalty/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := response.PageParams(r, 20)
	items, err := h.svc.History(r.Context(), userID, store.Page{Limit: limit, Offset: offset})
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FAILED", "Failed to load points history", err)
		return
	}
	response.OK(w, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// Leaderboard handles GET /api/v1/loyalty/leaderboard?limit=
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 100 {
		limit = 100
	}

	entries, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "LEADERBOARD_FAILED", "Failed to load leaderboard", err)
		return
	}
	response.OK(w, entries)
}

// ListRewards handles GET /api/v1/loyalty/rewards
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.svc.ListRewards(r.Context())
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "REWARDS_FAILED", "Failed to load rewards", err)
		return
	}
	response.OK(w, rewards)
}

// Redeem handles POST /api/v1/loyalty/rewards/{id}/redeem
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	rewardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid reward id")
		return
	}

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if req.ListingID != "" && h.boost != nil {
		boost, err := h.boost.RedeemBoost(r.Context(), userID, rewardID, req.ListingID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.Created(w, boost)
		return
	}

	red, err := h.svc.RedeemReward(r.Context(), userID, rewardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, red)
}

// Event handles POST /api/admin/loyalty/events
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(ev); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	res, err := h.svc.AwardForEvent(r.Context(), ev)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Duplicate {
		response.OK(w, res)
		return
	}
	response.Created(w, res)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnknownReward):
		response.NotFound(w, "reward not found")
	case errors.Is(err, ErrBoostRequiresListing):
		response.BadRequest(w, "listing_id is required for boost rewards")
	case errors.Is(err, ErrUnknownEvent):
		response.BadRequest(w, "unknown event type")
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrInsufficientBalance):
		errorhandler.InsufficientBalance(r.Context(), w, err)
	case errors.Is(err, ErrDuplicateReference):
		response.Conflict(w, "already recorded")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "LOYALTY_FAILED", "Loyalty operation failed", err)
	}
}

// Routes returns loyalty routes for authenticated users
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.GetBalance)
	r.Get("/transactions", h.ListTransactions)
	r.Get("/leaderboard", h.Leaderboard)
	r.Get("/rewards", h.ListRewards)
	r.Post("/rewards/{id}/redeem", h.Redeem)
	return r
}

// AdminRoutes returns routes for administrators and trusted services
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireService())
	r.Post("/events", h.Event)
	return r
}
