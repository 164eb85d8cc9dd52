package credit

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cczslater/sellbuydeal-sub000/internal/middleware"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/errorhandler"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/response"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/validator"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// Handler handles credit HTTP requests
type Handler struct {
	svc Service
}

// NewHandler creates credit handler
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// GetBalance handles GET /api/v1/credits/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	b, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "BALANCE_FAILED", "Failed to load balance", err)
		return
	}

	response.OK(w, BalanceResponseFrom(b))
}

// ListTransactions handles GET /api/v1/credits/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := response.PageParams(r, DefaultHistoryLimit)
	items, err := h.svc.History(r.Context(), userID, store.Page{Limit: limit, Offset: offset})
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FAILED", "Failed to load transactions", err)
		return
	}

	response.OK(w, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// Grant handles POST /api/admin/credits/{userID}/grant
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	txID, err := h.svc.GrantFromAdmin(r.Context(), adminID, userID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, err.Error())
		default:
			errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "GRANT_FAILED", "Failed to grant credits", err)
		}
		return
	}

	b, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "BALANCE_FAILED", "Failed to load balance", err)
		return
	}

	response.Created(w, map[string]interface{}{
		"transaction_id": txID,
		"balance":        BalanceResponseFrom(b),
	})
}

// Routes returns credit routes for authenticated users
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.GetBalance)
	r.Get("/transactions", h.ListTransactions)
	return r
}

// AdminRoutes returns credit routes for administrators
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Post("/{userID}/grant", h.Grant)
	return r
}
