package credit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/credit"
	"github.com/cczslater/sellbuydeal-sub000/internal/middleware"
	"github.com/cczslater/sellbuydeal-sub000/internal/store/memory"
)

func fakeAuth(userID uuid.UUID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			ctx = context.WithValue(ctx, middleware.RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func TestHandlerGrantThenBalance(t *testing.T) {
	svc := credit.NewService(memory.New())
	h := credit.NewHandler(svc)
	adminID, userID := uuid.New(), uuid.New()

	admin := h.AdminRoutes(fakeAuth(adminID, "admin"))
	req := httptest.NewRequest(http.MethodPost, "/"+userID.String()+"/grant", strings.NewReader(`{"amount":"12.50","reason":"support"}`))
	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	user := h.Routes(fakeAuth(userID, "user"))
	rec = httptest.NewRecorder()
	user.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balance", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var bal credit.BalanceResponse
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	assert.Equal(t, "12.5", bal.CurrentBalance.String())
}

func TestHandlerGrantRequiresAdmin(t *testing.T) {
	h := credit.NewHandler(credit.NewService(memory.New()))
	admin := h.AdminRoutes(fakeAuth(uuid.New(), "user"))

	req := httptest.NewRequest(http.MethodPost, "/"+uuid.NewString()+"/grant", strings.NewReader(`{"amount":"1","reason":"x"}`))
	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerGrantRejectsInvalidAmount(t *testing.T) {
	h := credit.NewHandler(credit.NewService(memory.New()))
	admin := h.AdminRoutes(fakeAuth(uuid.New(), "admin"))

	req := httptest.NewRequest(http.MethodPost, "/"+uuid.NewString()+"/grant", strings.NewReader(`{"amount":"0.001","reason":"x"}`))
	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
