package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cczslater/sellbuydeal-sub000/internal/app"
	"github.com/cczslater/sellbuydeal-sub000/internal/config"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/jwt"
)

func newTestRouter(t *testing.T) (http.Handler, *jwt.Service, *app.App) {
	t.Helper()
	cfg := &config.Config{
		StoreDriver:          "memory",
		BackupPaymentMode:    "approve",
		BackupPaymentMethods: []string{"card"},
		AllowedOrigins:       []string{"http://localhost:3000"},
	}
	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	jwtService := jwt.NewService("test-secret", "", time.Minute)
	return newRouter(a, jwtService, nil), jwtService, a
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouterRequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, path := range []string{"/api/v1/credits/balance", "/api/v1/gateway/settings", "/api/v1/loyalty/balance", "/api/v1/promotions/settings"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRouterGrantThenPay(t *testing.T) {
	router, jwtService, _ := newTestRouter(t)
	buyer, seller := uuid.New(), uuid.New()

	adminToken, err := jwtService.GenerateAccessToken(uuid.New(), jwt.RoleAdmin)
	require.NoError(t, err)
	buyerToken, err := jwtService.GenerateAccessToken(buyer, jwt.RoleUser)
	require.NoError(t, err)

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// users cannot reach admin routes
	rec := do(http.MethodPost, "/api/admin/credits/"+buyer.String()+"/grant", buyerToken, `{"amount":"40","reason":"welcome bonus"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(http.MethodPost, "/api/admin/credits/"+buyer.String()+"/grant", adminToken, `{"amount":"40","reason":"welcome bonus"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(http.MethodPost, "/api/v1/gateway/payments", buyerToken,
		`{"seller_id":"`+seller.String()+`","product_ref":"order-1","total_amount":"40","credit_amount":"40","payment_method":"credits_only"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(http.MethodGet, "/api/v1/credits/balance", buyerToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_balance":"0"`)
}
