package promotion_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/promotion"
	"github.com/cczslater/sellbuydeal-sub000/internal/middleware"
)

func withUser(userID uuid.UUID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			ctx = context.WithValue(ctx, middleware.RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestHandlerApplyAndList(t *testing.T) {
	f := newFixture()
	user := uuid.New()
	f.fund(t, user, "3")
	routes := promotion.NewHandler(f.engine).Routes(withUser(user, "user"))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"listing_id":"listing-9","promotion_type":"featured_listing"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// 0.01 left, not enough for a second one
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"listing_id":"listing-9","promotion_type":"urgent_badge"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "shortfall")

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"listing_id":"listing-9","promotion_type":"billboard"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"listing_id":""}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listings/listing-9?active=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
	assert.Contains(t, rec.Body.String(), "featured_listing")

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "homepage_spotlight")
}

func TestHandlerUpsertSettingRequiresAdmin(t *testing.T) {
	f := newFixture()
	body := `{"name":"Bump","price":"0.99","duration_days":1}`

	rec := httptest.NewRecorder()
	promotion.NewHandler(f.engine).AdminRoutes(withUser(uuid.New(), "user")).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings/bump", strings.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := promotion.NewHandler(f.engine).AdminRoutes(withUser(uuid.New(), "admin"))
	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings/bump", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/settings/bump", strings.NewReader(`{"name":"Bump","price":"-1","duration_days":1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	settings, err := f.engine.ListSettings(context.Background(), true)
	require.NoError(t, err)
	var found bool
	for _, s := range settings {
		if s.PromotionType == "bump" {
			found = true
			assert.True(t, s.Price.Equal(dec("0.99")))
		}
	}
	assert.True(t, found)
}
