package loyalty_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cczslater/sellbuydeal-sub000/internal/domain/loyalty"
	"github.com/cczslater/sellbuydeal-sub000/internal/middleware"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
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

type stubBoost struct {
	calls int
}

func (s *stubBoost) RedeemBoost(_ context.Context, userID, _ uuid.UUID, listingID string) (*loyalty.BoostRedemption, error) {
	s.calls++
	return &loyalty.BoostRedemption{
		Promotion: store.ListingPromotion{ListingID: listingID, UserID: userID, PaidWith: store.PaidWithPoints},
	}, nil
}

func TestHandlerEventThenRedeem(t *testing.T) {
	f := newFixture()
	boost := &stubBoost{}
	h := loyalty.NewHandler(f.svc, boost)
	userID := uuid.New()

	admin := h.AdminRoutes(withUser(uuid.New(), "service"))
	for i, ref := range []string{"sale-1", "sale-1"} {
		body := `{"user_id":"` + userID.String() + `","type":"successful_sale","reference_id":"` + ref + `"}`
		rec := httptest.NewRecorder()
		admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))
		if i == 0 {
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		} else {
			require.Equal(t, http.StatusOK, rec.Code, "replayed event is not re-awarded")
		}
	}

	routes := h.Routes(withUser(userID, "user"))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rewards/"+store.RewardGiveawayEntryID.String()+"/redeem", nil))
	assert.Equal(t, http.StatusConflict, rec.Code, "50 points cannot cover a 100 point reward")
	assert.Contains(t, rec.Body.String(), "shortfall")

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rewards/"+store.RewardFeaturedBoostID.String()+"/redeem", strings.NewReader(`{"listing_id":"listing-9"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, boost.calls)
	assert.Contains(t, rec.Body.String(), `"listing_id":"listing-9"`)
	assert.Contains(t, rec.Body.String(), `"replaced_count":0`)
}

func TestHandlerEventValidation(t *testing.T) {
	h := loyalty.NewHandler(newFixture().svc, nil)
	admin := h.AdminRoutes(withUser(uuid.New(), "admin"))

	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"type":"login","reference_id":"x"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerEventRequiresRole(t *testing.T) {
	h := loyalty.NewHandler(newFixture().svc, nil)
	admin := h.AdminRoutes(withUser(uuid.New(), "user"))

	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
