package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/handler"
	"github.com/meliprint/meliprint/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriptionManager struct {
	status    service.SubscriptionStatus
	statusErr error

	checkoutURL string
	checkoutErr error

	webhookType string
	webhookID   string

	cancelErr error
}

func (f *fakeSubscriptionManager) Status(ctx context.Context, mlUserID int64) (service.SubscriptionStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeSubscriptionManager) Checkout(ctx context.Context, mlUserID int64, nickname, email string) (string, error) {
	return f.checkoutURL, f.checkoutErr
}

func (f *fakeSubscriptionManager) HandleWebhook(ctx context.Context, notificationType, preapprovalID string) error {
	f.webhookType, f.webhookID = notificationType, preapprovalID
	return nil
}

func (f *fakeSubscriptionManager) Cancel(ctx context.Context, mlUserID int64) error {
	return f.cancelErr
}

func newSubscriptionRouter(svc handler.SubscriptionManager) chi.Router {
	h := handler.NewSubscriptionHandler(testLogger(), svc)
	r := chi.NewRouter()
	h.Init(r)
	return r
}

func TestSubscriptionHandler_Status(t *testing.T) {
	t.Run("active subscription", func(t *testing.T) {
		end := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
		svc := &fakeSubscriptionManager{
			status: service.SubscriptionStatus{
				HasSubscription:  true,
				Status:           entities.SubscriptionAuthorized,
				CurrentPeriodEnd: &end,
				PlanName:         "MeliPrint Pro",
				Price:            29.90,
			},
		}
		r := newSubscriptionRouter(svc)

		req := withSession(httptest.NewRequest(http.MethodGet, "/api/subscription/status", nil), authedSession())
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"hasSubscription":true`)
		assert.Contains(t, rr.Body.String(), `"planName":"MeliPrint Pro"`)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		r := newSubscriptionRouter(&fakeSubscriptionManager{})

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/subscription/status", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestSubscriptionHandler_Checkout(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		svc        *fakeSubscriptionManager
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success with empty body",
			body:       "",
			svc:        &fakeSubscriptionManager{checkoutURL: "https://mp.example/checkout/pre-1"},
			wantStatus: http.StatusOK,
			wantBody:   `"checkoutUrl":"https://mp.example/checkout/pre-1"`,
		},
		{
			name:       "success with email",
			body:       `{"email":"seller@example.com"}`,
			svc:        &fakeSubscriptionManager{checkoutURL: "https://mp.example/checkout/pre-1"},
			wantStatus: http.StatusOK,
			wantBody:   `"checkoutUrl"`,
		},
		{
			name:       "invalid email rejected",
			body:       `{"email":"not-an-email"}`,
			svc:        &fakeSubscriptionManager{},
			wantStatus: http.StatusBadRequest,
			wantBody:   `"invalid request"`,
		},
		{
			name:       "already subscribed",
			body:       "",
			svc:        &fakeSubscriptionManager{checkoutErr: entities.ErrSubscriptionExists},
			wantStatus: http.StatusBadRequest,
			wantBody:   `"subscription already active"`,
		},
		{
			name:       "billing failure",
			body:       "",
			svc:        &fakeSubscriptionManager{checkoutErr: errors.New("mp down")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `"failed to create checkout"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newSubscriptionRouter(tc.svc)

			req := httptest.NewRequest(http.MethodPost, "/api/subscription/checkout", strings.NewReader(tc.body))
			req = withSession(req, authedSession())
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.wantBody)
		})
	}
}

func TestSubscriptionHandler_Webhook(t *testing.T) {
	t.Run("forwards notification and always answers 200", func(t *testing.T) {
		svc := &fakeSubscriptionManager{}
		r := newSubscriptionRouter(svc)

		body := `{"type":"preapproval","data":{"id":"pre-1"}}`
		req := httptest.NewRequest(http.MethodPost, "/api/subscription/webhook", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "preapproval", svc.webhookType)
		assert.Equal(t, "pre-1", svc.webhookID)
	})

	t.Run("malformed payload still answers 200", func(t *testing.T) {
		r := newSubscriptionRouter(&fakeSubscriptionManager{})

		req := httptest.NewRequest(http.MethodPost, "/api/subscription/webhook", strings.NewReader("{"))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestSubscriptionHandler_Cancel(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := newSubscriptionRouter(&fakeSubscriptionManager{})

		req := withSession(httptest.NewRequest(http.MethodPost, "/api/subscription/cancel", nil), authedSession())
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"success":true`)
	})

	t.Run("nothing to cancel", func(t *testing.T) {
		r := newSubscriptionRouter(&fakeSubscriptionManager{cancelErr: entities.ErrNoSubscription})

		req := withSession(httptest.NewRequest(http.MethodPost, "/api/subscription/cancel", nil), authedSession())
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, rr.Body.String(), `"no active subscription found"`)
	})
}
