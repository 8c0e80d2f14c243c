package mercadopago_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/mercadopago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *mercadopago.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return mercadopago.NewClient(logger, mercadopago.Config{
		BaseURL:     srv.URL,
		AccessToken: "mp-token",
	})
}

func TestClient_CreatePreapproval(t *testing.T) {
	t.Run("posts a monthly BRL charge", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/preapproval", r.URL.Path)
			assert.Equal(t, "Bearer mp-token", r.Header.Get("Authorization"))

			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "MeliPrint Pro", req["reason"])
			assert.Equal(t, "user_1_ref", req["external_reference"])

			recurring := req["auto_recurring"].(map[string]any)
			assert.EqualValues(t, 1, recurring["frequency"])
			assert.Equal(t, "months", recurring["frequency_type"])
			assert.Equal(t, "BRL", recurring["currency_id"])
			assert.InDelta(t, 29.90, recurring["transaction_amount"], 0.001)

			fmt.Fprint(w, `{"id":"pre-1","status":"pending","init_point":"https://mp.example/checkout/pre-1"}`)
		}))

		got, err := client.CreatePreapproval(context.Background(),
			"MeliPrint Pro", 29.90, "https://app.example.com/subscription/callback", "seller@example.com", "user_1_ref")
		require.NoError(t, err)
		assert.Equal(t, "pre-1", got.ID)
		assert.Equal(t, "https://mp.example/checkout/pre-1", got.InitPoint)
	})

	t.Run("rejects response without checkout url", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id":"pre-1","status":"pending"}`)
		}))

		_, err := client.CreatePreapproval(context.Background(), "plan", 10, "https://cb", "", "ref")
		assert.ErrorContains(t, err, "init_point")
	})

	t.Run("upstream error surfaces status", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"invalid payer"}`))
		}))

		_, err := client.CreatePreapproval(context.Background(), "plan", 10, "https://cb", "", "ref")
		var upstream *entities.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, http.StatusUnprocessableEntity, upstream.Status)
	})
}

func TestClient_GetPreapproval(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/preapproval/pre-1", r.URL.Path)
		fmt.Fprint(w, `{"id":"pre-1","status":"authorized","next_payment_date":"2026-10-01T00:00:00Z"}`)
	}))

	got, err := client.GetPreapproval(context.Background(), "pre-1")
	require.NoError(t, err)
	assert.Equal(t, entities.SubscriptionAuthorized, got.Status)
	require.NotNil(t, got.NextPaymentDate)
	assert.Equal(t, 2026, got.NextPaymentDate.Year())
}

func TestClient_UpdatePreapprovalStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/preapproval/pre-1", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cancelled", req["status"])

		fmt.Fprint(w, `{"id":"pre-1","status":"cancelled"}`)
	}))

	err := client.UpdatePreapprovalStatus(context.Background(), "pre-1", "cancelled")
	assert.NoError(t, err)
}
