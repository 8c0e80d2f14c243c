package meli_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/meli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*meli.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := meli.NewClient(logger, meli.Config{
		APIURL:  srv.URL,
		AuthURL: srv.URL,
	})
	return client, srv
}

func TestClient_ExchangeCode(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"access_token":"tok","refresh_token":"ref","user_id":42,"expires_in":21600}`,
		},
		{
			name:    "upstream rejects code",
			status:  http.StatusBadRequest,
			body:    `{"error":"invalid_grant"}`,
			wantErr: entities.ErrAuthExchange,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/oauth/token", r.URL.Path)
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
				assert.Equal(t, "verifier", r.PostForm.Get("code_verifier"))
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))

			token, err := client.ExchangeCode(context.Background(), "code", "app", "secret", "https://cb", "verifier")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "tok", token.AccessToken)
			assert.Equal(t, "ref", token.RefreshToken)
			assert.EqualValues(t, 42, token.UserID)
		})
	}
}

func TestClient_RefreshToken_Fails(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.RefreshToken(context.Background(), "stale", "app", "secret")
	assert.ErrorIs(t, err, entities.ErrAuthRefresh)
}

func TestClient_AuthorizationURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := meli.NewClient(logger, meli.Config{
		APIURL:  "https://api.mercadolibre.com",
		AuthURL: "https://auth.mercadolivre.com.br",
	})

	u := client.AuthorizationURL("app-id", "https://example.com/cb", "challenge")
	assert.Contains(t, u, "https://auth.mercadolivre.com.br/authorization?")
	assert.Contains(t, u, "client_id=app-id")
	assert.Contains(t, u, "code_challenge=challenge")
	assert.Contains(t, u, "code_challenge_method=S256")
	assert.Contains(t, u, "response_type=code")
}

func TestClient_SearchShipments(t *testing.T) {
	t.Run("paginates and normalizes mixed result shapes", func(t *testing.T) {
		var pages int
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/shipments/search", r.URL.Path)
			assert.Equal(t, "true", r.Header.Get("x-format-new"))
			assert.Equal(t, "ready_to_ship", r.URL.Query().Get("status"))
			pages++

			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			if offset == 0 {
				// Full page: 48 bare ints plus an object and an
				// unparseable element.
				ids := ""
				for i := 1; i <= 48; i++ {
					ids += fmt.Sprintf("%d,", i)
				}
				fmt.Fprintf(w, `{"results":[%s{"id":100},"garbage"]}`, ids)
				return
			}
			fmt.Fprint(w, `{"results":[200]}`)
		}))

		ids, err := client.SearchShipments(context.Background(), "tok", 7, "ready_to_ship", "ready_to_print")
		require.NoError(t, err)
		assert.Equal(t, 2, pages)
		assert.Len(t, ids, 50)
		assert.Contains(t, ids, int64(100))
		assert.Contains(t, ids, int64(200))
		assert.NotContains(t, ids, int64(0))
	})

	t.Run("404 disables the endpoint for the process", func(t *testing.T) {
		var calls int
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusNotFound)
		}))

		ids, err := client.SearchShipments(context.Background(), "tok", 7, "ready_to_ship", "printed")
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, 1, calls)

		// Second call must not hit the network.
		ids, err = client.SearchShipments(context.Background(), "tok", 7, "ready_to_ship", "printed")
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, 1, calls)
	})

	t.Run("server errors propagate", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := client.SearchShipments(context.Background(), "tok", 7, "ready_to_ship", "printed")
		var upstream *entities.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, http.StatusInternalServerError, upstream.Status)
	})
}

func TestClient_Orders(t *testing.T) {
	t.Run("dedupes across statuses", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/orders/search", r.URL.Path)
			switch r.URL.Query().Get("order.status") {
			case "paid":
				fmt.Fprint(w, `{"results":[{"id":1,"shipping":{"id":11}},{"id":2,"shipping":{"id":12}}]}`)
			case "payment_in_process":
				fmt.Fprint(w, `{"results":[{"id":2,"shipping":{"id":12}},{"id":3,"shipping":{"id":13}}]}`)
			default:
				t.Errorf("unexpected status %q", r.URL.Query().Get("order.status"))
			}
		}))

		orders, err := client.Orders(context.Background(), "tok", 7, "", "")
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.EqualValues(t, 11, orders[0].ShipmentID)
	})

	t.Run("forwards date bounds", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "2026-01-01T00:00:00.000-03:00", r.URL.Query().Get("order.date_created.from"))
			assert.Equal(t, "2026-01-31T23:59:59.999-03:00", r.URL.Query().Get("order.date_created.to"))
			fmt.Fprint(w, `{"results":[]}`)
		}))

		_, err := client.Orders(context.Background(), "tok", 7,
			"2026-01-01T00:00:00.000-03:00", "2026-01-31T23:59:59.999-03:00")
		require.NoError(t, err)
	})
}

func TestClient_GetShipment(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shipments/55", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("x-format-new"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":55,"status":"ready_to_ship","substatus":"printed","order_id":9,
			"receiver_address":{"city":{"name":"Curitiba"},"state":{"name":"PR"}}}`)
	}))

	s, err := client.GetShipment(context.Background(), "tok", 55)
	require.NoError(t, err)
	assert.EqualValues(t, 55, s.ID)
	assert.Equal(t, "printed", s.Substatus)
	assert.Equal(t, "Curitiba", s.City)
	assert.Equal(t, "PR", s.State)
}

func TestClient_Labels(t *testing.T) {
	t.Run("rejects oversized batches before any request", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		}))

		ids := make([]int64, 51)
		_, err := client.LabelsZPL(context.Background(), "tok", ids)
		assert.ErrorIs(t, err, entities.ErrTooManyShipments)

		_, err = client.LabelsPDF(context.Background(), "tok", nil)
		assert.ErrorIs(t, err, entities.ErrNoShipments)
	})

	t.Run("fetches and decodes zpl", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/shipment_labels", r.URL.Path)
			assert.Equal(t, "zpl2", r.URL.Query().Get("response_type"))
			assert.Equal(t, "1,2", r.URL.Query().Get("shipment_ids"))
			fmt.Fprint(w, "^XA^XZ\n")
		}))

		markup, err := client.LabelsZPL(context.Background(), "tok", []int64{1, 2})
		require.NoError(t, err)
		assert.Equal(t, "^XA^XZ", markup)
	})

	t.Run("pdf returns raw bytes", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "pdf", r.URL.Query().Get("response_type"))
			w.Write([]byte("%PDF-1.4 fake"))
		}))

		doc, err := client.LabelsPDF(context.Background(), "tok", []int64{1})
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.4 fake"), doc)
	})

	t.Run("upstream failure surfaces status", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("denied"))
		}))

		_, err := client.LabelsZPL(context.Background(), "tok", []int64{1})
		var upstream *entities.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, http.StatusForbidden, upstream.Status)
	})
}

func TestClient_Invoice(t *testing.T) {
	t.Run("returns payload on success", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/shipments/9/fiscal_documents", r.URL.Path)
			fmt.Fprint(w, `{"attributes":{"invoice_number":"123"}}`)
		}))

		doc, err := client.Invoice(context.Background(), "tok", 9)
		require.NoError(t, err)
		assert.JSONEq(t, `{"attributes":{"invoice_number":"123"}}`, string(doc))
	})

	t.Run("missing invoice is not an error", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		doc, err := client.Invoice(context.Background(), "tok", 9)
		require.NoError(t, err)
		assert.Nil(t, doc)
	})
}
