package meli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/meliprint/meliprint/internal/entities"
)

const (
	pageSize       = 50
	maxSearchPages = 20
	maxLabelIDs    = 50
)

// Order statuses scanned by the discovery fallback. Orders in
// payment_in_process frequently carry shipments the search endpoint
// has not indexed yet.
var orderStatuses = []string{"paid", "payment_in_process"}

type Config struct {
	APIURL  string
	AuthURL string
	Timeout time.Duration
}

// Client wraps the Mercado Livre REST API. It is safe for concurrent
// use; the only mutable state is the searchUnsupported flag, which
// records a 404 from the shipment search endpoint for the lifetime of
// the process and only ever transitions false to true.
type Client struct {
	logger *slog.Logger
	httpc  *http.Client

	apiURL  string
	authURL string

	searchUnsupported atomic.Bool
}

func NewClient(logger *slog.Logger, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		logger:  logger.With(slog.String("client", "meli")),
		httpc:   &http.Client{Timeout: timeout},
		apiURL:  strings.TrimRight(cfg.APIURL, "/"),
		authURL: strings.TrimRight(cfg.AuthURL, "/"),
	}
}

// AuthorizationURL builds the seller-facing OAuth consent URL for the
// PKCE flow.
func (c *Client) AuthorizationURL(clientID, redirectURI, codeChallenge string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("code_challenge", codeChallenge)
	params.Set("code_challenge_method", "S256")
	return c.authURL + "/authorization?" + params.Encode()
}

// ExchangeCode performs the one-shot PKCE code exchange. The code is
// single use; callers must not retry with the same code.
func (c *Client) ExchangeCode(ctx context.Context, code, clientID, clientSecret, redirectURI, codeVerifier string) (entities.TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", codeVerifier)

	var token tokenResponse
	if err := c.postForm(ctx, "/oauth/token", form, &token); err != nil {
		return entities.TokenResponse{}, fmt.Errorf("%w: %w", entities.ErrAuthExchange, err)
	}
	return tokenToEntity(token), nil
}

// RefreshToken exchanges a refresh token for a fresh token pair. A
// failure here means the seller has to log in again.
func (c *Client) RefreshToken(ctx context.Context, refreshToken, clientID, clientSecret string) (entities.TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("refresh_token", refreshToken)

	var token tokenResponse
	if err := c.postForm(ctx, "/oauth/token", form, &token); err != nil {
		return entities.TokenResponse{}, fmt.Errorf("%w: %w", entities.ErrAuthRefresh, err)
	}
	return tokenToEntity(token), nil
}

func (c *Client) UserInfo(ctx context.Context, token string) (entities.UserInfo, error) {
	var info userInfo
	if err := c.getJSON(ctx, token, "/users/me", nil, &info); err != nil {
		return entities.UserInfo{}, fmt.Errorf("failed to get user info: %w", err)
	}
	return entities.UserInfo{ID: info.ID, Nickname: info.Nickname, Email: info.Email}, nil
}

// SearchShipments pages through the shipment search endpoint for one
// status/substatus pair. A 404 means the endpoint is not enabled for
// this deployment; the call returns empty and remembers the fact so
// later calls short-circuit without a network round trip.
func (c *Client) SearchShipments(ctx context.Context, token string, sellerID int64, status, substatus string) ([]int64, error) {
	if c.searchUnsupported.Load() {
		return nil, nil
	}

	var all []int64
	for page := 0; page < maxSearchPages; page++ {
		params := url.Values{}
		params.Set("seller", strconv.FormatInt(sellerID, 10))
		params.Set("status", status)
		params.Set("substatus", substatus)
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("offset", strconv.Itoa(page*pageSize))

		var result shipmentSearchPage
		err := c.getJSON(ctx, token, "/shipments/search", params, &result)
		if errors.Is(err, entities.ErrNotFound) {
			c.searchUnsupported.Store(true)
			c.logger.WarnContext(ctx, "shipment search endpoint unsupported, disabling for process lifetime")
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to search shipments: %w", err)
		}

		all = append(all, parseShipmentIDs(result.Results)...)
		if len(result.Results) < pageSize {
			break
		}
	}
	return all, nil
}

// Orders scans the order search endpoint across multiple order
// statuses, deduplicating by order ID. Empty date bounds mean no
// filter.
func (c *Client) Orders(ctx context.Context, token string, sellerID int64, dateFrom, dateTo string) ([]entities.Order, error) {
	seen := make(map[int64]struct{})
	var all []entities.Order

	for _, status := range orderStatuses {
		for page := 0; page < maxSearchPages; page++ {
			params := url.Values{}
			params.Set("seller", strconv.FormatInt(sellerID, 10))
			params.Set("order.status", status)
			params.Set("sort", "date_desc")
			params.Set("limit", strconv.Itoa(pageSize))
			params.Set("offset", strconv.Itoa(page*pageSize))
			if dateFrom != "" {
				params.Set("order.date_created.from", dateFrom)
			}
			if dateTo != "" {
				params.Set("order.date_created.to", dateTo)
			}

			var result orderSearchPage
			if err := c.getJSON(ctx, token, "/orders/search", params, &result); err != nil {
				return nil, fmt.Errorf("failed to search orders: %w", err)
			}

			for _, o := range result.Results {
				if _, ok := seen[o.ID]; ok {
					continue
				}
				seen[o.ID] = struct{}{}
				all = append(all, orderToEntity(o))
			}
			if len(result.Results) < pageSize {
				break
			}
		}
	}
	return all, nil
}

func (c *Client) GetOrder(ctx context.Context, token string, orderID int64) (entities.Order, error) {
	var o order
	if err := c.getJSON(ctx, token, fmt.Sprintf("/orders/%d", orderID), nil, &o); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	return orderToEntity(o), nil
}

func (c *Client) GetShipment(ctx context.Context, token string, shipmentID int64) (entities.Shipment, error) {
	var s shipment
	if err := c.getJSON(ctx, token, fmt.Sprintf("/shipments/%d", shipmentID), nil, &s); err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to get shipment %d: %w", shipmentID, err)
	}
	return shipmentToEntity(s), nil
}

// LabelsZPL fetches labels for up to 50 shipments in one call and
// returns the decoded markup. The cap is enforced before any network
// traffic.
func (c *Client) LabelsZPL(ctx context.Context, token string, shipmentIDs []int64) (string, error) {
	body, err := c.fetchLabels(ctx, token, shipmentIDs, "zpl2")
	if err != nil {
		return "", err
	}
	return DecodeLabelPayload(body)
}

// LabelsPDF fetches the upstream-rendered PDF document for up to 50
// shipments.
func (c *Client) LabelsPDF(ctx context.Context, token string, shipmentIDs []int64) ([]byte, error) {
	return c.fetchLabels(ctx, token, shipmentIDs, "pdf")
}

func (c *Client) fetchLabels(ctx context.Context, token string, shipmentIDs []int64, responseType string) ([]byte, error) {
	if len(shipmentIDs) == 0 {
		return nil, entities.ErrNoShipments
	}
	if len(shipmentIDs) > maxLabelIDs {
		return nil, entities.ErrTooManyShipments
	}

	ids := make([]string, len(shipmentIDs))
	for i, id := range shipmentIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{}
	params.Set("shipment_ids", strings.Join(ids, ","))
	params.Set("response_type", responseType)

	req, err := c.newRequest(ctx, http.MethodGet, "/shipment_labels", params, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get labels: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &entities.UpstreamError{Status: resp.StatusCode, Body: truncateBody(body)}
	}
	return body, nil
}

// Invoice fetches the fiscal documents attached to a shipment. Invoices
// are best effort: any non-2xx answer means "no invoice available" and
// is not an error.
func (c *Client) Invoice(ctx context.Context, token string, shipmentID int64) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/shipments/%d/fiscal_documents", shipmentID), nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice for shipment %d: %w", shipmentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice response: %w", err)
	}
	return json.RawMessage(body), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	u := c.apiURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, params url.Values, dest any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if strings.HasPrefix(path, "/shipments") {
		req.Header.Set("x-format-new", "true")
	}
	return c.do(req, dest)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, dest any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", entities.ErrNotFound, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &entities.UpstreamError{Status: resp.StatusCode, Body: truncateBody(body)}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
