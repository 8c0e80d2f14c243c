package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/meliprint/meliprint/internal/entities"
)

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client covers the small slice of the Mercado Pago API the product
// needs: creating, reading and cancelling preapprovals (recurring
// charges).
type Client struct {
	logger      *slog.Logger
	httpc       *http.Client
	baseURL     string
	accessToken string
}

func NewClient(logger *slog.Logger, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		logger:      logger.With(slog.String("client", "mercadopago")),
		httpc:       &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
	}
}

type autoRecurring struct {
	Frequency         int     `json:"frequency"`
	FrequencyType     string  `json:"frequency_type"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
}

type preapprovalRequest struct {
	Reason            string        `json:"reason"`
	AutoRecurring     autoRecurring `json:"auto_recurring"`
	BackURL           string        `json:"back_url"`
	PayerEmail        string        `json:"payer_email,omitempty"`
	ExternalReference string        `json:"external_reference"`
}

type preapprovalResponse struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	InitPoint       string     `json:"init_point"`
	NextPaymentDate *time.Time `json:"next_payment_date"`
}

func toEntity(p preapprovalResponse) entities.Preapproval {
	return entities.Preapproval{
		ID:              p.ID,
		Status:          p.Status,
		InitPoint:       p.InitPoint,
		NextPaymentDate: p.NextPaymentDate,
	}
}

// CreatePreapproval registers a monthly recurring charge and returns
// the checkout URL the payer has to authorize.
func (c *Client) CreatePreapproval(ctx context.Context, reason string, amount float64, backURL, payerEmail, externalRef string) (entities.Preapproval, error) {
	req := preapprovalRequest{
		Reason: reason,
		AutoRecurring: autoRecurring{
			Frequency:         1,
			FrequencyType:     "months",
			TransactionAmount: amount,
			CurrencyID:        "BRL",
		},
		BackURL:           backURL,
		PayerEmail:        payerEmail,
		ExternalReference: externalRef,
	}

	var resp preapprovalResponse
	if err := c.do(ctx, http.MethodPost, "/preapproval", req, &resp); err != nil {
		return entities.Preapproval{}, fmt.Errorf("failed to create preapproval: %w", err)
	}
	if resp.ID == "" || resp.InitPoint == "" {
		return entities.Preapproval{}, fmt.Errorf("invalid preapproval response: missing id or init_point")
	}
	return toEntity(resp), nil
}

func (c *Client) GetPreapproval(ctx context.Context, id string) (entities.Preapproval, error) {
	var resp preapprovalResponse
	if err := c.do(ctx, http.MethodGet, "/preapproval/"+id, nil, &resp); err != nil {
		return entities.Preapproval{}, fmt.Errorf("failed to get preapproval %s: %w", id, err)
	}
	return toEntity(resp), nil
}

func (c *Client) UpdatePreapprovalStatus(ctx context.Context, id, status string) error {
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPut, "/preapproval/"+id, body, nil); err != nil {
		return fmt.Errorf("failed to update preapproval %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &entities.UpstreamError{Status: resp.StatusCode, Body: string(data)}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
