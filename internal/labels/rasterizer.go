package labels

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/meliprint/meliprint/internal/entities"
	"github.com/samber/lo"
)

// The rendering service enforces per-request payload limits well below
// the upstream's 50-label cap, hence the smaller batch.
const (
	batchSize = 5

	// 4x6 inch label at 8 dots/mm, the geometry Mercado Livre thermal
	// labels are designed for.
	printerPath = "/v1/printers/8dpmm/labels/4x6/"
)

type LabelFetcher interface {
	LabelsZPL(ctx context.Context, token string, shipmentIDs []int64) (string, error)
}

type DocumentMerger interface {
	Merge(docs [][]byte) ([]byte, error)
}

// Rasterizer converts ZPL markup into a printable PDF through an
// external rendering service. Batches are issued strictly one after
// another; the service rate-limits aggressively and a parallel fan-out
// gets the whole job rejected.
type Rasterizer struct {
	logger  *slog.Logger
	httpc   *http.Client
	baseURL string
	fetcher LabelFetcher
	merger  DocumentMerger
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewRasterizer(logger *slog.Logger, cfg Config, fetcher LabelFetcher, merger DocumentMerger) *Rasterizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Rasterizer{
		logger:  logger.With(slog.String("client", "rasterizer")),
		httpc:   &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fetcher: fetcher,
		merger:  merger,
	}
}

// RenderPDF fetches ZPL for the given shipments in batches, rasterizes
// each batch and merges the resulting documents in submission order.
// Any batch failure fails the whole operation; a partial document is
// never returned.
func (r *Rasterizer) RenderPDF(ctx context.Context, token string, shipmentIDs []int64) ([]byte, error) {
	if len(shipmentIDs) == 0 {
		return nil, entities.ErrNoShipments
	}

	batches := lo.Chunk(shipmentIDs, batchSize)
	docs := make([][]byte, 0, len(batches))

	for i, batch := range batches {
		markup, err := r.fetcher.LabelsZPL(ctx, token, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch markup for batch %d: %w", i+1, err)
		}

		doc, err := r.rasterize(ctx, markup)
		if err != nil {
			return nil, err
		}

		r.logger.DebugContext(ctx, "batch rasterized",
			slog.Int("batch", i+1),
			slog.Int("labels", len(batch)),
			slog.Int("bytes", len(doc)),
		)
		docs = append(docs, doc)
	}

	if len(docs) == 1 {
		return docs[0], nil
	}
	merged, err := r.merger.Merge(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to merge label documents: %w", err)
	}
	return merged, nil
}

func (r *Rasterizer) rasterize(ctx context.Context, markup string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+printerPath, strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to build rasterizer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/pdf")

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rasterizer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rasterizer response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &entities.RasterizeError{Status: resp.StatusCode, Body: truncate(body)}
	}
	return body, nil
}

func truncate(body []byte) string {
	const max = 256
	body = bytes.TrimSpace(body)
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
