package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meliprint/meliprint/internal/entities"
	"github.com/samber/lo"
)

const invoiceBatchSize = 10

type LabelGateway interface {
	LabelsZPL(ctx context.Context, token string, shipmentIDs []int64) (string, error)
	LabelsPDF(ctx context.Context, token string, shipmentIDs []int64) ([]byte, error)
	Invoice(ctx context.Context, token string, shipmentID int64) (json.RawMessage, error)
}

type Renderer interface {
	RenderPDF(ctx context.Context, token string, shipmentIDs []int64) ([]byte, error)
}

// LabelService serves label markup and printable documents for batches
// of shipments.
type LabelService struct {
	logger   *slog.Logger
	gw       LabelGateway
	renderer Renderer
}

func NewLabelService(logger *slog.Logger, gw LabelGateway, renderer Renderer) *LabelService {
	return &LabelService{
		logger:   logger.With(slog.String("service", "labels")),
		gw:       gw,
		renderer: renderer,
	}
}

func (s *LabelService) ZPL(ctx context.Context, token string, shipmentIDs []int64) (string, error) {
	markup, err := s.gw.LabelsZPL(ctx, token, shipmentIDs)
	if err != nil {
		return "", fmt.Errorf("failed to fetch labels: %w", err)
	}
	labelDocuments.WithLabelValues("zpl").Inc()
	return markup, nil
}

// PDF renders the shipments' labels through the rasterizer pipeline.
// When the rendering service rejects the job the upstream-rendered
// document is served instead; it lacks the thermal-friendly layout but
// beats returning nothing.
func (s *LabelService) PDF(ctx context.Context, token string, shipmentIDs []int64) ([]byte, error) {
	doc, err := s.renderer.RenderPDF(ctx, token, shipmentIDs)

	var rasterizeErr *entities.RasterizeError
	if errors.As(err, &rasterizeErr) {
		s.logger.WarnContext(ctx, "rasterizer rejected job, falling back to upstream document",
			slog.Any("error", err))

		doc, err = s.gw.LabelsPDF(ctx, token, shipmentIDs)
		if err != nil {
			return nil, errors.Join(rasterizeErr, err)
		}
	}
	if err != nil {
		return nil, err
	}

	labelDocuments.WithLabelValues("pdf").Inc()
	return doc, nil
}

// Invoices fetches fiscal documents for each shipment. Invoices are
// best effort; shipments without one map to null and fetch errors are
// logged and treated as absence.
func (s *LabelService) Invoices(ctx context.Context, token string, shipmentIDs []int64) (map[int64]json.RawMessage, error) {
	var mu sync.Mutex
	invoices := make(map[int64]json.RawMessage, len(shipmentIDs))

	for _, batch := range lo.Chunk(shipmentIDs, invoiceBatchSize) {
		var wg sync.WaitGroup
		for _, id := range batch {
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()
				invoice, err := s.gw.Invoice(ctx, token, id)
				if err != nil {
					s.logger.WarnContext(ctx, "invoice fetch failed",
						slog.Int64("shipment_id", id), slog.Any("error", err))
					invoice = nil
				}
				mu.Lock()
				invoices[id] = invoice
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	return invoices, nil
}
