package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/meliprint/meliprint/internal/entities"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// resolveBatchSize bounds the number of concurrent detail fetches.
// Batches run one after another; only the fetches inside a batch fan
// out.
const resolveBatchSize = 10

const itemsSummaryLimit = 100

// Substatuses queried against the shipment search endpoint during
// discovery. invoice_pending shipments are found through the order scan
// and filtered out at classification.
var discoverySubstatuses = []string{
	entities.SubstatusReadyToPrint,
	entities.SubstatusPrinted,
	entities.SubstatusReprinted,
}

type ShipmentGateway interface {
	SearchShipments(ctx context.Context, token string, sellerID int64, status, substatus string) ([]int64, error)
	Orders(ctx context.Context, token string, sellerID int64, dateFrom, dateTo string) ([]entities.Order, error)
	GetShipment(ctx context.Context, token string, shipmentID int64) (entities.Shipment, error)
	GetOrder(ctx context.Context, token string, orderID int64) (entities.Order, error)
}

// ShipmentService reconciles the seller's shipment universe out of two
// unreliable discovery sources and classifies the result into print
// buckets. It holds no state between requests.
type ShipmentService struct {
	logger *slog.Logger
	gw     ShipmentGateway
	policy PrintPolicy
}

func NewShipmentService(logger *slog.Logger, gw ShipmentGateway, policy PrintPolicy) *ShipmentService {
	return &ShipmentService{
		logger: logger.With(slog.String("service", "shipments")),
		gw:     gw,
		policy: policy,
	}
}

// ListShipments produces the "ready to print" and "ready for reprint"
// lists. Each discovery strategy and each individual detail fetch fails
// soft: the result degrades to whatever could be resolved instead of
// erroring out.
func (s *ShipmentService) ListShipments(ctx context.Context, token string, sellerID int64, dateFrom, dateTo string) (entities.ShipmentList, error) {
	ids := s.discover(ctx, token, sellerID, dateFrom, dateTo)
	s.logger.InfoContext(ctx, "resolving shipments", slog.Int("count", len(ids)))

	records := s.resolve(ctx, token, ids)
	shipmentsResolved.Add(float64(len(records)))
	shipmentsDropped.Add(float64(len(ids) - len(records)))

	list := entities.ShipmentList{
		Ready:   make([]entities.ShipmentRecord, 0, len(records)),
		Reprint: make([]entities.ShipmentRecord, 0),
	}
	for _, rec := range records {
		switch s.policy.Classify(rec.Status, rec.Substatus) {
		case BucketReady:
			list.Ready = append(list.Ready, rec)
		case BucketReprint:
			list.Reprint = append(list.Reprint, rec)
		}
	}

	s.logger.InfoContext(ctx, "shipments classified",
		slog.Int("resolved", len(records)),
		slog.Int("ready", len(list.Ready)),
		slog.Int("reprint", len(list.Reprint)),
	)
	return list, nil
}

// discover merges the shipment search endpoint (three substatus
// queries) with a scan over recent orders. The strategies run
// concurrently and independently; a failing strategy contributes
// nothing instead of aborting the request.
func (s *ShipmentService) discover(ctx context.Context, token string, sellerID int64, dateFrom, dateTo string) []int64 {
	var mu sync.Mutex
	seen := make(map[int64]struct{})
	add := func(ids []int64) {
		mu.Lock()
		defer mu.Unlock()
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		ids, err := s.discoverSearch(ctx, token, sellerID)
		if err != nil {
			s.logger.ErrorContext(ctx, "shipment search discovery failed", slog.Any("error", err))
			discoveryFailures.WithLabelValues("search").Inc()
			return
		}
		add(ids)
	}()

	go func() {
		defer wg.Done()
		ids, err := s.discoverOrders(ctx, token, sellerID, dateFrom, dateTo)
		if err != nil {
			s.logger.ErrorContext(ctx, "order scan discovery failed", slog.Any("error", err))
			discoveryFailures.WithLabelValues("orders").Inc()
			return
		}
		add(ids)
	}()

	wg.Wait()

	ids := lo.Keys(seen)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *ShipmentService) discoverSearch(ctx context.Context, token string, sellerID int64) ([]int64, error) {
	var mu sync.Mutex
	var all []int64

	g, ctx := errgroup.WithContext(ctx)
	for _, substatus := range discoverySubstatuses {
		substatus := substatus
		g.Go(func() error {
			ids, err := s.gw.SearchShipments(ctx, token, sellerID, entities.StatusReadyToShip, substatus)
			if err != nil {
				return fmt.Errorf("substatus %s: %w", substatus, err)
			}
			mu.Lock()
			all = append(all, ids...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *ShipmentService) discoverOrders(ctx context.Context, token string, sellerID int64, dateFrom, dateTo string) ([]int64, error) {
	orders, err := s.gw.Orders(ctx, token, sellerID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		if o.ShipmentID != 0 {
			ids = append(ids, o.ShipmentID)
		}
	}
	return ids, nil
}

// resolve fetches shipment and parent-order detail for every id. Work
// is fanned out inside fixed-size batches; a batch is fully drained
// before the next one starts, which bounds the in-flight upstream load.
// Individual failures are logged and dropped.
func (s *ShipmentService) resolve(ctx context.Context, token string, ids []int64) []entities.ShipmentRecord {
	var mu sync.Mutex
	records := make([]entities.ShipmentRecord, 0, len(ids))

	for _, batch := range lo.Chunk(ids, resolveBatchSize) {
		var wg sync.WaitGroup
		for _, id := range batch {
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec, err := s.resolveOne(ctx, token, id)
				if err != nil {
					s.logger.WarnContext(ctx, "dropping shipment",
						slog.Int64("shipment_id", id), slog.Any("error", err))
					return
				}
				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	return records
}

func (s *ShipmentService) resolveOne(ctx context.Context, token string, shipmentID int64) (entities.ShipmentRecord, error) {
	shipment, err := s.gw.GetShipment(ctx, token, shipmentID)
	if err != nil {
		return entities.ShipmentRecord{}, err
	}
	order, err := s.gw.GetOrder(ctx, token, shipment.OrderID)
	if err != nil {
		return entities.ShipmentRecord{}, err
	}

	return entities.ShipmentRecord{
		ShipmentID:    shipment.ID,
		OrderID:       order.ID,
		BuyerNickname: order.BuyerNickname,
		Items:         summarizeItems(order.Items),
		Status:        shipment.Status,
		Substatus:     shipment.Substatus,
		CanPrint:      s.policy.CanPrint(shipment.Status, shipment.Substatus),
		City:          shipment.City,
		State:         shipment.State,
	}, nil
}

func summarizeItems(items []entities.OrderItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%dx %s", it.Quantity, it.Title)
	}
	summary := strings.Join(parts, ", ")
	if len(summary) > itemsSummaryLimit {
		cut := itemsSummaryLimit - 3
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + "..."
	}
	return summary
}
