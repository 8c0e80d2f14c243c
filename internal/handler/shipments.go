package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/session"
	"github.com/meliprint/meliprint/pkg/utils"
)

type ShipmentLister interface {
	ListShipments(ctx context.Context, token string, sellerID int64, dateFrom, dateTo string) (entities.ShipmentList, error)
}

type ShipmentHandler struct {
	logger *slog.Logger
	svc    ShipmentLister
}

func NewShipmentHandler(logger *slog.Logger, svc ShipmentLister) *ShipmentHandler {
	return &ShipmentHandler{
		logger: logger.With(slog.String("handler", "shipments")),
		svc:    svc,
	}
}

func (h *ShipmentHandler) Init(r chi.Router) {
	r.Route("/api/shipments", func(r chi.Router) {
		r.Use(httprate.LimitByIP(100, time.Minute))
		r.Get("/", h.List)
	})
}

// List returns the seller's printable shipments, classified into ready
// and reprint buckets. Optional date_from/date_to bound the order scan.
func (h *ShipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := session.FromContext(ctx)
	if !ok || !sess.Authenticated() {
		utils.WriteError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	dateFrom := r.URL.Query().Get("date_from")
	dateTo := r.URL.Query().Get("date_to")

	list, err := h.svc.ListShipments(ctx, sess.AccessToken, sess.UserID, dateFrom, dateTo)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list shipments", slog.Any("error", err))
		utils.WriteError(w, "failed to get shipments", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, ShipmentListEntityToJSON(list), http.StatusOK)
}
