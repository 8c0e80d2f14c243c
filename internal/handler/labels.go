package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/session"
	"github.com/meliprint/meliprint/pkg/utils"
)

type LabelProvider interface {
	ZPL(ctx context.Context, token string, shipmentIDs []int64) (string, error)
	PDF(ctx context.Context, token string, shipmentIDs []int64) ([]byte, error)
	Invoices(ctx context.Context, token string, shipmentIDs []int64) (map[int64]json.RawMessage, error)
}

type LabelHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	svc      LabelProvider
}

func NewLabelHandler(logger *slog.Logger, svc LabelProvider) *LabelHandler {
	return &LabelHandler{
		logger:   logger.With(slog.String("handler", "labels")),
		validate: validator.New(),
		svc:      svc,
	}
}

func (h *LabelHandler) Init(r chi.Router) {
	r.Route("/api/labels", func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Post("/zpl", h.ZPL)
		r.Post("/pdf", h.PDF)
		r.Post("/invoices", h.Invoices)
	})
}

func (h *LabelHandler) ZPL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	zpl, err := h.svc.ZPL(ctx, sess.AccessToken, req.ShipmentIDs)
	if err != nil {
		h.writeLabelError(ctx, w, err)
		return
	}

	filename := fmt.Sprintf("labels-%d.zpl", time.Now().UnixMilli())
	utils.WriteAttachment(w, []byte(zpl), "application/x-zpl", filename)
}

func (h *LabelHandler) PDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.PDF(ctx, sess.AccessToken, req.ShipmentIDs)
	if err != nil {
		h.writeLabelError(ctx, w, err)
		return
	}

	filename := fmt.Sprintf("labels-%d.pdf", time.Now().UnixMilli())
	utils.WriteAttachment(w, doc, "application/pdf", filename)
}

func (h *LabelHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	invoices, err := h.svc.Invoices(ctx, sess.AccessToken, req.ShipmentIDs)
	if err != nil {
		h.writeLabelError(ctx, w, err)
		return
	}

	out := make(map[string]json.RawMessage, len(invoices))
	for id, invoice := range invoices {
		if invoice == nil {
			invoice = json.RawMessage("null")
		}
		out[fmt.Sprintf("%d", id)] = invoice
	}
	utils.WriteJSON(w, out, http.StatusOK)
}

func (h *LabelHandler) parseRequest(w http.ResponseWriter, r *http.Request) (entities.Session, LabelsRequest, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok || !sess.Authenticated() {
		utils.WriteError(w, "not authenticated", http.StatusUnauthorized)
		return entities.Session{}, LabelsRequest{}, false
	}

	var req LabelsRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return entities.Session{}, LabelsRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return entities.Session{}, LabelsRequest{}, false
	}
	return sess, req, true
}

func (h *LabelHandler) writeLabelError(ctx context.Context, w http.ResponseWriter, err error) {
	var rasterizeErr *entities.RasterizeError

	switch {
	case errors.Is(err, entities.ErrTooManyShipments), errors.Is(err, entities.ErrNoShipments):
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &rasterizeErr):
		h.logger.ErrorContext(ctx, "rasterization failed", slog.Any("error", err))
		utils.WriteError(w, "failed to render labels", http.StatusBadGateway)
	default:
		h.logger.ErrorContext(ctx, "failed to generate labels", slog.Any("error", err))
		utils.WriteError(w, "failed to generate labels", http.StatusInternalServerError)
	}
}
