package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/service"
	"github.com/meliprint/meliprint/internal/session"
	"github.com/meliprint/meliprint/pkg/utils"
)

type SubscriptionManager interface {
	Status(ctx context.Context, mlUserID int64) (service.SubscriptionStatus, error)
	Checkout(ctx context.Context, mlUserID int64, nickname, email string) (string, error)
	HandleWebhook(ctx context.Context, notificationType, preapprovalID string) error
	Cancel(ctx context.Context, mlUserID int64) error
}

type SubscriptionHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	svc      SubscriptionManager
}

func NewSubscriptionHandler(logger *slog.Logger, svc SubscriptionManager) *SubscriptionHandler {
	return &SubscriptionHandler{
		logger:   logger.With(slog.String("handler", "subscription")),
		validate: validator.New(),
		svc:      svc,
	}
}

func (h *SubscriptionHandler) Init(r chi.Router) {
	r.Route("/api/subscription", func(r chi.Router) {
		r.With(httprate.LimitByIP(100, time.Minute)).Get("/status", h.Status)
		r.With(httprate.LimitByIP(5, time.Minute)).Post("/checkout", h.Checkout)
		r.With(httprate.LimitByIP(100, time.Minute)).Post("/webhook", h.Webhook)
		r.With(httprate.LimitByIP(100, time.Minute)).Post("/cancel", h.Cancel)
	})
}

func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := session.FromContext(ctx)
	if !ok || !sess.Authenticated() {
		utils.WriteError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	status, err := h.svc.Status(ctx, sess.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to check subscription", slog.Any("error", err))
		utils.WriteError(w, "failed to check subscription status", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, SubscriptionStatusToJSON(status), http.StatusOK)
}

func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := session.FromContext(ctx)
	if !ok || !sess.Authenticated() {
		utils.WriteError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	// Email is optional; an empty body is fine.
	var req CheckoutRequest
	utils.DecodeBody(r, &req)
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	checkoutURL, err := h.svc.Checkout(ctx, sess.UserID, sess.Nickname, req.Email)
	if errors.Is(err, entities.ErrSubscriptionExists) {
		utils.WriteError(w, "subscription already active", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create checkout", slog.Any("error", err))
		utils.WriteError(w, "failed to create checkout", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, CheckoutResponse{CheckoutURL: checkoutURL}, http.StatusOK)
}

// Webhook always answers 200; the billing provider retries on anything
// else and the failure modes here are not fixed by retries.
func (h *SubscriptionHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req WebhookRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		h.logger.WarnContext(ctx, "malformed webhook payload", slog.Any("error", err))
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.svc.HandleWebhook(ctx, req.Type, req.Data.ID); err != nil {
		h.logger.ErrorContext(ctx, "webhook processing failed",
			slog.String("type", req.Type), slog.String("id", req.Data.ID), slog.Any("error", err))
	}
	w.WriteHeader(http.StatusOK)
}

func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := session.FromContext(ctx)
	if !ok || !sess.Authenticated() {
		utils.WriteError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	err := h.svc.Cancel(ctx, sess.UserID)
	if errors.Is(err, entities.ErrNoSubscription) {
		utils.WriteError(w, "no active subscription found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to cancel subscription", slog.Any("error", err))
		utils.WriteError(w, "failed to cancel subscription", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]bool{"success": true}, http.StatusOK)
}
