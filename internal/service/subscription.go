package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/pkg/trm"
	"github.com/meliprint/meliprint/pkg/utils"
)

type SubscriptionRepo interface {
	FindOrCreateUser(ctx context.Context, mlUserID int64, nickname, email string) (entities.User, error)
	GetUserByMLID(ctx context.Context, mlUserID int64) (entities.User, error)
	ActiveSubscription(ctx context.Context, userID int64) (entities.Subscription, error)
	CreateSubscription(ctx context.Context, userID int64, preapprovalID string) (entities.Subscription, error)
	UpdateSubscriptionByPreapprovalID(ctx context.Context, preapprovalID, status string, periodStart, periodEnd *time.Time) error
}

type PreapprovalClient interface {
	CreatePreapproval(ctx context.Context, reason string, amount float64, backURL, payerEmail, externalRef string) (entities.Preapproval, error)
	GetPreapproval(ctx context.Context, id string) (entities.Preapproval, error)
	UpdatePreapprovalStatus(ctx context.Context, id, status string) error
}

type SubscriptionConfig struct {
	PlanName  string
	PlanPrice float64
	BackURL   string
}

type SubscriptionStatus struct {
	HasSubscription  bool
	Status           string
	CurrentPeriodEnd *time.Time
	PlanName         string
	Price            float64
}

// SubscriptionService manages the recurring paid plan through the
// billing provider's preapproval API, persisting the local mirror in
// Postgres.
type SubscriptionService struct {
	logger    *slog.Logger
	txManager trm.Manager
	repo      SubscriptionRepo
	billing   PreapprovalClient
	cfg       SubscriptionConfig
}

func NewSubscriptionService(logger *slog.Logger, txManager trm.Manager, repo SubscriptionRepo, billing PreapprovalClient, cfg SubscriptionConfig) *SubscriptionService {
	return &SubscriptionService{
		logger:    logger.With(slog.String("service", "subscription")),
		txManager: txManager,
		repo:      repo,
		billing:   billing,
		cfg:       cfg,
	}
}

func (s *SubscriptionService) Status(ctx context.Context, mlUserID int64) (SubscriptionStatus, error) {
	user, err := s.repo.GetUserByMLID(ctx, mlUserID)
	if errors.Is(err, entities.ErrNotFound) {
		return SubscriptionStatus{}, nil
	}
	if err != nil {
		return SubscriptionStatus{}, fmt.Errorf("failed to load user: %w", err)
	}

	sub, err := s.repo.ActiveSubscription(ctx, user.ID)
	if errors.Is(err, entities.ErrNotFound) {
		return SubscriptionStatus{}, nil
	}
	if err != nil {
		return SubscriptionStatus{}, fmt.Errorf("failed to load subscription: %w", err)
	}

	return SubscriptionStatus{
		HasSubscription:  true,
		Status:           sub.Status,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		PlanName:         s.cfg.PlanName,
		Price:            s.cfg.PlanPrice,
	}, nil
}

// Checkout creates a preapproval with the billing provider and records
// the pending subscription. Returns the URL the seller must visit to
// authorize the recurring charge.
func (s *SubscriptionService) Checkout(ctx context.Context, mlUserID int64, nickname, email string) (checkoutURL string, err error) {
	user, err := s.repo.FindOrCreateUser(ctx, mlUserID, nickname, email)
	if err != nil {
		return "", fmt.Errorf("failed to upsert user: %w", err)
	}

	if _, err := s.repo.ActiveSubscription(ctx, user.ID); err == nil {
		return "", entities.ErrSubscriptionExists
	} else if !errors.Is(err, entities.ErrNotFound) {
		return "", fmt.Errorf("failed to check existing subscription: %w", err)
	}

	externalRef := fmt.Sprintf("user_%d_%s", user.ID, uuid.NewString())
	preapproval, err := s.billing.CreatePreapproval(ctx,
		s.cfg.PlanName, s.cfg.PlanPrice, s.cfg.BackURL+"/subscription/callback", email, externalRef)
	if err != nil {
		return "", fmt.Errorf("failed to create preapproval: %w", err)
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		_, err := s.repo.CreateSubscription(ctx, user.ID, preapproval.ID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to save subscription: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout created",
		slog.Int64("user_id", user.ID), slog.String("preapproval_id", preapproval.ID))
	return preapproval.InitPoint, nil
}

// HandleWebhook syncs a preapproval status change pushed by the billing
// provider. The provider may notify before its own read side is
// consistent, so the detail fetch is retried briefly.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, notificationType, preapprovalID string) error {
	if notificationType != "preapproval" || preapprovalID == "" {
		return nil
	}

	var preapproval entities.Preapproval
	err := utils.Retry(utils.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		Multiplier:   2,
	}, func() error {
		var err error
		preapproval, err = s.billing.GetPreapproval(ctx, preapprovalID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to get preapproval %s: %w", preapprovalID, err)
	}

	status := preapproval.Status
	if status == "" {
		status = entities.SubscriptionPending
	}

	var periodStart, periodEnd *time.Time
	if preapproval.NextPaymentDate != nil {
		end := *preapproval.NextPaymentDate
		start := end.AddDate(0, -1, 0)
		periodStart, periodEnd = &start, &end
	}

	if err := s.repo.UpdateSubscriptionByPreapprovalID(ctx, preapprovalID, status, periodStart, periodEnd); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	s.logger.InfoContext(ctx, "subscription updated",
		slog.String("preapproval_id", preapprovalID), slog.String("status", status))
	return nil
}

// Cancel revokes the active subscription both at the billing provider
// and locally.
func (s *SubscriptionService) Cancel(ctx context.Context, mlUserID int64) error {
	user, err := s.repo.GetUserByMLID(ctx, mlUserID)
	if errors.Is(err, entities.ErrNotFound) {
		return entities.ErrNoSubscription
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	sub, err := s.repo.ActiveSubscription(ctx, user.ID)
	if errors.Is(err, entities.ErrNotFound) {
		return entities.ErrNoSubscription
	}
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	if err := s.billing.UpdatePreapprovalStatus(ctx, sub.PreapprovalID, entities.SubscriptionCancelled); err != nil {
		return fmt.Errorf("failed to cancel preapproval: %w", err)
	}
	if err := s.repo.UpdateSubscriptionByPreapprovalID(ctx, sub.PreapprovalID, entities.SubscriptionCancelled, nil, nil); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}
