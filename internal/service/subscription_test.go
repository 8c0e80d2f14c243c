package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/service"
	"github.com/meliprint/meliprint/pkg/trm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTxManager struct{}

func (fakeTxManager) BeginTx(ctx context.Context) (context.Context, trm.Transaction, error) {
	return ctx, nil, nil
}

func (fakeTxManager) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	return callback(ctx)
}

type fakeSubscriptionRepo struct {
	user    entities.User
	userErr error

	active    entities.Subscription
	activeErr error

	created       []string
	createErr     error
	updatedStatus string
	updatedPeriod *time.Time
}

func (f *fakeSubscriptionRepo) FindOrCreateUser(ctx context.Context, mlUserID int64, nickname, email string) (entities.User, error) {
	if f.userErr != nil {
		return entities.User{}, f.userErr
	}
	return f.user, nil
}

func (f *fakeSubscriptionRepo) GetUserByMLID(ctx context.Context, mlUserID int64) (entities.User, error) {
	if f.userErr != nil {
		return entities.User{}, f.userErr
	}
	return f.user, nil
}

func (f *fakeSubscriptionRepo) ActiveSubscription(ctx context.Context, userID int64) (entities.Subscription, error) {
	if f.activeErr != nil {
		return entities.Subscription{}, f.activeErr
	}
	return f.active, nil
}

func (f *fakeSubscriptionRepo) CreateSubscription(ctx context.Context, userID int64, preapprovalID string) (entities.Subscription, error) {
	if f.createErr != nil {
		return entities.Subscription{}, f.createErr
	}
	f.created = append(f.created, preapprovalID)
	return entities.Subscription{PreapprovalID: preapprovalID}, nil
}

func (f *fakeSubscriptionRepo) UpdateSubscriptionByPreapprovalID(ctx context.Context, preapprovalID, status string, periodStart, periodEnd *time.Time) error {
	f.updatedStatus = status
	f.updatedPeriod = periodEnd
	return nil
}

type fakeBilling struct {
	preapproval entities.Preapproval
	createErr   error

	getCalls int
	getErrs  []error

	cancelled string
}

func (f *fakeBilling) CreatePreapproval(ctx context.Context, reason string, amount float64, backURL, payerEmail, externalRef string) (entities.Preapproval, error) {
	if f.createErr != nil {
		return entities.Preapproval{}, f.createErr
	}
	return f.preapproval, nil
}

func (f *fakeBilling) GetPreapproval(ctx context.Context, id string) (entities.Preapproval, error) {
	f.getCalls++
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return entities.Preapproval{}, err
		}
	}
	return f.preapproval, nil
}

func (f *fakeBilling) UpdatePreapprovalStatus(ctx context.Context, id, status string) error {
	f.cancelled = id + ":" + status
	return nil
}

func newSubscriptionService(repo service.SubscriptionRepo, billing service.PreapprovalClient) *service.SubscriptionService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewSubscriptionService(logger, fakeTxManager{}, repo, billing, service.SubscriptionConfig{
		PlanName:  "MeliPrint Pro",
		PlanPrice: 29.90,
		BackURL:   "https://app.example.com",
	})
}

func TestSubscriptionService_Status(t *testing.T) {
	t.Run("unknown user means no subscription", func(t *testing.T) {
		repo := &fakeSubscriptionRepo{userErr: entities.ErrNotFound}
		svc := newSubscriptionService(repo, &fakeBilling{})

		status, err := svc.Status(context.Background(), 42)
		require.NoError(t, err)
		assert.False(t, status.HasSubscription)
	})

	t.Run("active subscription reported with plan details", func(t *testing.T) {
		end := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
		repo := &fakeSubscriptionRepo{
			user:   entities.User{ID: 1},
			active: entities.Subscription{Status: entities.SubscriptionAuthorized, CurrentPeriodEnd: &end},
		}
		svc := newSubscriptionService(repo, &fakeBilling{})

		status, err := svc.Status(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, status.HasSubscription)
		assert.Equal(t, entities.SubscriptionAuthorized, status.Status)
		assert.Equal(t, "MeliPrint Pro", status.PlanName)
		assert.InDelta(t, 29.90, status.Price, 0.001)
		require.NotNil(t, status.CurrentPeriodEnd)
		assert.True(t, end.Equal(*status.CurrentPeriodEnd))
	})
}

func TestSubscriptionService_Checkout(t *testing.T) {
	t.Run("creates preapproval and pending subscription", func(t *testing.T) {
		repo := &fakeSubscriptionRepo{
			user:      entities.User{ID: 1},
			activeErr: entities.ErrNotFound,
		}
		billing := &fakeBilling{
			preapproval: entities.Preapproval{ID: "pre-1", InitPoint: "https://mp.example/checkout/pre-1"},
		}
		svc := newSubscriptionService(repo, billing)

		url, err := svc.Checkout(context.Background(), 42, "SELLER", "seller@example.com")
		require.NoError(t, err)
		assert.Equal(t, "https://mp.example/checkout/pre-1", url)
		require.Len(t, repo.created, 1)
		assert.Equal(t, "pre-1", repo.created[0])
	})

	t.Run("rejects second active subscription", func(t *testing.T) {
		repo := &fakeSubscriptionRepo{
			user:   entities.User{ID: 1},
			active: entities.Subscription{Status: entities.SubscriptionAuthorized},
		}
		svc := newSubscriptionService(repo, &fakeBilling{})

		_, err := svc.Checkout(context.Background(), 42, "SELLER", "")
		assert.ErrorIs(t, err, entities.ErrSubscriptionExists)
	})

	t.Run("billing failure leaves no local subscription", func(t *testing.T) {
		repo := &fakeSubscriptionRepo{
			user:      entities.User{ID: 1},
			activeErr: entities.ErrNotFound,
		}
		billing := &fakeBilling{createErr: errors.New("mp down")}
		svc := newSubscriptionService(repo, billing)

		_, err := svc.Checkout(context.Background(), 42, "SELLER", "")
		assert.Error(t, err)
		assert.Empty(t, repo.created)
	})
}

func TestSubscriptionService_HandleWebhook(t *testing.T) {
	t.Run("ignores unrelated notification types", func(t *testing.T) {
		billing := &fakeBilling{}
		svc := newSubscriptionService(&fakeSubscriptionRepo{}, billing)

		require.NoError(t, svc.HandleWebhook(context.Background(), "payment", "pay-1"))
		require.NoError(t, svc.HandleWebhook(context.Background(), "preapproval", ""))
		assert.Zero(t, billing.getCalls)
	})

	t.Run("syncs status and billing period", func(t *testing.T) {
		next := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		repo := &fakeSubscriptionRepo{}
		billing := &fakeBilling{
			preapproval: entities.Preapproval{
				ID:              "pre-1",
				Status:          entities.SubscriptionAuthorized,
				NextPaymentDate: &next,
			},
		}
		svc := newSubscriptionService(repo, billing)

		require.NoError(t, svc.HandleWebhook(context.Background(), "preapproval", "pre-1"))
		assert.Equal(t, entities.SubscriptionAuthorized, repo.updatedStatus)
		require.NotNil(t, repo.updatedPeriod)
		assert.True(t, next.Equal(*repo.updatedPeriod))
	})

	t.Run("retries a flaky detail fetch", func(t *testing.T) {
		repo := &fakeSubscriptionRepo{}
		billing := &fakeBilling{
			preapproval: entities.Preapproval{ID: "pre-1", Status: entities.SubscriptionAuthorized},
			getErrs:     []error{errors.New("not consistent yet")},
		}
		svc := newSubscriptionService(repo, billing)

		require.NoError(t, svc.HandleWebhook(context.Background(), "preapproval", "pre-1"))
		assert.Equal(t, 2, billing.getCalls)
	})

	t.Run("empty upstream status maps to pending", func(t *testing.T) {
		repo := &fakeSubscriptionRepo{}
		billing := &fakeBilling{preapproval: entities.Preapproval{ID: "pre-1"}}
		svc := newSubscriptionService(repo, billing)

		require.NoError(t, svc.HandleWebhook(context.Background(), "preapproval", "pre-1"))
		assert.Equal(t, entities.SubscriptionPending, repo.updatedStatus)
	})
}

func TestSubscriptionService_Cancel(t *testing.T) {
	t.Run("cancels upstream then locally", func(t *testing.T) {
		repo := &fakeSubscriptionRepo{
			user:   entities.User{ID: 1},
			active: entities.Subscription{PreapprovalID: "pre-1", Status: entities.SubscriptionAuthorized},
		}
		billing := &fakeBilling{}
		svc := newSubscriptionService(repo, billing)

		require.NoError(t, svc.Cancel(context.Background(), 42))
		assert.True(t, strings.HasPrefix(billing.cancelled, "pre-1:"))
		assert.Equal(t, entities.SubscriptionCancelled, repo.updatedStatus)
	})

	t.Run("nothing to cancel", func(t *testing.T) {
		repo := &fakeSubscriptionRepo{
			user:      entities.User{ID: 1},
			activeErr: entities.ErrNotFound,
		}
		svc := newSubscriptionService(repo, &fakeBilling{})

		err := svc.Cancel(context.Background(), 42)
		assert.ErrorIs(t, err, entities.ErrNoSubscription)
	})
}
