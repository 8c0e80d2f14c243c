package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/pkg/trm"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type postgresRepo struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func NewPostgresRepo(db *sqlx.DB) *postgresRepo {
	return &postgresRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *postgresRepo) FindOrCreateUser(ctx context.Context, mlUserID int64, nickname, email string) (entities.User, error) {
	query, args := r.qb.Insert("users").
		Columns("ml_user_id", "nickname", "email").
		Values(mlUserID, nickname, nullString(email)).
		Suffix(`ON CONFLICT (ml_user_id) DO UPDATE SET
			nickname = EXCLUDED.nickname,
			updated_at = CURRENT_TIMESTAMP
			RETURNING id, ml_user_id, nickname, email, created_at, updated_at`).
		MustSql()

	var user User
	if err := r.getContext(ctx, &user, query, args...); err != nil {
		return entities.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return UserToEntity(user), nil
}

func (r *postgresRepo) GetUserByMLID(ctx context.Context, mlUserID int64) (entities.User, error) {
	query, args := r.qb.Select("id", "ml_user_id", "nickname", "email", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"ml_user_id": mlUserID}).
		MustSql()

	var user User
	err := r.getContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.User{}, entities.ErrNotFound
	}
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return UserToEntity(user), nil
}

func (r *postgresRepo) ActiveSubscription(ctx context.Context, userID int64) (entities.Subscription, error) {
	query, args := r.qb.Select(
		"id", "user_id", "mp_preapproval_id", "mp_payer_id", "status", "plan_id",
		"price", "current_period_start", "current_period_end", "created_at", "updated_at").
		From("subscriptions").
		Where(sq.Eq{"user_id": userID, "status": []string{entities.SubscriptionAuthorized, entities.SubscriptionActive}}).
		OrderBy("created_at DESC").
		Limit(1).
		MustSql()

	var sub Subscription
	err := r.getContext(ctx, &sub, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Subscription{}, entities.ErrNotFound
	}
	if err != nil {
		return entities.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}
	return SubscriptionToEntity(sub), nil
}

func (r *postgresRepo) CreateSubscription(ctx context.Context, userID int64, preapprovalID string) (entities.Subscription, error) {
	query, args := r.qb.Insert("subscriptions").
		Columns("user_id", "mp_preapproval_id", "status").
		Values(userID, preapprovalID, entities.SubscriptionPending).
		Suffix(`RETURNING id, user_id, mp_preapproval_id, mp_payer_id, status, plan_id,
			price, current_period_start, current_period_end, created_at, updated_at`).
		MustSql()

	var sub Subscription
	if err := r.getContext(ctx, &sub, query, args...); err != nil {
		return entities.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}
	return SubscriptionToEntity(sub), nil
}

func (r *postgresRepo) UpdateSubscriptionByPreapprovalID(ctx context.Context, preapprovalID, status string, periodStart, periodEnd *time.Time) error {
	update := r.qb.Update("subscriptions").
		Set("status", status).
		Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
		Where(sq.Eq{"mp_preapproval_id": preapprovalID})

	if periodStart != nil {
		update = update.Set("current_period_start", *periodStart)
	}
	if periodEnd != nil {
		update = update.Set("current_period_end", *periodEnd)
	}

	query, args := update.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// Session store, keyed by the cookie value. Expired rows are filtered
// on read and swept by DeleteExpiredSessions.

func (r *postgresRepo) GetSession(ctx context.Context, sid string) ([]byte, error) {
	query, args := r.qb.Select("sid", "sess", "expire").
		From("sessions").
		Where(sq.Eq{"sid": sid}).
		Where(sq.Expr("expire > CURRENT_TIMESTAMP")).
		MustSql()

	var sess Session
	err := r.getContext(ctx, &sess, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entities.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess.Sess, nil
}

func (r *postgresRepo) SaveSession(ctx context.Context, sid string, data []byte, expiresAt time.Time) error {
	query, args := r.qb.Insert("sessions").
		Columns("sid", "sess", "expire").
		Values(sid, data, expiresAt).
		Suffix("ON CONFLICT (sid) DO UPDATE SET sess = EXCLUDED.sess, expire = EXCLUDED.expire").
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *postgresRepo) DeleteSession(ctx context.Context, sid string) error {
	query, args := r.qb.Delete("sessions").Where(sq.Eq{"sid": sid}).MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *postgresRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	query, args := r.qb.Delete("sessions").
		Where(sq.Expr("expire <= CURRENT_TIMESTAMP")).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (r *postgresRepo) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r *postgresRepo) getContext(ctx context.Context, dest any, query string, args ...any) error {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return r.db.GetContext(ctx, dest, query, args...)
}
