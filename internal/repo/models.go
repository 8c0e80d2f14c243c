package repo

import (
	"database/sql"
	"time"

	"github.com/meliprint/meliprint/internal/entities"
)

type User struct {
	ID        int64          `db:"id"`
	MLUserID  int64          `db:"ml_user_id"`
	Nickname  string         `db:"nickname"`
	Email     sql.NullString `db:"email"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func UserToEntity(u User) entities.User {
	return entities.User{
		ID:        u.ID,
		MLUserID:  u.MLUserID,
		Nickname:  u.Nickname,
		Email:     nullStringToString(u.Email),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type Subscription struct {
	ID                 int64           `db:"id"`
	UserID             int64           `db:"user_id"`
	PreapprovalID      sql.NullString  `db:"mp_preapproval_id"`
	PayerID            sql.NullString  `db:"mp_payer_id"`
	Status             string          `db:"status"`
	PlanID             sql.NullString  `db:"plan_id"`
	Price              sql.NullFloat64 `db:"price"`
	CurrentPeriodStart sql.NullTime    `db:"current_period_start"`
	CurrentPeriodEnd   sql.NullTime    `db:"current_period_end"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func SubscriptionToEntity(s Subscription) entities.Subscription {
	return entities.Subscription{
		ID:                 s.ID,
		UserID:             s.UserID,
		PreapprovalID:      nullStringToString(s.PreapprovalID),
		PayerID:            nullStringToString(s.PayerID),
		Status:             s.Status,
		PlanID:             nullStringToString(s.PlanID),
		Price:              s.Price.Float64,
		CurrentPeriodStart: nullTimeToPtr(s.CurrentPeriodStart),
		CurrentPeriodEnd:   nullTimeToPtr(s.CurrentPeriodEnd),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

type Session struct {
	SID    string    `db:"sid"`
	Sess   []byte    `db:"sess"`
	Expire time.Time `db:"expire"`
}

func nullStringToString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

func nullTimeToPtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
