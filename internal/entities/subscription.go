package entities

import "time"

// Subscription statuses mirror Mercado Pago preapproval statuses.
const (
	SubscriptionPending    = "pending"
	SubscriptionAuthorized = "authorized"
	SubscriptionActive     = "active"
	SubscriptionCancelled  = "cancelled"
)

type User struct {
	ID        int64
	MLUserID  int64
	Nickname  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Subscription struct {
	ID                 int64
	UserID             int64
	PreapprovalID      string
	PayerID            string
	Status             string
	PlanID             string
	Price              float64
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (s Subscription) Active() bool {
	return s.Status == SubscriptionAuthorized || s.Status == SubscriptionActive
}

// Preapproval is the billing provider's view of a recurring charge.
type Preapproval struct {
	ID              string
	Status          string
	InitPoint       string
	NextPaymentDate *time.Time
}

