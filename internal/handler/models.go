package handler

import (
	"time"

	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/service"
)

// ShipmentRecord is one printable shipment row as the dashboard
// consumes it.
type ShipmentRecord struct {
	ShipmentID    int64  `json:"shipmentId"`
	OrderID       int64  `json:"orderId"`
	BuyerNickname string `json:"buyerNickname"`
	Items         string `json:"items"`
	Status        string `json:"status"`
	Substatus     string `json:"substatus"`
	CanPrint      bool   `json:"canPrint"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
}

type ShipmentList struct {
	Ready   []ShipmentRecord `json:"ready"`
	Reprint []ShipmentRecord `json:"reprint"`
}

func ShipmentRecordEntityToJSON(r entities.ShipmentRecord) ShipmentRecord {
	return ShipmentRecord{
		ShipmentID:    r.ShipmentID,
		OrderID:       r.OrderID,
		BuyerNickname: r.BuyerNickname,
		Items:         r.Items,
		Status:        r.Status,
		Substatus:     r.Substatus,
		CanPrint:      r.CanPrint,
		City:          r.City,
		State:         r.State,
	}
}

func ShipmentListEntityToJSON(l entities.ShipmentList) ShipmentList {
	ready := make([]ShipmentRecord, 0, len(l.Ready))
	for _, r := range l.Ready {
		ready = append(ready, ShipmentRecordEntityToJSON(r))
	}
	reprint := make([]ShipmentRecord, 0, len(l.Reprint))
	for _, r := range l.Reprint {
		reprint = append(reprint, ShipmentRecordEntityToJSON(r))
	}
	return ShipmentList{Ready: ready, Reprint: reprint}
}

type LabelsRequest struct {
	ShipmentIDs []int64 `json:"shipmentIds" validate:"required,min=1,dive,gt=0"`
}

type LoginResponse struct {
	AuthURL string `json:"authUrl"`
}

type MeResponse struct {
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname"`
}

type SubscriptionStatusResponse struct {
	HasSubscription  bool       `json:"hasSubscription"`
	Status           string     `json:"status,omitempty"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
	PlanName         string     `json:"planName,omitempty"`
	Price            float64    `json:"price,omitempty"`
}

func SubscriptionStatusToJSON(s service.SubscriptionStatus) SubscriptionStatusResponse {
	return SubscriptionStatusResponse{
		HasSubscription:  s.HasSubscription,
		Status:           s.Status,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		PlanName:         s.PlanName,
		Price:            s.Price,
	}
}

type CheckoutRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

type WebhookRequest struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}
