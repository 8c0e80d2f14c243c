package meli

import (
	"encoding/json"

	"github.com/meliprint/meliprint/internal/entities"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

func tokenToEntity(t tokenResponse) entities.TokenResponse {
	return entities.TokenResponse{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
		Scope:        t.Scope,
		UserID:       t.UserID,
		RefreshToken: t.RefreshToken,
	}
}

type userInfo struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

type shipment struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	Substatus       string `json:"substatus"`
	OrderID         int64  `json:"order_id"`
	ReceiverAddress *struct {
		City  *struct{ Name string `json:"name"` } `json:"city"`
		State *struct{ Name string `json:"name"` } `json:"state"`
	} `json:"receiver_address"`
}

func shipmentToEntity(s shipment) entities.Shipment {
	out := entities.Shipment{
		ID:        s.ID,
		OrderID:   s.OrderID,
		Status:    s.Status,
		Substatus: s.Substatus,
	}
	if s.ReceiverAddress != nil {
		if s.ReceiverAddress.City != nil {
			out.City = s.ReceiverAddress.City.Name
		}
		if s.ReceiverAddress.State != nil {
			out.State = s.ReceiverAddress.State.Name
		}
	}
	return out
}

type order struct {
	ID       int64 `json:"id"`
	Shipping struct {
		ID int64 `json:"id"`
	} `json:"shipping"`
	Buyer struct {
		Nickname string `json:"nickname"`
	} `json:"buyer"`
	OrderItems []struct {
		Item struct {
			Title string `json:"title"`
		} `json:"item"`
		Quantity int `json:"quantity"`
	} `json:"order_items"`
}

func orderToEntity(o order) entities.Order {
	items := make([]entities.OrderItem, 0, len(o.OrderItems))
	for _, it := range o.OrderItems {
		items = append(items, entities.OrderItem{Title: it.Item.Title, Quantity: it.Quantity})
	}
	return entities.Order{
		ID:            o.ID,
		ShipmentID:    o.Shipping.ID,
		BuyerNickname: o.Buyer.Nickname,
		Items:         items,
	}
}

type orderSearchPage struct {
	Results []order `json:"results"`
}

type shipmentSearchPage struct {
	Results []json.RawMessage `json:"results"`
}

// parseShipmentIDs normalizes the two result shapes the search endpoint
// is known to return: bare integers and {"id": n} objects. Elements that
// fit neither shape are dropped.
func parseShipmentIDs(raw []json.RawMessage) []int64 {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		var n int64
		if err := json.Unmarshal(r, &n); err == nil {
			ids = append(ids, n)
			continue
		}
		var obj struct {
			ID *int64 `json:"id"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && obj.ID != nil {
			ids = append(ids, *obj.ID)
		}
	}
	return ids
}
