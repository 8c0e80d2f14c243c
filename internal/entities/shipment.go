package entities

// Mercado Livre shipment statuses the pipeline cares about.
const (
	StatusReadyToShip = "ready_to_ship"

	SubstatusReadyToPrint   = "ready_to_print"
	SubstatusPrinted        = "printed"
	SubstatusReprinted      = "reprinted"
	SubstatusStale          = "stale"
	SubstatusReadyToDeliver = "ready_to_deliver"
	SubstatusInvoicePending = "invoice_pending"
)

type Shipment struct {
	ID        int64
	OrderID   int64
	Status    string
	Substatus string
	City      string
	State     string
}

type OrderItem struct {
	Title    string
	Quantity int
}

type Order struct {
	ID            int64
	ShipmentID    int64
	BuyerNickname string
	Items         []OrderItem
}

// ShipmentRecord is built per request by joining a shipment with its
// parent order. It is never persisted or mutated after construction.
type ShipmentRecord struct {
	ShipmentID    int64
	OrderID       int64
	BuyerNickname string
	Items         string
	Status        string
	Substatus     string
	CanPrint      bool
	City          string
	State         string
}

type ShipmentList struct {
	Ready   []ShipmentRecord
	Reprint []ShipmentRecord
}
