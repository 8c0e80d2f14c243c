package service

import "github.com/meliprint/meliprint/internal/entities"

type Bucket int

const (
	BucketNone Bucket = iota
	BucketReady
	BucketReprint
)

// PrintPolicy decides which shipments are printable and how printable
// ones split into the "ready" and "reprint" buckets. The mapping has
// changed between product revisions, so it is data, not code.
type PrintPolicy struct {
	// Printable lists substatuses that can be printed while the
	// shipment status is ready_to_ship.
	Printable map[string]struct{}
	// ReadySubstatus marks first-time prints; every other printable
	// substatus goes to the reprint bucket.
	ReadySubstatus string
}

// DefaultPrintPolicy matches the latest product revision: stale and
// ready_to_deliver shipments are still printable and treated as
// reprints.
func DefaultPrintPolicy() PrintPolicy {
	return PrintPolicy{
		Printable: map[string]struct{}{
			entities.SubstatusReadyToPrint:   {},
			entities.SubstatusPrinted:        {},
			entities.SubstatusReprinted:      {},
			entities.SubstatusStale:          {},
			entities.SubstatusReadyToDeliver: {},
		},
		ReadySubstatus: entities.SubstatusReadyToPrint,
	}
}

// CanPrint is a pure function of (status, substatus); classification
// must stay idempotent and side-effect free.
func (p PrintPolicy) CanPrint(status, substatus string) bool {
	if status != entities.StatusReadyToShip {
		return false
	}
	_, ok := p.Printable[substatus]
	return ok
}

func (p PrintPolicy) Classify(status, substatus string) Bucket {
	if !p.CanPrint(status, substatus) {
		return BucketNone
	}
	if substatus == p.ReadySubstatus {
		return BucketReady
	}
	return BucketReprint
}
