package entities

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAuthExchange     = errors.New("failed to exchange authorization code")
	ErrAuthRefresh      = errors.New("failed to refresh access token")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionNotFound  = errors.New("session not found")

	ErrTooManyShipments = errors.New("too many shipment ids, maximum is 50")
	ErrNoShipments      = errors.New("no shipment ids provided")

	ErrEmptyArchive = errors.New("label archive contains no files")
	ErrMissingEntry = errors.New("label archive entry cannot be opened")

	ErrSubscriptionExists = errors.New("active subscription already exists")
	ErrNoSubscription     = errors.New("no active subscription")
)

// UpstreamError is returned when the shipment provider answers with an
// unexpected status code.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream responded with %d: %s", e.Status, e.Body)
}

// RasterizeError is a hard failure: no partial document is ever returned
// when a batch is rejected by the rendering service.
type RasterizeError struct {
	Status int
	Body   string
}

func (e *RasterizeError) Error() string {
	return fmt.Sprintf("rasterizer rejected batch with %d: %s", e.Status, e.Body)
}
