package delivery

import (
	"context"
	"time"
)

// Type enumerates supported delivery options.
type Type string

const (
	TypeCourier Type = "courier"
	TypePickup  Type = "pickup"
	TypePost    Type = "post"
)

// Quote is a carrier's answer for one shipment.
type Quote struct {
	Cost    float64
	ETADays int
}

// Quoter supplies delivery cost/ETA for a city. Consumed read-only at
// checkout; the engine never mutates carrier state.
type Quoter interface {
	Quote(ctx context.Context, city string, deliveryType Type) (Quote, error)
}

// FlatRateQuoter is the fallback used when no carrier integration is
// configured. Rates mirror the storefront's defaults.
type FlatRateQuoter struct{}

// NewFlatRateQuoter returns the static quoter.
func NewFlatRateQuoter() *FlatRateQuoter {
	return &FlatRateQuoter{}
}

// Quote returns the flat rate for the delivery type.
func (q *FlatRateQuoter) Quote(_ context.Context, _ string, deliveryType Type) (Quote, error) {
	switch deliveryType {
	case TypeCourier:
		return Quote{Cost: 500, ETADays: 3}, nil
	case TypePost:
		return Quote{Cost: 350, ETADays: 7}, nil
	default: // pickup
		return Quote{Cost: 200, ETADays: 5}, nil
	}
}

// Valid reports whether t is a known delivery type.
func (t Type) Valid() bool {
	switch t {
	case TypeCourier, TypePickup, TypePost:
		return true
	}
	return false
}

// EstimatedDelivery converts an ETA in days to a timestamp.
func EstimatedDelivery(q Quote) time.Time {
	return time.Now().AddDate(0, 0, q.ETADays)
}
