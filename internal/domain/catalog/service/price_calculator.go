package service

import (
	"errors"
	"fmt"

	"groupbuy_backend/internal/domain/catalog/model"
)

// ErrInvalidTiers rejects tier lists that would make pricing ambiguous.
var ErrInvalidTiers = errors.New("invalid price tiers")

// ResolvePrice returns the unit price for participantCount given the tier
// list sorted by MinQuantity ascending. The last tier whose MinQuantity is
// reached wins; below the smallest tier (or with no tiers) the base price
// applies. Pure function: callers snapshot the tiers at price-lock time.
func ResolvePrice(tiers model.PriceTiers, participantCount int, basePrice float64) float64 {
	price := basePrice
	best := -1
	for _, tier := range tiers {
		// Strictly-greater keeps resolution deterministic if a duplicate
		// threshold ever slips past write-time validation: first match wins.
		if tier.MinQuantity <= participantCount && tier.MinQuantity > best {
			best = tier.MinQuantity
			price = tier.Price
		}
	}
	return price
}

// BestPrice returns the lowest reachable price (the deepest tier), or the
// base price when no tiers exist.
func BestPrice(tiers model.PriceTiers, basePrice float64) float64 {
	best := basePrice
	maxQty := -1
	for _, tier := range tiers {
		if tier.MinQuantity > maxQty {
			maxQty = tier.MinQuantity
			best = tier.Price
		}
	}
	return best
}

// NextTier describes the next unreached threshold, for "N more people and
// the price drops" UI hints.
type NextTier struct {
	MinQuantity  int     `json:"min_quantity"`
	Price        float64 `json:"price"`
	PeopleNeeded int     `json:"people_needed"`
}

// NextTierInfo returns the closest tier above participantCount, or nil when
// every threshold is already reached.
func NextTierInfo(tiers model.PriceTiers, participantCount int) *NextTier {
	var next *NextTier
	for _, tier := range tiers {
		if tier.MinQuantity > participantCount {
			if next == nil || tier.MinQuantity < next.MinQuantity {
				next = &NextTier{
					MinQuantity:  tier.MinQuantity,
					Price:        tier.Price,
					PeopleNeeded: tier.MinQuantity - participantCount,
				}
			}
		}
	}
	return next
}

// ValidateTiers enforces the configuration contract at product-write time:
// MinQuantity strictly increasing, price strictly positive, non-increasing,
// and below the base price.
func ValidateTiers(tiers model.PriceTiers, basePrice float64) error {
	prevQty := 0
	prevPrice := basePrice
	for i, tier := range tiers {
		if tier.MinQuantity <= 0 {
			return fmt.Errorf("%w: tier %d has non-positive min_quantity", ErrInvalidTiers, i)
		}
		if tier.MinQuantity <= prevQty {
			return fmt.Errorf("%w: tier %d min_quantity %d is not strictly increasing", ErrInvalidTiers, i, tier.MinQuantity)
		}
		if tier.Price <= 0 {
			return fmt.Errorf("%w: tier %d has non-positive price", ErrInvalidTiers, i)
		}
		if tier.Price > prevPrice {
			return fmt.Errorf("%w: tier %d price %.2f exceeds the previous level", ErrInvalidTiers, i, tier.Price)
		}
		prevQty = tier.MinQuantity
		prevPrice = tier.Price
	}
	return nil
}
