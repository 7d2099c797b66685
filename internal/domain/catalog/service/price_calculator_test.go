package service

import (
	"testing"

	"groupbuy_backend/internal/domain/catalog/model"

	"github.com/stretchr/testify/assert"
)

func sampleTiers() model.PriceTiers {
	return model.PriceTiers{
		{MinQuantity: 3, Price: 900},
		{MinQuantity: 5, Price: 800},
		{MinQuantity: 10, Price: 650},
	}
}

func TestResolvePrice(t *testing.T) {
	tiers := sampleTiers()

	tests := []struct {
		name  string
		count int
		want  float64
	}{
		{"below first tier", 2, 1000},
		{"exactly first tier", 3, 900},
		{"between tiers", 7, 800},
		{"exactly deepest tier", 10, 650},
		{"beyond deepest tier", 40, 650},
		{"zero participants", 0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolvePrice(tiers, tt.count, 1000)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no tiers falls back to base price", func(t *testing.T) {
		assert.Equal(t, 1000.0, ResolvePrice(nil, 50, 1000))
	})

	t.Run("unsorted tiers still resolve deterministically", func(t *testing.T) {
		shuffled := model.PriceTiers{
			{MinQuantity: 10, Price: 650},
			{MinQuantity: 3, Price: 900},
			{MinQuantity: 5, Price: 800},
		}
		assert.Equal(t, 800.0, ResolvePrice(shuffled, 7, 1000))
	})
}

func TestBestPrice(t *testing.T) {
	assert.Equal(t, 650.0, BestPrice(sampleTiers(), 1000))
	assert.Equal(t, 1000.0, BestPrice(nil, 1000))
}

func TestNextTierInfo(t *testing.T) {
	tiers := sampleTiers()

	t.Run("reports the closest unreached tier", func(t *testing.T) {
		next := NextTierInfo(tiers, 4)
		if assert.NotNil(t, next) {
			assert.Equal(t, 5, next.MinQuantity)
			assert.Equal(t, 800.0, next.Price)
			assert.Equal(t, 1, next.PeopleNeeded)
		}
	})

	t.Run("nil when every threshold is reached", func(t *testing.T) {
		assert.Nil(t, NextTierInfo(tiers, 10))
	})

	t.Run("first tier from zero", func(t *testing.T) {
		next := NextTierInfo(tiers, 0)
		if assert.NotNil(t, next) {
			assert.Equal(t, 3, next.MinQuantity)
			assert.Equal(t, 3, next.PeopleNeeded)
		}
	})
}

func TestValidateTiers(t *testing.T) {
	tests := []struct {
		name    string
		tiers   model.PriceTiers
		base    float64
		wantErr bool
	}{
		{"valid tiers", sampleTiers(), 1000, false},
		{"empty tiers", nil, 1000, false},
		{"duplicate threshold", model.PriceTiers{{MinQuantity: 3, Price: 900}, {MinQuantity: 3, Price: 800}}, 1000, true},
		{"decreasing threshold", model.PriceTiers{{MinQuantity: 5, Price: 900}, {MinQuantity: 3, Price: 800}}, 1000, true},
		{"price above base", model.PriceTiers{{MinQuantity: 3, Price: 1100}}, 1000, true},
		{"price increases with depth", model.PriceTiers{{MinQuantity: 3, Price: 800}, {MinQuantity: 5, Price: 900}}, 1000, true},
		{"non-positive price", model.PriceTiers{{MinQuantity: 3, Price: 0}}, 1000, true},
		{"non-positive threshold", model.PriceTiers{{MinQuantity: 0, Price: 900}}, 1000, true},
		{"equal price across tiers allowed", model.PriceTiers{{MinQuantity: 3, Price: 900}, {MinQuantity: 5, Price: 900}}, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTiers(tt.tiers, tt.base)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTiers)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
