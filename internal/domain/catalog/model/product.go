package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	baseModel "groupbuy_backend/pkg/model"
)

// PriceTier is one step of the price-vs-participants function: once
// MinQuantity participants are in, the unit price drops to Price.
type PriceTier struct {
	MinQuantity int     `json:"min_quantity"`
	Price       float64 `json:"price"`
}

// PriceTiers is the ordered tier list, persisted as jsonb.
type PriceTiers []PriceTier

// Value implements driver.Valuer for jsonb storage.
func (t PriceTiers) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for jsonb storage.
func (t *PriceTiers) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for PriceTiers")
	}
	return json.Unmarshal(data, t)
}

// Product is a catalog item. PriceTiers are snapshotted into each group at
// creation time, so edits here never change an in-flight group's pricing.
type Product struct {
	baseModel.BaseModel
	Name        string     `gorm:"type:varchar(200);not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	ImageURL    string     `json:"imageUrl"`
	BasePrice   float64    `gorm:"not null" json:"basePrice"`
	CategoryID  *string    `gorm:"type:uuid;index" json:"categoryId"`
	Stock       int        `gorm:"not null;default:0" json:"stock"`
	IsActive    bool       `gorm:"not null;default:true" json:"isActive"`
	PriceTiers  PriceTiers `gorm:"type:jsonb" json:"priceTiers"`
}

// Category groups products for the storefront feed.
type Category struct {
	baseModel.BaseModel
	Name     string  `gorm:"type:varchar(100);not null" json:"name"`
	Slug     string  `gorm:"type:varchar(100);unique;not null" json:"slug"`
	Icon     string  `json:"icon"`
	ParentID *string `gorm:"type:uuid" json:"parentId"`
}
