package model

import (
	baseModel "groupbuy_backend/pkg/model"
)

// Return statuses. pending -> approved -> awaiting_item -> completed, with
// rejected as the terminal branch of moderation.
const (
	StatusPending      = "pending"
	StatusApproved     = "approved"
	StatusRejected     = "rejected"
	StatusAwaitingItem = "awaiting_item"
	StatusCompleted    = "completed"
)

var validTransitions = map[string][]string{
	StatusPending:      {StatusApproved, StatusRejected},
	StatusApproved:     {StatusAwaitingItem},
	StatusAwaitingItem: {StatusCompleted},
	StatusRejected:     {},
	StatusCompleted:    {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Return is one refund request for a delivered order. The money moves only
// at completion, after the item came back.
type Return struct {
	baseModel.BaseModel
	OrderID string `gorm:"type:uuid;index;not null" json:"orderId"`
	UserID  string `gorm:"type:uuid;index;not null" json:"userId"`
	Status  string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Reason  string `gorm:"type:varchar(500);not null" json:"reason"`
	// Description is the customer's free-form account of the problem.
	Description string `gorm:"type:varchar(1000)" json:"description,omitempty"`
	// RefundAmount is fixed at approval; nil while moderation is pending.
	RefundAmount *float64 `json:"refundAmount,omitempty"`
	// AdminComment carries the moderation verdict back to the customer.
	AdminComment string `gorm:"type:varchar(500)" json:"adminComment,omitempty"`
}
