package model

import (
	"time"

	catalogModel "groupbuy_backend/internal/domain/catalog/model"
	baseModel "groupbuy_backend/pkg/model"
)

// Group statuses. A group starts active and resolves exactly once into one
// of the three terminal states.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// validTransitions is the lifecycle state machine. Terminal states have no
// outgoing edges.
var validTransitions = map[string][]string{
	StatusActive:    {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
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

// IsTerminal reports whether the status admits no further changes.
func IsTerminal(status string) bool {
	return len(validTransitions[status]) == 0
}

// Group is one buying round for a product. BasePrice and PriceTiers are
// snapshotted from the product at creation, so catalog edits never reprice
// an in-flight group. FinalPrice is set once, when the group completes.
type Group struct {
	baseModel.BaseModel
	ProductID string `gorm:"type:uuid;index;not null" json:"productId"`
	CreatorID string `gorm:"type:uuid;index;not null" json:"creatorId"`
	Status    string `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	MinParticipants int       `gorm:"not null" json:"minParticipants"`
	MaxParticipants int       `gorm:"not null" json:"maxParticipants"`
	CurrentCount    int       `gorm:"not null;default:0" json:"currentCount"`
	Deadline        time.Time `gorm:"not null;index" json:"deadline"`

	BasePrice  float64                 `gorm:"not null" json:"basePrice"`
	PriceTiers catalogModel.PriceTiers `gorm:"type:jsonb" json:"priceTiers"`
	FinalPrice *float64                `json:"finalPrice"`

	ExpiryNotified bool       `gorm:"not null;default:false" json:"-"`
	CompletedAt    *time.Time `json:"completedAt"`
}

// GroupMember is one user's membership in a group. The unique index makes a
// double join impossible regardless of request interleaving.
type GroupMember struct {
	baseModel.BaseModel
	GroupID string `gorm:"type:uuid;not null;uniqueIndex:idx_group_user" json:"groupId"`
	UserID  string `gorm:"type:uuid;not null;uniqueIndex:idx_group_user" json:"userId"`
}
