package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	baseModel "groupbuy_backend/pkg/model"
)

// Order statuses. The happy path is pending -> frozen -> paid -> processing
// -> shipped -> delivered; cancellation is possible until capture, refund
// only after delivery through the return workflow.
const (
	OrderPending    = "pending"
	OrderFrozen     = "frozen"
	OrderPaid       = "paid"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
	OrderRefunded   = "refunded"
)

// Payment statuses mirror the gateway's lifecycle of a two-phase payment.
const (
	PaymentPending   = "pending"
	PaymentFrozen    = "frozen"
	PaymentCharged   = "charged"
	PaymentRefunded  = "refunded"
	PaymentCancelled = "cancelled"
	PaymentFailed    = "failed"
)

var orderTransitions = map[string][]string{
	OrderPending:    {OrderFrozen, OrderCancelled},
	OrderFrozen:     {OrderPaid, OrderCancelled},
	OrderPaid:       {OrderProcessing, OrderRefunded},
	OrderProcessing: {OrderShipped},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderRefunded},
	OrderCancelled:  {},
	OrderRefunded:   {},
}

var paymentTransitions = map[string][]string{
	PaymentPending:   {PaymentFrozen, PaymentFailed, PaymentCancelled},
	PaymentFrozen:    {PaymentCharged, PaymentCancelled},
	PaymentCharged:   {PaymentRefunded},
	PaymentRefunded:  {},
	PaymentCancelled: {},
	PaymentFailed:    {},
}

// CanTransitionOrder reports whether from -> to is a legal order move.
func CanTransitionOrder(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether from -> to is a legal payment move.
func CanTransitionPayment(from, to string) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusChange is one entry of an order's audit trail.
type StatusChange struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// StatusHistory is the append-only trail, persisted as jsonb.
type StatusHistory []StatusChange

func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *StatusHistory) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for StatusHistory")
	}
	return json.Unmarshal(data, h)
}

// Order is one member's purchase inside a group. HoldAmount is what was
// frozen at checkout; Amount is what was actually captured at settlement
// (final tier price, never above the hold).
type Order struct {
	baseModel.BaseModel
	// One live order per membership is enforced by a partial unique index
	// in the migration (cancelled and refunded orders do not block a new
	// checkout).
	UserID  string `gorm:"type:uuid;index;not null" json:"userId"`
	GroupID string `gorm:"type:uuid;index;not null" json:"groupId"`
	Status  string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	Quantity     int     `gorm:"not null;default:1" json:"quantity"`
	HoldAmount   float64 `gorm:"not null" json:"holdAmount"`
	Amount       float64 `json:"amount"`
	DeliveryCost float64 `json:"deliveryCost"`

	AddressID    string `gorm:"type:uuid;not null" json:"addressId"`
	DeliveryType string `gorm:"type:varchar(20);not null" json:"deliveryType"`

	History StatusHistory `gorm:"type:jsonb" json:"history"`
}

// Payment is the gateway-side record for an order. ExternalID is the
// gateway's payment id; the webhook flow matches on it.
type Payment struct {
	baseModel.BaseModel
	OrderID    string  `gorm:"type:uuid;uniqueIndex;not null" json:"orderId"`
	ExternalID string  `gorm:"type:varchar(100);index" json:"externalId"`
	Status     string  `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Amount     float64 `gorm:"not null" json:"amount"`
	// ConfirmationURL is where the client finishes the authorization.
	ConfirmationURL string `gorm:"type:text" json:"confirmationUrl,omitempty"`
	RefundID        string `gorm:"type:varchar(100)" json:"-"`
}
