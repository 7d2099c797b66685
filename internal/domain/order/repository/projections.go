package repository

import (
	"github.com/jmoiron/sqlx"
)

// OrderSummary is the flattened row the order list screens render: one
// pre-joined shape instead of N+1 lookups through the ORM.
type OrderSummary struct {
	OrderID      string  `db:"order_id" json:"orderId"`
	Status       string  `db:"status" json:"status"`
	Quantity     int     `db:"quantity" json:"quantity"`
	HoldAmount   float64 `db:"hold_amount" json:"holdAmount"`
	Amount       float64 `db:"amount" json:"amount"`
	CreatedAt    string  `db:"created_at" json:"createdAt"`
	ProductName  string  `db:"product_name" json:"productName"`
	ProductImage string  `db:"product_image" json:"productImage"`
	GroupID      string  `db:"group_id" json:"groupId"`
	GroupStatus  string  `db:"group_status" json:"groupStatus"`
}

// GroupSettlementRow is the sweep's working set: every order of a group
// joined with its payment, in one query.
type GroupSettlementRow struct {
	OrderID           string  `db:"order_id"`
	UserID            string  `db:"user_id"`
	OrderStatus       string  `db:"order_status"`
	Quantity          int     `db:"quantity"`
	HoldAmount        float64 `db:"hold_amount"`
	DeliveryCost      float64 `db:"delivery_cost"`
	PaymentID         string  `db:"payment_id"`
	PaymentExternalID string  `db:"payment_external_id"`
	PaymentStatus     string  `db:"payment_status"`
}

// ProjectionRepository serves read models over raw SQL.
type ProjectionRepository interface {
	OrderSummaries(userID string, limit, offset int) ([]OrderSummary, error)
	GroupSettlementRows(groupID string) ([]GroupSettlementRow, error)
}

type projectionRepository struct {
	db *sqlx.DB
}

func NewProjectionRepository(db *sqlx.DB) ProjectionRepository {
	return &projectionRepository{db: db}
}

func (r *projectionRepository) OrderSummaries(userID string, limit, offset int) ([]OrderSummary, error) {
	const query = `
		SELECT o.id            AS order_id,
		       o.status        AS status,
		       o.quantity      AS quantity,
		       o.hold_amount   AS hold_amount,
		       COALESCE(o.amount, 0) AS amount,
		       to_char(o.created_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') AS created_at,
		       p.name          AS product_name,
		       COALESCE(p.image_url, '') AS product_image,
		       g.id            AS group_id,
		       g.status        AS group_status
		FROM orders o
		JOIN groups g   ON g.id = o.group_id
		JOIN products p ON p.id = g.product_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3`

	var rows []OrderSummary
	err := r.db.Select(&rows, query, userID, limit, offset)
	return rows, err
}

func (r *projectionRepository) GroupSettlementRows(groupID string) ([]GroupSettlementRow, error) {
	const query = `
		SELECT o.id             AS order_id,
		       o.user_id        AS user_id,
		       o.status         AS order_status,
		       o.quantity       AS quantity,
		       o.hold_amount    AS hold_amount,
		       COALESCE(o.delivery_cost, 0) AS delivery_cost,
		       pay.id           AS payment_id,
		       COALESCE(pay.external_id, '') AS payment_external_id,
		       pay.status       AS payment_status
		FROM orders o
		JOIN payments pay ON pay.order_id = o.id
		WHERE o.group_id = $1
		ORDER BY o.created_at`

	var rows []GroupSettlementRow
	err := r.db.Select(&rows, query, groupID)
	return rows, err
}
