package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	StockChangeSale       = "sale"
	StockChangeShortfall  = "shortfall"
	StockChangeAdjustment = "adjustment"
)

// StockMovement records every stock mutation the inventory ledger
// performs, for audit and shortfall reconciliation. Sale movements are
// written inside the fulfillment transaction; shortfall movements record
// a decrement that could not be applied.
type StockMovement struct {
	ID         bson.ObjectID `json:"id" bson:"_id,omitempty"`
	ProductID  bson.ObjectID `json:"product_id" bson:"product_id"`
	ChangeType string        `json:"change_type" bson:"change_type" validate:"required,oneof=sale shortfall adjustment"`
	Quantity   int           `json:"quantity" bson:"quantity"` // positive for restock, negative for sale
	Reference  string        `json:"reference" bson:"reference,omitempty"` // e.g. stripe checkout id
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
}

func (m *StockMovement) SetTimestamp() {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
}

// IsDecrease reports whether the movement took stock out.
func (m *StockMovement) IsDecrease() bool {
	return m.Quantity < 0
}
