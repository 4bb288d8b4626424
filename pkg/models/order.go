package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	OrderStatusPending   = "Pending"
	OrderStatusPaid      = "Paid"
	OrderStatusCancelled = "Cancelled"
)

// OrderItem snapshots a product as purchased. Name and unit price are
// copied at fulfillment time so later product edits or deletion never
// rewrite order history; ProductID is a soft reference.
type OrderItem struct {
	ProductID      bson.ObjectID `json:"product_id" bson:"product_id"`
	Name           string        `json:"name" bson:"name"`
	UnitPriceCents int64         `json:"unit_price_cents" bson:"unit_price_cents"`
	Quantity       int           `json:"quantity" bson:"quantity" validate:"gt=0"`
}

// Order is immutable once created. StripeCheckoutID carries a unique
// index; it is the sole idempotency key for webhook redeliveries.
type Order struct {
	ID               bson.ObjectID `json:"id" bson:"_id,omitempty"`
	StripeCheckoutID string        `json:"stripe_checkout_id" bson:"stripe_checkout_id"`
	AmountCents      int64         `json:"amount_cents" bson:"amount_cents"`
	Currency         string        `json:"currency" bson:"currency"`
	CustomerEmail    string        `json:"customer_email" bson:"customer_email"`
	Status           string        `json:"status" bson:"status"`
	Items            []OrderItem   `json:"items" bson:"items"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
}

// OrderView is the customer-facing order shape.
type OrderView struct {
	ID            bson.ObjectID   `json:"id"`
	Reference     string          `json:"reference"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	CustomerEmail string          `json:"customer_email"`
	Status        string          `json:"status"`
	Items         []OrderItemView `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
}

type OrderItemView struct {
	ProductID bson.ObjectID `json:"product_id"`
	Name      string        `json:"name"`
	UnitPrice float64       `json:"unit_price"`
	Quantity  int           `json:"quantity"`
}

func (o *Order) ToView() OrderView {
	items := make([]OrderItemView, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemView{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: FromCents(item.UnitPriceCents),
			Quantity:  item.Quantity,
		}
	}
	return OrderView{
		ID:            o.ID,
		Reference:     o.StripeCheckoutID,
		Amount:        FromCents(o.AmountCents),
		Currency:      o.Currency,
		CustomerEmail: o.CustomerEmail,
		Status:        o.Status,
		Items:         items,
		CreatedAt:     o.CreatedAt,
	}
}
