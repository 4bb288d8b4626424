package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CartItem is embedded in its cart document. At most one item exists per
// (cart, product) pair; repeated adds increment Quantity in place.
type CartItem struct {
	ItemID    bson.ObjectID `json:"item_id" bson:"item_id"`
	ProductID bson.ObjectID `json:"product_id" bson:"product_id"`
	Quantity  int           `json:"quantity" bson:"quantity" validate:"gt=0"`
	AddedAt   time.Time     `json:"added_at" bson:"added_at"`
}

// Cart is a mutable, possibly anonymous shopping cart. CartCode is the
// stable capability handle anonymous clients use; UserID is set at most
// once, when an authenticated user first touches an anonymous cart.
type Cart struct {
	ID        bson.ObjectID  `json:"id" bson:"_id,omitempty"`
	CartCode  string         `json:"cart_code" bson:"cart_code"`
	UserID    *bson.ObjectID `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Items     []CartItem     `json:"items" bson:"items"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
}

// FindItem returns the embedded item for the product, or nil.
func (c *Cart) FindItem(productID bson.ObjectID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// FindItemByID returns the embedded item with the given item id, or nil.
func (c *Cart) FindItemByID(itemID bson.ObjectID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// TotalQuantity sums the quantities of all items.
func (c *Cart) TotalQuantity() int {
	var total int
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// IsOwnedBy reports whether the cart belongs to the given user.
func (c *Cart) IsOwnedBy(userID bson.ObjectID) bool {
	return c.UserID != nil && *c.UserID == userID
}

type AddToCartRequest struct {
	CartCode  string `json:"cart_code"`
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItemRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity *int   `json:"quantity" binding:"required"`
}

// CartItemView joins an item with its product's list shape for responses.
type CartItemView struct {
	ItemID   bson.ObjectID   `json:"item_id"`
	Product  ProductListView `json:"product"`
	Quantity int             `json:"quantity"`
	SubTotal float64         `json:"sub_total"`
}

type CartView struct {
	ID       bson.ObjectID  `json:"id"`
	CartCode string         `json:"cart_code"`
	Items    []CartItemView `json:"items"`
	SumTotal float64        `json:"sum_total"`
}

// CartStatView is the lightweight shape used by the cart badge.
type CartStatView struct {
	CartCode string `json:"cart_code"`
	NumItems int    `json:"num_of_items"`
}
