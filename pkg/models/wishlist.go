package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Wishlist links a user to a product they saved. (user, product) is
// unique; posting the same pair again removes it (toggle semantics).
type Wishlist struct {
	ID        bson.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    bson.ObjectID `json:"user_id" bson:"user_id"`
	ProductID bson.ObjectID `json:"product_id" bson:"product_id"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
}

type WishlistView struct {
	ID        bson.ObjectID   `json:"id"`
	Product   ProductListView `json:"product"`
	CreatedAt time.Time       `json:"created_at"`
}

type ToggleWishlistRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}
