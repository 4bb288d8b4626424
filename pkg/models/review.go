package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Review is a customer review for a product. One review per
// (product, user) pair, enforced by a unique index.
type Review struct {
	ID        bson.ObjectID `json:"id" bson:"_id,omitempty"`
	ProductID bson.ObjectID `json:"product_id" bson:"product_id"`
	UserID    bson.ObjectID `json:"user_id" bson:"user_id"`
	Rating    int           `json:"rating" bson:"rating" validate:"required,gte=1,lte=5"`
	Review    string        `json:"review" bson:"review" validate:"max=2000"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at"`
}

func (r *Review) SetTimestamps() {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

type AddReviewRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required,gte=1,lte=5"`
	Review    string `json:"review"`
}

type UpdateReviewRequest struct {
	Rating int    `json:"rating" binding:"required,gte=1,lte=5"`
	Review string `json:"review"`
}

// ComputeRating derives the product rating aggregate from the complete
// review set. Recomputing from scratch avoids the drift an incremental
// running average accumulates under concurrent edits and deletes.
func ComputeRating(ratings []int) Rating {
	if len(ratings) == 0 {
		return Rating{Average: 0.0, Count: 0}
	}
	var sum int
	for _, r := range ratings {
		sum += r
	}
	return Rating{
		Average: float64(sum) / float64(len(ratings)),
		Count:   len(ratings),
	}
}
