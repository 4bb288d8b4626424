package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
)

// OrderStore persists immutable orders.
type OrderStore struct{}

func (OrderStore) GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Order, error) {
	var order models.Order
	err := GetCollection("orders").FindOne(ctx, bson.D{{Key: "stripe_checkout_id", Value: checkoutID}}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("order %q: %w", checkoutID, global.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Insert creates the order. A duplicate stripe_checkout_id maps to
// ErrConflict: the caller treats it as "another delivery won the race".
func (OrderStore) Insert(ctx context.Context, order *models.Order) error {
	result, err := GetCollection("orders").InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("order for %q already exists: %w", order.StripeCheckoutID, global.ErrConflict)
	}
	if err != nil {
		return err
	}
	if id, ok := result.InsertedID.(bson.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (OrderStore) ListByEmail(ctx context.Context, email string) ([]models.Order, error) {
	cursor, err := GetCollection("orders").Find(ctx,
		bson.D{{Key: "customer_email", Value: email}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
