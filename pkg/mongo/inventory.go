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

// InventoryLedger owns the authoritative stock counts. Every mutation is
// a single conditional update on the product document, so concurrent
// decrements for one product serialize inside the storage engine and
// stock can never go negative.
type InventoryLedger struct{}

// ReserveStock verifies current stock covers the requested quantity. The
// check is advisory: it gives the caller fast feedback at checkout-session
// creation, the authoritative check happens again in DecrementStock at
// fulfillment time.
func (InventoryLedger) ReserveStock(ctx context.Context, productID bson.ObjectID, quantity int) error {
	product, err := GetProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if product.Stock < quantity {
		return fmt.Errorf("product %q has %d in stock, want %d: %w",
			product.Name, product.Stock, quantity, global.ErrInsufficientStock)
	}
	return nil
}

// DecrementStock atomically takes quantity out of a product's stock. The
// filter clause stock >= quantity makes check and decrement one locked
// read-modify-write inside the storage engine. A sale movement is
// recorded with the same context, so inside a transaction it commits or
// aborts together with the decrement.
func (InventoryLedger) DecrementStock(ctx context.Context, productID bson.ObjectID, quantity int, reference string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive: %w", global.ErrValidation)
	}
	collection := GetCollection("products")

	result, err := collection.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: productID},
			{Key: "stock", Value: bson.D{{Key: "$gte", Value: quantity}}},
		},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "stock", Value: -quantity}}}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Distinguish a vanished product from a lost stock race.
		var product models.Product
		err := collection.FindOne(ctx, bson.D{{Key: "_id", Value: productID}}).Decode(&product)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("product %s: %w", productID.Hex(), global.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("product %q has %d in stock, want %d: %w",
			product.Name, product.Stock, quantity, global.ErrInsufficientStock)
	}

	movement := &models.StockMovement{
		ProductID:  productID,
		ChangeType: models.StockChangeSale,
		Quantity:   -quantity,
		Reference:  reference,
	}
	movement.SetTimestamp()
	_, err = GetCollection("stock_movements").InsertOne(ctx, movement)
	return err
}

// RestockProduct adds stock back, recording an adjustment movement. Used
// by admin tooling and shortfall reconciliation.
func (InventoryLedger) RestockProduct(ctx context.Context, productID bson.ObjectID, quantity int, reference string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive: %w", global.ErrValidation)
	}
	collection := GetCollection("products")

	result, err := collection.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: productID}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "stock", Value: quantity}}}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("product %s: %w", productID.Hex(), global.ErrNotFound)
	}

	movement := &models.StockMovement{
		ProductID:  productID,
		ChangeType: models.StockChangeAdjustment,
		Quantity:   quantity,
		Reference:  reference,
	}
	movement.SetTimestamp()
	_, err = GetCollection("stock_movements").InsertOne(ctx, movement)
	return err
}

// RecordShortfall notes a decrement that could not be applied at
// fulfillment time, for the reconciliation worker. Written outside the
// aborted transaction on purpose.
func (InventoryLedger) RecordShortfall(ctx context.Context, productID bson.ObjectID, quantity int, reference string) error {
	movement := &models.StockMovement{
		ProductID:  productID,
		ChangeType: models.StockChangeShortfall,
		Quantity:   -quantity,
		Reference:  reference,
	}
	movement.SetTimestamp()
	_, err := GetCollection("stock_movements").InsertOne(ctx, movement)
	return err
}

// ListStockMovements returns the movement trail for a product, newest
// first.
func (InventoryLedger) ListStockMovements(ctx context.Context, productID bson.ObjectID) ([]models.StockMovement, error) {
	cursor, err := GetCollection("stock_movements").Find(ctx,
		bson.D{{Key: "product_id", Value: productID}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var movements []models.StockMovement
	if err := cursor.All(ctx, &movements); err != nil {
		return nil, err
	}
	return movements, nil
}
