package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
)

// CartStore owns cart and cart-item persistence. Item quantity changes
// are in-place positional updates, never application-side
// read-modify-write, so concurrent adds to the same cart merge instead of
// clobbering each other.
type CartStore struct{}

func (CartStore) GetByCode(ctx context.Context, cartCode string) (*models.Cart, error) {
	var cart models.Cart
	err := GetCollection("carts").FindOne(ctx, bson.D{{Key: "cart_code", Value: cartCode}}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("cart %q: %w", cartCode, global.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (CartStore) GetByUser(ctx context.Context, userID bson.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	err := GetCollection("carts").FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("cart for user %s: %w", userID.Hex(), global.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetByItemID resolves the cart containing the given embedded item.
func (CartStore) GetByItemID(ctx context.Context, itemID bson.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	err := GetCollection("carts").FindOne(ctx, bson.D{{Key: "items.item_id", Value: itemID}}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("cart item %s: %w", itemID.Hex(), global.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (CartStore) CodeExists(ctx context.Context, cartCode string) (bool, error) {
	count, err := GetCollection("carts").CountDocuments(ctx, bson.D{{Key: "cart_code", Value: cartCode}})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (CartStore) Create(ctx context.Context, cart *models.Cart) error {
	_, err := GetCollection("carts").InsertOne(ctx, cart)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("cart code %q taken: %w", cart.CartCode, global.ErrConflict)
	}
	return err
}

// Adopt assigns an anonymous cart to userID. The filter only matches
// carts with no owner, so ownership is assigned at most once; returns
// false when the cart was already owned.
func (CartStore) Adopt(ctx context.Context, cartID, userID bson.ObjectID) (bool, error) {
	result, err := GetCollection("carts").UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: cartID},
			{Key: "user_id", Value: bson.D{{Key: "$exists", Value: false}}},
		},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "user_id", Value: userID},
				{Key: "updated_at", Value: time.Now()},
			}},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// IncrementItem bumps the quantity of an existing (cart, product) item in
// place. Returns false when the cart has no item for that product.
func (CartStore) IncrementItem(ctx context.Context, cartID, productID bson.ObjectID, quantity int) (bool, error) {
	result, err := GetCollection("carts").UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: cartID},
			{Key: "items.product_id", Value: productID},
		},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "items.$.quantity", Value: quantity}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// PushItem appends a new item, guarded against a concurrent add of the
// same product: the filter excludes carts already holding one. Returns
// false when the guard failed and the caller should retry IncrementItem.
func (CartStore) PushItem(ctx context.Context, cartID bson.ObjectID, item models.CartItem) (bool, error) {
	result, err := GetCollection("carts").UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: cartID},
			{Key: "items.product_id", Value: bson.D{{Key: "$ne", Value: item.ProductID}}},
		},
		bson.D{
			{Key: "$push", Value: bson.D{{Key: "items", Value: item}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (CartStore) SetItemQuantity(ctx context.Context, itemID bson.ObjectID, quantity int) error {
	result, err := GetCollection("carts").UpdateOne(ctx,
		bson.D{{Key: "items.item_id", Value: itemID}},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "items.$.quantity", Value: quantity},
				{Key: "updated_at", Value: time.Now()},
			}},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("cart item %s: %w", itemID.Hex(), global.ErrNotFound)
	}
	return nil
}

func (CartStore) RemoveItem(ctx context.Context, itemID bson.ObjectID) error {
	result, err := GetCollection("carts").UpdateOne(ctx,
		bson.D{{Key: "items.item_id", Value: itemID}},
		bson.D{
			{Key: "$pull", Value: bson.D{{Key: "items", Value: bson.D{{Key: "item_id", Value: itemID}}}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("cart item %s: %w", itemID.Hex(), global.ErrNotFound)
	}
	return nil
}

// Delete retires the cart and, because items are embedded, all of its
// items with it.
func (CartStore) Delete(ctx context.Context, cartID bson.ObjectID) error {
	result, err := GetCollection("carts").DeleteOne(ctx, bson.D{{Key: "_id", Value: cartID}})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("cart %s: %w", cartID.Hex(), global.ErrNotFound)
	}
	return nil
}
