package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nextshop/commerce-api/pkg/models"
)

// ToggleWishlist adds the (user, product) pair, or removes it when it
// already exists. Returns the created wishlist entry, or nil on removal.
func ToggleWishlist(ctx context.Context, userID, productID bson.ObjectID) (*models.Wishlist, error) {
	collection := GetCollection("wishlists")

	filter := bson.D{
		{Key: "user_id", Value: userID},
		{Key: "product_id", Value: productID},
	}
	result, err := collection.DeleteOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	if result.DeletedCount > 0 {
		return nil, nil
	}

	entry := &models.Wishlist{
		UserID:    userID,
		ProductID: productID,
		CreatedAt: time.Now(),
	}
	insertResult, err := collection.InsertOne(ctx, entry)
	// Concurrent double-toggle: the other request inserted first, treat
	// ours as the removal half of the toggle.
	if mongo.IsDuplicateKeyError(err) {
		_, delErr := collection.DeleteOne(ctx, filter)
		if delErr != nil {
			return nil, delErr
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if id, ok := insertResult.InsertedID.(bson.ObjectID); ok {
		entry.ID = id
	}
	return entry, nil
}

func ListWishlistsByUser(ctx context.Context, userID bson.ObjectID) ([]models.Wishlist, error) {
	cursor, err := GetCollection("wishlists").Find(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var wishlists []models.Wishlist
	if err := cursor.All(ctx, &wishlists); err != nil {
		return nil, err
	}
	return wishlists, nil
}

func ProductInWishlist(ctx context.Context, userID, productID bson.ObjectID) (bool, error) {
	count, err := GetCollection("wishlists").CountDocuments(ctx, bson.D{
		{Key: "user_id", Value: userID},
		{Key: "product_id", Value: productID},
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
