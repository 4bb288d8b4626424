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

// UpsertAddress writes the single address kept per user, creating it on
// first use.
func UpsertAddress(ctx context.Context, address *models.CustomerAddress) (*models.CustomerAddress, error) {
	var saved models.CustomerAddress
	err := GetCollection("customer_addresses").FindOneAndUpdate(ctx,
		bson.D{{Key: "user_id", Value: address.UserID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "street", Value: address.Street},
			{Key: "city", Value: address.City},
			{Key: "state", Value: address.State},
			{Key: "phone", Value: address.Phone},
		}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&saved)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func GetAddressByUser(ctx context.Context, userID bson.ObjectID) (*models.CustomerAddress, error) {
	var address models.CustomerAddress
	err := GetCollection("customer_addresses").FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&address)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("address for user %s: %w", userID.Hex(), global.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &address, nil
}
