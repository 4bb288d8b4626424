package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
)

// Review mutations run inside a transaction together with the full
// recomputation of the product's rating aggregate, so readers never see a
// review without its effect on the average.

func CreateReview(ctx context.Context, review *models.Review) (*models.Review, error) {
	review.SetTimestamps()

	err := RunTransaction(ctx, func(ctx context.Context) error {
		result, err := GetCollection("reviews").InsertOne(ctx, review)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("you already dropped a review for this product: %w", global.ErrConflict)
		}
		if err != nil {
			return err
		}
		if id, ok := result.InsertedID.(bson.ObjectID); ok {
			review.ID = id
		}
		return recomputeProductRating(ctx, review.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func UpdateReview(ctx context.Context, reviewID bson.ObjectID, rating int, text *string) (*models.Review, error) {
	var updated models.Review

	err := RunTransaction(ctx, func(ctx context.Context) error {
		set := bson.D{{Key: "rating", Value: rating}}
		if text != nil {
			set = append(set, bson.E{Key: "review", Value: *text})
		}
		set = append(set, bson.E{Key: "updated_at", Value: time.Now()})

		err := GetCollection("reviews").FindOneAndUpdate(ctx,
			bson.D{{Key: "_id", Value: reviewID}},
			bson.D{{Key: "$set", Value: set}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("review %s: %w", reviewID.Hex(), global.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return recomputeProductRating(ctx, updated.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func DeleteReview(ctx context.Context, reviewID bson.ObjectID) error {
	return RunTransaction(ctx, func(ctx context.Context) error {
		var deleted models.Review
		err := GetCollection("reviews").FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: reviewID}}).Decode(&deleted)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("review %s: %w", reviewID.Hex(), global.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return recomputeProductRating(ctx, deleted.ProductID)
	})
}

func GetReviewByID(ctx context.Context, reviewID bson.ObjectID) (*models.Review, error) {
	var review models.Review
	err := GetCollection("reviews").FindOne(ctx, bson.D{{Key: "_id", Value: reviewID}}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("review %s: %w", reviewID.Hex(), global.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func ListReviewsForProduct(ctx context.Context, productID bson.ObjectID) ([]models.Review, error) {
	cursor, err := GetCollection("reviews").Find(ctx,
		bson.D{{Key: "product_id", Value: productID}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reviews []models.Review
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// recomputeProductRating reads every rating for the product and rewrites
// the aggregate from scratch. Must run with a transaction context.
func recomputeProductRating(ctx context.Context, productID bson.ObjectID) error {
	cursor, err := GetCollection("reviews").Find(ctx,
		bson.D{{Key: "product_id", Value: productID}},
		options.Find().SetProjection(bson.D{{Key: "rating", Value: 1}}),
	)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		Rating int `bson:"rating"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return err
	}

	ratings := make([]int, len(docs))
	for i, d := range docs {
		ratings[i] = d.Rating
	}
	return SetProductRating(ctx, productID, models.ComputeRating(ratings))
}
