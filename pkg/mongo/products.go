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

const maxSlugAttempts = 20

// ProductStore adapts product lookups to the interfaces the cart service
// and fulfillment engine consume.
type ProductStore struct{}

func (ProductStore) GetByID(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	return GetProductByID(ctx, id)
}

// CreateProduct inserts a product, generating a unique slug from the name
// with a counter suffix on collision.
func CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	collection := GetCollection("products")
	base := models.Slugify(product.Name)

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		product.Slug = models.NextSlug(base, attempt)
		_, err := collection.InsertOne(ctx, product)
		if err == nil {
			return product, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("could not generate unique slug for %q", product.Name)
}

func GetFeaturedProducts(ctx context.Context) ([]models.Product, error) {
	collection := GetCollection("products")

	cursor, err := collection.Find(ctx, bson.D{{Key: "featured", Value: true}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	collection := GetCollection("products")

	var product models.Product
	err := collection.FindOne(ctx, bson.D{{Key: "slug", Value: slug}}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("product %q: %w", slug, global.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProductByID(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	collection := GetCollection("products")

	var product models.Product
	err := collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("product %s: %w", id.Hex(), global.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetSimilarProducts returns up to limit other products in the same
// category, for the product detail page.
func GetSimilarProducts(ctx context.Context, product *models.Product, limit int64) ([]models.Product, error) {
	if product.CategoryID == nil {
		return nil, nil
	}
	collection := GetCollection("products")

	filter := bson.D{
		{Key: "category_id", Value: *product.CategoryID},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: product.ID}}},
	}
	cursor, err := collection.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchProducts matches the query against product name, description and
// category name, case-insensitively.
func SearchProducts(ctx context.Context, query string) ([]models.Product, error) {
	categories := GetCollection("categories")

	// Resolve category ids whose name matches, so "shoes" finds products
	// in the Shoes category too.
	catCursor, err := categories.Find(ctx, bson.D{
		{Key: "name", Value: bson.D{{Key: "$regex", Value: query}, {Key: "$options", Value: "i"}}},
	})
	if err != nil {
		return nil, err
	}
	var matched []models.Category
	if err := catCursor.All(ctx, &matched); err != nil {
		return nil, err
	}
	catIDs := make([]bson.ObjectID, 0, len(matched))
	for _, c := range matched {
		catIDs = append(catIDs, c.ID)
	}

	or := bson.A{
		bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: query}, {Key: "$options", Value: "i"}}}},
		bson.D{{Key: "description", Value: bson.D{{Key: "$regex", Value: query}, {Key: "$options", Value: "i"}}}},
	}
	if len(catIDs) > 0 {
		or = append(or, bson.D{{Key: "category_id", Value: bson.D{{Key: "$in", Value: catIDs}}}})
	}

	cursor, err := GetCollection("products").Find(ctx, bson.D{{Key: "$or", Value: or}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SetProductRating overwrites the denormalized rating aggregate. Called
// from the review mutation transaction only.
func SetProductRating(ctx context.Context, productID bson.ObjectID, rating models.Rating) error {
	collection := GetCollection("products")

	result, err := collection.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: productID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "rating", Value: rating}}}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("product %s: %w", productID.Hex(), global.ErrNotFound)
	}
	return nil
}

func GetAllCategories(ctx context.Context) ([]models.Category, error) {
	collection := GetCollection("categories")

	cursor, err := collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var categories []models.Category
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	collection := GetCollection("categories")

	var category models.Category
	err := collection.FindOne(ctx, bson.D{{Key: "slug", Value: slug}}).Decode(&category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("category %q: %w", slug, global.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func GetProductsByCategory(ctx context.Context, categoryID bson.ObjectID) ([]models.Product, error) {
	collection := GetCollection("products")

	cursor, err := collection.Find(ctx, bson.D{{Key: "category_id", Value: categoryID}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}
