package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nextshop/commerce-api/pkg/models"
)

const productCacheTTL = 24 * time.Hour

// CacheSingleProduct stores a product under its slug so the detail
// endpoint can skip MongoDB on repeat reads.
func CacheSingleProduct(ctx context.Context, product *models.Product) error {
	client := RedisClient()
	defer client.Close()

	productJSON, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product %s: %w", product.Slug, err)
	}

	productKey := fmt.Sprintf("product:%s", product.Slug)
	return client.Set(ctx, productKey, productJSON, productCacheTTL).Err()
}

func GetProductBySlugFromCache(ctx context.Context, slug string) (*models.Product, error) {
	client := RedisClient()
	defer client.Close()

	productKey := fmt.Sprintf("product:%s", slug)
	productJSON, err := client.Get(ctx, productKey).Result()
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal([]byte(productJSON), &product); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &product, nil
}

// InvalidateProduct drops the cached copy after a write. Stock changes go
// through here too: a stale stock count on the product page is tolerable,
// a stale one in the ledger is not, which is why the ledger never reads
// this cache.
func InvalidateProduct(ctx context.Context, slug string) error {
	client := RedisClient()
	defer client.Close()

	return client.Del(ctx, fmt.Sprintf("product:%s", slug)).Err()
}
