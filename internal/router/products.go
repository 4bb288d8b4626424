package router

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
	"github.com/nextshop/commerce-api/pkg/mongo"
	"github.com/nextshop/commerce-api/pkg/redis"
)

func GetFeaturedProducts(c *gin.Context) {
	products, err := mongo.GetFeaturedProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]models.ProductListView, 0, len(products))
	for i := range products {
		views = append(views, products[i].ToListView())
	}
	c.JSON(http.StatusOK, global.SuccessResponse(views))
}

// GetProductBySlug serves the product page payload with Redis caching.
func GetProductBySlug(c *gin.Context) {
	slug := c.Param("slug")
	ctx := c.Request.Context()

	product, err := redis.GetProductBySlugFromCache(ctx, slug)
	if err == nil {
		c.Header("X-Cache", "HIT")
		similar := similarListViews(c, product)
		c.JSON(http.StatusOK, global.SuccessResponse(product.ToDetailView(similar)))
		return
	}

	product, err = mongo.GetProductBySlug(ctx, slug)
	if err != nil {
		respondError(c, err)
		return
	}

	if cacheErr := redis.CacheSingleProduct(ctx, product); cacheErr != nil {
		log.Printf("Warning: Failed to cache product in Redis: %v", cacheErr)
	}

	c.Header("X-Cache", "MISS")
	similar := similarListViews(c, product)
	c.JSON(http.StatusOK, global.SuccessResponse(product.ToDetailView(similar)))
}

// similarListViews fetches the related-products strip. Failures degrade
// to an empty strip rather than failing the product page.
func similarListViews(c *gin.Context, product *models.Product) []models.ProductListView {
	similar, err := mongo.GetSimilarProducts(c.Request.Context(), product, 4)
	if err != nil {
		log.Printf("Warning: Failed to load similar products for %s: %v", product.Slug, err)
		return nil
	}
	views := make([]models.ProductListView, 0, len(similar))
	for i := range similar {
		views = append(views, similar[i].ToListView())
	}
	return views
}

func SearchProducts(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusOK, global.SuccessResponse([]models.ProductListView{}))
		return
	}

	products, err := mongo.SearchProducts(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]models.ProductListView, 0, len(products))
	for i := range products {
		views = append(views, products[i].ToListView())
	}
	c.JSON(http.StatusOK, global.SuccessResponse(views))
}

func CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product := req.ToProduct()
	ctx := c.Request.Context()

	if req.Category != "" {
		category, err := mongo.GetCategoryBySlug(ctx, req.Category)
		if err != nil {
			c.JSON(http.StatusBadRequest, global.ErrorResponse("Unknown category", []global.ValidationError{
				{Field: "category", Message: "No category exists with this slug", Code: "not_found"},
			}))
			return
		}
		product.CategoryID = &category.ID
	}

	created, err := mongo.CreateProduct(ctx, product)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.SuccessResponse(created.ToDetailView(nil)))
}

func GetAllCategories(c *gin.Context) {
	categories, err := mongo.GetAllCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(categories))
}

// GetCategoryBySlug returns the category together with its products.
func GetCategoryBySlug(c *gin.Context) {
	ctx := c.Request.Context()

	category, err := mongo.GetCategoryBySlug(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	products, err := mongo.GetProductsByCategory(ctx, category.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]models.ProductListView, 0, len(products))
	for i := range products {
		views = append(views, products[i].ToListView())
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{
		"category": category,
		"products": views,
	}))
}

type restockRequest struct {
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Reference string `json:"reference"`
}

// RestockProduct adds stock and drops the cached copy so the storefront
// sees the new count.
func RestockProduct(c *gin.Context) {
	ctx := c.Request.Context()

	product, err := mongo.GetProductBySlug(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := inventoryLedger.RestockProduct(ctx, product.ID, req.Quantity, req.Reference); err != nil {
		respondError(c, err)
		return
	}

	if err := redis.InvalidateProduct(ctx, product.Slug); err != nil {
		log.Printf("Warning: Failed to invalidate cached product %s: %v", product.Slug, err)
	}

	product, err = mongo.GetProductBySlug(ctx, product.Slug)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{
		"slug":  product.Slug,
		"stock": product.Stock,
	}))
}

type stockMovementView struct {
	ID         string    `json:"id"`
	ChangeType string    `json:"change_type"`
	Quantity   int       `json:"quantity"`
	Direction  string    `json:"direction"`
	Reference  string    `json:"reference,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// GetStockMovements returns the audit trail for a product's stock.
func GetStockMovements(c *gin.Context) {
	ctx := c.Request.Context()

	product, err := mongo.GetProductBySlug(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	movements, err := inventoryLedger.ListStockMovements(ctx, product.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]stockMovementView, 0, len(movements))
	for i := range movements {
		m := &movements[i]
		direction := "in"
		if m.IsDecrease() {
			direction = "out"
		}
		views = append(views, stockMovementView{
			ID:         m.ID.Hex(),
			ChangeType: m.ChangeType,
			Quantity:   m.Quantity,
			Direction:  direction,
			Reference:  m.Reference,
			CreatedAt:  m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, global.SuccessResponse(views))
}
