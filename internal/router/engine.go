package router

import (
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nextshop/commerce-api/internal/cart"
	"github.com/nextshop/commerce-api/internal/checkout"
	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/mongo"
	"github.com/nextshop/commerce-api/pkg/payment"
	"github.com/nextshop/commerce-api/pkg/tasks"
)

var Router *gin.Engine

var (
	cartService     *cart.Service
	checkoutEngine  *checkout.Engine
	orderStore      mongo.OrderStore
	inventoryLedger mongo.InventoryLedger
)

func InitEngine() {
	Router = gin.Default()
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	origins := strings.Split(global.GetEnvOrDefault("CORS_ORIGINS",
		"http://localhost:3000,https://next-shop-self.vercel.app"), ",")

	Router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	Router.Use(IdentityMiddleware())
}

// InitServices wires the stores, payment client and task queue into the
// cart service and fulfillment engine.
func InitServices() {
	products := mongo.ProductStore{}
	carts := mongo.CartStore{}
	ledger := mongo.InventoryLedger{}
	orders := mongo.OrderStore{}

	cartService = cart.NewService(carts, products)
	checkoutEngine = checkout.NewEngine(
		carts,
		products,
		ledger,
		orders,
		payment.NewClientFromEnv(),
		tasks.NewKafkaQueueFromEnv(),
		mongo.RunTransaction,
	)
}

func InitializeRoutes() {
	mutationBudget := RateLimitMiddleware(30, time.Minute)

	api := Router.Group("/api")
	{
		api.GET("/health", HealthCheck)
		api.GET("/search", SearchProducts)

		products := api.Group("/products")
		{
			products.GET("/", GetFeaturedProducts)
			products.POST("/", CreateProduct)
			products.GET("/:slug", GetProductBySlug)
			products.POST("/:slug/restock", RestockProduct)
			products.GET("/:slug/movements", GetStockMovements)
		}

		categories := api.Group("/categories")
		{
			categories.GET("/", GetAllCategories)
			categories.GET("/:slug", GetCategoryBySlug)
		}

		cartGroup := api.Group("/cart")
		{
			cartGroup.POST("/items", mutationBudget, AddToCart)
			cartGroup.PUT("/items", mutationBudget, UpdateCartItem)
			cartGroup.DELETE("/items/:id", mutationBudget, DeleteCartItem)
			cartGroup.GET("/stat", GetCartStat)
			cartGroup.GET("/contains", ProductInCart)
			cartGroup.GET("/:cartCode", GetCart)
		}

		reviews := api.Group("/reviews")
		{
			reviews.GET("/", GetProductReviews)
			reviews.POST("/", mutationBudget, RequireAuth(), AddReview)
			reviews.PUT("/:id", mutationBudget, RequireAuth(), UpdateReview)
			reviews.DELETE("/:id", mutationBudget, RequireAuth(), DeleteReview)
		}

		wishlist := api.Group("/wishlist")
		wishlist.Use(RequireAuth())
		{
			wishlist.POST("/", ToggleWishlist)
			wishlist.GET("/", MyWishlists)
			wishlist.GET("/contains", ProductInWishlist)
		}

		users := api.Group("/users")
		{
			users.POST("/", CreateUser)
			users.POST("/login", Login)
			users.POST("/logout", RequireAuth(), Logout)
			users.GET("/exists/:email", ExistingUser)
			users.POST("/address", RequireAuth(), AddAddress)
			users.GET("/address", RequireAuth(), GetAddress)
			users.GET("/orders", RequireAuth(), GetOrders)
		}

		api.POST("/checkout", CreateCheckoutSession)
		api.POST("/webhook", StripeWebhook)
	}
}
