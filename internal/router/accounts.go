package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
	"github.com/nextshop/commerce-api/pkg/mongo"
	"github.com/nextshop/commerce-api/pkg/redis"
)

func CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, err)
		return
	}

	user := &models.User{
		Username:  req.Username,
		Email:     strings.ToLower(req.Email),
		Password:  string(hash),
		CreatedAt: time.Now(),
	}

	created, err := mongo.CreateUser(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.SuccessResponse(created))
}

// Login verifies credentials and issues an opaque bearer token backed by
// Redis. Bad email and bad password are indistinguishable to the caller.
func Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := mongo.GetUserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		c.JSON(http.StatusUnauthorized, global.ErrorResponse("Invalid email or password", nil))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, global.ErrorResponse("Invalid email or password", nil))
		return
	}

	token, err := redis.IssueSession(c.Request.Context(), user.ID.Hex())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{
		"token": token,
		"user":  user,
	}))
}

// Logout revokes the presented session token. Idempotent: revoking an
// unknown token still succeeds.
func Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Missing bearer token", nil))
		return
	}

	if err := redis.RevokeSession(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"logged_out": true}))
}

func ExistingUser(c *gin.Context) {
	exists, err := mongo.UserExistsByEmail(c.Request.Context(), strings.ToLower(c.Param("email")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"exists": exists}))
}

func AddAddress(c *gin.Context) {
	var req models.UpsertAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	address := &models.CustomerAddress{
		UserID: CurrentUser(c).ID,
		Street: req.Street,
		City:   req.City,
		State:  req.State,
		Phone:  req.Phone,
	}

	saved, err := mongo.UpsertAddress(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(saved))
}

func GetAddress(c *gin.Context) {
	address, err := mongo.GetAddressByUser(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(address))
}

// GetOrders lists the caller's orders, newest first. Orders are keyed by
// the email given at checkout, which is the account email for signed-in
// purchases.
func GetOrders(c *gin.Context) {
	orders, err := orderStore.ListByEmail(c.Request.Context(), CurrentUser(c).Email)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]models.OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, orders[i].ToView())
	}
	c.JSON(http.StatusOK, global.SuccessResponse(views))
}

// ToggleWishlist adds the product on first call and removes it on the
// next. The response reports which happened.
func ToggleWishlist(c *gin.Context) {
	var req models.ToggleWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	productID, err := bson.ObjectIDFromHex(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid product id", []global.ValidationError{
			{Field: "product_id", Message: "Must be a valid object id", Code: "invalid_format"},
		}))
		return
	}

	ctx := c.Request.Context()
	if _, err := mongo.GetProductByID(ctx, productID); err != nil {
		respondError(c, err)
		return
	}

	entry, err := mongo.ToggleWishlist(ctx, CurrentUser(c).ID, productID)
	if err != nil {
		respondError(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"wishlisted": false}))
		return
	}
	c.JSON(http.StatusCreated, global.SuccessResponse(gin.H{"wishlisted": true, "entry": entry}))
}

func MyWishlists(c *gin.Context) {
	ctx := c.Request.Context()

	entries, err := mongo.ListWishlistsByUser(ctx, CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]models.WishlistView, 0, len(entries))
	for _, entry := range entries {
		product, err := mongo.GetProductByID(ctx, entry.ProductID)
		if err != nil {
			// Product removed from the catalog; skip the stale entry.
			continue
		}
		views = append(views, models.WishlistView{
			ID:        entry.ID,
			Product:   product.ToListView(),
			CreatedAt: entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, global.SuccessResponse(views))
}

func ProductInWishlist(c *gin.Context) {
	productID, err := bson.ObjectIDFromHex(c.Query("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid product id", []global.ValidationError{
			{Field: "product_id", Message: "Must be a valid object id", Code: "invalid_format"},
		}))
		return
	}

	inWishlist, err := mongo.ProductInWishlist(c.Request.Context(), CurrentUser(c).ID, productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"product_in_wishlist": inWishlist}))
}
