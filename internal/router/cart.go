package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
)

// AddToCart adds a product to the cart named by cart_code, creating the
// cart when the code is empty and the caller is signed in. Anonymous
// callers must supply a client-generated code.
func AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
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

	cart, err := cartService.AddItem(c.Request.Context(), req.CartCode, productID, req.Quantity, CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := cartService.BuildView(c.Request.Context(), cart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(view))
}

func UpdateCartItem(c *gin.Context) {
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	itemID, err := bson.ObjectIDFromHex(req.ItemID)
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid item id", []global.ValidationError{
			{Field: "item_id", Message: "Must be a valid object id", Code: "invalid_format"},
		}))
		return
	}

	cart, removed, err := cartService.UpdateItemQuantity(c.Request.Context(), itemID, *req.Quantity, CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if removed {
		c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"removed": true}))
		return
	}

	view, err := cartService.BuildView(c.Request.Context(), cart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(view))
}

func DeleteCartItem(c *gin.Context) {
	itemID, err := bson.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid item id", []global.ValidationError{
			{Field: "id", Message: "Must be a valid object id", Code: "invalid_format"},
		}))
		return
	}

	if err := cartService.RemoveItem(c.Request.Context(), itemID, CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"removed": true}))
}

func GetCart(c *gin.Context) {
	cart, err := cartService.GetCart(c.Request.Context(), c.Param("cartCode"), CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := cartService.BuildView(c.Request.Context(), cart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(view))
}

// GetCartStat serves the header badge: cart code plus total item count.
func GetCartStat(c *gin.Context) {
	stat, err := cartService.Stat(c.Request.Context(), c.Query("cart_code"), CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(stat))
}

func ProductInCart(c *gin.Context) {
	productID, err := bson.ObjectIDFromHex(c.Query("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid product id", []global.ValidationError{
			{Field: "product_id", Message: "Must be a valid object id", Code: "invalid_format"},
		}))
		return
	}

	inCart, err := cartService.ProductInCart(c.Request.Context(), c.Query("cart_code"), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"product_in_cart": inCart}))
}
