package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/models"
	"github.com/nextshop/commerce-api/pkg/mongo"
)

func GetProductReviews(c *gin.Context) {
	productID, err := bson.ObjectIDFromHex(c.Query("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid product id", []global.ValidationError{
			{Field: "product_id", Message: "Must be a valid object id", Code: "invalid_format"},
		}))
		return
	}

	reviews, err := mongo.ListReviewsForProduct(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(reviews))
}

// AddReview creates the caller's review for a product. One review per
// user per product; a second attempt conflicts.
func AddReview(c *gin.Context) {
	var req models.AddReviewRequest
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

	review := &models.Review{
		ProductID: productID,
		UserID:    CurrentUser(c).ID,
		Rating:    req.Rating,
		Review:    req.Review,
	}
	review.SetTimestamps()

	created, err := mongo.CreateReview(ctx, review)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.SuccessResponse(created))
}

func UpdateReview(c *gin.Context) {
	reviewID, ok := reviewIDParam(c)
	if !ok {
		return
	}

	var req models.UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	existing, ok := ownedReview(c, reviewID)
	if !ok {
		return
	}

	text := req.Review
	updated, err := mongo.UpdateReview(c.Request.Context(), existing.ID, req.Rating, &text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(updated))
}

func DeleteReview(c *gin.Context) {
	reviewID, ok := reviewIDParam(c)
	if !ok {
		return
	}

	existing, ok := ownedReview(c, reviewID)
	if !ok {
		return
	}

	if err := mongo.DeleteReview(c.Request.Context(), existing.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"deleted": true}))
}

func reviewIDParam(c *gin.Context) (bson.ObjectID, bool) {
	reviewID, err := bson.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid review id", []global.ValidationError{
			{Field: "id", Message: "Must be a valid object id", Code: "invalid_format"},
		}))
		return bson.ObjectID{}, false
	}
	return reviewID, true
}

// ownedReview loads the review and enforces that the caller wrote it.
func ownedReview(c *gin.Context, reviewID bson.ObjectID) (*models.Review, bool) {
	review, err := mongo.GetReviewByID(c.Request.Context(), reviewID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if review.UserID != CurrentUser(c).ID {
		c.JSON(http.StatusForbidden, global.ErrorResponse("You can only modify your own reviews", nil))
		return nil, false
	}
	return review, true
}
