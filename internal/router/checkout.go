package router

import (
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/payment"
)

type createCheckoutRequest struct {
	CartCode string `json:"cart_code" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

// CreateCheckoutSession mints a hosted payment session for the cart and
// returns its redirect URL.
func CreateCheckoutSession(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := checkoutEngine.CreateCheckout(c.Request.Context(), req.CartCode, req.Email, CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{
		"session_id":   session.ID,
		"checkout_url": session.URL,
	}))
}

// StripeWebhook receives payment confirmations. A non-2xx response makes
// the provider redeliver, so fulfillment errors must surface as 500 and
// only signature failures as 400.
func StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Failed to read payload", nil))
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if secret == "" {
		log.Printf("Error: STRIPE_WEBHOOK_SECRET is not configured, rejecting webhook")
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Webhook not configured", nil))
		return
	}

	event, err := payment.ConstructEvent(payload, c.GetHeader(payment.SignatureHeader), secret, payment.DefaultTolerance)
	if err != nil {
		log.Printf("Warning: Rejected webhook with bad signature: %v", err)
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid signature", nil))
		return
	}

	if err := checkoutEngine.HandleConfirmation(c.Request.Context(), event); err != nil {
		log.Printf("Error fulfilling webhook event %s: %v", event.ID, err)
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Fulfillment failed", nil))
		return
	}

	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"received": true}))
}
