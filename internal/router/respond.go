package router

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/mongo"
)

func statusForReason(reason string) int {
	switch reason {
	case "not_found":
		return http.StatusNotFound
	case "forbidden":
		return http.StatusForbidden
	case "conflict":
		return http.StatusConflict
	case "validation_error", "insufficient_stock":
		return http.StatusBadRequest
	case "provider_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError translates a service error into the standard envelope.
// 5xx causes are logged but never echoed back to the client.
func respondError(c *gin.Context, err error) {
	reason := global.ReasonCode(err)
	status := statusForReason(reason)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		message = "Internal server error"
	}

	c.JSON(status, global.ErrorResponse(message, []global.ValidationError{
		{Message: message, Code: reason},
	}))
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", []global.ValidationError{
		{Field: "body", Message: err.Error(), Code: "json_parse_error"},
	}))
}

func HealthCheck(c *gin.Context) {
	db := mongo.GetDatabase()
	if err := db.Client().Ping(c, nil); err != nil {
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Database connection failed", nil))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]string{"status": "OK", "database": "Connected"}))
}
