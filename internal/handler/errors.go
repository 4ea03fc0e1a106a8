package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/service"
)

// writeError maps service errors to status codes. Anything unrecognised is
// reported as a generic 500 and attached to the gin context for logging.
func writeError(c *gin.Context, err error) {
	var (
		stockErr   *service.InsufficientStockError
		missingErr *service.ProductNotFoundError
		validErr   *service.ValidationError
	)

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     stockErr.Error(),
			"productId": stockErr.ProductID,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.As(err, &missingErr):
		c.JSON(http.StatusNotFound, gin.H{"error": missingErr.Error(), "productId": missingErr.ProductID})
	case errors.As(err, &validErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validErr.Error(), "field": validErr.Field})
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrCartItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrPaymentProcessor):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor unavailable"})
	case errors.Is(err, service.ErrUnsupportedProvider),
		errors.Is(err, service.ErrInvalidWebhook),
		errors.Is(err, service.ErrOrderNotPayable):
		c.JSON(http.StatusBadRequest, gin.H{"error": rootMessage(err)})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, service.ErrProductExists),
		errors.Is(err, service.ErrCategoryExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func rootMessage(err error) string {
	for _, sentinel := range []error{service.ErrUnsupportedProvider, service.ErrInvalidWebhook, service.ErrOrderNotPayable} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
