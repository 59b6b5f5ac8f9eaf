package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/ecomshop/pkg/service"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrDuplicatePhone),
		errors.Is(err, service.ErrDuplicateName),
		errors.Is(err, service.ErrBadCredentials):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrEmptyCart):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (g *Gateway) writeError(c *gin.Context, err error) {
	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "insufficient_stock",
			"message":         "Not enough stock for " + stockErr.ProductName,
			"product_id":      stockErr.ProductID,
			"product_name":    stockErr.ProductName,
			"requested":       stockErr.Requested,
			"available_stock": stockErr.Available,
		})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (g *Gateway) abortWithError(c *gin.Context, err error) {
	g.writeError(c, err)
	c.Abort()
}
