package gateway

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/ecomshop/pkg/models"
	"github.com/example/ecomshop/pkg/service"
)

const userKey = "user"

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// authRequired resolves the bearer token and stores the user in the context.
func (g *Gateway) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			g.abortWithError(c, service.ErrUnauthorized)
			return
		}

		user, err := g.services.Users.ResolveUser(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			g.abortWithError(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// adminRequired must run after authRequired.
func (g *Gateway) adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := g.services.Users.RequireAdmin(currentUser(c)); err != nil {
			g.abortWithError(c, err)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
