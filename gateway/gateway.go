package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/example/ecomshop/pkg/config"
	"github.com/example/ecomshop/pkg/service"
)

type Services struct {
	Users   *service.UserService
	Catalog *service.CatalogService
	Carts   *service.CartService
	Orders  *service.OrderService
}

type Gateway struct {
	config   *config.Config
	services Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.Config, services Services, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	g := &Gateway{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   router,
		server: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authRoutes := g.router.Group("/auth")
	{
		authRoutes.POST("/signup", g.signup)
		authRoutes.POST("/token", g.token)
	}

	products := g.router.Group("/products")
	{
		products.GET("", g.authRequired(), g.listProducts)
		products.GET("/:name", g.getProductByName)
		products.POST("", g.authRequired(), g.adminRequired(), g.createProduct)
		products.PATCH("/:product_id", g.authRequired(), g.adminRequired(), g.updateProduct)
	}

	cart := g.router.Group("/cart", g.authRequired())
	{
		cart.GET("/", g.listCart)
		cart.GET("/total", g.cartTotal)
		cart.POST("/item", g.addCartItem)
		cart.PATCH("/item/:product_id", g.updateCartItem)
		cart.DELETE("/item/:product_id", g.removeCartItem)
	}

	orders := g.router.Group("/orders", g.authRequired())
	{
		orders.POST("/", g.placeOrder)
		orders.GET("/orders", g.listOrders)
		orders.GET("/:order_id", g.getOrder)
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start serves until Shutdown is called, which may happen from another
// goroutine at any time, even before Start.
func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}
