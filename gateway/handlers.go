package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/ecomshop/pkg/models"
	"github.com/example/ecomshop/pkg/service"
)

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"useremail" binding:"required,email"`
	Phone    string `json:"userphone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"useremail"`
	Phone    string `json:"userphone"`
	IsAdmin  bool   `json:"is_admin"`
}

// tokenRequest follows the OAuth2 password form; username carries the email.
type tokenRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type productRequest struct {
	Name        string `json:"name" binding:"required"`
	Price       *int64 `json:"price" binding:"required,min=0"`
	Description string `json:"description"`
	Stock       *int64 `json:"stock" binding:"omitempty,min=0"`
}

type productUpdateRequest struct {
	Name        *string `json:"name"`
	Price       *int64  `json:"price" binding:"omitempty,min=0"`
	Description *string `json:"description"`
}

type productDisplay struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

type quantityRequest struct {
	Quantity *int64 `json:"quantity" binding:"required,min=0"`
}

func bindError(err error) error {
	return fmt.Errorf("%w: %s", service.ErrValidation, err.Error())
}

// Auth

func (g *Gateway) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.writeError(c, bindError(err))
		return
	}

	user, err := g.services.Users.Signup(c.Request.Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		g.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Phone:    user.Phone,
		IsAdmin:  user.IsAdmin,
	})
}

func (g *Gateway) token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		g.writeError(c, bindError(err))
		return
	}

	token, err := g.services.Users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// Products

func (g *Gateway) listProducts(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		g.writeError(c, bindError(errors.New("page must be an integer")))
		return
	}

	products, err := g.services.Catalog.List(c.Request.Context(), page)
	if err != nil {
		g.writeError(c, err)
		return
	}

	out := make([]productDisplay, 0, len(products))
	for _, p := range products {
		out = append(out, productDisplay{ID: p.ID, Name: p.Name, Price: p.Price, Description: p.Description})
	}
	c.JSON(http.StatusOK, out)
}

func (g *Gateway) getProductByName(c *gin.Context) {
	product, err := g.services.Catalog.GetByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	if product == nil {
		g.writeError(c, service.ErrProductNotFound)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.writeError(c, bindError(err))
		return
	}

	in := service.ProductInput{Name: req.Name, Price: *req.Price, Description: req.Description}
	if req.Stock != nil {
		in.Stock = *req.Stock
	}
	product, err := g.services.Catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		g.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Successfully created product. Name:" + product.Name,
		"product_id": product.ID,
	})
}

func (g *Gateway) updateProduct(c *gin.Context) {
	var req productUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.writeError(c, bindError(err))
		return
	}

	product, err := g.services.Catalog.UpdateProduct(c.Request.Context(), c.Param("product_id"), models.ProductUpdate{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Cart

func (g *Gateway) listCart(c *gin.Context) {
	lines, err := g.services.Carts.ListItems(c.Request.Context(), currentUser(c))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (g *Gateway) cartTotal(c *gin.Context) {
	total, err := g.services.Carts.TotalPrice(c.Request.Context(), currentUser(c))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_price": total})
}

func (g *Gateway) addCartItem(c *gin.Context) {
	productID := c.Query("product_id")
	if productID == "" {
		g.writeError(c, bindError(errors.New("product_id is required")))
		return
	}
	quantity, err := strconv.ParseInt(c.Query("quantity"), 10, 64)
	if err != nil {
		g.writeError(c, bindError(errors.New("quantity must be an integer")))
		return
	}

	item, err := g.services.Carts.AddItem(c.Request.Context(), currentUser(c), productID, quantity)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Added product to cart successfully",
		"quantity": item.Quantity,
	})
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.writeError(c, bindError(err))
		return
	}

	item, err := g.services.Carts.SetItemQuantity(c.Request.Context(), currentUser(c), c.Param("product_id"), *req.Quantity)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Item quantity set to %d", item.Quantity)})
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	if err := g.services.Carts.RemoveItem(c.Request.Context(), currentUser(c), c.Param("product_id")); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

// Orders

func (g *Gateway) placeOrder(c *gin.Context) {
	order, err := g.services.Orders.PlaceOrder(c.Request.Context(), currentUser(c))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Order placed successfully",
		"order_id": order.ID,
	})
}

func (g *Gateway) listOrders(c *gin.Context) {
	lines, err := g.services.Orders.ListOrderLines(c.Request.Context(), currentUser(c))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.services.Orders.GetOrder(c.Request.Context(), currentUser(c), c.Param("order_id"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
