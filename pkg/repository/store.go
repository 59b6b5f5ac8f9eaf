package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ecomshop/pkg/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// DuplicateError names the unique key that rejected a write.
type DuplicateError struct {
	Key string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate record for key %q", e.Key)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetAdmin(ctx context.Context, id string, admin bool) error
}

type CatalogStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	// GetProductByName returns (nil, nil) when no product has that name.
	GetProductByName(ctx context.Context, name string) (*models.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]*models.Product, error)
	UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error)
	// DecrementStock subtracts qty only if enough stock is left and reports
	// whether the row was changed.
	DecrementStock(ctx context.Context, id string, qty int64) (bool, error)
}

type CartStore interface {
	GetCartByUser(ctx context.Context, userID string) (*models.Cart, error)
	GetOrCreateCart(ctx context.Context, userID string) (*models.Cart, error)
	// UpsertCartItem adds qty to the existing line for productID or creates it.
	UpsertCartItem(ctx context.Context, cartID, productID string, qty int64) (*models.CartItem, error)
	SetCartItemQuantity(ctx context.Context, cartID, productID string, qty int64) (*models.CartItem, error)
	DeleteCartItem(ctx context.Context, cartID, productID string) error
	ClearCart(ctx context.Context, userID string) error
	ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error)
	// CartTotal is the sum of price * quantity over the user's cart lines, 0 when empty.
	CartTotal(ctx context.Context, userID string) (int64, error)
	CartProducts(ctx context.Context, userID string) ([]models.CartProduct, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrderLines(ctx context.Context, userID string) ([]models.OrderLine, error)
}

// Store is the relational data store. Reads made through the tx passed to
// Transact lock the rows they return until the transaction ends.
type Store interface {
	UserStore
	CatalogStore
	CartStore
	OrderStore

	// Transact commits when fn returns nil and rolls back on error or panic.
	Transact(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close() error
}
