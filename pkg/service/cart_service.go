package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ecomshop/pkg/models"
	"github.com/example/ecomshop/pkg/repository"
	"go.uber.org/zap"
)

type CartService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewCartService(store repository.Store, logger *zap.Logger) *CartService {
	return &CartService{store: store, logger: logger.Named("cart")}
}

// AddItem adds quantity units of a product to the user's cart, creating the
// cart or the line as needed. The stock check is advisory: stock is only
// reserved when the order is placed.
func (s *CartService) AddItem(ctx context.Context, user *models.User, productID string, quantity int64) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, validationError("quantity must be positive")
	}
	if !models.ValidID(productID) {
		return nil, ErrProductNotFound
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product.Stock < quantity {
		return nil, &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   quantity,
			Available:   product.Stock,
		}
	}

	cart, err := s.store.GetOrCreateCart(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	item, err := s.store.UpsertCartItem(ctx, cart.ID, product.ID, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	return item, nil
}

// SetItemQuantity overwrites the quantity of an existing line. Zero keeps
// the line in place.
func (s *CartService) SetItemQuantity(ctx context.Context, user *models.User, productID string, quantity int64) (*models.CartItem, error) {
	if quantity < 0 {
		return nil, validationError("quantity must not be negative")
	}

	cart, err := s.store.GetCartByUser(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	item, err := s.store.SetCartItemQuantity(ctx, cart.ID, productID, quantity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, user *models.User, productID string) error {
	cart, err := s.store.GetCartByUser(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get cart: %w", err)
	}
	if err := s.store.DeleteCartItem(ctx, cart.ID, productID); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

func (s *CartService) ListItems(ctx context.Context, user *models.User) ([]models.CartLine, error) {
	lines, err := s.store.ListCartLines(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	return lines, nil
}

func (s *CartService) TotalPrice(ctx context.Context, user *models.User) (int64, error) {
	total, err := s.store.CartTotal(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute cart total: %w", err)
	}
	if total == 0 {
		return 0, ErrEmptyCart
	}
	return total, nil
}

func (s *CartService) Clear(ctx context.Context, user *models.User) error {
	if err := s.store.ClearCart(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
