package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ecomshop/pkg/events"
	"github.com/example/ecomshop/pkg/models"
	"github.com/example/ecomshop/pkg/repository"
	"go.uber.org/zap"
)

type OrderService struct {
	store    repository.Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderService(store repository.Store, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:    store,
		notifier: nopNotifier{},
		logger:   logger.Named("orders"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *OrderService) WithNotifier(n Notifier) *OrderService {
	s.notifier = n
	return s
}

// PlaceOrder turns the user's cart into a pending order. Stock is checked and
// decremented, prices are copied onto the order items and the cart is
// emptied, all in one transaction: on any error nothing is changed.
func (s *OrderService) PlaceOrder(ctx context.Context, user *models.User) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transact(ctx, func(tx repository.Store) error {
		total, err := tx.CartTotal(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to compute cart total: %w", err)
		}
		if total == 0 {
			return ErrEmptyCart
		}

		o := &models.Order{
			UserID:     user.ID,
			OrderedAt:  s.now(),
			TotalPrice: total,
			Status:     models.OrderStatusPending,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		lines, err := tx.CartProducts(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to read cart products: %w", err)
		}
		for _, line := range lines {
			if line.Product.Stock < line.Quantity {
				return insufficientStock(line)
			}
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			if line.Quantity == 0 {
				continue
			}
			ok, err := tx.DecrementStock(ctx, line.Product.ID, line.Quantity)
			if err != nil {
				return fmt.Errorf("failed to decrement stock: %w", err)
			}
			if !ok {
				return insufficientStock(line)
			}
			items = append(items, models.OrderItem{
				OrderID:         o.ID,
				ProductID:       line.Product.ID,
				Quantity:        line.Quantity,
				PriceAtPurchase: line.Product.Price,
			})
		}
		if err := tx.CreateOrderItems(ctx, items); err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		if err := tx.ClearCart(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		o.Items = items
		order = o
		return nil
	})
	if err != nil {
		var stockErr *InsufficientStockError
		switch {
		case errors.Is(err, ErrEmptyCart), errors.As(err, &stockErr):
			s.logger.Info("Order rejected", zap.String("user_id", user.ID), zap.Error(err))
		default:
			s.logger.Error("Failed to place order", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", user.ID),
		zap.Int64("total_price", order.TotalPrice),
	)
	s.notifier.Notify(events.New(events.OrderPlaced, order.ID, user.ID, map[string]interface{}{
		"total_price": order.TotalPrice,
		"items":       len(order.Items),
	}))
	return order, nil
}

func insufficientStock(line models.CartProduct) error {
	return &InsufficientStockError{
		ProductID:   line.Product.ID,
		ProductName: line.Product.Name,
		Requested:   line.Quantity,
		Available:   line.Product.Stock,
	}
}

func (s *OrderService) ListOrderLines(ctx context.Context, user *models.User) ([]models.OrderLine, error) {
	lines, err := s.store.ListOrderLines(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrOrderNotFound
	}
	return lines, nil
}

// GetOrder returns one of the user's orders. Orders owned by someone else
// are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, user *models.User, orderID string) (*models.Order, error) {
	if !models.ValidID(orderID) {
		return nil, ErrOrderNotFound
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.UserID != user.ID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}
