package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/ecomshop/pkg/events"
	"github.com/example/ecomshop/pkg/models"
	"github.com/example/ecomshop/pkg/repository"
	"go.uber.org/zap"
)

type ProductInput struct {
	Name        string
	Price       int64
	Description string
	Stock       int64
}

type CatalogService struct {
	store    repository.CatalogStore
	pageSize int
	notifier Notifier
	logger   *zap.Logger
}

func NewCatalogService(store repository.CatalogStore, pageSize int, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		store:    store,
		pageSize: pageSize,
		notifier: nopNotifier{},
		logger:   logger.Named("catalog"),
	}
}

func (s *CatalogService) WithNotifier(n Notifier) *CatalogService {
	s.notifier = n
	return s
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return nil, validationError("name is required")
	case in.Price < 0:
		return nil, validationError("price must not be negative")
	case in.Stock < 0:
		return nil, validationError("stock must not be negative")
	}

	existing, err := s.store.GetProductByName(ctx, in.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateName
	}

	product := &models.Product{
		Name:        in.Name,
		Price:       in.Price,
		Description: in.Description,
		Stock:       in.Stock,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	s.notifier.Notify(events.New(events.ProductCreated, product.ID, "", map[string]interface{}{
		"name":  product.Name,
		"price": product.Price,
		"stock": product.Stock,
	}))
	return product, nil
}

// GetByName returns nil without an error when no product has that name.
func (s *CatalogService) GetByName(ctx context.Context, name string) (*models.Product, error) {
	product, err := s.store.GetProductByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}
	return product, nil
}

func (s *CatalogService) GetByID(ctx context.Context, id string) (*models.Product, error) {
	if !models.ValidID(id) {
		return nil, ErrProductNotFound
	}
	product, err := s.store.GetProductByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return product, nil
}

// List returns page number page (1-based) ordered by product name.
func (s *CatalogService) List(ctx context.Context, page int) ([]*models.Product, error) {
	if page < 1 {
		return nil, validationError("page must be at least 1")
	}
	products, err := s.store.ListProducts(ctx, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	if update.Empty() {
		return nil, validationError("nothing to update")
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, validationError("name must not be empty")
		}
		update.Name = &name
	}
	if update.Price != nil && *update.Price < 0 {
		return nil, validationError("price must not be negative")
	}
	if !models.ValidID(id) {
		return nil, ErrProductNotFound
	}

	product, err := s.store.UpdateProduct(ctx, id, update)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrProductNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return nil, ErrDuplicateName
	case err != nil:
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("Product updated", zap.String("product_id", product.ID))
	s.notifier.Notify(events.New(events.ProductUpdated, product.ID, "", map[string]interface{}{
		"name":  product.Name,
		"price": product.Price,
	}))
	return product, nil
}
