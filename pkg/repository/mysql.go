package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/example/ecomshop/pkg/config"
	"github.com/example/ecomshop/pkg/models"
)

const mysqlDuplicateEntry = 1062

// GormStore implements Store on MySQL, or on SQLite through NewSQLiteStore.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

// GormConfig sends GORM's own logging through log. Lookups that find
// nothing are expected and not logged.
func GormConfig(log *zap.Logger) *gorm.Config {
	return &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

func NewGormStore(cfg *config.MySQLConfig, log *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSNString()), GormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an already opened connection.
func NewGormStoreFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (s *GormStore) Transact(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, inTx: true})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// locked adds FOR UPDATE to reads made inside a transaction.
func (s *GormStore) locked(q *gorm.DB) *gorm.DB {
	if !s.inTx {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return &DuplicateError{Key: duplicateKey(mysqlErr.Message)}
	}
	if key, ok := sqliteDuplicate(err); ok {
		return &DuplicateError{Key: key}
	}
	return err
}

// duplicateKey extracts the index name from
// "Duplicate entry 'x' for key 'users.idx_users_email'".
func duplicateKey(msg string) string {
	i := strings.LastIndex(msg, "for key '")
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
	if dot := strings.LastIndex(key, "."); dot >= 0 {
		key = key[dot+1:]
	}
	return key
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translateError(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *GormStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("hashed_password", hash)
	if res.Error != nil {
		return translateError(res.Error)
	}
	return nil
}

func (s *GormStore) SetAdmin(ctx context.Context, id string, admin bool) error {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return err
	}
	return translateError(s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_admin", admin).Error)
}

// Products

func (s *GormStore) CreateProduct(ctx context.Context, product *models.Product) error {
	return translateError(s.db.WithContext(ctx).Create(product).Error)
}

func (s *GormStore) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, translateError(err)
	}
	return &product, nil
}

func (s *GormStore) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&products).Error; err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

func (s *GormStore) ListProducts(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	var products []*models.Product
	if err := s.db.WithContext(ctx).
		Order("name ASC").
		Offset(offset).
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *GormStore) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	if _, err := s.GetProductByID(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.Price != nil {
		updates["price"] = *update.Price
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, translateError(err)
		}
	}
	return s.GetProductByID(ctx, id)
}

func (s *GormStore) DecrementStock(ctx context.Context, id string, qty int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Carts

func (s *GormStore) GetCartByUser(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, translateError(err)
	}
	return &cart, nil
}

func (s *GormStore) GetOrCreateCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.GetCartByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// A concurrent request may have created it; the unique index on user_id
	// turns that into a no-op and the re-read returns the winner.
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Cart{UserID: userID}).Error; err != nil {
		return nil, translateError(err)
	}
	return s.GetCartByUser(ctx, userID)
}

func (s *GormStore) UpsertCartItem(ctx context.Context, cartID, productID string, qty int64) (*models.CartItem, error) {
	item := models.CartItem{CartID: cartID, ProductID: productID, Quantity: qty}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&item).Error; err != nil {
		return nil, translateError(err)
	}
	return s.getCartItem(ctx, cartID, productID)
}

func (s *GormStore) getCartItem(ctx context.Context, cartID, productID string) (*models.CartItem, error) {
	var item models.CartItem
	if err := s.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error; err != nil {
		return nil, translateError(err)
	}
	return &item, nil
}

func (s *GormStore) SetCartItemQuantity(ctx context.Context, cartID, productID string, qty int64) (*models.CartItem, error) {
	item, err := s.getCartItem(ctx, cartID, productID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(item).Update("quantity", qty).Error; err != nil {
		return nil, err
	}
	item.Quantity = qty
	return item, nil
}

func (s *GormStore) DeleteCartItem(ctx context.Context, cartID, productID string) error {
	return s.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{}).Error
}

func (s *GormStore) ClearCart(ctx context.Context, userID string) error {
	carts := s.db.WithContext(ctx).Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
	return s.db.WithContext(ctx).
		Where("cart_id IN (?)", carts).
		Delete(&models.CartItem{}).Error
}

func (s *GormStore) cartJoin(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("cart_items").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID)
}

func (s *GormStore) ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := s.cartJoin(ctx, userID).
		Select("products.name AS name, cart_items.quantity AS quantity").
		Order("cart_items.created_at ASC, cart_items.id ASC").
		Scan(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *GormStore) CartTotal(ctx context.Context, userID string) (int64, error) {
	var row struct {
		Total int64
	}
	q := s.cartJoin(ctx, userID).
		Select("COALESCE(SUM(products.price * cart_items.quantity), 0) AS total")
	if err := s.locked(q).Scan(&row).Error; err != nil {
		return 0, err
	}
	return row.Total, nil
}

func (s *GormStore) CartProducts(ctx context.Context, userID string) ([]models.CartProduct, error) {
	cart, err := s.GetCartByUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []models.CartItem
	if err := s.locked(s.db.WithContext(ctx).Where("cart_id = ?", cart.ID)).
		Order("created_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	var products []models.Product
	if err := s.locked(s.db.WithContext(ctx).Where("id IN ?", ids)).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]models.CartProduct, 0, len(items))
	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("cart item %s references missing product %s: %w", item.ID, item.ProductID, ErrNotFound)
		}
		out = append(out, models.CartProduct{Product: p, Quantity: item.Quantity})
	}
	return out, nil
}

// Orders

func (s *GormStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return translateError(s.db.WithContext(ctx).Omit("Items").Create(order).Error)
}

func (s *GormStore) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return translateError(s.db.WithContext(ctx).Create(&items).Error)
}

func (s *GormStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

func (s *GormStore) ListOrderLines(ctx context.Context, userID string) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	if err := s.db.WithContext(ctx).
		Table("order_items").
		Select("products.name AS name, order_items.quantity AS quantity, orders.status AS status").
		Joins("JOIN products ON products.id = order_items.product_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ?", userID).
		Order("orders.ordered_at ASC, order_items.id ASC").
		Scan(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}
