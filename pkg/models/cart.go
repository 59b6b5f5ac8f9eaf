package models

import (
	"time"

	"gorm.io/gorm"
)

// Cart is unique per user.
type Cart struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"user_id"`
	Items     []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Cart) TableName() string {
	return "carts"
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}

// CartItem is unique per (cart, product).
type CartItem struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CartID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_product;index" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = NewID()
	}
	return nil
}

// CartLine is the joined (product name, quantity) projection of a cart item.
type CartLine struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// CartProduct pairs a cart item's quantity with the live product row.
type CartProduct struct {
	Product  Product
	Quantity int64
}
