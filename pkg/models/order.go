package models

import (
	"time"

	"gorm.io/gorm"
)

const OrderStatusPending = "pending"

type Order struct {
	ID         string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string      `gorm:"type:varchar(36);not null;index" json:"user_id"`
	OrderedAt  time.Time   `gorm:"not null" json:"ordered_at"`
	TotalPrice int64       `gorm:"not null" json:"total_price"`
	Status     string      `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Items      []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = NewID()
	}
	return nil
}

// OrderItem keeps the price the product had when the order was placed.
type OrderItem struct {
	ID              string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID         string `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID       string `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Quantity        int64  `gorm:"not null" json:"quantity"`
	PriceAtPurchase int64  `gorm:"not null" json:"price_at_purchase"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = NewID()
	}
	return nil
}

// OrderLine is the joined (product name, quantity, order status) projection.
type OrderLine struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Status   string `json:"status"`
}
