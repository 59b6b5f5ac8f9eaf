package models

import (
	"time"

	"gorm.io/gorm"
)

// Product prices are integer minor currency units.
type Product struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Price       int64     `gorm:"not null" json:"price"`
	Description string    `gorm:"type:text" json:"description"`
	Stock       int64     `gorm:"not null;default:0" json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// ProductUpdate carries the optional fields of an admin edit. Stock is not
// editable: it only moves when orders are placed.
type ProductUpdate struct {
	Name        *string
	Price       *int64
	Description *string
}

func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Price == nil && u.Description == nil
}
