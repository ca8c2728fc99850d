package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const OrderStatusPlaced = "PLACED"

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	Name        string          `gorm:"not null"                    json:"name"`
	Description string          `json:"description"`
	Category    string          `gorm:"index"                       json:"category"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock       uint            `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Order struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	UserID      uint            `gorm:"index;not null"              json:"user_id"`
	Status      string          `gorm:"not null"                    json:"status"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

type OrderItem struct {
	ID      uint `gorm:"primaryKey;autoIncrement"    json:"id"`
	OrderID uint `gorm:"index;not null"              json:"order_id"`
	// ProductID is a weak reference: the product may be edited or
	// deleted later without touching historical items.
	ProductID uint            `gorm:"not null"                    json:"product_id"`
	Quantity  uint            `gorm:"not null;check:quantity>0"   json:"quantity"`
	PriceEach decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price_each"`
}

type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"unique;not null"          json:"username"`
	Role     string `gorm:"not null"                 json:"role"`
}
