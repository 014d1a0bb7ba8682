package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order: purchase order for a single ingredient. The received triple stays
// null until the order is reconciled.
type Order struct {
	ID                uint                `gorm:"primaryKey" json:"id"`
	IngredientID      string              `gorm:"size:64;not null;index" json:"ingredient_id"` // ingredient SKU
	Ingredient        *Ingredient         `gorm:"foreignKey:IngredientID;references:SKU" json:"ingredients,omitempty"`
	QuantityOrdered   decimal.Decimal     `gorm:"type:numeric;not null" json:"quantity_ordered"`
	UnitPriceOrdered  decimal.Decimal     `gorm:"type:numeric;not null" json:"unit_price_ordered"`
	ValueOrdered      decimal.Decimal     `gorm:"type:numeric;not null" json:"value_ordered"`
	QuantityReceived  decimal.NullDecimal `gorm:"type:numeric" json:"quantity_received"`
	UnitPriceReceived decimal.NullDecimal `gorm:"type:numeric" json:"unit_price_received"`
	ValueReceived     decimal.NullDecimal `gorm:"type:numeric" json:"value_received"`
	Status            OrderStatus         `gorm:"size:20;not null;index" json:"status"`
	Notes             string              `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time           `gorm:"index" json:"created_at"`
	CompletedAt       *time.Time          `json:"completed_at"`
	Deleted           bool                `gorm:"not null;default:false;index" json:"delete"`
	Version           uint                `gorm:"not null;default:1" json:"version"`
}
