package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Quantities and money go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	IngredientStatusOK  = "ok"
	IngredientStatusLow = "low"
	IngredientStatusOut = "out"
)

// Ingredient: a stock-keeping unit in the kitchen. Never hard-deleted.
type Ingredient struct {
	SKU               string          `gorm:"primaryKey;size:64" json:"sku"`
	Name              string          `gorm:"size:150;not null;index" json:"name"`
	Category          *string         `gorm:"size:80;index" json:"category"`
	Unit              string          `gorm:"size:20;not null" json:"unit"` // kg, l, pcs ...
	CurrentStockLevel decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"current_stock_level"`
	MinStockLevel     decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"min_stock_level"`
	Status            string          `gorm:"size:20;index" json:"status"`
	StorageLocation   *string         `gorm:"size:120" json:"storage_location"`
	UnitCost          decimal.Decimal `gorm:"type:numeric;not null" json:"unit_cost"`
	Value             decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"value"` // current_stock_level × unit_cost
	ExpireAt          *time.Time      `json:"expire_at"`
	LastReceived      *time.Time      `json:"last_received"`
	LastUpdated       time.Time       `gorm:"not null" json:"last_updated"`
	Deleted           bool            `gorm:"not null;default:false;index" json:"delete"`
}

// DeriveIngredientStatus: out at or below zero, low under the reorder threshold.
func DeriveIngredientStatus(stock, min decimal.Decimal) string {
	switch {
	case stock.LessThanOrEqual(decimal.Zero):
		return IngredientStatusOut
	case stock.LessThan(min):
		return IngredientStatusLow
	default:
		return IngredientStatusOK
	}
}
