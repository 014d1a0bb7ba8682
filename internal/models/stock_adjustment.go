package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdjustmentType string

const (
	AdjustmentWaste       AdjustmentType = "waste"
	AdjustmentReceived    AdjustmentType = "received"
	AdjustmentManualCount AdjustmentType = "manual_count"
	AdjustmentRecipeUsage AdjustmentType = "recipe_usage"
)

func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentWaste, AdjustmentReceived, AdjustmentManualCount, AdjustmentRecipeUsage:
		return true
	}
	return false
}

// StockAdjustment: append-only audit record of one stock delta.
type StockAdjustment struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	IngredientSKU  string          `gorm:"size:64;not null;index" json:"ingredient_sku"`
	Type           AdjustmentType  `gorm:"size:20;not null;index" json:"adjustment_type"`
	QuantityChange decimal.Decimal `gorm:"type:numeric;not null" json:"quantity_change"` // signed
	StockBefore    decimal.Decimal `gorm:"type:numeric;not null" json:"stock_before"`
	StockAfter     decimal.Decimal `gorm:"type:numeric;not null" json:"stock_after"`
	Reason         string          `gorm:"size:255;not null" json:"reason"`
	WasteCategory  *string         `gorm:"size:50" json:"waste_category"`
	Notes          *string         `gorm:"type:text" json:"notes"`
	EvidenceURL    *string         `gorm:"size:500" json:"evidence_url"`
	CostImpact     decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"cost_impact"`
	OrderID        *uint           `gorm:"index" json:"order_id"`
	RecipeID       *uint           `gorm:"index" json:"recipe_id"`
	ActorID        *string         `gorm:"size:64" json:"actor_id"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
}
