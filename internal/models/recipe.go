package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe: a dish. Cost is entered by hand, not derived from ingredients.
type Recipe struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:150;not null;index" json:"name"`
	Category    *string         `gorm:"size:80;index" json:"category"`
	Cost        decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"cost"`
	Active      bool            `gorm:"not null" json:"active"`
	Deleted     bool            `gorm:"not null;default:false;index" json:"delete"`
	LastUpdated time.Time       `gorm:"not null" json:"last_updated"`
}

// RecipeIngredient links a recipe to an ingredient with the quantity one
// portion uses.
type RecipeIngredient struct {
	RecipeID      uint            `gorm:"primaryKey" json:"recipe_id"`
	IngredientSKU string          `gorm:"primaryKey;size:64" json:"ingredient_sku"`
	QuantityUsed  decimal.Decimal `gorm:"type:numeric;not null" json:"quantity_being_used"`
	Ingredient    *Ingredient     `gorm:"foreignKey:IngredientSKU;references:SKU" json:"-"`
}

func (RecipeIngredient) TableName() string { return "recipes_ingredients" }

// RecipeIngredientLine is one row of a recipe's bill of materials.
type RecipeIngredientLine struct {
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Unit     string          `json:"unit"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Quantity decimal.Decimal `json:"quantity"`
}
