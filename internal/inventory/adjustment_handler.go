package inventory

import (
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/request"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateAdjustmentRequest struct {
	IngredientSKU  string                `json:"ingredient_sku" validate:"required,max=64"`
	Type           models.AdjustmentType `json:"adjustment_type" validate:"required,oneof=waste received manual_count recipe_usage"`
	QuantityChange *decimal.Decimal      `json:"quantity_change" validate:"required,dec_nonzero"`
	Reason         string                `json:"reason" validate:"max=255"`
	WasteCategory  *string               `json:"waste_category" validate:"omitempty,max=50"`
	Notes          *string               `json:"notes"`
	EvidenceURL    *string               `json:"evidence_url" validate:"omitempty,max=500"`
	CostImpact     *decimal.Decimal      `json:"cost_impact"`
	OrderID        *uint                 `json:"order_id"`
	RecipeID       *uint                 `json:"recipe_id"`
}

type AdjustmentResponse struct {
	Ingredient *models.Ingredient      `json:"ingredient"`
	Adjustment *models.StockAdjustment `json:"adjustment"`
}

// POST /api/ingredients/adjust
func AdjustStockHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateAdjustmentRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}

		ing, adj, err := svc.Adjust(c.UserContext(), AdjustmentInput{
			SKU:            body.IngredientSKU,
			Type:           body.Type,
			QuantityChange: *body.QuantityChange,
			Reason:         body.Reason,
			WasteCategory:  body.WasteCategory,
			Notes:          body.Notes,
			EvidenceURL:    body.EvidenceURL,
			CostImpact:     body.CostImpact,
			OrderID:        body.OrderID,
			RecipeID:       body.RecipeID,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(AdjustmentResponse{Ingredient: ing, Adjustment: adj})
	}
}

type AdjustIngredientStockRequest struct {
	Quantity *decimal.Decimal `json:"quantity" validate:"required,dec_nonzero"`
}

// POST /api/ingredients/:sku/adjust
// Quick stock correction; the change is still logged as an adjustment.
func AdjustIngredientStockHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AdjustIngredientStockRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		ing, err := svc.AdjustStock(c.UserContext(), c.Params("sku"), *body.Quantity)
		if err != nil {
			return err
		}
		return c.JSON(ing)
	}
}
