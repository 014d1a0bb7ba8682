package inventory

import (
	"strconv"
	"time"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"
	"kitchen-backend/internal/request"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateIngredientRequest struct {
	SKU               string           `json:"sku" validate:"required,max=64"`
	Name              string           `json:"name" validate:"required,max=150"`
	Category          *string          `json:"category" validate:"omitempty,max=80"`
	Unit              string           `json:"unit" validate:"required,max=20"`
	CurrentStockLevel *decimal.Decimal `json:"current_stock_level" validate:"required,dec_gte0"`
	MinStockLevel     *decimal.Decimal `json:"min_stock_level" validate:"required,dec_gte0"`
	Status            *string          `json:"status" validate:"omitempty,max=20"`
	StorageLocation   *string          `json:"storage_location" validate:"omitempty,max=120"`
	UnitCost          *decimal.Decimal `json:"unit_cost" validate:"required,dec_gte0"`
	ExpireAt          *time.Time       `json:"expire_at"`
}

type UpdateIngredientRequest struct {
	Name              *string          `json:"name" validate:"omitempty,max=150"`
	Category          *string          `json:"category" validate:"omitempty,max=80"`
	Unit              *string          `json:"unit" validate:"omitempty,max=20"`
	CurrentStockLevel *decimal.Decimal `json:"current_stock_level" validate:"omitempty,dec_gte0"`
	MinStockLevel     *decimal.Decimal `json:"min_stock_level" validate:"omitempty,dec_gte0"`
	Status            *string          `json:"status" validate:"omitempty,max=20"`
	StorageLocation   *string          `json:"storage_location" validate:"omitempty,max=120"`
	UnitCost          *decimal.Decimal `json:"unit_cost" validate:"omitempty,dec_gte0"`
	ExpireAt          *time.Time       `json:"expire_at"`
}

// GET /api/ingredients?page=1&limit=10&search=&category=&status=&low_stock_only=true
func ListIngredientsHandler(svc *Service, maxLimit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := pagination.FromQuery(c, maxLimit)
		if err != nil {
			return err
		}
		f := repository.IngredientFilter{
			Category: c.Query("category"),
			Status:   c.Query("status"),
		}
		if s := c.Query("low_stock_only"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return apperr.Validation("low_stock_only must be true or false")
			}
			f.LowStockOnly = v
		}

		items, total, err := svc.List(c.UserContext(), f, p)
		if err != nil {
			return err
		}
		return c.JSON(pagination.NewEnvelope(items, p, total))
	}
}

// GET /api/ingredients/search/:keyword
func SearchIngredientsHandler(svc *Service, maxLimit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := pagination.FromQuery(c, maxLimit)
		if err != nil {
			return err
		}
		items, total, err := svc.Search(c.UserContext(), c.Params("keyword"), p)
		if err != nil {
			return err
		}
		return c.JSON(pagination.NewEnvelope(items, p, total))
	}
}

// GET /api/ingredients/:sku
func GetIngredientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ing, err := svc.Get(c.UserContext(), c.Params("sku"))
		if err != nil {
			return err
		}
		return c.JSON(ing)
	}
}

// POST /api/ingredients
func CreateIngredientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateIngredientRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}

		ing, err := svc.Create(c.UserContext(), CreateIngredientInput{
			SKU:               body.SKU,
			Name:              body.Name,
			Category:          body.Category,
			Unit:              body.Unit,
			CurrentStockLevel: *body.CurrentStockLevel,
			MinStockLevel:     *body.MinStockLevel,
			Status:            body.Status,
			StorageLocation:   body.StorageLocation,
			UnitCost:          *body.UnitCost,
			ExpireAt:          body.ExpireAt,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(ing)
	}
}

// PUT /api/ingredients/:sku
func UpdateIngredientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateIngredientRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}

		ing, err := svc.Update(c.UserContext(), c.Params("sku"), UpdateIngredientInput(body))
		if err != nil {
			return err
		}
		return c.JSON(ing)
	}
}

// DELETE /api/ingredients/:sku
func DeleteIngredientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params("sku")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"sku": c.Params("sku"), "delete": true})
	}
}

// GET /api/ingredients/:sku/history
func IngredientHistoryHandler(svc *Service, maxLimit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := pagination.FromQuery(c, maxLimit)
		if err != nil {
			return err
		}
		items, total, err := svc.History(c.UserContext(), c.Params("sku"), p)
		if err != nil {
			return err
		}
		return c.JSON(pagination.NewEnvelope(items, p, total))
	}
}
