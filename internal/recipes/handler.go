package recipes

import (
	"strconv"
	"strings"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"
	"kitchen-backend/internal/request"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateRecipeRequest struct {
	Name     string           `json:"name" validate:"required,max=150"`
	Category *string          `json:"category" validate:"omitempty,max=80"`
	Cost     *decimal.Decimal `json:"cost" validate:"required,dec_gte0"`
	Active   *bool            `json:"active"`
}

type UpdateRecipeRequest struct {
	Name     *string          `json:"name" validate:"omitempty,max=150"`
	Category *string          `json:"category" validate:"omitempty,max=80"`
	Cost     *decimal.Decimal `json:"cost" validate:"omitempty,dec_gte0"`
	Active   *bool            `json:"active"`
}

type AddIngredientRequest struct {
	IngredientSKU string           `json:"ingredient_sku" validate:"required,max=64"`
	Quantity      *decimal.Decimal `json:"quantity_being_used" validate:"required,dec_gt0"`
}

type SetQuantityRequest struct {
	Quantity *decimal.Decimal `json:"quantity_being_used" validate:"required,dec_gt0"`
}

func parseID(c *fiber.Ctx, key string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("recipe id must be a positive integer")
	}
	return uint(id), nil
}

// parseActive reads the tri-state active filter: "true", "false" or
// "all"/empty for both.
func parseActive(v string) (*bool, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" || v == "all" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Validation("active must be true, false or all")
	}
	return &b, nil
}

// GET /api/recipes?page=1&limit=10&search=soup&active=true&category=Mains
func ListRecipesHandler(svc *Service, maxLimit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := pagination.FromQuery(c, maxLimit)
		if err != nil {
			return err
		}
		active, err := parseActive(c.Query("active"))
		if err != nil {
			return err
		}
		f := repository.RecipeFilter{Active: active}
		if cat := c.Query("category"); cat != "" && !strings.EqualFold(cat, "all") {
			f.Category = cat
		}
		items, total, err := svc.List(c.UserContext(), f, p)
		if err != nil {
			return err
		}
		return c.JSON(pagination.NewEnvelope(items, p, total))
	}
}

// GET /api/recipes/:id
func GetRecipeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		rec, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(rec)
	}
}

// POST /api/recipes
func CreateRecipeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateRecipeRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		rec, err := svc.Create(c.UserContext(), CreateRecipeInput{
			Name:     body.Name,
			Category: body.Category,
			Cost:     *body.Cost,
			Active:   body.Active,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	}
}

// PUT /api/recipes/:id
func UpdateRecipeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateRecipeRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		rec, err := svc.Update(c.UserContext(), id, UpdateRecipeInput(body))
		if err != nil {
			return err
		}
		return c.JSON(rec)
	}
}

// DELETE /api/recipes/:id
func DeleteRecipeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.SoftDelete(c.UserContext(), id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/recipes/ingredients/:recipe_id
func ListRecipeIngredientsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "recipe_id")
		if err != nil {
			return err
		}
		res, err := svc.ListIngredients(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// POST /api/recipes/:id/ingredients
func AddRecipeIngredientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		var body AddIngredientRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		link, err := svc.AddIngredient(c.UserContext(), id, body.IngredientSKU, *body.Quantity)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(link)
	}
}

// PUT /api/recipes/:id/ingredients/:sku
func SetRecipeIngredientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		var body SetQuantityRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		link, err := svc.SetIngredientQuantity(c.UserContext(), id, c.Params("sku"), *body.Quantity)
		if err != nil {
			return err
		}
		return c.JSON(link)
	}
}

// DELETE /api/recipes/:id/ingredients/:sku
func RemoveRecipeIngredientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.RemoveIngredient(c.UserContext(), id, c.Params("sku")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/recipes/:id/cost
func RecipeCostHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		res, err := svc.Cost(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// GET /api/ingredients/recipes/:sku
func RecipesUsingIngredientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.ListRecipesUsingIngredient(c.UserContext(), c.Params("sku"))
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}
