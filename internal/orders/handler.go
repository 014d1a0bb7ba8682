package orders

import (
	"strconv"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"
	"kitchen-backend/internal/request"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	IngredientID     string              `json:"ingredient_id" validate:"required,max=64"`
	QuantityOrdered  *decimal.Decimal    `json:"quantity_ordered" validate:"required"`
	UnitPriceOrdered *decimal.Decimal    `json:"unit_price_ordered" validate:"required"`
	ValueOrdered     *decimal.Decimal    `json:"value_ordered"`
	Status           *models.OrderStatus `json:"status" validate:"omitempty,oneof=pending confirmed completed cancelled"`
	Notes            string              `json:"notes"`
}

type UpdateOrderRequest struct {
	IngredientID     *string             `json:"ingredient_id" validate:"omitempty,max=64"`
	QuantityOrdered  *decimal.Decimal    `json:"quantity_ordered"`
	UnitPriceOrdered *decimal.Decimal    `json:"unit_price_ordered"`
	ValueOrdered     *decimal.Decimal    `json:"value_ordered"`
	Status           *models.OrderStatus `json:"status" validate:"omitempty,oneof=pending confirmed completed cancelled"`
	Notes            *string             `json:"notes"`
	Version          *uint               `json:"version"`
}

type ReconcileAdjustmentRequest struct {
	OrderID              uint             `json:"order_id" validate:"required"`
	NewQuantityReceived  *decimal.Decimal `json:"new_quantity_received" validate:"required"`
	NewUnitPriceReceived *decimal.Decimal `json:"new_unit_price_received" validate:"required"`
	Reason               string           `json:"reason" validate:"max=255"`
}

type ReconcileRequest struct {
	Adjustments []ReconcileAdjustmentRequest `json:"adjustments" validate:"required,min=1,dive"`
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("order id must be a positive integer")
	}
	return uint(id), nil
}

// GET /api/orders?page=1&limit=10&status=pending&ingredient_id=FLR-1
func ListOrdersHandler(svc *Service, maxLimit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := pagination.FromQuery(c, maxLimit)
		if err != nil {
			return err
		}
		f := repository.OrderFilter{
			Status:       models.OrderStatus(c.Query("status")),
			IngredientID: c.Query("ingredient_id"),
		}
		items, total, err := svc.List(c.UserContext(), f, p)
		if err != nil {
			return err
		}
		return c.JSON(pagination.NewEnvelope(items, p, total))
	}
}

// GET /api/orders/ingredient/:sku?sort=desc
func ListOrdersByIngredientHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.ListByIngredient(c.UserContext(), c.Params("sku"), c.Query("sort"))
		if err != nil {
			return err
		}
		return c.JSON(items)
	}
}

// GET /api/orders/:id
func GetOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		o, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(o)
	}
}

// POST /api/orders
func CreateOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		o, err := svc.Create(c.UserContext(), CreateOrderInput{
			IngredientID:     body.IngredientID,
			QuantityOrdered:  *body.QuantityOrdered,
			UnitPriceOrdered: *body.UnitPriceOrdered,
			ValueOrdered:     body.ValueOrdered,
			Status:           body.Status,
			Notes:            body.Notes,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(o)
	}
}

// PUT /api/orders/:id
func UpdateOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var body UpdateOrderRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		o, err := svc.Update(c.UserContext(), id, UpdateOrderInput(body))
		if err != nil {
			return err
		}
		return c.JSON(o)
	}
}

// DELETE /api/orders/:id
func DeleteOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		if err := svc.SoftDelete(c.UserContext(), id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/orders/:id/reconcile
func ReconcileOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var body ReconcileRequest
		if err := request.Bind(c, &body); err != nil {
			return err
		}
		batch := make([]ReceivedAdjustment, 0, len(body.Adjustments))
		for _, a := range body.Adjustments {
			batch = append(batch, ReceivedAdjustment{
				OrderID:              a.OrderID,
				NewQuantityReceived:  *a.NewQuantityReceived,
				NewUnitPriceReceived: *a.NewUnitPriceReceived,
				Reason:               a.Reason,
			})
		}
		o, err := svc.Reconcile(c.UserContext(), id, batch)
		if err != nil {
			return err
		}
		return c.JSON(o)
	}
}
