package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/audit"
	"kitchen-backend/internal/inventory"
	"kitchen-backend/internal/metrics"
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"
	"kitchen-backend/internal/valuation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockLedger posts received goods to the ingredient's stock.
type StockLedger interface {
	ApplyAdjustment(ctx context.Context, tx repository.Store, in inventory.AdjustmentInput) (*models.Ingredient, *models.StockAdjustment, error)
	Announce(ctx context.Context, ing *models.Ingredient, adj *models.StockAdjustment)
}

type Service struct {
	store  repository.Store
	ledger StockLedger
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store repository.Store, ledger StockLedger, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		logger: logger.Named("orders"),
		now:    time.Now,
	}
}

type CreateOrderInput struct {
	IngredientID     string
	QuantityOrdered  decimal.Decimal
	UnitPriceOrdered decimal.Decimal
	// ValueOrdered nil means quantity × unit price.
	ValueOrdered *decimal.Decimal
	Status       *models.OrderStatus
	Notes        string
}

// UpdateOrderInput: nil fields are left untouched. Version, when set, must
// match the stored version.
type UpdateOrderInput struct {
	IngredientID     *string
	QuantityOrdered  *decimal.Decimal
	UnitPriceOrdered *decimal.Decimal
	ValueOrdered     *decimal.Decimal
	Status           *models.OrderStatus
	Notes            *string
	Version          *uint
}

// ReceivedAdjustment overwrites an order's received triple.
type ReceivedAdjustment struct {
	OrderID              uint
	NewQuantityReceived  decimal.Decimal
	NewUnitPriceReceived decimal.Decimal
	Reason               string
}

// ValidateOrdered applies the ordered-triple business rules.
func ValidateOrdered(quantity, unitPrice, value decimal.Decimal) error {
	switch {
	case !quantity.IsPositive():
		return apperr.Validation("quantity must be positive")
	case unitPrice.IsNegative():
		return apperr.Validation("unit price must be >= 0")
	case value.IsNegative():
		return apperr.Validation("value must be >= 0")
	case !valuation.Consistent(value, quantity, unitPrice):
		return apperr.Validation("value inconsistent with quantity × price")
	}
	return nil
}

func (s *Service) List(ctx context.Context, f repository.OrderFilter, p pagination.Params) ([]models.Order, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("status must be one of pending, confirmed, completed, cancelled")
	}
	items, total, err := s.store.Orders().List(ctx, f, p)
	if err != nil {
		return nil, 0, apperr.Upstream("listing orders", err)
	}
	return items, total, nil
}

// ListByIngredient returns every live order of one ingredient, sorted by
// creation time in the given direction ("asc" or "desc").
func (s *Service) ListByIngredient(ctx context.Context, sku, direction string) ([]models.Order, error) {
	var newestFirst bool
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "", "desc":
		newestFirst = true
	case "asc":
	default:
		return nil, apperr.Validation("sort must be asc or desc")
	}
	if _, err := s.store.Ingredients().Get(ctx, sku); err != nil {
		return nil, translate(err, "ingredient %q", sku)
	}
	items, err := s.store.Orders().ListByIngredient(ctx, sku, newestFirst)
	if err != nil {
		return nil, apperr.Upstream("listing orders", err)
	}
	if items == nil {
		items = []models.Order{}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	o, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return nil, translate(err, "order %d", id)
	}
	return o, nil
}

func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	in.IngredientID = strings.TrimSpace(in.IngredientID)
	if in.IngredientID == "" {
		return nil, apperr.Validation("ingredient_id is required")
	}
	value := valuation.Value(in.QuantityOrdered, in.UnitPriceOrdered)
	if in.ValueOrdered != nil {
		value = *in.ValueOrdered
	}
	if err := ValidateOrdered(in.QuantityOrdered, in.UnitPriceOrdered, value); err != nil {
		return nil, err
	}

	status := models.OrderStatusPending
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("status must be one of pending, confirmed, completed, cancelled")
		}
		status = *in.Status
	}

	now := s.now()
	o := &models.Order{
		IngredientID:     in.IngredientID,
		QuantityOrdered:  in.QuantityOrdered,
		UnitPriceOrdered: in.UnitPriceOrdered,
		ValueOrdered:     value,
		Status:           status,
		Notes:            strings.TrimSpace(in.Notes),
		CreatedAt:        now,
		Version:          1,
	}
	if status == models.OrderStatusCompleted {
		o.CompletedAt = &now
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Ingredients().Get(ctx, o.IngredientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Validation("ingredient %q not found", o.IngredientID)
			}
			return err
		}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "order",
			EntityID:    fmt.Sprint(o.ID),
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("order created: %s × %s", o.QuantityOrdered, o.IngredientID),
			After:       o,
		})
	})
	if err != nil {
		return nil, translate(err, "order")
	}

	s.logger.Info("order created", zap.Uint("order_id", o.ID), zap.String("sku", o.IngredientID))
	return s.Get(ctx, o.ID)
}

func (s *Service) Update(ctx context.Context, id uint, in UpdateOrderInput) (*models.Order, error) {
	var from, to models.OrderStatus
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		cur, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		if in.Version != nil && *in.Version != cur.Version {
			return repository.ErrStale
		}
		before := *cur
		before.Ingredient = nil
		next := before

		if in.IngredientID != nil && strings.TrimSpace(*in.IngredientID) != cur.IngredientID {
			// received stock is already posted against the current ingredient
			if cur.QuantityReceived.Valid {
				return apperr.Validation("ingredient_id cannot change after goods were received")
			}
			sku := strings.TrimSpace(*in.IngredientID)
			if _, err := tx.Ingredients().Get(ctx, sku); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperr.Validation("ingredient %q not found", sku)
				}
				return err
			}
			next.IngredientID = sku
		}

		if in.QuantityOrdered != nil || in.UnitPriceOrdered != nil || in.ValueOrdered != nil {
			if in.QuantityOrdered != nil {
				next.QuantityOrdered = *in.QuantityOrdered
			}
			if in.UnitPriceOrdered != nil {
				next.UnitPriceOrdered = *in.UnitPriceOrdered
			}
			if in.ValueOrdered != nil {
				next.ValueOrdered = *in.ValueOrdered
			} else {
				next.ValueOrdered = valuation.Value(next.QuantityOrdered, next.UnitPriceOrdered)
			}
			if err := ValidateOrdered(next.QuantityOrdered, next.UnitPriceOrdered, next.ValueOrdered); err != nil {
				return err
			}
		}

		if in.Notes != nil {
			next.Notes = *in.Notes
		}

		from, to = cur.Status, cur.Status
		if in.Status != nil {
			if err := checkTransition(cur.Status, *in.Status); err != nil {
				return err
			}
			to = *in.Status
			next.Status = to
			if to == models.OrderStatusCompleted && from != to {
				now := s.now()
				next.CompletedAt = &now
			}
		}

		if err := tx.Orders().Update(ctx, &next); err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "order",
			EntityID:    fmt.Sprint(id),
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("order %d updated", id),
			Before:      before,
			After:       next,
		})
	})
	if err != nil {
		return nil, translate(err, "order %d", id)
	}
	if from != to {
		metrics.OrderTransitions.WithLabelValues(string(from), string(to)).Inc()
		s.logger.Info("order status changed", zap.Uint("order_id", id), zap.String("from", string(from)), zap.String("to", string(to)))
	}
	return s.Get(ctx, id)
}

func (s *Service) SoftDelete(ctx context.Context, id uint) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		cur, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		cur.Ingredient = nil
		before := *cur
		cur.Deleted = true
		if err := tx.Orders().Update(ctx, cur); err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "order",
			EntityID:    fmt.Sprint(id),
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("order %d deleted", id),
			Before:      before,
			After:       cur,
		})
	})
	if err != nil {
		return translate(err, "order %d", id)
	}
	s.logger.Info("order deleted", zap.Uint("order_id", id))
	return nil
}

// Reconcile applies a batch of received adjustments to an order. The batch is
// validated up front and written in one transaction: the last triple wins,
// every reason is appended to the notes, and the change in received quantity
// is posted to the ingredient's stock.
func (s *Service) Reconcile(ctx context.Context, id uint, batch []ReceivedAdjustment) (*models.Order, error) {
	if len(batch) == 0 {
		return nil, apperr.Validation("at least one adjustment is required")
	}
	for i, a := range batch {
		if a.OrderID != id {
			return nil, apperr.Validation("adjustment %d targets order %d, not order %d", i+1, a.OrderID, id)
		}
		if a.NewQuantityReceived.IsNegative() {
			return nil, apperr.Validation("adjustment %d: quantity received must be >= 0", i+1)
		}
		if a.NewUnitPriceReceived.IsNegative() {
			return nil, apperr.Validation("adjustment %d: unit price received must be >= 0", i+1)
		}
	}

	var (
		ing *models.Ingredient
		adj *models.StockAdjustment
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		cur, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status == models.OrderStatusCancelled {
			return apperr.Validation("order %d is cancelled and cannot be reconciled", id)
		}
		cur.Ingredient = nil
		before := *cur
		next := before

		prevQty := decimal.Zero
		if cur.QuantityReceived.Valid {
			prevQty = cur.QuantityReceived.Decimal
		}

		notes := next.Notes
		for _, a := range batch {
			next.QuantityReceived = decimal.NewNullDecimal(a.NewQuantityReceived)
			next.UnitPriceReceived = decimal.NewNullDecimal(a.NewUnitPriceReceived)
			next.ValueReceived = decimal.NewNullDecimal(valuation.Value(a.NewQuantityReceived, a.NewUnitPriceReceived))
			notes = appendNote(notes, a.Reason)
		}
		next.Notes = notes

		if err := tx.Orders().Update(ctx, &next); err != nil {
			return err
		}

		delta := next.QuantityReceived.Decimal.Sub(prevQty)
		if !delta.IsZero() {
			typ := models.AdjustmentReceived
			if delta.IsNegative() {
				typ = models.AdjustmentManualCount
			}
			cost := valuation.Round(valuation.Value(delta, next.UnitPriceReceived.Decimal))
			orderID := id
			ing, adj, err = s.ledger.ApplyAdjustment(ctx, tx, inventory.AdjustmentInput{
				SKU:            next.IngredientID,
				Type:           typ,
				QuantityChange: delta,
				Reason:         fmt.Sprintf("order %d reconciled", id),
				CostImpact:     &cost,
				OrderID:        &orderID,
			})
			if err != nil {
				return err
			}
		}

		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "order",
			EntityID:    fmt.Sprint(id),
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("order %d reconciled (%d adjustments)", id, len(batch)),
			Before:      before,
			After:       next,
		})
	})
	if err != nil {
		return nil, translate(err, "order %d", id)
	}

	metrics.OrdersReconciled.Inc()
	if adj != nil {
		s.ledger.Announce(ctx, ing, adj)
	}
	s.logger.Info("order reconciled", zap.Uint("order_id", id), zap.Int("adjustments", len(batch)))
	return s.Get(ctx, id)
}

func appendNote(notes, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return notes
	}
	line := "Adjustment: " + reason
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func translate(err error, format string, args ...any) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(format+" not found", args...)
	case errors.Is(err, repository.ErrStale):
		return apperr.Conflict("order was modified concurrently")
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict(format+" already exists", args...)
	default:
		return apperr.Upstream(fmt.Sprintf(format, args...), err)
	}
}
