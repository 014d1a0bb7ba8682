package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/audit"
	"kitchen-backend/internal/events"
	"kitchen-backend/internal/metrics"
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"
	"kitchen-backend/internal/valuation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service owns ingredient records and the stock adjustment log. Every stock
// change goes through applyAdjustment so it is both applied and recorded.
type Service struct {
	store  repository.Store
	events events.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store repository.Store, pub events.Publisher, logger *zap.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:  store,
		events: pub,
		logger: logger.Named("inventory"),
		now:    time.Now,
	}
}

type CreateIngredientInput struct {
	SKU               string
	Name              string
	Category          *string
	Unit              string
	CurrentStockLevel decimal.Decimal
	MinStockLevel     decimal.Decimal
	Status            *string
	StorageLocation   *string
	UnitCost          decimal.Decimal
	ExpireAt          *time.Time
}

// UpdateIngredientInput: nil fields are left untouched.
type UpdateIngredientInput struct {
	Name              *string
	Category          *string
	Unit              *string
	CurrentStockLevel *decimal.Decimal
	MinStockLevel     *decimal.Decimal
	Status            *string
	StorageLocation   *string
	UnitCost          *decimal.Decimal
	ExpireAt          *time.Time
}

type AdjustmentInput struct {
	SKU            string
	Type           models.AdjustmentType
	QuantityChange decimal.Decimal
	Reason         string
	WasteCategory  *string
	Notes          *string
	EvidenceURL    *string
	// CostImpact defaults to QuantityChange × unit cost.
	CostImpact *decimal.Decimal
	OrderID    *uint
	RecipeID   *uint
	ActorID    *string

	// stampReceived forces last_received even for non-received types.
	stampReceived bool
}

func (s *Service) List(ctx context.Context, f repository.IngredientFilter, p pagination.Params) ([]models.Ingredient, int64, error) {
	items, total, err := s.store.Ingredients().List(ctx, f, p)
	if err != nil {
		return nil, 0, apperr.Upstream("listing ingredients", err)
	}
	return items, total, nil
}

// Search is List restricted to a free-text keyword over name and SKU.
func (s *Service) Search(ctx context.Context, keyword string, p pagination.Params) ([]models.Ingredient, int64, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, 0, apperr.Validation("search keyword is required")
	}
	p.Search = keyword
	return s.List(ctx, repository.IngredientFilter{}, p)
}

func (s *Service) Get(ctx context.Context, sku string) (*models.Ingredient, error) {
	ing, err := s.store.Ingredients().Get(ctx, sku)
	if err != nil {
		return nil, translate(err, "ingredient %q", sku)
	}
	return ing, nil
}

func (s *Service) Create(ctx context.Context, in CreateIngredientInput) (*models.Ingredient, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	switch {
	case in.SKU == "":
		return nil, apperr.Validation("sku is required")
	case in.Name == "":
		return nil, apperr.Validation("name is required")
	case in.Unit == "":
		return nil, apperr.Validation("unit is required")
	case in.UnitCost.IsNegative():
		return nil, apperr.Validation("unit_cost must be >= 0")
	case in.CurrentStockLevel.IsNegative():
		return nil, apperr.Validation("current_stock_level must be >= 0")
	case in.MinStockLevel.IsNegative():
		return nil, apperr.Validation("min_stock_level must be >= 0")
	}

	ing := &models.Ingredient{
		SKU:               in.SKU,
		Name:              in.Name,
		Category:          trimmedOrNil(in.Category),
		Unit:              in.Unit,
		CurrentStockLevel: in.CurrentStockLevel,
		MinStockLevel:     in.MinStockLevel,
		StorageLocation:   trimmedOrNil(in.StorageLocation),
		UnitCost:          in.UnitCost,
		Value:             valuation.Value(in.CurrentStockLevel, in.UnitCost),
		ExpireAt:          in.ExpireAt,
		LastUpdated:       s.now(),
	}
	if st := trimmedOrNil(in.Status); st != nil {
		ing.Status = *st
	} else {
		ing.Status = models.DeriveIngredientStatus(ing.CurrentStockLevel, ing.MinStockLevel)
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Ingredients().Create(ctx, ing); err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "ingredient",
			EntityID:    ing.SKU,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("ingredient created: %s (%s)", ing.Name, ing.SKU),
			After:       ing,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("ingredient with sku %q already exists", in.SKU)
		}
		return nil, apperr.Upstream("creating ingredient", err)
	}

	s.logger.Info("ingredient created", zap.String("sku", ing.SKU))
	return ing, nil
}

// Update merges the non-nil fields of in. A changed current_stock_level is
// posted as a manual_count adjustment so the change stays on record.
func (s *Service) Update(ctx context.Context, sku string, in UpdateIngredientInput) (*models.Ingredient, error) {
	var (
		result *models.Ingredient
		adj    *models.StockAdjustment
	)
	if in.CurrentStockLevel != nil && in.CurrentStockLevel.IsNegative() {
		return nil, apperr.Validation("current_stock_level must be >= 0")
	}
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		cur, err := tx.Ingredients().GetForUpdate(ctx, sku, false)
		if err != nil {
			return err
		}
		before := *cur
		next := *cur

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperr.Validation("name must not be empty")
			}
			next.Name = name
		}
		if in.Unit != nil {
			unit := strings.TrimSpace(*in.Unit)
			if unit == "" {
				return apperr.Validation("unit must not be empty")
			}
			next.Unit = unit
		}
		if in.Category != nil {
			next.Category = trimmedOrNil(in.Category)
		}
		if in.StorageLocation != nil {
			next.StorageLocation = trimmedOrNil(in.StorageLocation)
		}
		if in.ExpireAt != nil {
			next.ExpireAt = in.ExpireAt
		}
		if in.UnitCost != nil {
			if in.UnitCost.IsNegative() {
				return apperr.Validation("unit_cost must be >= 0")
			}
			next.UnitCost = *in.UnitCost
		}
		if in.MinStockLevel != nil {
			if in.MinStockLevel.IsNegative() {
				return apperr.Validation("min_stock_level must be >= 0")
			}
			next.MinStockLevel = *in.MinStockLevel
		}

		next.Value = valuation.Value(next.CurrentStockLevel, next.UnitCost)
		if st := trimmedOrNil(in.Status); st != nil {
			next.Status = *st
		} else {
			next.Status = models.DeriveIngredientStatus(next.CurrentStockLevel, next.MinStockLevel)
		}
		next.LastUpdated = s.now()

		if err := tx.Ingredients().Save(ctx, &next); err != nil {
			return err
		}
		result = &next

		if in.CurrentStockLevel != nil {
			delta := in.CurrentStockLevel.Sub(next.CurrentStockLevel)
			if !delta.IsZero() {
				result, adj, err = s.applyAdjustment(ctx, tx, AdjustmentInput{
					SKU:            sku,
					Type:           models.AdjustmentManualCount,
					QuantityChange: delta,
					Reason:         "stock level set by ingredient update",
				})
				if err != nil {
					return err
				}
				if in.Status != nil {
					// An explicit status wins over the derived one.
					result.Status = next.Status
					if err := tx.Ingredients().Save(ctx, result); err != nil {
						return err
					}
				}
			}
		}

		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "ingredient",
			EntityID:    sku,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("ingredient updated: %s", sku),
			Before:      before,
			After:       result,
		})
	})
	if err != nil {
		return nil, translate(err, "ingredient %q", sku)
	}
	if adj != nil {
		s.announce(ctx, result, adj)
	}
	return result, nil
}

// Delete flags the ingredient as deleted. Deleting twice is a no-op update.
func (s *Service) Delete(ctx context.Context, sku string) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		ing, err := tx.Ingredients().GetForUpdate(ctx, sku, true)
		if err != nil {
			return err
		}
		before := *ing
		ing.Deleted = true
		ing.LastUpdated = s.now()
		if err := tx.Ingredients().Save(ctx, ing); err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "ingredient",
			EntityID:    sku,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("ingredient deleted: %s", sku),
			Before:      before,
			After:       ing,
		})
	})
	if err != nil {
		return translate(err, "ingredient %q", sku)
	}
	s.logger.Info("ingredient deleted", zap.String("sku", sku))
	return nil
}

// AdjustStock adds delta (possibly negative) to the stock level and stamps
// last_received. The resulting level is not clamped at zero.
func (s *Service) AdjustStock(ctx context.Context, sku string, delta decimal.Decimal) (*models.Ingredient, error) {
	typ := models.AdjustmentReceived
	if delta.IsNegative() {
		typ = models.AdjustmentManualCount
	}
	ing, _, err := s.Adjust(ctx, AdjustmentInput{
		SKU:            sku,
		Type:           typ,
		QuantityChange: delta,
		Reason:         "direct stock adjustment",
		stampReceived:  true,
	})
	return ing, err
}

// RecordAdjustment appends rec to the log and applies its quantity change.
// rec is filled with the stored values.
func (s *Service) RecordAdjustment(ctx context.Context, rec *models.StockAdjustment) (*models.Ingredient, error) {
	in := AdjustmentInput{
		SKU:            rec.IngredientSKU,
		Type:           rec.Type,
		QuantityChange: rec.QuantityChange,
		Reason:         rec.Reason,
		WasteCategory:  rec.WasteCategory,
		Notes:          rec.Notes,
		EvidenceURL:    rec.EvidenceURL,
		OrderID:        rec.OrderID,
		RecipeID:       rec.RecipeID,
		ActorID:        rec.ActorID,
	}
	if !rec.CostImpact.IsZero() {
		ci := rec.CostImpact
		in.CostImpact = &ci
	}
	ing, adj, err := s.Adjust(ctx, in)
	if err != nil {
		return nil, err
	}
	*rec = *adj
	return ing, nil
}

// Adjust applies one stock change and appends its log row atomically.
func (s *Service) Adjust(ctx context.Context, in AdjustmentInput) (*models.Ingredient, *models.StockAdjustment, error) {
	var (
		ing *models.Ingredient
		adj *models.StockAdjustment
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		ing, adj, err = s.applyAdjustment(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, nil, translate(err, "ingredient %q", in.SKU)
	}
	s.announce(ctx, ing, adj)
	return ing, adj, nil
}

// ApplyAdjustment runs the adjustment inside an existing transaction. The
// caller must call Announce after its transaction commits.
func (s *Service) ApplyAdjustment(ctx context.Context, tx repository.Store, in AdjustmentInput) (*models.Ingredient, *models.StockAdjustment, error) {
	ing, adj, err := s.applyAdjustment(ctx, tx, in)
	if err != nil {
		return nil, nil, translate(err, "ingredient %q", in.SKU)
	}
	return ing, adj, nil
}

// Announce reports a committed adjustment to metrics and the event stream.
func (s *Service) Announce(ctx context.Context, ing *models.Ingredient, adj *models.StockAdjustment) {
	s.announce(ctx, ing, adj)
}

func (s *Service) applyAdjustment(ctx context.Context, tx repository.Store, in AdjustmentInput) (*models.Ingredient, *models.StockAdjustment, error) {
	if err := validateAdjustment(&in); err != nil {
		return nil, nil, err
	}

	cur, err := tx.Ingredients().GetForUpdate(ctx, in.SKU, false)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	stamp := in.stampReceived || in.Type == models.AdjustmentReceived
	ing, err := tx.Ingredients().IncrementStock(ctx, in.SKU, in.QuantityChange, now, stamp)
	if err != nil {
		return nil, nil, err
	}

	costImpact := valuation.Round(valuation.Value(in.QuantityChange, cur.UnitCost))
	if in.CostImpact != nil {
		costImpact = *in.CostImpact
	}

	adj := &models.StockAdjustment{
		IngredientSKU:  in.SKU,
		Type:           in.Type,
		QuantityChange: in.QuantityChange,
		// Derived from the post-increment row so concurrent writers see
		// consistent before/after pairs.
		StockBefore:   ing.CurrentStockLevel.Sub(in.QuantityChange),
		StockAfter:    ing.CurrentStockLevel,
		Reason:        in.Reason,
		WasteCategory: in.WasteCategory,
		Notes:         in.Notes,
		EvidenceURL:   in.EvidenceURL,
		CostImpact:    costImpact,
		OrderID:       in.OrderID,
		RecipeID:      in.RecipeID,
		ActorID:       in.ActorID,
		CreatedAt:     now,
	}
	if adj.ActorID == nil {
		if a, ok := audit.ActorFrom(ctx); ok {
			id := fmt.Sprint(a.UserID)
			adj.ActorID = &id
		}
	}
	if err := tx.Adjustments().Create(ctx, adj); err != nil {
		return nil, nil, err
	}
	return ing, adj, nil
}

func validateAdjustment(in *AdjustmentInput) error {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Reason = strings.TrimSpace(in.Reason)
	in.WasteCategory = trimmedOrNil(in.WasteCategory)

	if in.SKU == "" {
		return apperr.Validation("ingredient sku is required")
	}
	if !in.Type.Valid() {
		return apperr.Validation("adjustment_type must be one of waste, received, manual_count, recipe_usage")
	}
	if in.QuantityChange.IsZero() {
		return apperr.Validation("quantity_change must not be zero")
	}
	switch in.Type {
	case models.AdjustmentWaste, models.AdjustmentRecipeUsage:
		if !in.QuantityChange.IsNegative() {
			return apperr.Validation("%s adjustments must have a negative quantity_change", in.Type)
		}
	case models.AdjustmentReceived:
		if !in.QuantityChange.IsPositive() {
			return apperr.Validation("received adjustments must have a positive quantity_change")
		}
	}
	if in.Type == models.AdjustmentWaste && in.WasteCategory == nil {
		return apperr.Validation("waste_category is required for waste adjustments")
	}
	if in.Reason == "" {
		in.Reason = string(in.Type)
	}
	return nil
}

func (s *Service) announce(ctx context.Context, ing *models.Ingredient, adj *models.StockAdjustment) {
	metrics.StockAdjustments.WithLabelValues(string(adj.Type)).Inc()
	if err := s.events.PublishStockAdjusted(ctx, events.NewStockAdjusted(adj, ing)); err != nil {
		metrics.EventPublishFailures.Inc()
		s.logger.Warn("stock event not published",
			zap.String("sku", adj.IngredientSKU),
			zap.Uint("adjustment_id", adj.ID),
			zap.Error(err),
		)
	}
	s.logger.Info("stock adjusted",
		zap.String("sku", adj.IngredientSKU),
		zap.String("type", string(adj.Type)),
		zap.String("change", adj.QuantityChange.String()),
		zap.String("stock_after", adj.StockAfter.String()),
	)
}

// History lists the stock adjustments of one ingredient, newest first.
func (s *Service) History(ctx context.Context, sku string, p pagination.Params) ([]models.StockAdjustment, int64, error) {
	if _, err := s.store.Ingredients().Get(ctx, sku); err != nil {
		return nil, 0, translate(err, "ingredient %q", sku)
	}
	items, total, err := s.store.Adjustments().ListByIngredient(ctx, sku, p)
	if err != nil {
		return nil, 0, apperr.Upstream("listing stock history", err)
	}
	return items, total, nil
}

func translate(err error, format string, args ...any) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(format+" not found", args...)
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict(format+" already exists", args...)
	default:
		return apperr.Upstream(fmt.Sprintf(format, args...), err)
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
