package recipes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/audit"
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"
	"kitchen-backend/internal/valuation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store repository.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger.Named("recipes"), now: time.Now}
}

type CreateRecipeInput struct {
	Name     string
	Category *string
	Cost     decimal.Decimal
	// Active nil means true.
	Active *bool
}

type UpdateRecipeInput struct {
	Name     *string
	Category *string
	Cost     *decimal.Decimal
	Active   *bool
}

// RecipeIngredients is the bill of materials of one recipe.
type RecipeIngredients struct {
	RecipeID    uint                          `json:"recipe_id"`
	Ingredients []models.RecipeIngredientLine `json:"ingredients"`
}

type RecipeSummary struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Cost     decimal.Decimal `json:"cost"`
	Category *string         `json:"category"`
}

// IngredientUsage lists the recipes that use one ingredient.
type IngredientUsage struct {
	SKU     string          `json:"sku"`
	Recipes []RecipeSummary `json:"recipes"`
}

// CostBreakdown compares the stored recipe cost with the cost derived from
// the current unit costs of its ingredients.
type CostBreakdown struct {
	RecipeID    uint            `json:"recipe_id"`
	StoredCost  decimal.Decimal `json:"stored_cost"`
	DerivedCost decimal.Decimal `json:"derived_cost"`
	Difference  decimal.Decimal `json:"difference"`
	Lines       []CostLine      `json:"lines"`
}

type CostLine struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Cost     decimal.Decimal `json:"cost"`
}

func (s *Service) List(ctx context.Context, f repository.RecipeFilter, p pagination.Params) ([]models.Recipe, int64, error) {
	items, total, err := s.store.Recipes().List(ctx, f, p)
	if err != nil {
		return nil, 0, apperr.Upstream("listing recipes", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Recipe, error) {
	rec, err := s.store.Recipes().Get(ctx, id)
	if err != nil {
		return nil, translate(err, "recipe %d", id)
	}
	return rec, nil
}

func (s *Service) Create(ctx context.Context, in CreateRecipeInput) (*models.Recipe, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.Cost.IsNegative() {
		return nil, apperr.Validation("cost must be >= 0")
	}
	rec := &models.Recipe{
		Name:        name,
		Category:    trimmedOrNil(in.Category),
		Cost:        in.Cost,
		Active:      in.Active == nil || *in.Active,
		LastUpdated: s.now(),
	}
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Recipes().Create(ctx, rec); err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "recipe",
			EntityID:    fmt.Sprint(rec.ID),
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("recipe created: %s", rec.Name),
			After:       rec,
		})
	})
	if err != nil {
		return nil, translate(err, "recipe")
	}
	return rec, nil
}

func (s *Service) Update(ctx context.Context, id uint, in UpdateRecipeInput) (*models.Recipe, error) {
	var result *models.Recipe
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		cur, err := tx.Recipes().Get(ctx, id)
		if err != nil {
			return err
		}
		before := *cur
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperr.Validation("name must not be empty")
			}
			cur.Name = name
		}
		if in.Category != nil {
			cur.Category = trimmedOrNil(in.Category)
		}
		if in.Cost != nil {
			if in.Cost.IsNegative() {
				return apperr.Validation("cost must be >= 0")
			}
			cur.Cost = *in.Cost
		}
		if in.Active != nil {
			cur.Active = *in.Active
		}
		cur.LastUpdated = s.now()
		if err := tx.Recipes().Save(ctx, cur); err != nil {
			return err
		}
		result = cur
		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "recipe",
			EntityID:    fmt.Sprint(id),
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("recipe updated: %s", cur.Name),
			Before:      before,
			After:       cur,
		})
	})
	if err != nil {
		return nil, translate(err, "recipe %d", id)
	}
	return result, nil
}

func (s *Service) SoftDelete(ctx context.Context, id uint) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		cur, err := tx.Recipes().Get(ctx, id)
		if err != nil {
			return err
		}
		before := *cur
		cur.Deleted = true
		cur.LastUpdated = s.now()
		if err := tx.Recipes().Save(ctx, cur); err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx.Audit(), audit.LogOptions{
			EntityType:  "recipe",
			EntityID:    fmt.Sprint(id),
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("recipe deleted: %s", cur.Name),
			Before:      before,
			After:       cur,
		})
	})
	if err != nil {
		return translate(err, "recipe %d", id)
	}
	s.logger.Info("recipe deleted", zap.Uint("recipe_id", id))
	return nil
}

// ListIngredients returns the bill of materials. A recipe without linked
// ingredients yields an empty list; a missing recipe is NotFound.
func (s *Service) ListIngredients(ctx context.Context, id uint) (*RecipeIngredients, error) {
	if _, err := s.store.Recipes().Get(ctx, id); err != nil {
		return nil, translate(err, "recipe %d", id)
	}
	lines, err := s.store.Recipes().ListIngredients(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("listing recipe ingredients", err)
	}
	if lines == nil {
		lines = []models.RecipeIngredientLine{}
	}
	return &RecipeIngredients{RecipeID: id, Ingredients: lines}, nil
}

func (s *Service) AddIngredient(ctx context.Context, id uint, sku string, quantity decimal.Decimal) (*models.RecipeIngredient, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, apperr.Validation("ingredient_sku is required")
	}
	if !quantity.IsPositive() {
		return nil, apperr.Validation("quantity must be positive")
	}
	link := &models.RecipeIngredient{RecipeID: id, IngredientSKU: sku, QuantityUsed: quantity}
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Recipes().Get(ctx, id); err != nil {
			return err
		}
		if _, err := tx.Ingredients().Get(ctx, sku); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Validation("ingredient %q not found", sku)
			}
			return err
		}
		if err := tx.Recipes().AddIngredient(ctx, link); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict("ingredient %q is already part of recipe %d", sku, id)
			}
			return err
		}
		return s.touch(ctx, tx, id, "ingredient added: "+sku, link)
	})
	if err != nil {
		return nil, translate(err, "recipe %d", id)
	}
	return link, nil
}

func (s *Service) SetIngredientQuantity(ctx context.Context, id uint, sku string, quantity decimal.Decimal) (*models.RecipeIngredient, error) {
	if !quantity.IsPositive() {
		return nil, apperr.Validation("quantity must be positive")
	}
	var link *models.RecipeIngredient
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Recipes().Get(ctx, id); err != nil {
			return err
		}
		var err error
		link, err = tx.Recipes().SetIngredientQuantity(ctx, id, sku, quantity)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("ingredient %q is not part of recipe %d", sku, id)
			}
			return err
		}
		return s.touch(ctx, tx, id, "ingredient quantity changed: "+sku, link)
	})
	if err != nil {
		return nil, translate(err, "recipe %d", id)
	}
	return link, nil
}

func (s *Service) RemoveIngredient(ctx context.Context, id uint, sku string) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Recipes().Get(ctx, id); err != nil {
			return err
		}
		if err := tx.Recipes().RemoveIngredient(ctx, id, sku); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("ingredient %q is not part of recipe %d", sku, id)
			}
			return err
		}
		return s.touch(ctx, tx, id, "ingredient removed: "+sku, nil)
	})
	if err != nil {
		return translate(err, "recipe %d", id)
	}
	return nil
}

// touch stamps last_updated on a recipe after a link change and records it.
func (s *Service) touch(ctx context.Context, tx repository.Store, id uint, what string, link *models.RecipeIngredient) error {
	rec, err := tx.Recipes().Get(ctx, id)
	if err != nil {
		return err
	}
	rec.LastUpdated = s.now()
	if err := tx.Recipes().Save(ctx, rec); err != nil {
		return err
	}
	opts := audit.LogOptions{
		EntityType:  "recipe_ingredient",
		EntityID:    fmt.Sprint(id),
		Action:      models.AuditActionUpdate,
		Description: what,
	}
	if link != nil {
		opts.After = link
	}
	return audit.WriteLog(ctx, tx.Audit(), opts)
}

// ListRecipesUsingIngredient is the reverse BOM lookup.
func (s *Service) ListRecipesUsingIngredient(ctx context.Context, sku string) (*IngredientUsage, error) {
	if _, err := s.store.Ingredients().Get(ctx, sku); err != nil {
		return nil, translate(err, "ingredient %q", sku)
	}
	recs, err := s.store.Recipes().ListByIngredient(ctx, sku)
	if err != nil {
		return nil, apperr.Upstream("listing recipes by ingredient", err)
	}
	out := &IngredientUsage{SKU: sku, Recipes: make([]RecipeSummary, 0, len(recs))}
	for _, r := range recs {
		out.Recipes = append(out.Recipes, RecipeSummary{ID: r.ID, Name: r.Name, Cost: r.Cost, Category: r.Category})
	}
	return out, nil
}

// Cost derives Σ quantity × unit cost over the recipe's live ingredients.
func (s *Service) Cost(ctx context.Context, id uint) (*CostBreakdown, error) {
	rec, err := s.store.Recipes().Get(ctx, id)
	if err != nil {
		return nil, translate(err, "recipe %d", id)
	}
	lines, err := s.store.Recipes().ListIngredients(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("listing recipe ingredients", err)
	}

	out := &CostBreakdown{RecipeID: id, StoredCost: rec.Cost, DerivedCost: decimal.Zero, Lines: make([]CostLine, 0, len(lines))}
	for _, l := range lines {
		c := valuation.Value(l.Quantity, l.UnitCost)
		out.DerivedCost = out.DerivedCost.Add(c)
		out.Lines = append(out.Lines, CostLine{SKU: l.SKU, Name: l.Name, Quantity: l.Quantity, UnitCost: l.UnitCost, Cost: c})
	}
	out.DerivedCost = valuation.Round(out.DerivedCost)
	out.Difference = rec.Cost.Sub(out.DerivedCost)
	return out, nil
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
