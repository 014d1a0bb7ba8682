package repository

import (
	"context"
	"time"

	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns searched by the free-text filter.
var ingredientSearchColumns = []string{"name", "sku"}

type gormIngredients struct {
	db *gorm.DB
}

func (r *gormIngredients) List(ctx context.Context, f IngredientFilter, p pagination.Params) ([]models.Ingredient, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Ingredient{}).
		Where("deleted = ?", false).
		Scopes(pagination.Search(p.Search, ingredientSearchColumns...))

	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.LowStockOnly {
		q = q.Where("status = ?", models.IngredientStatusLow)
	} else if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Ingredient
	if err := q.Order("name asc").Order("sku asc").Scopes(pagination.Paginate(p)).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *gormIngredients) Get(ctx context.Context, sku string) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := r.db.WithContext(ctx).
		Where("sku = ? AND deleted = ?", sku, false).
		First(&ing).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ing, nil
}

func (r *gormIngredients) GetAny(ctx context.Context, sku string) (*models.Ingredient, error) {
	var ing models.Ingredient
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&ing).Error; err != nil {
		return nil, translate(err)
	}
	return &ing, nil
}

func (r *gormIngredients) GetForUpdate(ctx context.Context, sku string, includeDeleted bool) (*models.Ingredient, error) {
	q := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sku = ?", sku)
	if !includeDeleted {
		q = q.Where("deleted = ?", false)
	}
	var ing models.Ingredient
	if err := q.First(&ing).Error; err != nil {
		return nil, translate(err)
	}
	return &ing, nil
}

func (r *gormIngredients) Create(ctx context.Context, ing *models.Ingredient) error {
	return translate(r.db.WithContext(ctx).Create(ing).Error)
}

func (r *gormIngredients) Save(ctx context.Context, ing *models.Ingredient) error {
	return translate(r.db.WithContext(ctx).Save(ing).Error)
}

func (r *gormIngredients) IncrementStock(ctx context.Context, sku string, delta decimal.Decimal, at time.Time, stampReceived bool) (*models.Ingredient, error) {
	// All right-hand sides read the pre-update row, so the arithmetic happens
	// in one statement and concurrent increments cannot overwrite each other.
	updates := map[string]any{
		"current_stock_level": gorm.Expr("current_stock_level + ?", delta),
		"value":               gorm.Expr("(current_stock_level + ?) * unit_cost", delta),
		"status": gorm.Expr(
			"CASE WHEN current_stock_level + ? <= 0 THEN ? WHEN current_stock_level + ? < min_stock_level THEN ? ELSE ? END",
			delta, models.IngredientStatusOut, delta, models.IngredientStatusLow, models.IngredientStatusOK,
		),
		"last_updated": at,
	}
	if stampReceived {
		updates["last_received"] = at
	}

	res := r.db.WithContext(ctx).Model(&models.Ingredient{}).
		Where("sku = ? AND deleted = ?", sku, false).
		Updates(updates)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, sku)
}
