package repository

import (
	"context"

	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type gormRecipes struct {
	db *gorm.DB
}

func (r *gormRecipes) List(ctx context.Context, f RecipeFilter, p pagination.Params) ([]models.Recipe, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Recipe{}).
		Where("deleted = ?", false).
		Scopes(pagination.Search(p.Search, "name"))
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recipes []models.Recipe
	if err := q.Order("name asc").Order("id asc").Scopes(pagination.Paginate(p)).Find(&recipes).Error; err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

func (r *gormRecipes) Get(ctx context.Context, id uint) (*models.Recipe, error) {
	var rec models.Recipe
	if err := r.db.WithContext(ctx).Where("id = ? AND deleted = ?", id, false).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *gormRecipes) Create(ctx context.Context, rec *models.Recipe) error {
	return translate(r.db.WithContext(ctx).Create(rec).Error)
}

func (r *gormRecipes) Save(ctx context.Context, rec *models.Recipe) error {
	return translate(r.db.WithContext(ctx).Save(rec).Error)
}

func (r *gormRecipes) ListIngredients(ctx context.Context, recipeID uint) ([]models.RecipeIngredientLine, error) {
	var lines []models.RecipeIngredientLine
	err := r.db.WithContext(ctx).
		Table("recipes_ingredients AS ri").
		Select("i.name, i.sku, i.unit, i.unit_cost, ri.quantity_used AS quantity").
		Joins("JOIN ingredients i ON i.sku = ri.ingredient_sku").
		Where("ri.recipe_id = ? AND i.deleted = ?", recipeID, false).
		Order("i.name asc").
		Scan(&lines).Error
	return lines, err
}

func (r *gormRecipes) AddIngredient(ctx context.Context, link *models.RecipeIngredient) error {
	return translate(r.db.WithContext(ctx).Omit("Ingredient").Create(link).Error)
}

func (r *gormRecipes) SetIngredientQuantity(ctx context.Context, recipeID uint, sku string, qty decimal.Decimal) (*models.RecipeIngredient, error) {
	res := r.db.WithContext(ctx).Model(&models.RecipeIngredient{}).
		Where("recipe_id = ? AND ingredient_sku = ?", recipeID, sku).
		Update("quantity_used", qty)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &models.RecipeIngredient{RecipeID: recipeID, IngredientSKU: sku, QuantityUsed: qty}, nil
}

func (r *gormRecipes) RemoveIngredient(ctx context.Context, recipeID uint, sku string) error {
	res := r.db.WithContext(ctx).
		Where("recipe_id = ? AND ingredient_sku = ?", recipeID, sku).
		Delete(&models.RecipeIngredient{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRecipes) ListByIngredient(ctx context.Context, sku string) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := r.db.WithContext(ctx).
		Joins("JOIN recipes_ingredients ri ON ri.recipe_id = recipes.id").
		Where("ri.ingredient_sku = ? AND recipes.deleted = ?", sku, false).
		Order("recipes.name asc").
		Find(&recipes).Error
	return recipes, err
}
