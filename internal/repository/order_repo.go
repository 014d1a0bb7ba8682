package repository

import (
	"context"

	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"

	"gorm.io/gorm"
)

type gormOrders struct {
	db *gorm.DB
}

func (r *gormOrders) List(ctx context.Context, f OrderFilter, p pagination.Params) ([]models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).Where("deleted = ?", false)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.IngredientID != "" {
		q = q.Where("ingredient_id = ?", f.IngredientID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := q.Preload("Ingredient").
		Order("created_at desc").Order("id desc").
		Scopes(pagination.Paginate(p)).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *gormOrders) ListByIngredient(ctx context.Context, sku string, newestFirst bool) ([]models.Order, error) {
	dir := "asc"
	if newestFirst {
		dir = "desc"
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).Preload("Ingredient").
		Where("ingredient_id = ? AND deleted = ?", sku, false).
		Order("created_at " + dir).Order("id " + dir).
		Find(&orders).Error
	return orders, err
}

func (r *gormOrders) Get(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Preload("Ingredient").
		Where("id = ? AND deleted = ?", id, false).
		First(&o).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *gormOrders) Create(ctx context.Context, o *models.Order) error {
	return translate(r.db.WithContext(ctx).Omit("Ingredient").Create(o).Error)
}

func (r *gormOrders) Update(ctx context.Context, o *models.Order) error {
	prev := o.Version
	next := *o
	next.Version = prev + 1
	next.Ingredient = nil

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND version = ?", o.ID, prev).
		Select("*").Omit("id", "created_at", "Ingredient").
		Updates(&next)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", o.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStale
	}
	o.Version = next.Version
	return nil
}
