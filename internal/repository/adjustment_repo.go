package repository

import (
	"context"

	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"

	"gorm.io/gorm"
)

// Adjustments are append-only: no Save, no Delete.
type gormAdjustments struct {
	db *gorm.DB
}

func (r *gormAdjustments) Create(ctx context.Context, adj *models.StockAdjustment) error {
	return translate(r.db.WithContext(ctx).Create(adj).Error)
}

func (r *gormAdjustments) ListByIngredient(ctx context.Context, sku string, p pagination.Params) ([]models.StockAdjustment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.StockAdjustment{}).
		Where("ingredient_sku = ?", sku).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.StockAdjustment
	if err := q.Order("created_at desc").Order("id desc").Scopes(pagination.Paginate(p)).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
