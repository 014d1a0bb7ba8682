package repository

import (
	"context"

	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"

	"gorm.io/gorm"
)

type gormAudit struct {
	db *gorm.DB
}

func (r *gormAudit) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormAudit) List(ctx context.Context, f AuditFilter, p pagination.Params) ([]models.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	if err := q.Order("created_at desc").Order("id desc").Scopes(pagination.Paginate(p)).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
