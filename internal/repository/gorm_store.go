package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// GormStore implements Store on a GORM connection (Postgres in production).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Ingredients() IngredientRepository { return &gormIngredients{db: s.db} }
func (s *GormStore) Orders() OrderRepository           { return &gormOrders{db: s.db} }
func (s *GormStore) Recipes() RecipeRepository         { return &gormRecipes{db: s.db} }
func (s *GormStore) Adjustments() AdjustmentRepository { return &gormAdjustments{db: s.db} }
func (s *GormStore) Audit() AuditRepository            { return &gormAudit{db: s.db} }
func (s *GormStore) Users() UserRepository             { return &gormUsers{db: s.db} }

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	// Fallback when TranslateError is off.
	msg := err.Error()
	if strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "violates unique constraint") {
		return ErrDuplicate
	}
	return err
}
