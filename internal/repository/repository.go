// Package repository is the persistence boundary. Services only talk to
// these interfaces; GORM (Postgres) and memory implementations back them.
package repository

import (
	"context"
	"errors"
	"time"

	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound: no non-deleted row matches the key.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate: a unique key already exists.
	ErrDuplicate = errors.New("duplicate key")
	// ErrStale: the row changed since it was read (version mismatch).
	ErrStale = errors.New("stale record version")
)

// Store groups the repositories and runs work atomically.
type Store interface {
	Ingredients() IngredientRepository
	Orders() OrderRepository
	Recipes() RecipeRepository
	Adjustments() AdjustmentRepository
	Audit() AuditRepository
	Users() UserRepository

	// Transaction runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type IngredientFilter struct {
	Category     string
	Status       string
	LowStockOnly bool
}

type IngredientRepository interface {
	List(ctx context.Context, f IngredientFilter, p pagination.Params) ([]models.Ingredient, int64, error)
	// Get ignores soft-deleted rows.
	Get(ctx context.Context, sku string) (*models.Ingredient, error)
	// GetAny also returns soft-deleted rows.
	GetAny(ctx context.Context, sku string) (*models.Ingredient, error)
	// GetForUpdate reads the row and holds a write lock on it until the
	// surrounding transaction ends. Use it before Save so a concurrent
	// IncrementStock is not overwritten with a stale level.
	GetForUpdate(ctx context.Context, sku string, includeDeleted bool) (*models.Ingredient, error)
	Create(ctx context.Context, ing *models.Ingredient) error
	Save(ctx context.Context, ing *models.Ingredient) error
	// IncrementStock adds delta to current_stock_level in the store itself,
	// recomputes value and status there, and returns the updated row.
	IncrementStock(ctx context.Context, sku string, delta decimal.Decimal, at time.Time, stampReceived bool) (*models.Ingredient, error)
}

type OrderFilter struct {
	Status       models.OrderStatus
	IngredientID string
}

type OrderRepository interface {
	List(ctx context.Context, f OrderFilter, p pagination.Params) ([]models.Order, int64, error)
	ListByIngredient(ctx context.Context, sku string, newestFirst bool) ([]models.Order, error)
	Get(ctx context.Context, id uint) (*models.Order, error)
	Create(ctx context.Context, o *models.Order) error
	// Update writes o only when the stored version still equals o.Version,
	// then bumps o.Version. Otherwise it returns ErrStale.
	Update(ctx context.Context, o *models.Order) error
}

type RecipeFilter struct {
	// Active nil means both active and inactive.
	Active   *bool
	Category string
}

type RecipeRepository interface {
	List(ctx context.Context, f RecipeFilter, p pagination.Params) ([]models.Recipe, int64, error)
	Get(ctx context.Context, id uint) (*models.Recipe, error)
	Create(ctx context.Context, r *models.Recipe) error
	Save(ctx context.Context, r *models.Recipe) error

	ListIngredients(ctx context.Context, recipeID uint) ([]models.RecipeIngredientLine, error)
	AddIngredient(ctx context.Context, link *models.RecipeIngredient) error
	SetIngredientQuantity(ctx context.Context, recipeID uint, sku string, qty decimal.Decimal) (*models.RecipeIngredient, error)
	RemoveIngredient(ctx context.Context, recipeID uint, sku string) error
	ListByIngredient(ctx context.Context, sku string) ([]models.Recipe, error)
}

type AdjustmentRepository interface {
	Create(ctx context.Context, adj *models.StockAdjustment) error
	ListByIngredient(ctx context.Context, sku string, p pagination.Params) ([]models.StockAdjustment, int64, error)
}

type AuditFilter struct {
	EntityType string
	EntityID   string
	UserID     *uint
}

type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, f AuditFilter, p pagination.Params) ([]models.AuditLog, int64, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int64, error)
	RevokeToken(ctx context.Context, t *models.RevokedToken) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}
