// Package memory is an in-process implementation of repository.Store. It
// backs the test suites and STORE_DRIVER=memory local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"

	"github.com/shopspring/decimal"
)

type linkKey struct {
	recipeID uint
	sku      string
}

type state struct {
	ingredients map[string]models.Ingredient
	orders      map[uint]models.Order
	recipes     map[uint]models.Recipe
	links       map[linkKey]models.RecipeIngredient
	adjustments []models.StockAdjustment
	audit       []models.AuditLog
	users       map[uint]models.User
	revoked     map[string]models.RevokedToken

	nextOrderID  uint
	nextRecipeID uint
	nextAdjID    uint
	nextAuditID  uint
	nextUserID   uint
}

func newState() *state {
	return &state{
		ingredients:  map[string]models.Ingredient{},
		orders:       map[uint]models.Order{},
		recipes:      map[uint]models.Recipe{},
		links:        map[linkKey]models.RecipeIngredient{},
		users:        map[uint]models.User{},
		revoked:      map[string]models.RevokedToken{},
		nextOrderID:  1,
		nextRecipeID: 1,
		nextAdjID:    1,
		nextAuditID:  1,
		nextUserID:   1,
	}
}

func (s *state) clone() *state {
	c := *s
	c.ingredients = make(map[string]models.Ingredient, len(s.ingredients))
	for k, v := range s.ingredients {
		c.ingredients[k] = v
	}
	c.orders = make(map[uint]models.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.recipes = make(map[uint]models.Recipe, len(s.recipes))
	for k, v := range s.recipes {
		c.recipes[k] = v
	}
	c.links = make(map[linkKey]models.RecipeIngredient, len(s.links))
	for k, v := range s.links {
		c.links[k] = v
	}
	c.users = make(map[uint]models.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	c.revoked = make(map[string]models.RevokedToken, len(s.revoked))
	for k, v := range s.revoked {
		c.revoked[k] = v
	}
	c.adjustments = append([]models.StockAdjustment(nil), s.adjustments...)
	c.audit = append([]models.AuditLog(nil), s.audit...)
	return &c
}

// Store is safe for concurrent use. Every call holds one mutex, so each
// operation (and each Transaction) is serialised.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

func (s *Store) do(fn func(st *state) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&Store{mu: s.mu, st: work, inTx: true}); err != nil {
		return err
	}
	*s.st = *work
	return nil
}

func (s *Store) Ingredients() repository.IngredientRepository { return ingredients{s} }
func (s *Store) Orders() repository.OrderRepository           { return orders{s} }
func (s *Store) Recipes() repository.RecipeRepository         { return recipes{s} }
func (s *Store) Adjustments() repository.AdjustmentRepository { return adjustments{s} }
func (s *Store) Audit() repository.AuditRepository            { return audit{s} }
func (s *Store) Users() repository.UserRepository             { return users{s} }

// page slices a sorted, filtered result the way OFFSET/LIMIT would.
func page[T any](items []T, p pagination.Params) ([]T, int64) {
	start, end := pagination.Window(p, len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, int64(len(items))
}

// ---------------------------------------------------------------------------
// Ingredients

type ingredients struct{ s *Store }

func (r ingredients) List(_ context.Context, f repository.IngredientFilter, p pagination.Params) ([]models.Ingredient, int64, error) {
	var out []models.Ingredient
	var total int64
	err := r.s.do(func(st *state) error {
		var matched []models.Ingredient
		for _, ing := range st.ingredients {
			if ing.Deleted {
				continue
			}
			if f.Category != "" && (ing.Category == nil || *ing.Category != f.Category) {
				continue
			}
			if f.LowStockOnly {
				if ing.Status != models.IngredientStatusLow {
					continue
				}
			} else if f.Status != "" && ing.Status != f.Status {
				continue
			}
			if !pagination.MatchesSearch(p.Search, ing.Name, ing.SKU) {
				continue
			}
			matched = append(matched, ing)
		}
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Name != matched[j].Name {
				return matched[i].Name < matched[j].Name
			}
			return matched[i].SKU < matched[j].SKU
		})
		out, total = page(matched, p)
		return nil
	})
	return out, total, err
}

func (r ingredients) Get(_ context.Context, sku string) (*models.Ingredient, error) {
	var out *models.Ingredient
	err := r.s.do(func(st *state) error {
		ing, ok := st.ingredients[sku]
		if !ok || ing.Deleted {
			return repository.ErrNotFound
		}
		out = &ing
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock here: transactions already run one at a time.
func (r ingredients) GetForUpdate(ctx context.Context, sku string, includeDeleted bool) (*models.Ingredient, error) {
	if includeDeleted {
		return r.GetAny(ctx, sku)
	}
	return r.Get(ctx, sku)
}

func (r ingredients) GetAny(_ context.Context, sku string) (*models.Ingredient, error) {
	var out *models.Ingredient
	err := r.s.do(func(st *state) error {
		ing, ok := st.ingredients[sku]
		if !ok {
			return repository.ErrNotFound
		}
		out = &ing
		return nil
	})
	return out, err
}

func (r ingredients) Create(_ context.Context, ing *models.Ingredient) error {
	return r.s.do(func(st *state) error {
		if _, ok := st.ingredients[ing.SKU]; ok {
			return repository.ErrDuplicate
		}
		ing.SKU = strings.Clone(ing.SKU)
		st.ingredients[ing.SKU] = *ing
		return nil
	})
}

func (r ingredients) Save(_ context.Context, ing *models.Ingredient) error {
	return r.s.do(func(st *state) error {
		ing.SKU = strings.Clone(ing.SKU)
		st.ingredients[ing.SKU] = *ing
		return nil
	})
}

func (r ingredients) IncrementStock(_ context.Context, sku string, delta decimal.Decimal, at time.Time, stampReceived bool) (*models.Ingredient, error) {
	var out *models.Ingredient
	err := r.s.do(func(st *state) error {
		ing, ok := st.ingredients[sku]
		if !ok || ing.Deleted {
			return repository.ErrNotFound
		}
		ing.CurrentStockLevel = ing.CurrentStockLevel.Add(delta)
		ing.Value = ing.CurrentStockLevel.Mul(ing.UnitCost)
		ing.Status = models.DeriveIngredientStatus(ing.CurrentStockLevel, ing.MinStockLevel)
		ing.LastUpdated = at
		if stampReceived {
			t := at
			ing.LastReceived = &t
		}
		st.ingredients[sku] = ing
		out = &ing
		return nil
	})
	return out, err
}

// ---------------------------------------------------------------------------
// Orders

type orders struct{ s *Store }

func withIngredient(st *state, o models.Order) models.Order {
	if ing, ok := st.ingredients[o.IngredientID]; ok {
		o.Ingredient = &ing
	}
	return o
}

func sortOrders(list []models.Order, newestFirst bool) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if newestFirst {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if newestFirst {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}

func (r orders) List(_ context.Context, f repository.OrderFilter, p pagination.Params) ([]models.Order, int64, error) {
	var out []models.Order
	var total int64
	err := r.s.do(func(st *state) error {
		var matched []models.Order
		for _, o := range st.orders {
			if o.Deleted {
				continue
			}
			if f.Status != "" && o.Status != f.Status {
				continue
			}
			if f.IngredientID != "" && o.IngredientID != f.IngredientID {
				continue
			}
			matched = append(matched, withIngredient(st, o))
		}
		sortOrders(matched, true)
		out, total = page(matched, p)
		return nil
	})
	return out, total, err
}

func (r orders) ListByIngredient(_ context.Context, sku string, newestFirst bool) ([]models.Order, error) {
	var out []models.Order
	err := r.s.do(func(st *state) error {
		for _, o := range st.orders {
			if !o.Deleted && o.IngredientID == sku {
				out = append(out, withIngredient(st, o))
			}
		}
		sortOrders(out, newestFirst)
		return nil
	})
	return out, err
}

func (r orders) Get(_ context.Context, id uint) (*models.Order, error) {
	var out *models.Order
	err := r.s.do(func(st *state) error {
		o, ok := st.orders[id]
		if !ok || o.Deleted {
			return repository.ErrNotFound
		}
		o = withIngredient(st, o)
		out = &o
		return nil
	})
	return out, err
}

func (r orders) Create(_ context.Context, o *models.Order) error {
	return r.s.do(func(st *state) error {
		o.ID = st.nextOrderID
		st.nextOrderID++
		if o.Version == 0 {
			o.Version = 1
		}
		row := *o
		row.Ingredient = nil
		st.orders[o.ID] = row
		return nil
	})
}

func (r orders) Update(_ context.Context, o *models.Order) error {
	return r.s.do(func(st *state) error {
		cur, ok := st.orders[o.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if cur.Version != o.Version {
			return repository.ErrStale
		}
		row := *o
		row.Ingredient = nil
		row.CreatedAt = cur.CreatedAt
		row.Version = cur.Version + 1
		st.orders[o.ID] = row
		o.Version = row.Version
		return nil
	})
}

// ---------------------------------------------------------------------------
// Recipes

type recipes struct{ s *Store }

func (r recipes) List(_ context.Context, f repository.RecipeFilter, p pagination.Params) ([]models.Recipe, int64, error) {
	var out []models.Recipe
	var total int64
	err := r.s.do(func(st *state) error {
		var matched []models.Recipe
		for _, rec := range st.recipes {
			if rec.Deleted {
				continue
			}
			if f.Active != nil && rec.Active != *f.Active {
				continue
			}
			if f.Category != "" && (rec.Category == nil || *rec.Category != f.Category) {
				continue
			}
			if !pagination.MatchesSearch(p.Search, rec.Name) {
				continue
			}
			matched = append(matched, rec)
		}
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Name != matched[j].Name {
				return matched[i].Name < matched[j].Name
			}
			return matched[i].ID < matched[j].ID
		})
		out, total = page(matched, p)
		return nil
	})
	return out, total, err
}

func (r recipes) Get(_ context.Context, id uint) (*models.Recipe, error) {
	var out *models.Recipe
	err := r.s.do(func(st *state) error {
		rec, ok := st.recipes[id]
		if !ok || rec.Deleted {
			return repository.ErrNotFound
		}
		out = &rec
		return nil
	})
	return out, err
}

func (r recipes) Create(_ context.Context, rec *models.Recipe) error {
	return r.s.do(func(st *state) error {
		rec.ID = st.nextRecipeID
		st.nextRecipeID++
		st.recipes[rec.ID] = *rec
		return nil
	})
}

func (r recipes) Save(_ context.Context, rec *models.Recipe) error {
	return r.s.do(func(st *state) error {
		st.recipes[rec.ID] = *rec
		return nil
	})
}

func (r recipes) ListIngredients(_ context.Context, recipeID uint) ([]models.RecipeIngredientLine, error) {
	var out []models.RecipeIngredientLine
	err := r.s.do(func(st *state) error {
		for k, link := range st.links {
			if k.recipeID != recipeID {
				continue
			}
			ing, ok := st.ingredients[k.sku]
			if !ok || ing.Deleted {
				continue
			}
			out = append(out, models.RecipeIngredientLine{
				Name:     ing.Name,
				SKU:      ing.SKU,
				Unit:     ing.Unit,
				UnitCost: ing.UnitCost,
				Quantity: link.QuantityUsed,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

func (r recipes) AddIngredient(_ context.Context, link *models.RecipeIngredient) error {
	return r.s.do(func(st *state) error {
		k := linkKey{link.RecipeID, strings.Clone(link.IngredientSKU)}
		if _, ok := st.links[k]; ok {
			return repository.ErrDuplicate
		}
		row := *link
		row.IngredientSKU = k.sku
		row.Ingredient = nil
		st.links[k] = row
		return nil
	})
}

func (r recipes) SetIngredientQuantity(_ context.Context, recipeID uint, sku string, qty decimal.Decimal) (*models.RecipeIngredient, error) {
	var out *models.RecipeIngredient
	err := r.s.do(func(st *state) error {
		k := linkKey{recipeID, sku}
		link, ok := st.links[k]
		if !ok {
			return repository.ErrNotFound
		}
		link.QuantityUsed = qty
		// keep the stored key; sku may alias a request buffer
		st.links[linkKey{recipeID, link.IngredientSKU}] = link
		out = &link
		return nil
	})
	return out, err
}

func (r recipes) RemoveIngredient(_ context.Context, recipeID uint, sku string) error {
	return r.s.do(func(st *state) error {
		k := linkKey{recipeID, sku}
		if _, ok := st.links[k]; !ok {
			return repository.ErrNotFound
		}
		delete(st.links, k)
		return nil
	})
}

func (r recipes) ListByIngredient(_ context.Context, sku string) ([]models.Recipe, error) {
	var out []models.Recipe
	err := r.s.do(func(st *state) error {
		for k := range st.links {
			if k.sku != sku {
				continue
			}
			if rec, ok := st.recipes[k.recipeID]; ok && !rec.Deleted {
				out = append(out, rec)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

// ---------------------------------------------------------------------------
// Stock adjustments

type adjustments struct{ s *Store }

func (r adjustments) Create(_ context.Context, adj *models.StockAdjustment) error {
	return r.s.do(func(st *state) error {
		adj.ID = st.nextAdjID
		st.nextAdjID++
		if adj.CreatedAt.IsZero() {
			adj.CreatedAt = time.Now()
		}
		adj.IngredientSKU = strings.Clone(adj.IngredientSKU)
		st.adjustments = append(st.adjustments, *adj)
		return nil
	})
}

func (r adjustments) ListByIngredient(_ context.Context, sku string, p pagination.Params) ([]models.StockAdjustment, int64, error) {
	var out []models.StockAdjustment
	var total int64
	err := r.s.do(func(st *state) error {
		var matched []models.StockAdjustment
		// newest first: walk the append order backwards
		for i := len(st.adjustments) - 1; i >= 0; i-- {
			if st.adjustments[i].IngredientSKU == sku {
				matched = append(matched, st.adjustments[i])
			}
		}
		out, total = page(matched, p)
		return nil
	})
	return out, total, err
}

// ---------------------------------------------------------------------------
// Audit

type audit struct{ s *Store }

func (r audit) Create(_ context.Context, entry *models.AuditLog) error {
	return r.s.do(func(st *state) error {
		entry.ID = st.nextAuditID
		st.nextAuditID++
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		entry.EntityID = strings.Clone(entry.EntityID)
		st.audit = append(st.audit, *entry)
		return nil
	})
}

func (r audit) List(_ context.Context, f repository.AuditFilter, p pagination.Params) ([]models.AuditLog, int64, error) {
	var out []models.AuditLog
	var total int64
	err := r.s.do(func(st *state) error {
		var matched []models.AuditLog
		for i := len(st.audit) - 1; i >= 0; i-- {
			e := st.audit[i]
			if f.EntityType != "" && e.EntityType != f.EntityType {
				continue
			}
			if f.EntityID != "" && e.EntityID != f.EntityID {
				continue
			}
			if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
				continue
			}
			matched = append(matched, e)
		}
		out, total = page(matched, p)
		return nil
	})
	return out, total, err
}

// ---------------------------------------------------------------------------
// Users

type users struct{ s *Store }

func (r users) Create(_ context.Context, u *models.User) error {
	return r.s.do(func(st *state) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return repository.ErrDuplicate
			}
		}
		u.ID = st.nextUserID
		st.nextUserID++
		now := time.Now()
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = *u
		return nil
	})
}

func (r users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.s.do(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				u := u
				out = &u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r users) GetByID(_ context.Context, id uint) (*models.User, error) {
	var out *models.User
	err := r.s.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r users) CountByRole(_ context.Context, role models.UserRole) (int64, error) {
	var n int64
	err := r.s.do(func(st *state) error {
		for _, u := range st.users {
			if u.Role == role {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r users) RevokeToken(_ context.Context, t *models.RevokedToken) error {
	return r.s.do(func(st *state) error {
		if _, ok := st.revoked[t.JTI]; !ok {
			st.revoked[t.JTI] = *t
		}
		return nil
	})
}

func (r users) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.s.do(func(st *state) error {
		_, revoked = st.revoked[jti]
		return nil
	})
	return revoked, err
}
