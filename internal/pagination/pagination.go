// Package pagination turns (page, limit, filters, search) into a bounded,
// countable result window and shapes the list envelope every listing
// endpoint returns.
package pagination

import (
	"strconv"
	"strings"

	"kitchen-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 500
)

// Params is a validated page request. Search is the optional free-text term.
type Params struct {
	Page   int
	Limit  int
	Search string
}

// New validates page and limit. maxLimit <= 0 falls back to MaxLimit.
func New(page, limit, maxLimit int) (Params, error) {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if page < 1 {
		return Params{}, apperr.Validation("page must be >= 1")
	}
	if limit < 1 {
		return Params{}, apperr.Validation("limit must be >= 1")
	}
	if limit > maxLimit {
		return Params{}, apperr.Validation("limit must be <= %d", maxLimit)
	}
	return Params{Page: page, Limit: limit}, nil
}

// FromQuery reads ?page=&limit=&search= from the request.
func FromQuery(c *fiber.Ctx, maxLimit int) (Params, error) {
	page, err := intQuery(c, "page", DefaultPage)
	if err != nil {
		return Params{}, err
	}
	limit, err := intQuery(c, "limit", DefaultLimit)
	if err != nil {
		return Params{}, err
	}
	p, err := New(page, limit, maxLimit)
	if err != nil {
		return Params{}, err
	}
	p.Search = strings.TrimSpace(c.Query("search"))
	return p, nil
}

func intQuery(c *fiber.Ctx, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return v, nil
}

// Offset is the index of the first row of the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta is the pagination block of the list envelope.
type Meta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

func NewMeta(p Params, total int64) Meta {
	return Meta{
		Total:   total,
		Page:    p.Page,
		Limit:   p.Limit,
		HasNext: int64(p.Offset()+p.Limit) < total,
		HasPrev: p.Page > 1,
	}
}

// Envelope is {"data": [...], "pagination": {...}}.
type Envelope[T any] struct {
	Data       []T  `json:"data"`
	Pagination Meta `json:"pagination"`
}

func NewEnvelope[T any](items []T, p Params, total int64) Envelope[T] {
	if items == nil {
		items = []T{}
	}
	return Envelope[T]{Data: items, Pagination: NewMeta(p, total)}
}

// Window returns the [start, end) slice bounds of the page inside a fully
// materialised result of size total.
func Window(p Params, total int) (int, int) {
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// Paginate is a GORM scope applying OFFSET/LIMIT.
func Paginate(p Params) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.Limit)
	}
}

// Search is a GORM scope matching term case-insensitively as a substring of
// any of columns. Column names must be trusted identifiers.
func Search(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		term = strings.TrimSpace(term)
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		clauses := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))
		for _, col := range columns {
			clauses = append(clauses, "LOWER("+col+") LIKE ?")
			args = append(args, pattern)
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
}

// MatchesSearch is the in-process equivalent of Search.
func MatchesSearch(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
