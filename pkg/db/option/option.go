// Package option composes reusable gorm query modifiers.
package option

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MNhat168/careerhub/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single comparison condition.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
	})
}

// ApplyPagination applies cursor pagination; it fetches limit+1 rows so
// callers can detect a next page.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		limit := p.PageSize
		if limit <= 0 {
			limit = 10
		}

		if token := strings.TrimSpace(p.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor != nil && cursor.CreatedAt != "" {
				var createdAt any = cursor.CreatedAt
				if ts, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err == nil {
					createdAt = ts
				}
				var id any = cursor.ID
				if parsed, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
					id = parsed
				}
				db = db.Where("(created_at, id) < (?, ?)", createdAt, id)
			}
		}

		return db.Limit(limit + 1)
	})
}

type QuerySortBy struct {
	Field string
	Order string
	Allow map[string]bool
}

// WithQuerySortBy builds a sort spec with an allow-list guard.
func WithQuerySortBy(field, order string, allow map[string]bool) QuerySortBy {
	return QuerySortBy{Field: field, Order: order, Allow: allow}
}

// WithSortBy orders results; disallowed or empty fields fall back to created_at desc.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || (sort.Allow != nil && !sort.Allow[field]) {
			field = "created_at"
		}
		order := strings.ToLower(strings.TrimSpace(sort.Order))
		if order != "asc" {
			order = "desc"
		}
		return db.Order(fmt.Sprintf("%s %s, id %s", field, order, order))
	})
}
