package option

import "gorm.io/gorm"

// QueryOption customizes a gorm query built by the generic store.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type orderOption struct {
	clause string
}

func (o orderOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.clause)
}

// WithOrder appends an ORDER BY clause.
func WithOrder(clause string) QueryOption {
	return orderOption{clause: clause}
}

type limitOption struct {
	limit int
}

func (o limitOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(o.limit)
}

// WithLimit caps the number of returned rows.
func WithLimit(limit int) QueryOption {
	return limitOption{limit: limit}
}

type whereOption struct {
	query string
	args  []any
}

func (o whereOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(o.query, o.args...)
}

// WithWhere appends a raw WHERE condition for predicates a struct filter
// cannot express (IS NULL, IN, ranges).
func WithWhere(query string, args ...any) QueryOption {
	return whereOption{query: query, args: args}
}
