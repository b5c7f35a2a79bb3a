package repository

import (
	"context"

	"github.com/transitbase/faretable/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is the generic persistence contract shared by the feature
// packages. A struct-valued query acts as an equality filter; anything
// richer (IS NULL, IN, guarded updates) goes through QueryOptions or
// UpdateWhere.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID string, resource any) error
	UpdateWhere(ctx context.Context, updates any, query string, args ...any) (int64, error)
	Delete(ctx context.Context, resourceID string) error
	Count(ctx context.Context, query *T) (int64, error)
	BatchCreate(ctx context.Context, resources []*T) error
}
