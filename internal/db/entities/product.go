package entities

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/repository"
)

// Product carries no struct tags; its mapping is declared by
// ProductDescriptor.
type Product struct {
	SKU          string
	Title        string
	Price        decimal.Decimal
	Stock        int
	Discontinued bool
	Notes        string
}

// ProductDescriptor maps Product onto the products table. Notes is never
// persisted.
func ProductDescriptor() *metadata.Descriptor {
	return metadata.Define[Product]("products").
		ID("SKU", metadata.Length(36)).
		Column("Title", metadata.Length(200), metadata.Unique()).
		Column("Price", metadata.Precision(12), metadata.Scale(2)).
		Transient("Notes")
}

type ProductRepository struct {
	repository.Crud[Product, string]

	FindByTitle                func(ctx context.Context, title string) (*Product, error)
	FindByPriceLessThan        func(ctx context.Context, max decimal.Decimal) ([]*Product, error)
	FindByPriceBetween         func(ctx context.Context, bounds []decimal.Decimal) ([]Product, error)
	FindByTitleNotLike         func(ctx context.Context, pattern string) ([]*Product, error)
	CountByDiscontinued        func(ctx context.Context, discontinued bool) (int, error)
	ExistsByStockGreaterThan   func(ctx context.Context, stock int) (bool, error)
	DeleteByStockLessThanEqual func(ctx context.Context, stock int) (int, error)
}
