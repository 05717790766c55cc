package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// MovementFilter narrows a ledger query. Zero values mean "any".
type MovementFilter struct {
	ProductID int64
	StoreID   int64
	Limit     int
}

type LedgerRepository interface {
	// CreateProduct inserts a product; returns domain.ErrDuplicateProduct
	// when the name is taken.
	CreateProduct(ctx context.Context, name string, description *string) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// DeleteProduct cascades to the product's movements and stock rows.
	DeleteProduct(ctx context.Context, id int64) error

	CreateStore(ctx context.Context, name string, location *string) (*domain.Store, error)
	GetStore(ctx context.Context, id int64) (*domain.Store, error)
	ListStores(ctx context.Context) ([]domain.Store, error)

	// Apply commits the projection update and the ledger append in one
	// transaction, holding the (product, store) row locked between the
	// stock read and write. Returns the new stock level.
	Apply(ctx context.Context, m *domain.Movement) (int, error)

	// ApplyProjection commits only the projection update under the same
	// locking rule; the ledger append is expected to follow via
	// AppendMovement.
	ApplyProjection(ctx context.Context, m *domain.Movement) (int, error)

	// AppendMovement inserts a ledger entry. A redelivery with an already
	// committed correlation id is a no-op returning the existing row id.
	AppendMovement(ctx context.Context, m *domain.Movement) (int64, error)

	// FindMovement returns the committed movement carrying the correlation
	// id, or nil when none exists.
	FindMovement(ctx context.Context, correlationID string) (*domain.Movement, error)

	// Transfer commits both legs of a store-to-store transfer atomically
	// and returns the resulting stock at the source and destination.
	Transfer(ctx context.Context, out, in *domain.Movement) (int, int, error)

	StockLevels(ctx context.Context, storeID int64) ([]domain.StockLevel, error)
	Movements(ctx context.Context, f MovementFilter) ([]domain.Movement, error)

	// LedgerSums returns, per (product, store) key, the projected stock
	// alongside the signed sum of committed movements.
	LedgerSums(ctx context.Context) ([]domain.LedgerSum, error)
}
