package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

var (
	ErrEmptyName          = errors.New("name must not be empty")
	ErrDeleteNotConfirmed = errors.New("product delete must be confirmed")
)

type CatalogService struct {
	repo  port.LedgerRepository
	cache port.SnapshotCache
	log   *zap.Logger
}

func NewCatalogService(repo port.LedgerRepository, cache port.SnapshotCache, log *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, cache: cache, log: log}
}

func (s *CatalogService) CreateProduct(ctx context.Context, name string, description *string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	p, err := s.repo.CreateProduct(ctx, name, description)
	if err != nil {
		return nil, err
	}
	s.log.Info("product created", zap.Int64("id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// DeleteProduct cascades to the product's movements and stock rows. It is
// destructive and audited, so the caller must pass an explicit confirmation.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrDeleteNotConfirmed
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.log.Warn("product deleted with movement history", zap.Int64("id", id))

	// Snapshots in every store may still show the product.
	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		s.log.Error("cache invalidation after delete failed", zap.Error(err))
		return nil
	}
	for _, st := range stores {
		if err := s.cache.Invalidate(ctx, st.ID); err != nil {
			s.log.Error("cache invalidation after delete failed",
				zap.Int64("store_id", st.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *CatalogService) CreateStore(ctx context.Context, name string, location *string) (*domain.Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	st, err := s.repo.CreateStore(ctx, name, location)
	if err != nil {
		return nil, err
	}
	s.log.Info("store created", zap.Int64("id", st.ID), zap.String("name", st.Name))
	return st, nil
}

func (s *CatalogService) ListStores(ctx context.Context) ([]domain.Store, error) {
	return s.repo.ListStores(ctx)
}
