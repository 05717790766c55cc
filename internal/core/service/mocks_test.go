package service

import (
	"context"
	"sync"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

type stockKey struct {
	product int64
	store   int64
}

// mockLedger is an in-memory port.LedgerRepository. Apply holds the mutex
// across the read-check-write, which is exactly the serialization the real
// adapter provides per key.
type mockLedger struct {
	mu        sync.Mutex
	products  map[int64]*domain.Product
	stores    map[int64]*domain.Store
	stock     map[stockKey]int
	movements []domain.Movement
	seen      map[string]int64
	nextID    int64

	applyErrs   []error // popped per apply call before any state change
	appendFails int     // AppendMovement failures before it succeeds
	appendErr   error   // error used while failing
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		products: make(map[int64]*domain.Product),
		stores:   make(map[int64]*domain.Store),
		stock:    make(map[stockKey]int),
		seen:     make(map[string]int64),
	}
}

func (m *mockLedger) addProduct(id int64, name string) {
	m.products[id] = &domain.Product{ID: id, Name: name}
}

func (m *mockLedger) addStore(id int64, name string) {
	m.stores[id] = &domain.Store{ID: id, Name: name}
}

func (m *mockLedger) stockAt(product, store int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[stockKey{product, store}]
}

func (m *mockLedger) movementCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.movements)
}

func (m *mockLedger) CreateProduct(ctx context.Context, name string, description *string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Name == name {
			return nil, domain.ErrDuplicateProduct
		}
	}
	m.nextID++
	p := &domain.Product{ID: m.nextID, Name: name, Description: description}
	m.products[p.ID] = p
	return p, nil
}

func (m *mockLedger) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id], nil
}

func (m *mockLedger) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockLedger) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.products[id] == nil {
		return domain.ErrProductNotFound
	}
	delete(m.products, id)
	kept := m.movements[:0]
	for _, mv := range m.movements {
		if mv.ProductID != id {
			kept = append(kept, mv)
		}
	}
	m.movements = kept
	for k := range m.stock {
		if k.product == id {
			delete(m.stock, k)
		}
	}
	return nil
}

func (m *mockLedger) CreateStore(ctx context.Context, name string, location *string) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := &domain.Store{ID: m.nextID, Name: name, Location: location}
	m.stores[s.ID] = s
	return s, nil
}

func (m *mockLedger) GetStore(ctx context.Context, id int64) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores[id], nil
}

func (m *mockLedger) ListStores(ctx context.Context) ([]domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Store, 0, len(m.stores))
	for _, s := range m.stores {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockLedger) Apply(ctx context.Context, mv *domain.Movement) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[mv.CorrelationID]; ok {
		return 0, domain.ErrDuplicateMovement
	}
	next, err := m.applyLocked(mv)
	if err != nil {
		return 0, err
	}
	m.appendLocked(mv)
	return next, nil
}

func (m *mockLedger) ApplyProjection(ctx context.Context, mv *domain.Movement) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(mv)
}

func (m *mockLedger) AppendMovement(ctx context.Context, mv *domain.Movement) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendFails > 0 {
		m.appendFails--
		return 0, m.appendErr
	}
	if m.appendFails < 0 { // fail forever
		return 0, m.appendErr
	}
	return m.appendLocked(mv), nil
}

func (m *mockLedger) FindMovement(ctx context.Context, correlationID string) (*domain.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.movements {
		if m.movements[i].CorrelationID == correlationID {
			mv := m.movements[i]
			return &mv, nil
		}
	}
	return nil, nil
}

func (m *mockLedger) Transfer(ctx context.Context, out, in *domain.Movement) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fromStock, err := m.applyLocked(out)
	if err != nil {
		return 0, 0, err
	}
	toStock, err := m.applyLocked(in)
	if err != nil {
		// undo the first leg; the real adapter rolls back the tx
		m.stock[stockKey{out.ProductID, out.StoreID}] -= out.Delta()
		return 0, 0, err
	}
	m.appendLocked(out)
	m.appendLocked(in)
	return fromStock, toStock, nil
}

func (m *mockLedger) StockLevels(ctx context.Context, storeID int64) ([]domain.StockLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StockLevel
	for k, v := range m.stock {
		if k.store == storeID {
			out = append(out, domain.StockLevel{ProductID: k.product, Stock: v})
		}
	}
	return out, nil
}

func (m *mockLedger) Movements(ctx context.Context, f port.MovementFilter) ([]domain.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Movement
	for i := len(m.movements) - 1; i >= 0; i-- {
		mv := m.movements[i]
		if f.ProductID != 0 && mv.ProductID != f.ProductID {
			continue
		}
		if f.StoreID != 0 && mv.StoreID != f.StoreID {
			continue
		}
		out = append(out, mv)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockLedger) LedgerSums(ctx context.Context) ([]domain.LedgerSum, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := make(map[stockKey]int)
	for _, mv := range m.movements {
		sums[stockKey{mv.ProductID, mv.StoreID}] += mv.Delta()
	}
	var out []domain.LedgerSum
	for k, projected := range m.stock {
		out = append(out, domain.LedgerSum{
			ProductID: k.product,
			StoreID:   k.store,
			Projected: projected,
			LedgerSum: sums[k],
		})
	}
	return out, nil
}

func (m *mockLedger) applyLocked(mv *domain.Movement) (int, error) {
	if len(m.applyErrs) > 0 {
		err := m.applyErrs[0]
		m.applyErrs = m.applyErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	k := stockKey{mv.ProductID, mv.StoreID}
	next := m.stock[k] + mv.Delta()
	if next < 0 {
		return 0, domain.ErrInsufficientStock
	}
	m.stock[k] = next
	return next, nil
}

func (m *mockLedger) appendLocked(mv *domain.Movement) int64 {
	if id, ok := m.seen[mv.CorrelationID]; ok {
		mv.ID = id
		return id
	}
	m.nextID++
	mv.ID = m.nextID
	m.seen[mv.CorrelationID] = mv.ID
	m.movements = append(m.movements, *mv)
	return mv.ID
}

// mockCache stores snapshots and counts invalidations.
type mockCache struct {
	mu            sync.Mutex
	snapshots     map[int64][]domain.StockLevel
	invalidations int
}

func newMockCache() *mockCache {
	return &mockCache{snapshots: make(map[int64][]domain.StockLevel)}
}

func (c *mockCache) Get(ctx context.Context, storeID int64) ([]domain.StockLevel, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.snapshots[storeID]
	return items, ok, nil
}

func (c *mockCache) Put(ctx context.Context, storeID int64, items []domain.StockLevel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[storeID] = items
	return nil
}

func (c *mockCache) Invalidate(ctx context.Context, storeID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, storeID)
	c.invalidations++
	return nil
}

func (c *mockCache) invalidationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations
}

func (c *mockCache) cached(storeID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.snapshots[storeID]
	return ok
}
