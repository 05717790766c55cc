package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS products (
  id          BIGINT AUTO_INCREMENT PRIMARY KEY,
  name        VARCHAR(255) NOT NULL UNIQUE,
  description TEXT NULL,
  created_at  DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS stores (
  id         BIGINT AUTO_INCREMENT PRIMARY KEY,
  name       VARCHAR(255) NOT NULL,
  location   VARCHAR(255) NULL,
  created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS inventory (
  product_id    BIGINT NOT NULL,
  store_id      BIGINT NOT NULL,
  current_stock INT NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
  updated_at    DATETIME NOT NULL,
  PRIMARY KEY (product_id, store_id),
  FOREIGN KEY (product_id) REFERENCES products(id),
  FOREIGN KEY (store_id) REFERENCES stores(id)
);
CREATE TABLE IF NOT EXISTS movements (
  id             BIGINT AUTO_INCREMENT PRIMARY KEY,
  correlation_id VARCHAR(64) NOT NULL UNIQUE,
  product_id     BIGINT NOT NULL,
  store_id       BIGINT NOT NULL,
  type           VARCHAR(16) NOT NULL,
  direction      VARCHAR(8) NOT NULL,
  quantity       INT NOT NULL,
  notes          TEXT NOT NULL,
  timestamp      DATETIME NOT NULL,
  INDEX idx_movements_product (product_id),
  INDEX idx_movements_store (store_id),
  FOREIGN KEY (product_id) REFERENCES products(id),
  FOREIGN KEY (store_id) REFERENCES stores(id)
);`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  name        TEXT NOT NULL UNIQUE,
  description TEXT NULL,
  created_at  DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS stores (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  name       TEXT NOT NULL,
  location   TEXT NULL,
  created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS inventory (
  product_id    INTEGER NOT NULL,
  store_id      INTEGER NOT NULL,
  current_stock INTEGER NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
  updated_at    DATETIME NOT NULL,
  PRIMARY KEY (product_id, store_id),
  FOREIGN KEY (product_id) REFERENCES products(id),
  FOREIGN KEY (store_id) REFERENCES stores(id)
);
CREATE TABLE IF NOT EXISTS movements (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  correlation_id TEXT NOT NULL UNIQUE,
  product_id     INTEGER NOT NULL,
  store_id       INTEGER NOT NULL,
  type           TEXT NOT NULL,
  direction      TEXT NOT NULL,
  quantity       INTEGER NOT NULL,
  notes          TEXT NOT NULL,
  timestamp      DATETIME NOT NULL,
  FOREIGN KEY (product_id) REFERENCES products(id),
  FOREIGN KEY (store_id) REFERENCES stores(id)
);
CREATE INDEX IF NOT EXISTS idx_movements_product ON movements(product_id);
CREATE INDEX IF NOT EXISTS idx_movements_store ON movements(store_id);`

// SQLAdapter implements port.LedgerRepository over MySQL (service) or
// SQLite (CLI). MySQL serializes concurrent applies on a key with
// SELECT ... FOR UPDATE; SQLite's single-writer model gives the same
// guarantee without the clause.
type SQLAdapter struct {
	db            *sqlx.DB
	lockingReads  bool
	upsertStock   string
	insertIgnored string
}

func NewSQLAdapter(db *sqlx.DB) *SQLAdapter {
	a := &SQLAdapter{db: db}
	switch db.DriverName() {
	case "mysql":
		a.lockingReads = true
		a.upsertStock = `
			INSERT INTO inventory (product_id, store_id, current_stock, updated_at)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE current_stock = VALUES(current_stock), updated_at = VALUES(updated_at)`
		a.insertIgnored = `INSERT IGNORE INTO movements
			(correlation_id, product_id, store_id, type, direction, quantity, notes, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	default: // sqlite3
		a.upsertStock = `
			INSERT INTO inventory (product_id, store_id, current_stock, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (product_id, store_id) DO UPDATE SET
				current_stock = excluded.current_stock, updated_at = excluded.updated_at`
		a.insertIgnored = `INSERT OR IGNORE INTO movements
			(correlation_id, product_id, store_id, type, direction, quantity, notes, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	}
	return a
}

func (a *SQLAdapter) EnsureSchema(ctx context.Context) error {
	schema := sqliteSchema
	if a.db.DriverName() == "mysql" {
		schema = mysqlSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (a *SQLAdapter) CreateProduct(ctx context.Context, name string, description *string) (*domain.Product, error) {
	p := &domain.Product{Name: name, Description: description, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	res, err := a.db.ExecContext(ctx,
		`INSERT INTO products (name, description, created_at) VALUES (?, ?, ?)`,
		p.Name, p.Description, p.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return nil, domain.ErrDuplicateProduct
		}
		return nil, fmt.Errorf("insert product: %w", transient(err))
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("product id: %w", err)
	}
	return p, nil
}

func (a *SQLAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := a.db.GetContext(ctx, &p,
		`SELECT id, name, description, created_at FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", transient(err))
	}
	return &p, nil
}

func (a *SQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := a.db.SelectContext(ctx, &out,
		`SELECT id, name, description, created_at FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", transient(err))
	}
	return out, nil
}

func (a *SQLAdapter) DeleteProduct(ctx context.Context, id int64) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", transient(err))
	}
	defer tx.Rollback()

	// Children go first so the product row's FK references are gone by the
	// time it is removed.
	if _, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("delete movements: %w", transient(err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("delete inventory: %w", transient(err))
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", transient(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProductNotFound
	}
	return tx.Commit()
}

func (a *SQLAdapter) CreateStore(ctx context.Context, name string, location *string) (*domain.Store, error) {
	s := &domain.Store{Name: name, Location: location, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	res, err := a.db.ExecContext(ctx,
		`INSERT INTO stores (name, location, created_at) VALUES (?, ?, ?)`,
		s.Name, s.Location, s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert store: %w", transient(err))
	}
	s.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store id: %w", err)
	}
	return s, nil
}

func (a *SQLAdapter) GetStore(ctx context.Context, id int64) (*domain.Store, error) {
	var s domain.Store
	err := a.db.GetContext(ctx, &s,
		`SELECT id, name, location, created_at FROM stores WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query store: %w", transient(err))
	}
	return &s, nil
}

func (a *SQLAdapter) ListStores(ctx context.Context) ([]domain.Store, error) {
	var out []domain.Store
	err := a.db.SelectContext(ctx, &out,
		`SELECT id, name, location, created_at FROM stores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", transient(err))
	}
	return out, nil
}

func (a *SQLAdapter) Apply(ctx context.Context, m *domain.Movement) (int, error) {
	return a.apply(ctx, m, true)
}

func (a *SQLAdapter) ApplyProjection(ctx context.Context, m *domain.Movement) (int, error) {
	return a.apply(ctx, m, false)
}

func (a *SQLAdapter) apply(ctx context.Context, m *domain.Movement, appendLedger bool) (int, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", transient(err))
	}
	defer tx.Rollback()

	current, err := a.lockedStock(ctx, tx, m.ProductID, m.StoreID)
	if err != nil {
		return 0, err
	}

	next := current + m.Delta()
	if next < 0 {
		return 0, domain.ErrInsufficientStock
	}

	if _, err := tx.ExecContext(ctx, a.upsertStock, m.ProductID, m.StoreID, next, m.Timestamp); err != nil {
		return 0, fmt.Errorf("update stock: %w", transient(err))
	}

	if appendLedger {
		id, err := insertMovement(ctx, tx, m)
		if err != nil {
			return 0, err
		}
		m.ID = id
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", transient(err))
	}
	return next, nil
}

func (a *SQLAdapter) AppendMovement(ctx context.Context, m *domain.Movement) (int64, error) {
	res, err := a.db.ExecContext(ctx, a.insertIgnored,
		m.CorrelationID, m.ProductID, m.StoreID, m.Type, m.Direction, m.Quantity, m.Notes, m.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("append movement: %w", transient(err))
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("movement id: %w", err)
		}
		m.ID = id
		return id, nil
	}

	// Redelivered task: the append already committed.
	var id int64
	if err := a.db.GetContext(ctx, &id,
		`SELECT id FROM movements WHERE correlation_id = ?`, m.CorrelationID); err != nil {
		return 0, fmt.Errorf("lookup movement: %w", transient(err))
	}
	m.ID = id
	return id, nil
}

func (a *SQLAdapter) FindMovement(ctx context.Context, correlationID string) (*domain.Movement, error) {
	var m domain.Movement
	err := a.db.GetContext(ctx, &m,
		`SELECT id, correlation_id, product_id, store_id, type, direction, quantity, notes, timestamp
		FROM movements WHERE correlation_id = ?`, correlationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find movement: %w", transient(err))
	}
	return &m, nil
}

func (a *SQLAdapter) Transfer(ctx context.Context, out, in *domain.Movement) (int, int, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", transient(err))
	}
	defer tx.Rollback()

	// Lock rows in store-id order so two opposite transfers cannot deadlock.
	first, second := out, in
	if in.StoreID < out.StoreID {
		first, second = in, out
	}
	firstStock, err := a.lockedStock(ctx, tx, first.ProductID, first.StoreID)
	if err != nil {
		return 0, 0, err
	}
	secondStock, err := a.lockedStock(ctx, tx, second.ProductID, second.StoreID)
	if err != nil {
		return 0, 0, err
	}

	fromStock, toStock := firstStock, secondStock
	if first != out {
		fromStock, toStock = secondStock, firstStock
	}

	fromStock += out.Delta()
	if fromStock < 0 {
		return 0, 0, domain.ErrInsufficientStock
	}
	toStock += in.Delta()

	if _, err := tx.ExecContext(ctx, a.upsertStock, out.ProductID, out.StoreID, fromStock, out.Timestamp); err != nil {
		return 0, 0, fmt.Errorf("update source stock: %w", transient(err))
	}
	if _, err := tx.ExecContext(ctx, a.upsertStock, in.ProductID, in.StoreID, toStock, in.Timestamp); err != nil {
		return 0, 0, fmt.Errorf("update destination stock: %w", transient(err))
	}

	if out.ID, err = insertMovement(ctx, tx, out); err != nil {
		return 0, 0, err
	}
	if in.ID, err = insertMovement(ctx, tx, in); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", transient(err))
	}
	return fromStock, toStock, nil
}

func (a *SQLAdapter) StockLevels(ctx context.Context, storeID int64) ([]domain.StockLevel, error) {
	var out []domain.StockLevel
	err := a.db.SelectContext(ctx, &out,
		`SELECT product_id, current_stock FROM inventory WHERE store_id = ? ORDER BY product_id`, storeID)
	if err != nil {
		return nil, fmt.Errorf("stock levels: %w", transient(err))
	}
	return out, nil
}

func (a *SQLAdapter) Movements(ctx context.Context, f port.MovementFilter) ([]domain.Movement, error) {
	query := `SELECT id, correlation_id, product_id, store_id, type, direction, quantity, notes, timestamp
		FROM movements`
	conditions := []string{}
	args := []interface{}{}
	if f.ProductID != 0 {
		conditions = append(conditions, "product_id = ?")
		args = append(args, f.ProductID)
	}
	if f.StoreID != 0 {
		conditions = append(conditions, "store_id = ?")
		args = append(args, f.StoreID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var out []domain.Movement
	if err := a.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", transient(err))
	}
	return out, nil
}

func (a *SQLAdapter) LedgerSums(ctx context.Context) ([]domain.LedgerSum, error) {
	var out []domain.LedgerSum
	err := a.db.SelectContext(ctx, &out, `
		SELECT i.product_id, i.store_id, i.current_stock AS projected,
		       COALESCE(SUM(CASE WHEN m.direction = 'out' THEN -m.quantity ELSE m.quantity END), 0) AS ledger_sum
		FROM inventory i
		LEFT JOIN movements m ON m.product_id = i.product_id AND m.store_id = i.store_id
		GROUP BY i.product_id, i.store_id, i.current_stock`)
	if err != nil {
		return nil, fmt.Errorf("ledger sums: %w", transient(err))
	}
	return out, nil
}

// lockedStock reads current stock inside tx, holding the row lock on MySQL.
// A missing row reads as zero.
func (a *SQLAdapter) lockedStock(ctx context.Context, tx *sqlx.Tx, productID, storeID int64) (int, error) {
	query := `SELECT current_stock FROM inventory WHERE product_id = ? AND store_id = ?`
	if a.lockingReads {
		query += " FOR UPDATE"
	}
	var stock int
	err := tx.GetContext(ctx, &stock, query, productID, storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", transient(err))
	}
	return stock, nil
}

func insertMovement(ctx context.Context, tx *sqlx.Tx, m *domain.Movement) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO movements
		(correlation_id, product_id, store_id, type, direction, quantity, notes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.CorrelationID, m.ProductID, m.StoreID, m.Type, m.Direction, m.Quantity, m.Notes, m.Timestamp)
	if err != nil {
		if isDuplicate(err) {
			// Replayed correlation id: roll the whole apply back.
			return 0, domain.ErrDuplicateMovement
		}
		return 0, fmt.Errorf("insert movement: %w", transient(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("movement id: %w", err)
	}
	return id, nil
}

// transient maps lock-contention and deadline faults onto
// domain.ErrStorageBusy so the pipeline can retry them.
func transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrStorageBusy, err)
	}
	msg := err.Error()
	for _, s := range []string{
		"Lock wait timeout",
		"Deadlock found",
		"database is locked",
		"database table is locked",
	} {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %v", domain.ErrStorageBusy, err)
		}
	}
	return err
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
