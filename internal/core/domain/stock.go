package domain

// StockLevel is one row of the current-stock projection for a store.
type StockLevel struct {
	ProductID int64 `db:"product_id" json:"product_id"`
	Stock     int   `db:"current_stock" json:"stock"`
}

// LedgerSum pairs the projected stock of a (product, store) key with the
// signed sum of its committed movements. The two agree unless an async
// ledger append was lost.
type LedgerSum struct {
	ProductID int64 `db:"product_id"`
	StoreID   int64 `db:"store_id"`
	Projected int   `db:"projected"`
	LedgerSum int   `db:"ledger_sum"`
}
