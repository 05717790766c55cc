package domain

import "time"

type MovementType string

const (
	MovementStockIn    MovementType = "STOCK_IN"
	MovementSale       MovementType = "SALE"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementRemoval    MovementType = "REMOVAL"
	MovementTransfer   MovementType = "TRANSFER"
)

// Direction disambiguates movements whose type alone does not fix the sign.
// ADJUSTMENT must carry one; TRANSFER legs carry one each; the rest are
// implied by the type.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Movement is one immutable ledger entry. Quantity is always stored positive;
// the sign applied to the stock projection comes from Delta.
type Movement struct {
	ID            int64        `db:"id" json:"id"`
	CorrelationID string       `db:"correlation_id" json:"correlation_id"`
	ProductID     int64        `db:"product_id" json:"product_id"`
	StoreID       int64        `db:"store_id" json:"store_id"`
	Type          MovementType `db:"type" json:"type"`
	Direction     Direction    `db:"direction" json:"direction"`
	Quantity      int          `db:"quantity" json:"quantity"`
	Notes         string       `db:"notes" json:"notes,omitempty"`
	Timestamp     time.Time    `db:"timestamp" json:"timestamp"`
}

func (t MovementType) Valid() bool {
	switch t {
	case MovementStockIn, MovementSale, MovementAdjustment, MovementRemoval, MovementTransfer:
		return true
	}
	return false
}

// ResolveDirection returns the direction a movement of type t must carry.
// For ADJUSTMENT the explicit direction is required; a bare TRANSFER defaults
// to the outbound leg.
func ResolveDirection(t MovementType, explicit Direction) (Direction, bool) {
	switch t {
	case MovementStockIn:
		return DirectionIn, true
	case MovementSale, MovementRemoval:
		return DirectionOut, true
	case MovementAdjustment:
		if explicit == DirectionIn || explicit == DirectionOut {
			return explicit, true
		}
		return "", false
	case MovementTransfer:
		if explicit == DirectionIn || explicit == DirectionOut {
			return explicit, true
		}
		return DirectionOut, true
	}
	return "", false
}

// Delta is the signed effect of the movement on current stock.
func (m Movement) Delta() int {
	if m.Direction == DirectionOut {
		return -m.Quantity
	}
	return m.Quantity
}
