package domain

import "errors"

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrStoreNotFound     = errors.New("store not found")
	ErrDuplicateProduct  = errors.New("product name already exists")
	ErrInvalidQuantity   = errors.New("quantity must be positive")

	// ErrDuplicateMovement rejects a replayed submission whose correlation
	// id already applied. The original outcome stands.
	ErrDuplicateMovement = errors.New("movement already recorded")

	ErrInvalidType       = errors.New("invalid movement type")
	ErrInvalidDirection  = errors.New("adjustment requires a direction")

	// ErrStorageBusy marks transient storage faults (lock wait timeout,
	// busy database, expired deadline). Callers may retry.
	ErrStorageBusy = errors.New("storage busy")
)
