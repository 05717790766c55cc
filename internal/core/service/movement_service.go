package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

var ErrSameStore = errors.New("transfer requires two distinct stores")

type PipelineConfig struct {
	// Async defers the ledger append to the queue; the projection update
	// always commits before Submit returns.
	Async bool

	// ApplyTimeout bounds each projector transaction, including its row
	// lock wait.
	ApplyTimeout time.Duration

	// RetryAttempts/RetryBackoff bound the local retry of transient
	// storage faults before they surface to the caller.
	RetryAttempts int
	RetryBackoff  time.Duration

	// AppendAttempts bounds redelivery of a deferred ledger append before
	// it is recorded as a consistency fault.
	AppendAttempts int
}

func (c *PipelineConfig) fillDefaults() {
	if c.ApplyTimeout <= 0 {
		c.ApplyTimeout = 5 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.AppendAttempts <= 0 {
		c.AppendAttempts = 5
	}
}

type SubmitRequest struct {
	ProductID     int64
	StoreID       int64
	Type          domain.MovementType
	Direction     domain.Direction
	Quantity      int
	Notes         string
	CorrelationID string
}

type Accepted struct {
	Movement domain.Movement
	NewStock int
}

type TransferRequest struct {
	ProductID   int64
	FromStoreID int64
	ToStoreID   int64
	Quantity    int
	Notes       string
}

type TransferResult struct {
	CorrelationID string
	FromStock     int
	ToStock       int
}

// ConsistencyFault records a movement whose projection committed but whose
// ledger append exhausted its retries. It is never surfaced to the original
// caller; the reconciler picks it up.
type ConsistencyFault struct {
	Movement domain.Movement
	Reason   string
	At       time.Time
}

type MovementService struct {
	repo  port.LedgerRepository
	cache port.SnapshotCache
	queue port.AppendQueue
	cfg   PipelineConfig
	log   *zap.Logger

	mu       sync.Mutex
	faults   []ConsistencyFault
	inflight map[string]struct{}
}

func NewMovementService(repo port.LedgerRepository, cache port.SnapshotCache, queue port.AppendQueue, cfg PipelineConfig, log *zap.Logger) *MovementService {
	cfg.fillDefaults()
	return &MovementService{
		repo:     repo,
		cache:    cache,
		queue:    queue,
		cfg:      cfg,
		log:      log,
		inflight: make(map[string]struct{}),
	}
}

// Submit validates a movement, applies it to the stock projection under the
// per-key lock, commits or defers the ledger append, and invalidates the
// store's cached snapshot before returning the new stock level.
func (s *MovementService) Submit(ctx context.Context, req SubmitRequest) (*Accepted, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	direction, ok := domain.ResolveDirection(req.Type, req.Direction)
	if !ok {
		return nil, domain.ErrInvalidDirection
	}
	if err := s.checkProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}
	if err := s.checkStore(ctx, req.StoreID); err != nil {
		return nil, err
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	} else {
		// A client retry must not apply the projection a second time. The
		// ledger is checked for a committed entry and the inflight set for
		// a deferred append that has not landed yet.
		if s.isInflight(correlationID) {
			return nil, domain.ErrDuplicateMovement
		}
		existing, err := s.repo.FindMovement(ctx, correlationID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, domain.ErrDuplicateMovement
		}
	}
	m := domain.Movement{
		CorrelationID: correlationID,
		ProductID:     req.ProductID,
		StoreID:       req.StoreID,
		Type:          req.Type,
		Direction:     direction,
		Quantity:      req.Quantity,
		Notes:         req.Notes,
		Timestamp:     time.Now().UTC().Truncate(time.Second),
	}

	var newStock int
	err := retryTransient(s.cfg.RetryAttempts, s.cfg.RetryBackoff, func() error {
		applyCtx, cancel := context.WithTimeout(ctx, s.cfg.ApplyTimeout)
		defer cancel()

		var err error
		if s.cfg.Async {
			newStock, err = s.repo.ApplyProjection(applyCtx, &m)
		} else {
			newStock, err = s.repo.Apply(applyCtx, &m)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cfg.Async {
		s.deferAppend(ctx, m)
	}

	if err := s.cache.Invalidate(ctx, req.StoreID); err != nil {
		// The projection already committed; staleness is bounded by TTL.
		s.log.Error("cache invalidation failed",
			zap.Int64("store_id", req.StoreID), zap.Error(err))
	}

	s.log.Info("movement accepted",
		zap.String("correlation_id", m.CorrelationID),
		zap.Int64("product_id", m.ProductID),
		zap.Int64("store_id", m.StoreID),
		zap.String("type", string(m.Type)),
		zap.Int("quantity", m.Quantity),
		zap.Int("new_stock", newStock))

	return &Accepted{Movement: m, NewStock: newStock}, nil
}

// Transfer commits both legs atomically: the source decrement and the
// destination increment either both persist or neither does.
func (s *MovementService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if req.FromStoreID == req.ToStoreID {
		return nil, ErrSameStore
	}
	if err := s.checkProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}
	if err := s.checkStore(ctx, req.FromStoreID); err != nil {
		return nil, err
	}
	if err := s.checkStore(ctx, req.ToStoreID); err != nil {
		return nil, err
	}

	correlationID := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)
	out := domain.Movement{
		CorrelationID: correlationID + ":out",
		ProductID:     req.ProductID,
		StoreID:       req.FromStoreID,
		Type:          domain.MovementTransfer,
		Direction:     domain.DirectionOut,
		Quantity:      req.Quantity,
		Notes:         req.Notes,
		Timestamp:     now,
	}
	in := domain.Movement{
		CorrelationID: correlationID + ":in",
		ProductID:     req.ProductID,
		StoreID:       req.ToStoreID,
		Type:          domain.MovementTransfer,
		Direction:     domain.DirectionIn,
		Quantity:      req.Quantity,
		Notes:         req.Notes,
		Timestamp:     now,
	}

	var fromStock, toStock int
	err := retryTransient(s.cfg.RetryAttempts, s.cfg.RetryBackoff, func() error {
		applyCtx, cancel := context.WithTimeout(ctx, s.cfg.ApplyTimeout)
		defer cancel()

		var err error
		fromStock, toStock, err = s.repo.Transfer(applyCtx, &out, &in)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, storeID := range []int64{req.FromStoreID, req.ToStoreID} {
		if err := s.cache.Invalidate(ctx, storeID); err != nil {
			s.log.Error("cache invalidation failed",
				zap.Int64("store_id", storeID), zap.Error(err))
		}
	}

	s.log.Info("transfer accepted",
		zap.String("correlation_id", correlationID),
		zap.Int64("product_id", req.ProductID),
		zap.Int64("from_store_id", req.FromStoreID),
		zap.Int64("to_store_id", req.ToStoreID),
		zap.Int("quantity", req.Quantity))

	return &TransferResult{CorrelationID: correlationID, FromStock: fromStock, ToStock: toStock}, nil
}

// AppendWorker drains the deferred-append queue until it closes. Failed
// appends are re-enqueued up to the attempt budget, then recorded as
// consistency faults.
func (s *MovementService) AppendWorker(id int) {
	for t := range s.queue.Dequeue() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ApplyTimeout)
		_, err := s.repo.AppendMovement(ctx, &t.Movement)
		cancel()

		if err == nil {
			s.clearInflight(t.Movement.CorrelationID)
			s.log.Debug("ledger append committed",
				zap.Int("worker", id),
				zap.String("correlation_id", t.Movement.CorrelationID))
			continue
		}

		if t.Attempt+1 < s.cfg.AppendAttempts {
			t.Attempt++
			s.log.Warn("ledger append failed, requeueing",
				zap.Int("worker", id),
				zap.String("correlation_id", t.Movement.CorrelationID),
				zap.Int("attempt", t.Attempt),
				zap.Error(err))
			// Requeue after the backoff without stalling this worker; the
			// queue keeps draining other tasks in the meantime.
			task := t
			appendErr := err
			time.AfterFunc(s.cfg.RetryBackoff*time.Duration(task.Attempt), func() {
				if qerr := s.queue.Enqueue(context.Background(), task); qerr != nil {
					s.recordFault(task.Movement, fmt.Sprintf("requeue failed: %v (append: %v)", qerr, appendErr))
				}
			})
			continue
		}
		s.recordFault(t.Movement, err.Error())
	}
}

// Faults returns the movements whose deferred ledger append permanently
// failed. The projection holds their effect; the reconciler repairs the gap.
func (s *MovementService) Faults() []ConsistencyFault {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConsistencyFault, len(s.faults))
	copy(out, s.faults)
	return out
}

func (s *MovementService) deferAppend(ctx context.Context, m domain.Movement) {
	s.markInflight(m.CorrelationID)
	err := s.queue.Enqueue(ctx, port.AppendTask{Movement: m})
	if err == nil {
		return
	}
	s.log.Warn("append queue unavailable, writing ledger inline",
		zap.String("correlation_id", m.CorrelationID), zap.Error(err))

	appendCtx, cancel := context.WithTimeout(ctx, s.cfg.ApplyTimeout)
	defer cancel()
	if _, err := s.repo.AppendMovement(appendCtx, &m); err != nil {
		// Keep the id marked: a replay of a faulted movement must not
		// reapply the projection.
		s.recordFault(m, err.Error())
		return
	}
	s.clearInflight(m.CorrelationID)
}

func (s *MovementService) markInflight(correlationID string) {
	s.mu.Lock()
	s.inflight[correlationID] = struct{}{}
	s.mu.Unlock()
}

func (s *MovementService) clearInflight(correlationID string) {
	s.mu.Lock()
	delete(s.inflight, correlationID)
	s.mu.Unlock()
}

func (s *MovementService) isInflight(correlationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[correlationID]
	return ok
}

func (s *MovementService) recordFault(m domain.Movement, reason string) {
	s.log.Error("CRITICAL: ledger append permanently failed, projection and ledger diverge",
		zap.String("correlation_id", m.CorrelationID),
		zap.Int64("product_id", m.ProductID),
		zap.Int64("store_id", m.StoreID),
		zap.String("reason", reason))
	s.mu.Lock()
	s.faults = append(s.faults, ConsistencyFault{Movement: m, Reason: reason, At: time.Now()})
	s.mu.Unlock()
}

func (s *MovementService) checkProduct(ctx context.Context, id int64) error {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return domain.ErrProductNotFound
	}
	return nil
}

func (s *MovementService) checkStore(ctx context.Context, id int64) error {
	st, err := s.repo.GetStore(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return domain.ErrStoreNotFound
	}
	return nil
}

// retryTransient reruns fn while it fails with domain.ErrStorageBusy, up to
// n attempts.
func retryTransient(n int, sleep time.Duration, fn func() error) error {
	var err error
	for i := 0; i < n; i++ {
		if err = fn(); err == nil || !errors.Is(err, domain.ErrStorageBusy) {
			return err
		}
		time.Sleep(sleep)
	}
	return err
}
