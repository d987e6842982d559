package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"thermal-annotator/internal/anomaly"
)

// DefaultTimeout bounds each store call made by a Committer.
const DefaultTimeout = 15 * time.Second

var errNotPersisted = errors.New("anomaly was never persisted")

// Committer applies committed edits to a Store in the background. It never
// blocks the caller. Calls for the same slot run in commit order, so an edit
// made while its create is still in flight waits for the create's id.
//
// On failure the error handler is called, then the collection is refetched
// and replaced with the store's view. There is no automatic rollback. A
// refetch waits for creates already talking to the store, and entries whose
// create is still queued survive it.
type Committer struct {
	store        Store
	inspectionID string
	coll         *anomaly.Collection
	timeout      time.Duration
	onError      func(*PersistenceError)
	onRefresh    func([]anomaly.Anomaly)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// createMu is held shared from a store create until its id is in the
	// collection, and exclusively by Refresh.
	createMu sync.RWMutex

	mu       sync.Mutex
	queues   map[anomaly.Slot]*slotQueue
	creating map[anomaly.Slot]int
}

type slotQueue struct {
	ops     []func(ctx context.Context, q *slotQueue) error
	running bool
	// id is the store id learned by this slot's create, for later calls
	// queued before the collection saw it.
	id string
}

// CommitterOption configures a Committer.
type CommitterOption func(*Committer)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) CommitterOption {
	return func(c *Committer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithErrorHandler sets the callback for failed calls. It runs on a
// background goroutine.
func WithErrorHandler(fn func(*PersistenceError)) CommitterOption {
	return func(c *Committer) { c.onError = fn }
}

// WithRefreshHandler sets the callback that receives the refetched list
// after the collection has been replaced. It runs on a background goroutine.
func WithRefreshHandler(fn func([]anomaly.Anomaly)) CommitterOption {
	return func(c *Committer) { c.onRefresh = fn }
}

// NewCommitter creates a committer for one inspection's collection.
// Cancelling ctx abandons outstanding calls.
func NewCommitter(ctx context.Context, s Store, inspectionID string, coll *anomaly.Collection, opts ...CommitterOption) *Committer {
	ctx, cancel := context.WithCancel(ctx)
	c := &Committer{
		store:        s,
		inspectionID: inspectionID,
		coll:         coll,
		timeout:      DefaultTimeout,
		ctx:          ctx,
		cancel:       cancel,
		queues:       make(map[anomaly.Slot]*slotQueue),
		creating:     make(map[anomaly.Slot]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CommitCreate persists a new anomaly and records its id in slot.
func (c *Committer) CommitCreate(slot anomaly.Slot, a anomaly.Anomaly) {
	c.mu.Lock()
	c.creating[slot]++
	c.mu.Unlock()

	c.enqueue(slot, func(ctx context.Context, q *slotQueue) error {
		defer c.createDone(slot)
		c.createMu.RLock()
		defer c.createMu.RUnlock()

		id, err := c.store.Create(ctx, c.inspectionID, a)
		if err != nil {
			return Wrap(OpCreate, c.inspectionID, "", err)
		}
		c.mu.Lock()
		q.id = id
		c.mu.Unlock()
		c.coll.AssignID(slot, id)
		slog.Info("Anomaly created", "inspection", c.inspectionID, "id", id, "class", a.Class)
		return nil
	})
}

// CommitUpdate replaces the stored box and class of the anomaly in slot.
func (c *Committer) CommitUpdate(slot anomaly.Slot, a anomaly.Anomaly) {
	c.enqueue(slot, func(ctx context.Context, q *slotQueue) error {
		id := c.resolveID(slot, q, a.ID)
		if id == "" {
			return Wrap(OpUpdate, c.inspectionID, "", errNotPersisted)
		}
		if err := c.store.Update(ctx, c.inspectionID, id, a.Box, a.Class); err != nil {
			return Wrap(OpUpdate, c.inspectionID, id, err)
		}
		slog.Info("Anomaly updated", "inspection", c.inspectionID, "id", id, "class", a.Class)
		return nil
	})
}

// CommitDelete removes the anomaly that was in slot.
func (c *Committer) CommitDelete(slot anomaly.Slot, a anomaly.Anomaly) {
	c.enqueue(slot, func(ctx context.Context, q *slotQueue) error {
		id := c.resolveID(slot, q, a.ID)
		if id == "" {
			return Wrap(OpDelete, c.inspectionID, "", errNotPersisted)
		}
		if err := c.store.Delete(ctx, c.inspectionID, id); err != nil {
			return Wrap(OpDelete, c.inspectionID, id, err)
		}
		slog.Info("Anomaly deleted", "inspection", c.inspectionID, "id", id)
		return nil
	})
}

func (c *Committer) createDone(slot anomaly.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creating[slot]--; c.creating[slot] <= 0 {
		delete(c.creating, slot)
	}
}

func (c *Committer) pendingCreates() []anomaly.Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	slots := make([]anomaly.Slot, 0, len(c.creating))
	for slot := range c.creating {
		slots = append(slots, slot)
	}
	return slots
}

func (c *Committer) resolveID(slot anomaly.Slot, q *slotQueue, known string) string {
	if known != "" {
		return known
	}
	if cur, ok := c.coll.Get(slot); ok && cur.ID != "" {
		return cur.ID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return q.id
}

func (c *Committer) enqueue(slot anomaly.Slot, op func(context.Context, *slotQueue) error) {
	c.mu.Lock()
	q, ok := c.queues[slot]
	if !ok {
		q = &slotQueue{}
		c.queues[slot] = q
	}
	q.ops = append(q.ops, op)
	start := !q.running
	q.running = true
	c.mu.Unlock()

	if start {
		c.wg.Add(1)
		go c.drain(slot, q)
	}
}

func (c *Committer) drain(slot anomaly.Slot, q *slotQueue) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		if len(q.ops) == 0 {
			q.running = false
			if c.queues[slot] == q {
				delete(c.queues, slot)
			}
			c.mu.Unlock()
			return
		}
		op := q.ops[0]
		q.ops = q.ops[1:]
		c.mu.Unlock()

		if err := c.run(op, q); err != nil {
			c.fail(err)
		}
	}
}

func (c *Committer) run(op func(context.Context, *slotQueue) error, q *slotQueue) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	return op(ctx, q)
}

func (c *Committer) fail(err error) {
	if c.ctx.Err() != nil {
		slog.Debug("Commit abandoned", "inspection", c.inspectionID, "error", err)
		return
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		pe = &PersistenceError{InspectionID: c.inspectionID, Err: err}
	}
	slog.Error("Persisting anomaly failed", "op", pe.Op, "inspection", pe.InspectionID, "id", pe.AnomalyID, "error", pe.Err)
	if c.onError != nil {
		c.onError(pe)
	}
	if _, err := c.Refresh(c.ctx); err != nil {
		slog.Error("Refetching anomalies failed", "inspection", c.inspectionID, "error", err)
	}
}

// Refresh loads the authoritative list and replaces the collection with it.
func (c *Committer) Refresh(ctx context.Context) ([]anomaly.Anomaly, error) {
	c.createMu.Lock()
	defer c.createMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	list, err := c.store.List(ctx, c.inspectionID)
	if err != nil {
		return nil, Wrap(OpList, c.inspectionID, "", err)
	}
	c.coll.Replace(list, c.pendingCreates()...)
	if c.onRefresh != nil {
		c.onRefresh(list)
	}
	return list, nil
}

// Wait blocks until every queued call has finished.
func (c *Committer) Wait() {
	c.wg.Wait()
}

// Close abandons outstanding calls and waits for their goroutines.
func (c *Committer) Close() {
	c.cancel()
	c.wg.Wait()
}
