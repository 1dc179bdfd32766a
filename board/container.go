package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store persists serialized Board snapshots. LoadBoard returns nil data and
// a nil error when nothing has been saved yet.
type Store interface {
	LoadBoard(ctx context.Context, owner, key string) ([]byte, error)
	SaveBoard(ctx context.Context, owner, key string, data []byte) error
}

// Transform is a pure function over a Board. Returning ErrNoChange abandons
// the update without touching history.
type Transform func(b *Board) error

// Container owns one user's Board, its bounded undo/redo history and its persistence.
type Container struct {
	mu     sync.Mutex
	owner  string
	store  Store
	logger *zap.Logger
	now    func() time.Time

	current Board
	undo    []Board
	redo    []Board
}

// Load builds a Container for owner, restoring the last saved snapshot. Missing,
// undecodable or invalid snapshots fall back to EmptyBoard.
func Load(ctx context.Context, owner string, store Store, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{
		owner:  owner,
		store:  store,
		logger: logger,
		now:    time.Now,
	}

	data, err := store.LoadBoard(ctx, owner, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}
	c.current = decodeSnapshot(data, logger.With(zap.String("owner", owner)))
	return c, nil
}

func decodeSnapshot(data []byte, logger *zap.Logger) Board {
	if len(data) == 0 {
		return EmptyBoard()
	}
	var b Board
	if err := json.Unmarshal(data, &b); err != nil {
		logger.Debug("Discarding undecodable board snapshot", zap.Error(err))
		return EmptyBoard()
	}
	if err := b.Validate(); err != nil {
		logger.Debug("Discarding invalid board snapshot", zap.Error(err))
		return EmptyBoard()
	}
	return b
}

// SetClock replaces the time source used to stamp mutations.
func (c *Container) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Now returns the container's current time.
func (c *Container) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

// Snapshot returns a deep copy of the current Board.
func (c *Container) Snapshot() Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// CanUndo and CanRedo report the history depth on each side.
func (c *Container) CanUndo() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.undo)
}

func (c *Container) CanRedo() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.redo)
}

// Update applies fn to a copy of the Board and commits it. It reports whether
// the Board changed. Errors from fn other than ErrNoChange are returned as is.
func (c *Container) Update(ctx context.Context, fn Transform) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.current.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return false, nil
		}
		return false, err
	}

	if err := c.persist(ctx, next); err != nil {
		return false, err
	}

	c.undo = pushBounded(c.undo, c.current)
	c.redo = nil
	c.current = next
	return true, nil
}

// Undo restores the previous snapshot.
func (c *Container) Undo(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.undo) == 0 {
		return ErrNothingToUndo
	}
	prev := c.undo[len(c.undo)-1]
	if err := c.persist(ctx, prev); err != nil {
		return err
	}
	c.undo = c.undo[:len(c.undo)-1]
	c.redo = pushBounded(c.redo, c.current)
	c.current = prev
	return nil
}

// Redo re-applies the most recently undone snapshot.
func (c *Container) Redo(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.redo) == 0 {
		return ErrNothingToRedo
	}
	next := c.redo[len(c.redo)-1]
	if err := c.persist(ctx, next); err != nil {
		return err
	}
	c.redo = c.redo[:len(c.redo)-1]
	c.undo = pushBounded(c.undo, c.current)
	c.current = next
	return nil
}

func (c *Container) persist(ctx context.Context, b Board) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}
	if err := c.store.SaveBoard(ctx, c.owner, StorageKey, data); err != nil {
		return fmt.Errorf("failed to save board: %w", err)
	}
	return nil
}

func pushBounded(stack []Board, b Board) []Board {
	stack = append(stack, b)
	if len(stack) > HistoryDepth {
		stack = append([]Board(nil), stack[len(stack)-HistoryDepth:]...)
	}
	return stack
}

// Manager hands out one Container per user, loading it on first use.
// Containers stay cached for the life of the process; the cache is unbounded.
type Manager struct {
	mu      sync.Mutex
	store   Store
	logger  *zap.Logger
	entries map[string]*managedContainer
}

// managedContainer is a cache slot. ready closes once the load finishes.
type managedContainer struct {
	ready     chan struct{}
	container *Container
	err       error
}

func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		logger:  logger,
		entries: make(map[string]*managedContainer),
	}
}

// Get returns the owner's Container. Concurrent first calls for one owner
// share a single load; loads for different owners run in parallel. A failed
// load is not cached.
func (m *Manager) Get(ctx context.Context, owner string) (*Container, error) {
	m.mu.Lock()
	e, ok := m.entries[owner]
	if !ok {
		e = &managedContainer{ready: make(chan struct{})}
		m.entries[owner] = e
	}
	m.mu.Unlock()

	if ok {
		select {
		case <-e.ready:
			return e.container, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.container, e.err = Load(ctx, owner, m.store, m.logger)
	if e.err != nil {
		m.mu.Lock()
		delete(m.entries, owner)
		m.mu.Unlock()
	} else {
		m.logger.Debug("Loaded board container", zap.String("owner", owner))
	}
	close(e.ready)
	return e.container, e.err
}
