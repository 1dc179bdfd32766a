package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	failing bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) LoadBoard(_ context.Context, owner, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[owner+"/"+key], nil
}

func (s *memStore) SaveBoard(_ context.Context, owner, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	s.saves++
	s.data[owner+"/"+key] = append([]byte(nil), data...)
	return nil
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestContainer(t *testing.T) (*Container, *memStore) {
	t.Helper()
	store := newMemStore()
	c, err := Load(context.Background(), "rep@dealer.test", store, nil)
	require.NoError(t, err)
	c.SetClock(func() time.Time { return testNow })
	return c, store
}

// seed adds columns with the given ids (used as titles too) to a category.
func seed(t *testing.T, c *Container, categoryID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		col := NewColumn(id, testNow)
		col.ID = id
		_, err := c.Update(context.Background(), AddColumn(categoryID, col))
		require.NoError(t, err)
	}
}

func columnIDs(cat Category) []string {
	ids := make([]string, 0, len(cat.Columns))
	for _, col := range cat.Columns {
		ids = append(ids, col.ID)
	}
	return ids
}

func TestLoad_FallsBackToEmptyBoard(t *testing.T) {
	cases := map[string][]byte{
		"missing":     nil,
		"not json":    []byte("{{{"),
		"wrong shape": []byte(`{"categories":[{"id":"only-one"}],"trash":[]}`),
		"bad column":  []byte(`{"categories":[{"id":"quick-wins","columns":[{"id":"a","criticality":42}]},{"id":"small"},{"id":"medium"},{"id":"large"}]}`),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			if payload != nil {
				store.data["u/"+StorageKey] = payload
			}
			c, err := Load(context.Background(), "u", store, nil)
			require.NoError(t, err)
			if diff := cmp.Diff(EmptyBoard(), c.Snapshot()); diff != "" {
				t.Fatalf("board mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_RestoresSavedSnapshot(t *testing.T) {
	c, store := newTestContainer(t)
	seed(t, c, "medium", "a", "b")

	reloaded, err := Load(context.Background(), "rep@dealer.test", store, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(c.Snapshot(), reloaded.Snapshot()); diff != "" {
		t.Fatalf("reloaded board mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdate_PersistsEveryChange(t *testing.T) {
	c, store := newTestContainer(t)
	seed(t, c, "small", "a", "b", "c")
	assert.Equal(t, 3, store.saves)

	changed, err := c.Update(context.Background(), Move("a", "a"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 3, store.saves, "no-op must not persist")
	assert.Equal(t, 3, c.CanUndo(), "no-op must not push history")
}

func TestUpdate_StoreFailureLeavesStateUntouched(t *testing.T) {
	c, store := newTestContainer(t)
	seed(t, c, "small", "a")
	before := c.Snapshot()

	store.failing = true
	_, err := c.Update(context.Background(), AddColumn("small", NewColumn("b", testNow)))
	require.Error(t, err)
	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, 1, c.CanUndo())
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	c, _ := newTestContainer(t)
	initial := c.Snapshot()
	ctx := context.Background()

	const n = 5
	seed(t, c, "quick-wins", "a", "b", "c", "d", "e")
	latest := c.Snapshot()
	require.Equal(t, n, c.CanUndo())

	for i := 0; i < n; i++ {
		require.NoError(t, c.Undo(ctx))
	}
	if diff := cmp.Diff(initial, c.Snapshot()); diff != "" {
		t.Fatalf("undo did not restore the initial board (-want +got):\n%s", diff)
	}
	assert.ErrorIs(t, c.Undo(ctx), ErrNothingToUndo)
	assert.Equal(t, initial, c.Snapshot())

	for i := 0; i < n; i++ {
		require.NoError(t, c.Redo(ctx))
	}
	if diff := cmp.Diff(latest, c.Snapshot()); diff != "" {
		t.Fatalf("redo did not replay to the latest board (-want +got):\n%s", diff)
	}
	assert.ErrorIs(t, c.Redo(ctx), ErrNothingToRedo)
}

func TestUndo_HistoryIsBounded(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	for i := 0; i < HistoryDepth+3; i++ {
		seed(t, c, "large", fmt.Sprintf("col-%d", i))
	}
	assert.Equal(t, HistoryDepth, c.CanUndo())

	for i := 0; i < HistoryDepth; i++ {
		require.NoError(t, c.Undo(ctx))
	}
	assert.ErrorIs(t, c.Undo(ctx), ErrNothingToUndo)
	// The oldest reachable state still holds the first three columns.
	assert.Equal(t, []string{"col-0", "col-1", "col-2"}, columnIDs(c.Snapshot().Categories[3]))
}

func TestUpdate_ClearsRedo(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	seed(t, c, "small", "a", "b")
	require.NoError(t, c.Undo(ctx))
	require.Equal(t, 1, c.CanRedo())

	seed(t, c, "small", "c")
	assert.Equal(t, 0, c.CanRedo())
	assert.ErrorIs(t, c.Redo(ctx), ErrNothingToRedo)
}

func TestUndo_PersistsRestoredBoard(t *testing.T) {
	c, store := newTestContainer(t)
	seed(t, c, "small", "a")
	require.NoError(t, c.Undo(context.Background()))

	reloaded, err := Load(context.Background(), "rep@dealer.test", store, nil)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Snapshot().Categories[1].Columns)
}

func TestManager_ReturnsSameContainerPerOwner(t *testing.T) {
	m := NewManager(newMemStore(), nil)
	ctx := context.Background()

	a1, err := m.Get(ctx, "a@dealer.test")
	require.NoError(t, err)
	a2, err := m.Get(ctx, "a@dealer.test")
	require.NoError(t, err)
	b, err := m.Get(ctx, "b@dealer.test")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
}

// gatedStore blocks LoadBoard for one owner until release is closed.
type gatedStore struct {
	*memStore
	owner   string
	entered chan struct{}
	release chan struct{}
	fail    error
}

func (s *gatedStore) LoadBoard(ctx context.Context, owner, key string) ([]byte, error) {
	if owner == s.owner {
		close(s.entered)
		<-s.release
		if s.fail != nil {
			return nil, s.fail
		}
	}
	return s.memStore.LoadBoard(ctx, owner, key)
}

func TestManager_SlowLoadDoesNotBlockOtherOwners(t *testing.T) {
	store := &gatedStore{
		memStore: newMemStore(),
		owner:    "slow@dealer.test",
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	m := NewManager(store, nil)
	ctx := context.Background()

	type result struct {
		c   *Container
		err error
	}
	slow := make(chan result, 1)
	go func() {
		c, err := m.Get(ctx, "slow@dealer.test")
		slow <- result{c, err}
	}()
	<-store.entered

	fast, err := m.Get(ctx, "fast@dealer.test")
	require.NoError(t, err)
	require.NotNil(t, fast)

	waiting, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = m.Get(waiting, "slow@dealer.test")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(store.release)
	got := <-slow
	require.NoError(t, got.err)
	again, err := m.Get(ctx, "slow@dealer.test")
	require.NoError(t, err)
	assert.Same(t, got.c, again)
}

func TestManager_FailedLoadIsRetried(t *testing.T) {
	store := &gatedStore{
		memStore: newMemStore(),
		owner:    "rep@dealer.test",
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		fail:     errors.New("connection refused"),
	}
	close(store.release)
	m := NewManager(store, nil)

	_, err := m.Get(context.Background(), "rep@dealer.test")
	require.Error(t, err)

	store.owner = ""
	c, err := m.Get(context.Background(), "rep@dealer.test")
	require.NoError(t, err)
	assert.NotNil(t, c)
}
