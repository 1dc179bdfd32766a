package board

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove_AcrossCategories(t *testing.T) {
	c, _ := newTestContainer(t)
	seed(t, c, "quick-wins", "a1", "a2", "a3")
	seed(t, c, "medium", "b1", "b2", "b3")

	changed, err := c.Update(context.Background(), Move("a2", "b2"))
	require.NoError(t, err)
	require.True(t, changed)

	b := c.Snapshot()
	assert.Equal(t, []string{"a1", "a3"}, columnIDs(b.Categories[0]))
	assert.Equal(t, []string{"b1", "a2", "b2", "b3"}, columnIDs(b.Categories[2]))
}

func TestMove_WithinCategory(t *testing.T) {
	c, _ := newTestContainer(t)
	seed(t, c, "small", "a", "b", "c", "d")

	_, err := c.Update(context.Background(), Move("d", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "b", "c"}, columnIDs(c.Snapshot().Categories[1]))
}

func TestMove_DownwardWithinCategory(t *testing.T) {
	c, _ := newTestContainer(t)
	seed(t, c, "small", "a", "b", "c", "d")

	_, err := c.Update(context.Background(), Move("a", "d"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a", "d"}, columnIDs(c.Snapshot().Categories[1]))

	_, err = c.Update(context.Background(), Move("a", "small"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "a"}, columnIDs(c.Snapshot().Categories[1]))
}

func TestMove_IntoEmptyCategory(t *testing.T) {
	c, _ := newTestContainer(t)
	seed(t, c, "small", "a", "b")

	_, err := c.Update(context.Background(), Move("a", "large"))
	require.NoError(t, err)

	b := c.Snapshot()
	assert.Equal(t, []string{"b"}, columnIDs(b.Categories[1]))
	assert.Equal(t, []string{"a"}, columnIDs(b.Categories[3]))
}

func TestMove_OntoCategoryAppends(t *testing.T) {
	c, _ := newTestContainer(t)
	seed(t, c, "small", "a")
	seed(t, c, "medium", "x", "y")

	_, err := c.Update(context.Background(), Move("a", "medium"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "a"}, columnIDs(c.Snapshot().Categories[2]))
}

func TestMove_NoOps(t *testing.T) {
	c, _ := newTestContainer(t)
	seed(t, c, "small", "a", "b")
	before := c.Snapshot()

	for _, tc := range []struct{ active, over string }{
		{"a", "a"},
		{"missing", "b"},
		{"a", "nowhere"},
		{"", "b"},
	} {
		changed, err := c.Update(context.Background(), Move(tc.active, tc.over))
		require.NoError(t, err, "%s -> %s", tc.active, tc.over)
		assert.False(t, changed, "%s -> %s", tc.active, tc.over)
	}
	assert.Equal(t, before, c.Snapshot())
}

func TestMove_LockedColumnStaysPut(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	seed(t, c, "medium", "m1", "m2")

	col := NewColumn("Order replacement axle", testNow)
	draft := NewDraft(col)
	require.NoError(t, draft.SetCriticality(9))
	draft.SetLocked(true)
	_, err := c.Update(ctx, AddColumn("medium", draft.Column()))
	require.NoError(t, err)
	seed(t, c, "large", "l1")

	_, err = c.Update(ctx, Move(col.ID, "l1"))
	assert.ErrorIs(t, err, ErrColumnLocked)

	b := c.Snapshot()
	assert.Equal(t, []string{"m1", "m2", col.ID}, columnIDs(b.Categories[2]))
	assert.Equal(t, []string{"l1"}, columnIDs(b.Categories[3]))
	assert.Equal(t, 9, b.Categories[2].Columns[2].Criticality)
}

func TestMoveToLine_InsertsContiguousBlock(t *testing.T) {
	c, _ := newTestContainer(t)
	seed(t, c, "small", "x", "y", "z", "a", "b")
	seed(t, c, "large", "q", "r")

	_, err := c.Update(context.Background(), MoveToLine([]string{"a", "b"}, 2))
	require.NoError(t, err)

	b := c.Snapshot()
	assert.Equal(t, []string{"x", "a", "b", "y", "z"}, columnIDs(b.Categories[1]))
	assert.Equal(t, []string{"q", "r"}, columnIDs(b.Categories[3]), "unselected categories are untouched")
}

func TestMoveToLine_ClampsLine(t *testing.T) {
	cases := []struct {
		line int
		want []string
	}{
		{line: 0, want: []string{"b", "x", "y"}},
		{line: -4, want: []string{"b", "x", "y"}},
		{line: 3, want: []string{"x", "y", "b"}},
		{line: 99, want: []string{"x", "y", "b"}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.line), func(t *testing.T) {
			c, _ := newTestContainer(t)
			seed(t, c, "medium", "x", "b", "y")
			_, err := c.Update(context.Background(), MoveToLine([]string{"b"}, tc.line))
			require.NoError(t, err)
			assert.Equal(t, tc.want, columnIDs(c.Snapshot().Categories[2]))
		})
	}
}

func TestMoveToLine_PerCategory(t *testing.T) {
	c, _ := newTestContainer(t)
	seed(t, c, "quick-wins", "a", "b", "s1")
	seed(t, c, "large", "c", "s2", "d")

	_, err := c.Update(context.Background(), MoveToLine([]string{"s1", "s2"}, 1))
	require.NoError(t, err)

	b := c.Snapshot()
	assert.Equal(t, []string{"s1", "a", "b"}, columnIDs(b.Categories[0]))
	assert.Equal(t, []string{"s2", "c", "d"}, columnIDs(b.Categories[3]))
}

func TestTrashAndRestore(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	seed(t, c, "small", "a", "b", "c")

	_, err := c.Update(ctx, TrashColumns([]string{"a", "c"}, testNow))
	require.NoError(t, err)

	b := c.Snapshot()
	assert.Equal(t, []string{"b"}, columnIDs(b.Categories[1]))
	require.Len(t, b.Trash, 2)
	for _, col := range b.Trash {
		require.NotNil(t, col.TrashedAt)
		assert.True(t, col.TrashedAt.Equal(testNow))
	}
	require.NoError(t, b.Validate())

	_, err = c.Update(ctx, Restore("c", "large", testNow))
	require.NoError(t, err)
	b = c.Snapshot()
	assert.Equal(t, []string{"c"}, columnIDs(b.Categories[3]))
	assert.Nil(t, b.Categories[3].Columns[0].TrashedAt)
	assert.Len(t, b.Trash, 1)

	_, err = c.Update(ctx, Restore("b", "large", testNow))
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestTrashedColumnCannotBeDragged(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	seed(t, c, "small", "a", "b")
	_, err := c.Update(ctx, TrashColumns([]string{"a"}, testNow))
	require.NoError(t, err)

	changed, err := c.Update(ctx, Move("a", "b"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestHighlight(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	seed(t, c, "small", "a", "b")

	_, err := c.Update(ctx, Highlight([]string{"a", "b"}, Palette[2], testNow))
	require.NoError(t, err)
	for _, col := range c.Snapshot().Categories[1].Columns {
		assert.Equal(t, Palette[2], col.HighlightColor)
	}

	_, err = c.Update(ctx, Highlight([]string{"a"}, "#123456", testNow))
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestAddLink_Ceiling(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	seed(t, c, "small", "a")

	for i := 0; i < MaxLinks; i++ {
		link := Link{Label: fmt.Sprintf("spec sheet %d", i), URL: fmt.Sprintf("https://dealer.test/docs/%d", i)}
		_, err := c.Update(ctx, AddLink("a", link, testNow))
		require.NoError(t, err)
	}
	_, err := c.Update(ctx, AddLink("a", Link{Label: "one more", URL: "https://dealer.test/x"}, testNow))
	assert.ErrorIs(t, err, ErrTooManyLinks)

	col, ok := c.Snapshot().Column("a")
	require.True(t, ok)
	assert.Len(t, col.Links, MaxLinks)
}

func TestAddLink_RejectsBadURL(t *testing.T) {
	c, _ := newTestContainer(t)
	seed(t, c, "small", "a")
	_, err := c.Update(context.Background(), AddLink("a", Link{Label: "x", URL: "not a url"}, testNow))
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestReplaceColumn_RejectsRewrittenHistory(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	seed(t, c, "small", "a")
	_, err := c.Update(ctx, AppendMessage("a", "called customer", testNow))
	require.NoError(t, err)

	col, _ := c.Snapshot().Column("a")
	col.Messages[0].Text = "never called"
	_, err = c.Update(ctx, ReplaceColumn(col, testNow))
	assert.ErrorIs(t, err, ErrHistoryRewritten)

	col, _ = c.Snapshot().Column("a")
	col.Messages = nil
	_, err = c.Update(ctx, ReplaceColumn(col, testNow))
	assert.ErrorIs(t, err, ErrHistoryRewritten)
}

func TestReplace_ValidatesImport(t *testing.T) {
	c, _ := newTestContainer(t)
	bad := EmptyBoard()
	bad.Categories = bad.Categories[:2]
	_, err := c.Update(context.Background(), Replace(bad))
	assert.ErrorIs(t, err, ErrInvalidBoardShape)

	dup := EmptyBoard()
	col := NewColumn("a", testNow)
	dup.Categories[0].Columns = []Column{col}
	dup.Trash = []Column{col}
	_, err = c.Update(context.Background(), Replace(dup))
	assert.ErrorIs(t, err, ErrInvalidBoardShape)
}

func TestReplace_ValidatesColumnContent(t *testing.T) {
	c, _ := newTestContainer(t)

	long := EmptyBoard()
	col := NewColumn("a", testNow)
	col.Description = strings.Repeat("é", MaxDescriptionLength+1)
	long.Categories[0].Columns = []Column{col}
	_, err := c.Update(context.Background(), Replace(long))
	assert.ErrorIs(t, err, ErrDescriptionLength)

	badLink := EmptyBoard()
	col = NewColumn("b", testNow)
	col.Links = []Link{{Label: "spec sheet", URL: "not a url"}}
	badLink.Trash = []Column{col}
	_, err = c.Update(context.Background(), Replace(badLink))
	assert.ErrorIs(t, err, ErrInvalidLink)

	ok := EmptyBoard()
	col = NewColumn("c", testNow)
	col.Description = strings.Repeat("é", MaxDescriptionLength)
	col.Links = []Link{{Label: "spec sheet", URL: "https://dealer.test/spec"}}
	ok.Categories[0].Columns = []Column{col}
	changed, err := c.Update(context.Background(), Replace(ok))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestAddColumn_UnknownCategory(t *testing.T) {
	c, _ := newTestContainer(t)
	_, err := c.Update(context.Background(), AddColumn("xl", NewColumn("a", testNow)))
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}
