package board

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent png
var pixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func TestDraft_CommitIsAtomic(t *testing.T) {
	c, _ := newTestContainer(t)
	ctx := context.Background()
	seed(t, c, "small", "a")
	original, _ := c.Snapshot().Column("a")

	d := NewDraft(original)
	d.SetTitle("  Detail flatbed for pickup ")
	d.SetDuration("2 days")
	require.NoError(t, d.SetCriticality(7))
	require.NoError(t, d.SetColor(Palette[4]))
	require.NoError(t, d.SetReminder(&Reminder{Type: ReminderAlarm, Time: testNow, DismissOnOpen: true}))
	require.NoError(t, d.AddLink(Link{Label: "VIN", URL: "https://dealer.test/vin/123"}))
	require.NoError(t, d.AppendMessage("customer wants Friday", testNow))

	current, _ := c.Snapshot().Column("a")
	assert.Equal(t, original, current, "draft edits must not leak before commit")

	require.NoError(t, d.Commit(ctx, c))
	saved, _ := c.Snapshot().Column("a")
	assert.Equal(t, "Detail flatbed for pickup", saved.Title)
	assert.Equal(t, 7, saved.Criticality)
	assert.Equal(t, Palette[4], saved.HighlightColor)
	assert.Equal(t, ReminderAlarm, saved.Reminder.Type)
	assert.Len(t, saved.Links, 1)
	assert.Len(t, saved.Messages, 1)
	assert.Equal(t, 2, c.CanUndo(), "commit is a single history entry")
}

func TestDraft_DiscardLeavesBoardAlone(t *testing.T) {
	c, store := newTestContainer(t)
	seed(t, c, "small", "a")
	saves := store.saves

	col, _ := c.Snapshot().Column("a")
	d := NewDraft(col)
	d.SetTitle("changed")
	require.Equal(t, "changed", d.Column().Title)

	after, _ := c.Snapshot().Column("a")
	assert.Equal(t, "a", after.Title)
	assert.Equal(t, saves, store.saves)
}

func TestDraft_Validation(t *testing.T) {
	d := NewDraft(NewColumn("a", testNow))

	assert.ErrorIs(t, d.SetCriticality(0), ErrInvalidCritical)
	assert.ErrorIs(t, d.SetCriticality(11), ErrInvalidCritical)
	assert.ErrorIs(t, d.SetColor("chartreuse"), ErrInvalidColor)
	assert.ErrorIs(t, d.SetReminder(&Reminder{Type: "pager"}), ErrInvalidReminder)
	assert.ErrorIs(t, d.AppendMessage("   ", testNow), ErrEmptyMessage)
	assert.ErrorIs(t, d.EditLink(0, Link{Label: "x", URL: "https://x.test"}), ErrLinkIndex)
	assert.ErrorIs(t, d.RemoveLink(3), ErrLinkIndex)
	assert.ErrorIs(t, d.AddLink(Link{Label: "", URL: "https://x.test"}), ErrInvalidLink)

	require.NoError(t, d.SetReminder(nil))
	assert.Nil(t, d.Column().Reminder)
}

func TestDraft_DescriptionIsTruncated(t *testing.T) {
	d := NewDraft(NewColumn("a", testNow))
	d.SetDescription(strings.Repeat("é", MaxDescriptionLength+50))
	assert.Equal(t, MaxDescriptionLength, len([]rune(d.Column().Description)))
}

func TestDraft_LinkCeilingAndEditing(t *testing.T) {
	d := NewDraft(NewColumn("a", testNow))
	for i := 0; i < MaxLinks; i++ {
		require.NoError(t, d.AddLink(Link{Label: fmt.Sprint(i), URL: fmt.Sprintf("https://dealer.test/%d", i)}))
	}
	assert.ErrorIs(t, d.AddLink(Link{Label: "31", URL: "https://dealer.test/31"}), ErrTooManyLinks)
	assert.Len(t, d.Column().Links, MaxLinks)

	require.NoError(t, d.EditLink(0, Link{Label: "first", URL: "https://dealer.test/first"}))
	require.NoError(t, d.RemoveLink(1))
	links := d.Column().Links
	assert.Len(t, links, MaxLinks-1)
	assert.Equal(t, "first", links[0].Label)
	assert.Equal(t, "2", links[1].Label)
}

func TestDraft_Image(t *testing.T) {
	d := NewDraft(NewColumn("a", testNow))
	require.NoError(t, d.SetImage(pixel))
	assert.True(t, strings.HasPrefix(d.Column().Image, "data:image/png;base64,"))

	assert.ErrorIs(t, d.SetImage([]byte("plain text, not an image")), ErrInvalidImage)
	require.NoError(t, d.SetImage(nil))
	assert.Empty(t, d.Column().Image)
}

func TestExport_SummarisesColumn(t *testing.T) {
	d := NewDraft(NewColumn("Title transfer for 16ft utility", testNow))
	require.NoError(t, d.SetCriticality(8))
	d.SetDuration("1 week")
	d.SetDescription("Waiting on DMV.")
	require.NoError(t, d.AddLink(Link{Label: "Bill of sale", URL: "https://dealer.test/bos"}))
	for i := 1; i <= 7; i++ {
		require.NoError(t, d.AppendMessage(fmt.Sprintf("update %d", i), testNow))
	}

	out, err := Export(d.Column(), 3)
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, "# Title transfer for 16ft utility")
	assert.Contains(t, doc, "| 8/10 | 1 week | - |")
	assert.Contains(t, doc, "Waiting on DMV.")
	assert.Contains(t, doc, "[Bill of sale](https://dealer.test/bos)")
	assert.Contains(t, doc, "update 7")
	assert.Contains(t, doc, "update 5")
	assert.NotContains(t, doc, "update 4")
}
