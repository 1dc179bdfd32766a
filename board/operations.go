package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewColumn returns an empty column with default criticality.
func NewColumn(title string, now time.Time) Column {
	return Column{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(title),
		Criticality: MinCriticality,
		Links:       []Link{},
		Messages:    []Message{},
		LastUpdated: now,
	}
}

// AddColumn appends col to the end of a category.
func AddColumn(categoryID string, col Column) Transform {
	return func(b *Board) error {
		ci := b.CategoryIndex(categoryID)
		if ci < 0 {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
		}
		if err := col.Validate(); err != nil {
			return err
		}
		if _, exists := b.Column(col.ID); exists {
			return fmt.Errorf("%w: duplicate column %s", ErrInvalidBoardShape, col.ID)
		}
		b.Categories[ci].Columns = append(b.Categories[ci].Columns, col.Clone())
		return nil
	}
}

// Move is the drag-and-drop commit. activeID is the dragged column; overID
// is either another column or a category container. The dragged column lands
// in front of overID, whose index is taken after the dragged column is
// removed, so dropping onto the category container is the only way to reach
// the last slot.
func Move(activeID, overID string) Transform {
	return func(b *Board) error {
		if activeID == "" || activeID == overID {
			return ErrNoChange
		}

		src, srcIdx, ok := b.Locate(activeID)
		if !ok {
			return ErrNoChange
		}
		dst, _, overIsColumn := b.Locate(overID)
		if !overIsColumn {
			dst = b.CategoryIndex(overID)
			if dst < 0 {
				return ErrNoChange
			}
		}

		col := b.Categories[src].Columns[srcIdx]
		if col.Locked {
			return ErrColumnLocked
		}

		b.Categories[src].Columns = removeAt(b.Categories[src].Columns, srcIdx)

		insertAt := len(b.Categories[dst].Columns)
		if overIsColumn {
			for i, c := range b.Categories[dst].Columns {
				if c.ID == overID {
					insertAt = i
					break
				}
			}
		}
		b.Categories[dst].Columns = insertColumn(b.Categories[dst].Columns, insertAt, col)
		return nil
	}
}

// MoveToLine moves the selected columns of every category to a contiguous
// block starting at 1-based line n among that category's remaining columns.
func MoveToLine(ids []string, line int) Transform {
	return func(b *Board) error {
		selected := toSet(ids)
		changed := false
		for ci := range b.Categories {
			cols := b.Categories[ci].Columns
			var picked, remaining []Column
			for _, c := range cols {
				if selected[c.ID] {
					picked = append(picked, c)
				} else {
					remaining = append(remaining, c)
				}
			}
			if len(picked) == 0 {
				continue
			}
			idx := clamp(line-1, 0, len(remaining))
			out := make([]Column, 0, len(cols))
			out = append(out, remaining[:idx]...)
			out = append(out, picked...)
			out = append(out, remaining[idx:]...)
			b.Categories[ci].Columns = out
			changed = true
		}
		if !changed {
			return ErrNoChange
		}
		return nil
	}
}

// TrashColumns soft-deletes columns into the trash, stamping trashedAt.
func TrashColumns(ids []string, now time.Time) Transform {
	return func(b *Board) error {
		moved := false
		for _, id := range ids {
			ci, i, ok := b.Locate(id)
			if !ok {
				continue
			}
			col := b.Categories[ci].Columns[i]
			b.Categories[ci].Columns = removeAt(b.Categories[ci].Columns, i)
			t := now
			col.TrashedAt = &t
			col.LastUpdated = now
			b.Trash = append(b.Trash, col)
			moved = true
		}
		if !moved {
			return ErrNoChange
		}
		return nil
	}
}

// Restore moves a trashed column to the end of a category.
func Restore(columnID, categoryID string, now time.Time) Transform {
	return func(b *Board) error {
		ci := b.CategoryIndex(categoryID)
		if ci < 0 {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
		}
		for i, col := range b.Trash {
			if col.ID != columnID {
				continue
			}
			b.Trash = removeAt(b.Trash, i)
			col.TrashedAt = nil
			col.LastUpdated = now
			b.Categories[ci].Columns = append(b.Categories[ci].Columns, col)
			return nil
		}
		return fmt.Errorf("%w: %s is not in the trash", ErrColumnNotFound, columnID)
	}
}

// Highlight sets the highlight color on every listed column.
func Highlight(ids []string, color string, now time.Time) Transform {
	return func(b *Board) error {
		if !validColor(color) {
			return ErrInvalidColor
		}
		found := false
		for _, id := range ids {
			ci, i, ok := b.Locate(id)
			if !ok {
				continue
			}
			b.Categories[ci].Columns[i].HighlightColor = color
			b.Categories[ci].Columns[i].LastUpdated = now
			found = true
		}
		if !found {
			return ErrNoChange
		}
		return nil
	}
}

// AppendMessage adds a message to a column's history.
func AppendMessage(columnID, text string, now time.Time) Transform {
	return func(b *Board) error {
		text = strings.TrimSpace(text)
		if text == "" {
			return ErrEmptyMessage
		}
		col, err := columnRef(b, columnID)
		if err != nil {
			return err
		}
		col.Messages = append(col.Messages, Message{ID: uuid.NewString(), Text: text, CreatedAt: now})
		col.LastUpdated = now
		return nil
	}
}

// AddLink appends a link, refusing once the column holds MaxLinks.
func AddLink(columnID string, link Link, now time.Time) Transform {
	return func(b *Board) error {
		if err := validateLink(link); err != nil {
			return err
		}
		col, err := columnRef(b, columnID)
		if err != nil {
			return err
		}
		if len(col.Links) >= MaxLinks {
			return ErrTooManyLinks
		}
		col.Links = append(col.Links, link)
		col.LastUpdated = now
		return nil
	}
}

// ReplaceColumn swaps in an edited column, keeping its place on the board.
// The stored message history must be a prefix of the replacement's.
func ReplaceColumn(edited Column, now time.Time) Transform {
	return func(b *Board) error {
		if err := edited.Validate(); err != nil {
			return err
		}
		col, err := columnRef(b, edited.ID)
		if err != nil {
			return err
		}
		if !extendsHistory(col.Messages, edited.Messages) {
			return ErrHistoryRewritten
		}
		edited = edited.Clone()
		edited.TrashedAt = col.TrashedAt
		edited.LastUpdated = now
		*col = edited
		return nil
	}
}

// Replace swaps the whole board, used for imports.
func Replace(next Board) Transform {
	return func(b *Board) error {
		if err := next.Validate(); err != nil {
			return err
		}
		*b = next.Clone()
		return nil
	}
}

func columnRef(b *Board, id string) (*Column, error) {
	if ci, i, ok := b.Locate(id); ok {
		return &b.Categories[ci].Columns[i], nil
	}
	for i := range b.Trash {
		if b.Trash[i].ID == id {
			return &b.Trash[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, id)
}

func extendsHistory(stored, next []Message) bool {
	if len(next) < len(stored) {
		return false
	}
	for i, m := range stored {
		n := next[i]
		if m.ID != n.ID || m.Text != n.Text || !m.CreatedAt.Equal(n.CreatedAt) {
			return false
		}
	}
	return true
}

func removeAt(cols []Column, i int) []Column {
	out := make([]Column, 0, len(cols)-1)
	out = append(out, cols[:i]...)
	return append(out, cols[i+1:]...)
}

func insertColumn(cols []Column, i int, col Column) []Column {
	out := make([]Column, 0, len(cols)+1)
	out = append(out, cols[:i]...)
	out = append(out, col)
	return append(out, cols[i:]...)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
