package board

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	// StorageKey is the fixed key a Board snapshot is persisted under.
	StorageKey = "progress-tracker-board"

	MaxLinks             = 30
	MaxDescriptionLength = 2000
	MinCriticality       = 1
	MaxCriticality       = 10
	HistoryDepth         = 7
)

var (
	ErrColumnNotFound    = errors.New("column not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrColumnLocked      = errors.New("column is locked")
	ErrTooManyLinks      = errors.New("link limit reached")
	ErrInvalidCritical   = errors.New("criticality must be between 1 and 10")
	ErrInvalidColor      = errors.New("color is not in the palette")
	ErrInvalidReminder   = errors.New("unknown reminder type")
	ErrHistoryRewritten  = errors.New("message history can only be appended to")
	ErrEmptyMessage      = errors.New("message text is empty")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrNothingToRedo     = errors.New("nothing to redo")
	ErrNoChange          = errors.New("no change")
	ErrInvalidBoardShape = errors.New("invalid board")
	ErrDescriptionLength = errors.New("description is too long")
)

// Palette holds the highlight swatches a Column may use. The empty string clears the highlight.
var Palette = []string{"#ef4444", "#f97316", "#eab308", "#22c55e", "#3b82f6", "#8b5cf6", "#ec4899", "#64748b"}

type ReminderType string

const (
	ReminderNotification ReminderType = "notification"
	ReminderRingtone     ReminderType = "ringtone"
	ReminderAlarm        ReminderType = "alarm"
)

// Board is the whole progress tracker: the fixed categories and the trash.
type Board struct {
	Categories []Category `json:"categories"`
	Trash      []Column   `json:"trash"`
}

type Category struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	StepRange string   `json:"stepRange"`
	Columns   []Column `json:"columns"`
}

// Column is a single task card.
type Column struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Criticality    int        `json:"criticality"`
	HighlightColor string     `json:"highlightColor,omitempty"`
	Duration       string     `json:"duration,omitempty"`
	Reminder       *Reminder  `json:"reminder,omitempty"`
	Locked         bool       `json:"locked"`
	Links          []Link     `json:"links"`
	Messages       []Message  `json:"messages"`
	Image          string     `json:"image,omitempty"`
	LastUpdated    time.Time  `json:"lastUpdated"`
	TrashedAt      *time.Time `json:"trashedAt,omitempty"`
}

type Reminder struct {
	Type          ReminderType `json:"type"`
	Time          time.Time    `json:"time"`
	DismissOnOpen bool         `json:"dismissOnOpen"`
}

type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

var defaultCategories = []Category{
	{ID: "quick-wins", Name: "Quick Wins", StepRange: "1-2 steps"},
	{ID: "small", Name: "Small Projects", StepRange: "3-5 steps"},
	{ID: "medium", Name: "Medium Projects", StepRange: "6-10 steps"},
	{ID: "large", Name: "Large Projects", StepRange: "11+ steps"},
}

// EmptyBoard returns the four predefined categories with no columns and an empty trash.
func EmptyBoard() Board {
	b := Board{
		Categories: make([]Category, len(defaultCategories)),
		Trash:      []Column{},
	}
	for i, c := range defaultCategories {
		c.Columns = []Column{}
		b.Categories[i] = c
	}
	return b
}

// Clone returns a deep copy so transforms never alias the previous snapshot.
func (b Board) Clone() Board {
	out := Board{
		Categories: make([]Category, len(b.Categories)),
		Trash:      cloneColumns(b.Trash),
	}
	for i, c := range b.Categories {
		c.Columns = cloneColumns(c.Columns)
		out.Categories[i] = c
	}
	return out
}

func cloneColumns(cols []Column) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = c.Clone()
	}
	return out
}

func (c Column) Clone() Column {
	out := c
	out.Links = append([]Link{}, c.Links...)
	out.Messages = append([]Message{}, c.Messages...)
	if c.Reminder != nil {
		r := *c.Reminder
		out.Reminder = &r
	}
	if c.TrashedAt != nil {
		t := *c.TrashedAt
		out.TrashedAt = &t
	}
	return out
}

// CategoryIndex returns the index of the category with the given id, or -1.
func (b Board) CategoryIndex(id string) int {
	for i, c := range b.Categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Locate finds the category holding a column. ok is false when the column
// is not in any category (it may still be in the trash).
func (b Board) Locate(columnID string) (cat, idx int, ok bool) {
	for ci, c := range b.Categories {
		for i, col := range c.Columns {
			if col.ID == columnID {
				return ci, i, true
			}
		}
	}
	return -1, -1, false
}

// Column returns a copy of the column with the given id, searching categories then trash.
func (b Board) Column(id string) (Column, bool) {
	if ci, i, ok := b.Locate(id); ok {
		return b.Categories[ci].Columns[i].Clone(), true
	}
	for _, col := range b.Trash {
		if col.ID == id {
			return col.Clone(), true
		}
	}
	return Column{}, false
}

// Validate checks the structural invariants of a Board.
func (b Board) Validate() error {
	if len(b.Categories) != len(defaultCategories) {
		return fmt.Errorf("%w: expected %d categories, got %d", ErrInvalidBoardShape, len(defaultCategories), len(b.Categories))
	}
	seen := make(map[string]bool)
	check := func(col Column) error {
		if col.ID == "" {
			return fmt.Errorf("%w: column without id", ErrInvalidBoardShape)
		}
		if seen[col.ID] {
			return fmt.Errorf("%w: column %s appears twice", ErrInvalidBoardShape, col.ID)
		}
		seen[col.ID] = true
		return col.Validate()
	}
	for i, c := range b.Categories {
		if c.ID != defaultCategories[i].ID {
			return fmt.Errorf("%w: unexpected category %q", ErrInvalidBoardShape, c.ID)
		}
		for _, col := range c.Columns {
			if err := check(col); err != nil {
				return err
			}
		}
	}
	for _, col := range b.Trash {
		if err := check(col); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the per-column invariants.
func (c Column) Validate() error {
	if c.Criticality < MinCriticality || c.Criticality > MaxCriticality {
		return fmt.Errorf("column %s: %w", c.ID, ErrInvalidCritical)
	}
	if utf8.RuneCountInString(c.Description) > MaxDescriptionLength {
		return fmt.Errorf("column %s: %w", c.ID, ErrDescriptionLength)
	}
	if len(c.Links) > MaxLinks {
		return fmt.Errorf("column %s: %w", c.ID, ErrTooManyLinks)
	}
	for _, link := range c.Links {
		if err := validateLink(link); err != nil {
			return fmt.Errorf("column %s: %w", c.ID, err)
		}
	}
	if c.Reminder != nil && !validReminder(c.Reminder.Type) {
		return fmt.Errorf("column %s: %w", c.ID, ErrInvalidReminder)
	}
	if !validColor(c.HighlightColor) {
		return fmt.Errorf("column %s: %w", c.ID, ErrInvalidColor)
	}
	return nil
}

func validReminder(t ReminderType) bool {
	switch t {
	case ReminderNotification, ReminderRingtone, ReminderAlarm:
		return true
	}
	return false
}

func validColor(color string) bool {
	if color == "" {
		return true
	}
	for _, p := range Palette {
		if p == color {
			return true
		}
	}
	return false
}
