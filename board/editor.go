package board

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxImageBytes caps uploaded card images before encoding.
const MaxImageBytes = 2 << 20

var (
	ErrInvalidLink  = errors.New("link needs a label and an absolute url")
	ErrLinkIndex    = errors.New("link index out of range")
	ErrInvalidImage = errors.New("image must be a png, jpeg, gif or webp under 2 MiB")
)

// Draft is an editor's private copy of a column. Nothing reaches the board
// until Commit.
type Draft struct {
	col Column
}

// NewDraft starts editing a copy of col.
func NewDraft(col Column) *Draft {
	return &Draft{col: col.Clone()}
}

// Column returns a copy of the draft's current state.
func (d *Draft) Column() Column { return d.col.Clone() }

func (d *Draft) SetTitle(title string) {
	d.col.Title = strings.TrimSpace(title)
}

// SetDescription stores text, truncated to MaxDescriptionLength runes.
func (d *Draft) SetDescription(text string) {
	d.col.Description = truncateRunes(text, MaxDescriptionLength)
}

func (d *Draft) SetCriticality(level int) error {
	if level < MinCriticality || level > MaxCriticality {
		return ErrInvalidCritical
	}
	d.col.Criticality = level
	return nil
}

func (d *Draft) SetDuration(label string) {
	d.col.Duration = strings.TrimSpace(label)
}

func (d *Draft) SetLocked(locked bool) {
	d.col.Locked = locked
}

// SetReminder replaces the reminder; nil clears it.
func (d *Draft) SetReminder(r *Reminder) error {
	if r == nil {
		d.col.Reminder = nil
		return nil
	}
	if !validReminder(r.Type) {
		return ErrInvalidReminder
	}
	copied := *r
	d.col.Reminder = &copied
	return nil
}

func (d *Draft) SetColor(color string) error {
	if !validColor(color) {
		return ErrInvalidColor
	}
	d.col.HighlightColor = color
	return nil
}

// SetImage embeds raw image bytes as a data URL. Empty data clears the image.
func (d *Draft) SetImage(data []byte) error {
	if len(data) == 0 {
		d.col.Image = ""
		return nil
	}
	if len(data) > MaxImageBytes {
		return ErrInvalidImage
	}
	mime := http.DetectContentType(data)
	switch mime {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
	default:
		return ErrInvalidImage
	}
	d.col.Image = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return nil
}

func (d *Draft) AddLink(link Link) error {
	if err := validateLink(link); err != nil {
		return err
	}
	if len(d.col.Links) >= MaxLinks {
		return ErrTooManyLinks
	}
	d.col.Links = append(d.col.Links, link)
	return nil
}

func (d *Draft) EditLink(i int, link Link) error {
	if i < 0 || i >= len(d.col.Links) {
		return ErrLinkIndex
	}
	if err := validateLink(link); err != nil {
		return err
	}
	d.col.Links[i] = link
	return nil
}

func (d *Draft) RemoveLink(i int) error {
	if i < 0 || i >= len(d.col.Links) {
		return ErrLinkIndex
	}
	d.col.Links = append(d.col.Links[:i:i], d.col.Links[i+1:]...)
	return nil
}

// AppendMessage adds to the draft's thread. Existing entries are never edited.
func (d *Draft) AppendMessage(text string, now time.Time) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	d.col.Messages = append(d.col.Messages, Message{ID: uuid.NewString(), Text: text, CreatedAt: now})
	return nil
}

// Commit writes the draft back through the container in one update.
func (d *Draft) Commit(ctx context.Context, c *Container) error {
	_, err := c.Update(ctx, ReplaceColumn(d.col, c.Now()))
	return err
}

func validateLink(link Link) error {
	if strings.TrimSpace(link.Label) == "" {
		return ErrInvalidLink
	}
	u, err := url.Parse(strings.TrimSpace(link.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidLink, link.URL)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
