package board

import (
	"time"
)

// MaxSelection is how many columns the advanced panel can act on at once.
const MaxSelection = 3

// Selection is the advanced panel's set of picked columns plus the column
// that receives chat messages.
type Selection struct {
	ids        []string
	chatTarget string
}

// NewSelection builds a selection from ids, keeping the first MaxSelection distinct ones.
func NewSelection(ids ...string) *Selection {
	s := &Selection{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add selects id. It reports false when id is empty, already selected or the
// selection is full; the selection is unchanged in those cases.
func (s *Selection) Add(id string) bool {
	if id == "" || s.Contains(id) || len(s.ids) >= MaxSelection {
		return false
	}
	s.ids = append(s.ids, id)
	if s.chatTarget == "" {
		s.chatTarget = id
	}
	return true
}

func (s *Selection) Remove(id string) {
	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			break
		}
	}
	if s.chatTarget == id {
		s.chatTarget = ""
		if len(s.ids) > 0 {
			s.chatTarget = s.ids[0]
		}
	}
}

// Toggle flips membership of id.
func (s *Selection) Toggle(id string) bool {
	if s.Contains(id) {
		s.Remove(id)
		return false
	}
	return s.Add(id)
}

func (s *Selection) Contains(id string) bool {
	for _, existing := range s.ids {
		if existing == id {
			return true
		}
	}
	return false
}

func (s *Selection) Clear() {
	s.ids = nil
	s.chatTarget = ""
}

func (s *Selection) Len() int { return len(s.ids) }

func (s *Selection) IDs() []string { return append([]string(nil), s.ids...) }

// Prune drops selected ids that are no longer in any category of b, such as
// trashed or deleted columns. It reports whether anything was dropped.
func (s *Selection) Prune(b Board) bool {
	pruned := false
	for _, id := range s.IDs() {
		if _, _, ok := b.Locate(id); !ok {
			s.Remove(id)
			pruned = true
		}
	}
	return pruned
}

// SetChatTarget marks a selected column as the chat recipient.
func (s *Selection) SetChatTarget(id string) bool {
	if !s.Contains(id) {
		return false
	}
	s.chatTarget = id
	return true
}

func (s *Selection) ChatTarget() string { return s.chatTarget }

// BroadcastMessage appends text to the chat target only.
func (s *Selection) BroadcastMessage(text string, now time.Time) Transform {
	target := s.chatTarget
	return func(b *Board) error {
		if target == "" {
			return ErrNoChange
		}
		return AppendMessage(target, text, now)(b)
	}
}

// MoveToLine, Trash and Highlight apply the panel actions to the selection.
func (s *Selection) MoveToLine(line int) Transform {
	return MoveToLine(s.IDs(), line)
}

func (s *Selection) Trash(now time.Time) Transform {
	return TrashColumns(s.IDs(), now)
}

func (s *Selection) Highlight(color string, now time.Time) Transform {
	return Highlight(s.IDs(), color, now)
}
