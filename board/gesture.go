package board

import "time"

// DefaultHoldThreshold is how long a press must last to count as a long press.
const DefaultHoldThreshold = 500 * time.Millisecond

type GestureState int

const (
	GestureIdle GestureState = iota
	GesturePressing
	GestureHeld
	GestureSelected
)

func (s GestureState) String() string {
	switch s {
	case GestureIdle:
		return "idle"
	case GesturePressing:
		return "pressing"
	case GestureHeld:
		return "held"
	case GestureSelected:
		return "selected"
	}
	return "unknown"
}

// LongPress turns press/tick/release events on one column into a selection.
//
//	idle --press--> pressing --tick(>=threshold)--> held --release--> selected
//	pressing --release/cancel--> idle
//	held --cancel--> idle
type LongPress struct {
	ColumnID  string
	Threshold time.Duration

	state     GestureState
	pressedAt time.Time
}

func NewLongPress(columnID string, threshold time.Duration) *LongPress {
	if threshold <= 0 {
		threshold = DefaultHoldThreshold
	}
	return &LongPress{ColumnID: columnID, Threshold: threshold}
}

func (g *LongPress) State() GestureState { return g.state }

// Press starts a gesture. Pressing again while a gesture is active restarts it.
func (g *LongPress) Press(at time.Time) {
	g.state = GesturePressing
	g.pressedAt = at
}

// Tick advances time; a press held past the threshold becomes held.
func (g *LongPress) Tick(at time.Time) GestureState {
	if g.state == GesturePressing && at.Sub(g.pressedAt) >= g.Threshold {
		g.state = GestureHeld
	}
	return g.state
}

// Release ends the press. A held gesture becomes selected; a short press goes idle.
func (g *LongPress) Release(at time.Time) GestureState {
	g.Tick(at)
	switch g.state {
	case GestureHeld:
		g.state = GestureSelected
	case GesturePressing:
		g.state = GestureIdle
	}
	return g.state
}

// Cancel aborts an unfinished gesture, e.g. when the pointer moves into a drag.
func (g *LongPress) Cancel() {
	if g.state != GestureSelected {
		g.state = GestureIdle
	}
}

// Apply adds the column to sel once the gesture completed, then resets it.
func (g *LongPress) Apply(sel *Selection) bool {
	if g.state != GestureSelected {
		return false
	}
	g.state = GestureIdle
	return sel.Add(g.ColumnID)
}
