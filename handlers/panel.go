package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/CrowderSoup/dealerdesk/board"
	"github.com/CrowderSoup/dealerdesk/services"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Websocket message types handled by the panel.
const (
	MessageGesture       = "gesture"
	MessageSelectToggle  = "select.toggle"
	MessageSelectChat    = "select.chat"
	MessageSelectClear   = "select.clear"
	MessageSelection     = "selection"
	MessageGestureStatus = "gesture.state"

	// Advanced panel actions on the current selection.
	MessagePanelMove      = "panel.move"
	MessagePanelTrash     = "panel.trash"
	MessagePanelHighlight = "panel.highlight"
	MessagePanelMessage   = "panel.message"
)

// panelActionTimeout bounds the board load and save behind one panel action.
const panelActionTimeout = 10 * time.Second

type gestureEvent struct {
	Event    string    `json:"event"` // press, tick, release or cancel
	ColumnID string    `json:"columnId"`
	At       time.Time `json:"at"`
}

type selectionState struct {
	IDs        []string `json:"ids"`
	ChatTarget string   `json:"chatTarget"`
}

type panelAction struct {
	Line  int    `json:"line"`
	Color string `json:"color"`
	Text  string `json:"text"`
}

// panelSession is one connection's advanced panel: its selection and the
// long-press gestures in flight. mu guards both; board changes made over HTTP
// prune the selection from other goroutines.
type panelSession struct {
	mu        sync.Mutex
	selection *board.Selection
	gestures  map[string]*board.LongPress
}

func (s *panelSession) state() selectionState {
	return selectionState{IDs: s.selection.IDs(), ChatTarget: s.selection.ChatTarget()}
}

// PanelHandler upgrades websocket connections and keeps the per-connection
// multi-select state driven by gesture messages.
type PanelHandler struct {
	hub       *services.Hub
	boards    *board.Manager
	threshold time.Duration
	upgrader  websocket.Upgrader
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[*services.Client]*panelSession
}

func NewPanelHandler(hub *services.Hub, boards *board.Manager, threshold time.Duration, allowedOrigins []string, logger *zap.Logger) *PanelHandler {
	h := &PanelHandler{
		hub:       hub,
		boards:    boards,
		threshold: threshold,
		logger:    logger,
		sessions:  make(map[*services.Client]*panelSession),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
	hub.SetHandler(h.HandleMessage)
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket upgrades the HTTP connection to a WebSocket connection
func (h *PanelHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Error upgrading to WebSocket", zap.Error(err))
		return
	}

	client := &services.Client{
		Hub:   h.hub,
		Conn:  conn,
		Send:  make(chan []byte, 256),
		Email: email,
	}
	h.hub.Register(client)

	go client.WritePump()
	go func() {
		client.ReadPump()
		h.forget(client)
	}()
}

func (h *PanelHandler) session(c *services.Client) *panelSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[c]
	if !ok {
		s = &panelSession{
			selection: board.NewSelection(),
			gestures:  make(map[string]*board.LongPress),
		}
		h.sessions[c] = s
	}
	return s
}

func (h *PanelHandler) forget(c *services.Client) {
	h.mu.Lock()
	delete(h.sessions, c)
	h.mu.Unlock()
}

// BoardChanged pushes the new board to the owner's connections and drops
// columns that left the board from their selections.
func (h *PanelHandler) BoardChanged(email string, state boardState) {
	h.hub.Publish(email, services.WebSocketMessage{Type: services.MessageBoardUpdated, Data: state})

	type owned struct {
		client  *services.Client
		session *panelSession
	}
	var targets []owned
	h.mu.Lock()
	for c, s := range h.sessions {
		if c.Email == email {
			targets = append(targets, owned{c, s})
		}
	}
	h.mu.Unlock()

	for _, t := range targets {
		t.session.mu.Lock()
		pruned := t.session.selection.Prune(state.Board)
		sel := t.session.state()
		t.session.mu.Unlock()
		if pruned {
			h.hub.Reply(t.client, services.WebSocketMessage{Type: MessageSelection, Data: sel})
		}
	}
}

// HandleMessage applies one client message to that connection's panel.
// Messages from a single client arrive on its read goroutine, one at a time.
func (h *PanelHandler) HandleMessage(c *services.Client, msg services.WebSocketMessage) {
	s := h.session(c)

	switch msg.Type {
	case MessagePanelMove, MessagePanelTrash, MessagePanelHighlight, MessagePanelMessage:
		h.act(c, s, msg)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var target struct {
		ColumnID string `json:"columnId"`
	}
	switch msg.Type {
	case MessageGesture:
		var ev gestureEvent
		if err := json.Unmarshal(msg.Raw, &ev); err != nil || ev.ColumnID == "" {
			h.replyError(c, "malformed gesture")
			return
		}
		h.gesture(c, s, ev)
		return
	case MessageSelectToggle:
		if err := json.Unmarshal(msg.Raw, &target); err != nil {
			h.replyError(c, "malformed selection")
			return
		}
		s.selection.Toggle(target.ColumnID)
	case MessageSelectChat:
		if err := json.Unmarshal(msg.Raw, &target); err != nil || !s.selection.SetChatTarget(target.ColumnID) {
			h.replyError(c, "chat target must be selected")
			return
		}
	case MessageSelectClear:
		s.selection.Clear()
	default:
		h.replyError(c, "unknown message type "+msg.Type)
		return
	}
	h.replySelection(c, s)
}

// act runs a panel action against the session's selection. A delete clears
// the selection, which closes the panel.
func (h *PanelHandler) act(c *services.Client, s *panelSession, msg services.WebSocketMessage) {
	var req panelAction
	if len(msg.Raw) > 0 {
		if err := json.Unmarshal(msg.Raw, &req); err != nil {
			h.replyError(c, "malformed panel action")
			return
		}
	}
	if msg.Type == MessagePanelMove && req.Line < 1 {
		h.replyError(c, "line must be 1 or more")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), panelActionTimeout)
	defer cancel()
	container, err := h.boards.Get(ctx, c.Email)
	if err != nil {
		h.replyFailure(c, err)
		return
	}

	s.mu.Lock()
	if s.selection.Len() == 0 {
		s.mu.Unlock()
		h.replyError(c, "no columns selected")
		return
	}
	var fn board.Transform
	switch msg.Type {
	case MessagePanelMove:
		fn = s.selection.MoveToLine(req.Line)
	case MessagePanelTrash:
		fn = s.selection.Trash(container.Now())
	case MessagePanelHighlight:
		fn = s.selection.Highlight(req.Color, container.Now())
	case MessagePanelMessage:
		fn = s.selection.BroadcastMessage(req.Text, container.Now())
	}
	s.mu.Unlock()

	changed, err := container.Update(ctx, fn)
	if err != nil {
		h.replyFailure(c, err)
		return
	}

	var cleared selectionState
	if msg.Type == MessagePanelTrash {
		s.mu.Lock()
		s.selection.Clear()
		clear(s.gestures)
		cleared = s.state()
		s.mu.Unlock()
	}
	if changed {
		h.BoardChanged(c.Email, stateOf(container))
	}
	if msg.Type == MessagePanelTrash {
		h.hub.Reply(c, services.WebSocketMessage{Type: MessageSelection, Data: cleared})
	}
}

func (h *PanelHandler) gesture(c *services.Client, s *panelSession, ev gestureEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	g, ok := s.gestures[ev.ColumnID]
	if !ok {
		g = board.NewLongPress(ev.ColumnID, h.threshold)
		s.gestures[ev.ColumnID] = g
	}

	var state board.GestureState
	switch ev.Event {
	case "press":
		g.Press(ev.At)
		state = g.State()
	case "tick":
		state = g.Tick(ev.At)
	case "release":
		state = g.Release(ev.At)
	case "cancel":
		g.Cancel()
		state = g.State()
	default:
		h.replyError(c, "unknown gesture event "+ev.Event)
		return
	}

	if state == board.GestureSelected {
		g.Apply(s.selection)
		delete(s.gestures, ev.ColumnID)
		h.replySelection(c, s)
		return
	}
	if state == board.GestureIdle {
		delete(s.gestures, ev.ColumnID)
	}
	h.hub.Reply(c, services.WebSocketMessage{
		Type: MessageGestureStatus,
		Data: map[string]string{"columnId": ev.ColumnID, "state": state.String()},
	})
}

// replySelection sends the session's selection; the caller holds s.mu.
func (h *PanelHandler) replySelection(c *services.Client, s *panelSession) {
	h.hub.Reply(c, services.WebSocketMessage{Type: MessageSelection, Data: s.state()})
}

func (h *PanelHandler) replyFailure(c *services.Client, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error("Panel action failed", zap.String("email", c.Email), zap.Error(err))
		h.replyError(c, "internal server error")
		return
	}
	h.replyError(c, err.Error())
}

func (h *PanelHandler) replyError(c *services.Client, text string) {
	h.hub.Reply(c, services.WebSocketMessage{Type: services.MessageError, Data: map[string]string{"error": text}})
}
