package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/CrowderSoup/dealerdesk/board"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// BoardHandler serves the progress tracker.
type BoardHandler struct {
	boards *board.Manager
	panels *PanelHandler
	logger *zap.Logger
}

func NewBoardHandler(boards *board.Manager, panels *PanelHandler, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		boards: boards,
		panels: panels,
		logger: logger,
	}
}

// boardState is the body returned by every board endpoint and pushed to the
// user's other connections.
type boardState struct {
	Board     board.Board `json:"board"`
	UndoDepth int         `json:"undoDepth"`
	RedoDepth int         `json:"redoDepth"`
}

func stateOf(c *board.Container) boardState {
	return boardState{Board: c.Snapshot(), UndoDepth: c.CanUndo(), RedoDepth: c.CanRedo()}
}

func (h *BoardHandler) container(w http.ResponseWriter, r *http.Request) (*board.Container, bool) {
	c, err := h.boards.Get(r.Context(), emailFrom(r))
	if err != nil {
		fail(w, h.logger, err)
		return nil, false
	}
	return c, true
}

// apply runs fn against the caller's board and answers with the new state.
func (h *BoardHandler) apply(w http.ResponseWriter, r *http.Request, fn board.Transform) {
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	changed, err := c.Update(r.Context(), fn)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	state := stateOf(c)
	if changed {
		h.publish(emailFrom(r), state)
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *BoardHandler) publish(email string, state boardState) {
	h.panels.BoardChanged(email, state)
}

// GetBoard returns the board with its history depth.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateOf(c))
}

// ImportBoard replaces the whole board after validating it.
func (h *BoardHandler) ImportBoard(w http.ResponseWriter, r *http.Request) {
	var next board.Board
	if err := readJSON(w, r, &next); err != nil {
		fail(w, h.logger, err)
		return
	}
	h.apply(w, r, board.Replace(next))
}

// CreateColumn adds an empty column to the end of a category.
func (h *BoardHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID string `json:"categoryId"`
		Title      string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil {
		fail(w, h.logger, err)
		return
	}

	c, ok := h.container(w, r)
	if !ok {
		return
	}
	col := board.NewColumn(req.Title, c.Now())
	if _, err := c.Update(r.Context(), board.AddColumn(req.CategoryID, col)); err != nil {
		fail(w, h.logger, err)
		return
	}
	h.publish(emailFrom(r), stateOf(c))
	writeJSON(w, http.StatusCreated, col)
}

// columnEdit carries the fields of an editor save. Absent fields are left alone.
type columnEdit struct {
	Title          *string         `json:"title"`
	Description    *string         `json:"description"`
	Criticality    *int            `json:"criticality"`
	Duration       *string         `json:"duration"`
	Locked         *bool           `json:"locked"`
	Reminder       json.RawMessage `json:"reminder"` // null clears
	HighlightColor *string         `json:"highlightColor"`
	Image          *[]byte         `json:"image"` // base64 image bytes, empty clears
	Links          *[]board.Link   `json:"links"`
	AppendMessages []string        `json:"appendMessages"`
}

// draft replays the edit onto a draft of col.
func (e columnEdit) draft(col board.Column, c *board.Container) (*board.Draft, error) {
	d := board.NewDraft(col)
	if e.Title != nil {
		d.SetTitle(*e.Title)
	}
	if e.Description != nil {
		d.SetDescription(*e.Description)
	}
	if e.Criticality != nil {
		if err := d.SetCriticality(*e.Criticality); err != nil {
			return nil, err
		}
	}
	if e.Duration != nil {
		d.SetDuration(*e.Duration)
	}
	if e.Locked != nil {
		d.SetLocked(*e.Locked)
	}
	if len(e.Reminder) > 0 {
		var rem *board.Reminder
		if err := json.Unmarshal(e.Reminder, &rem); err != nil {
			return nil, fmt.Errorf("%w: reminder: %w", errBadRequest, err)
		}
		if err := d.SetReminder(rem); err != nil {
			return nil, err
		}
	}
	if e.HighlightColor != nil {
		if err := d.SetColor(*e.HighlightColor); err != nil {
			return nil, err
		}
	}
	if e.Image != nil {
		if err := d.SetImage(*e.Image); err != nil {
			return nil, err
		}
	}
	if e.Links != nil {
		for len(d.Column().Links) > 0 {
			if err := d.RemoveLink(0); err != nil {
				return nil, err
			}
		}
		for _, link := range *e.Links {
			if err := d.AddLink(link); err != nil {
				return nil, err
			}
		}
	}
	for _, text := range e.AppendMessages {
		if err := d.AppendMessage(text, c.Now()); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// UpdateColumn commits an editor save atomically.
func (h *BoardHandler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	var edit columnEdit
	if err := readJSON(w, r, &edit); err != nil {
		fail(w, h.logger, err)
		return
	}

	c, ok := h.container(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	col, found := c.Snapshot().Column(id)
	if !found {
		fail(w, h.logger, fmt.Errorf("%w: %s", board.ErrColumnNotFound, id))
		return
	}

	d, err := edit.draft(col, c)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	if err := d.Commit(r.Context(), c); err != nil {
		fail(w, h.logger, err)
		return
	}

	state := stateOf(c)
	h.publish(emailFrom(r), state)
	saved, _ := state.Board.Column(id)
	writeJSON(w, http.StatusOK, saved)
}

// AppendMessage adds a chat message to one column.
func (h *BoardHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := readJSON(w, r, &req); err != nil {
		fail(w, h.logger, err)
		return
	}
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	h.apply(w, r, board.AppendMessage(mux.Vars(r)["id"], req.Text, c.Now()))
}

// AddLink appends a link to one column.
func (h *BoardHandler) AddLink(w http.ResponseWriter, r *http.Request) {
	var link board.Link
	if err := readJSON(w, r, &link); err != nil {
		fail(w, h.logger, err)
		return
	}
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	h.apply(w, r, board.AddLink(mux.Vars(r)["id"], link, c.Now()))
}

// ExportColumn renders one column as markdown. ?messages=n picks how many
// recent messages to include.
func (h *BoardHandler) ExportColumn(w http.ResponseWriter, r *http.Request) {
	n := board.DefaultExportMessages
	if raw := r.URL.Query().Get("messages"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "messages must be a positive integer")
			return
		}
		n = v
	}

	c, ok := h.container(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	col, found := c.Snapshot().Column(id)
	if !found {
		fail(w, h.logger, fmt.Errorf("%w: %s", board.ErrColumnNotFound, id))
		return
	}

	out, err := board.Export(col, n)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", col.ID+".md"))
	_, _ = w.Write(out)
}

// Move commits a drag-and-drop.
func (h *BoardHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActiveID string `json:"activeId"`
		OverID   string `json:"overId"`
	}
	if err := readJSON(w, r, &req); err != nil {
		fail(w, h.logger, err)
		return
	}
	h.apply(w, r, board.Move(req.ActiveID, req.OverID))
}

func (h *BoardHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, (*board.Container).Undo)
}

func (h *BoardHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, (*board.Container).Redo)
}

func (h *BoardHandler) history(w http.ResponseWriter, r *http.Request, step func(*board.Container, context.Context) error) {
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	if err := step(c, r.Context()); err != nil {
		fail(w, h.logger, err)
		return
	}
	state := stateOf(c)
	h.publish(emailFrom(r), state)
	writeJSON(w, http.StatusOK, state)
}

// bulkRequest is the advanced panel's payload over HTTP. Only the first three
// ids are used. Columns this removes from the board also drop out of the
// caller's websocket selections.
type bulkRequest struct {
	IDs        []string `json:"ids"`
	Line       int      `json:"line"`
	Color      string   `json:"color"`
	Text       string   `json:"text"`
	ChatTarget string   `json:"chatTarget"`
}

func (h *BoardHandler) readBulk(w http.ResponseWriter, r *http.Request) (*board.Selection, bulkRequest, bool) {
	var req bulkRequest
	if err := readJSON(w, r, &req); err != nil {
		fail(w, h.logger, err)
		return nil, req, false
	}
	sel := board.NewSelection(req.IDs...)
	if sel.Len() == 0 {
		writeError(w, http.StatusBadRequest, "no columns selected")
		return nil, req, false
	}
	return sel, req, true
}

func (h *BoardHandler) BulkMove(w http.ResponseWriter, r *http.Request) {
	sel, req, ok := h.readBulk(w, r)
	if !ok {
		return
	}
	if req.Line < 1 {
		writeError(w, http.StatusBadRequest, "line must be 1 or more")
		return
	}
	h.apply(w, r, sel.MoveToLine(req.Line))
}

func (h *BoardHandler) BulkTrash(w http.ResponseWriter, r *http.Request) {
	sel, _, ok := h.readBulk(w, r)
	if !ok {
		return
	}
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	h.apply(w, r, sel.Trash(c.Now()))
}

func (h *BoardHandler) BulkHighlight(w http.ResponseWriter, r *http.Request) {
	sel, req, ok := h.readBulk(w, r)
	if !ok {
		return
	}
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	h.apply(w, r, sel.Highlight(req.Color, c.Now()))
}

// BulkMessage posts text to the chat target, which defaults to the first selected column.
func (h *BoardHandler) BulkMessage(w http.ResponseWriter, r *http.Request) {
	sel, req, ok := h.readBulk(w, r)
	if !ok {
		return
	}
	if req.ChatTarget != "" && !sel.SetChatTarget(req.ChatTarget) {
		writeError(w, http.StatusBadRequest, "chat target must be one of the selected columns")
		return
	}
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	h.apply(w, r, sel.BroadcastMessage(req.Text, c.Now()))
}

// RestoreColumn moves a trashed column back into a category.
func (h *BoardHandler) RestoreColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID string `json:"categoryId"`
	}
	if err := readJSON(w, r, &req); err != nil {
		fail(w, h.logger, err)
		return
	}
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	h.apply(w, r, board.Restore(mux.Vars(r)["id"], req.CategoryID, c.Now()))
}
