package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/CrowderSoup/dealerdesk/crm"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CRMStore is the persistence the CRM endpoints need.
type CRMStore interface {
	CreateCustomer(ctx context.Context, c *crm.Customer) error
	GetCustomer(ctx context.Context, id int64) (*crm.Customer, error)
	SearchCustomers(ctx context.Context, f crm.FilterState, limit int) ([]crm.Customer, error)
	AddActivity(ctx context.Context, customerID int64, a crm.Activity) (*crm.ActivityRecord, error)
	ListActivities(ctx context.Context, customerID int64) ([]crm.ActivityRecord, error)
	SaveView(ctx context.Context, owner, name string, f crm.FilterState) (*crm.SavedView, error)
	ListViews(ctx context.Context, owner string) ([]crm.SavedView, error)
	DeleteView(ctx context.Context, owner, id string) error
}

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

// CRMHandler serves customer search, timelines and saved views.
type CRMHandler struct {
	store  CRMStore
	logger *zap.Logger
}

func NewCRMHandler(store CRMStore, logger *zap.Logger) *CRMHandler {
	return &CRMHandler{store: store, logger: logger}
}

type filterSummary struct {
	Query       string          `json:"query"`
	ActiveCount int             `json:"activeCount"`
	Filter      crm.FilterState `json:"filter"`
}

func summarize(f crm.FilterState) filterSummary {
	f = crm.Normalize(f)
	return filterSummary{
		Query:       crm.Encode(f).Encode(),
		ActiveCount: crm.ActiveCount(f),
		Filter:      f,
	}
}

// Filters echoes the normalized filter for the request's query string along
// with its active-filter badge count.
func (h *CRMHandler) Filters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summarize(crm.Parse(r.URL.Query())))
}

// SearchCustomers lists customers matching the filter in the query string.
// limit is a paging parameter, not part of the filter.
func (h *CRMHandler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	f := crm.Parse(q)
	customers, err := h.store.SearchCustomers(r.Context(), f, limit)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"filter":    summarize(f),
	})
}

func (h *CRMHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c crm.Customer
	if err := readJSON(w, r, &c); err != nil {
		fail(w, h.logger, err)
		return
	}
	if err := h.store.CreateCustomer(r.Context(), &c); err != nil {
		fail(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CRMHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	if _, err := h.store.GetCustomer(r.Context(), id); err != nil {
		fail(w, h.logger, err)
		return
	}
	records, err := h.store.ListActivities(r.Context(), id)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// AddActivity records a call, email, note or quote. The body carries a kind
// discriminator and only that kind's fields.
func (h *CRMHandler) AddActivity(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	var raw json.RawMessage
	if err := readJSON(w, r, &raw); err != nil {
		fail(w, h.logger, err)
		return
	}
	a, err := crm.UnmarshalActivity(raw)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	rec, err := h.store.AddActivity(r.Context(), id, a)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *CRMHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.store.ListViews(r.Context(), emailFrom(r))
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// SaveView bookmarks a filter under a name. query is a raw query string as
// produced by the filter endpoint.
func (h *CRMHandler) SaveView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Query string `json:"query"`
	}
	if err := readJSON(w, r, &req); err != nil {
		fail(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "view name is required")
		return
	}
	f, err := crm.ParseQuery(req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, "query is not a valid query string")
		return
	}
	view, err := h.store.SaveView(r.Context(), emailFrom(r), req.Name, f)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *CRMHandler) DeleteView(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteView(r.Context(), emailFrom(r), mux.Vars(r)["id"]); err != nil {
		fail(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
