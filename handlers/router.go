package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/CrowderSoup/dealerdesk/board"
	"github.com/CrowderSoup/dealerdesk/services"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterConfig wires the HTTP surface together.
type RouterConfig struct {
	Auth           *services.AuthService
	Hub            *services.Hub
	Boards         *board.Manager
	Store          CRMStore
	Health         Pinger
	Logger         *zap.Logger
	AllowedOrigins []string
	StaticDir      string
	HoldThreshold  time.Duration
	ExposeLinks    bool
}

// NewRouter builds the API router wrapped in CORS and request logging.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	authMiddleware := NewAuthMiddleware(cfg.Auth)
	authHandler := NewAuthHandler(cfg.Auth, logger, cfg.ExposeLinks)
	panelHandler := NewPanelHandler(cfg.Hub, cfg.Boards, cfg.HoldThreshold, cfg.AllowedOrigins, logger)
	boardHandler := NewBoardHandler(cfg.Boards, panelHandler, logger)
	crmHandler := NewCRMHandler(cfg.Store, logger)

	r := mux.NewRouter()
	r.Use(RequestLogger(logger))

	r.HandleFunc("/healthz", healthz(cfg.Health)).Methods(http.MethodGet)

	// Auth routes
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/magic-link", authHandler.HandleMagicLink).Methods(http.MethodGet)
	r.Handle("/api/auth/verify", authMiddleware.Auth(http.HandlerFunc(authHandler.VerifyToken))).Methods(http.MethodGet)

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Auth)

	api.HandleFunc("/board", boardHandler.GetBoard).Methods(http.MethodGet)
	api.HandleFunc("/board", boardHandler.ImportBoard).Methods(http.MethodPut)
	api.HandleFunc("/board/columns", boardHandler.CreateColumn).Methods(http.MethodPost)
	api.HandleFunc("/board/columns/{id}", boardHandler.UpdateColumn).Methods(http.MethodPut)
	api.HandleFunc("/board/columns/{id}/messages", boardHandler.AppendMessage).Methods(http.MethodPost)
	api.HandleFunc("/board/columns/{id}/links", boardHandler.AddLink).Methods(http.MethodPost)
	api.HandleFunc("/board/columns/{id}/export", boardHandler.ExportColumn).Methods(http.MethodGet)
	api.HandleFunc("/board/move", boardHandler.Move).Methods(http.MethodPost)
	api.HandleFunc("/board/undo", boardHandler.Undo).Methods(http.MethodPost)
	api.HandleFunc("/board/redo", boardHandler.Redo).Methods(http.MethodPost)
	api.HandleFunc("/board/bulk/move", boardHandler.BulkMove).Methods(http.MethodPost)
	api.HandleFunc("/board/bulk/trash", boardHandler.BulkTrash).Methods(http.MethodPost)
	api.HandleFunc("/board/bulk/highlight", boardHandler.BulkHighlight).Methods(http.MethodPost)
	api.HandleFunc("/board/bulk/message", boardHandler.BulkMessage).Methods(http.MethodPost)
	api.HandleFunc("/board/trash/{id}/restore", boardHandler.RestoreColumn).Methods(http.MethodPost)

	api.HandleFunc("/crm/filters", crmHandler.Filters).Methods(http.MethodGet)
	api.HandleFunc("/crm/customers", crmHandler.SearchCustomers).Methods(http.MethodGet)
	api.HandleFunc("/crm/customers", crmHandler.CreateCustomer).Methods(http.MethodPost)
	api.HandleFunc("/crm/customers/{id}/activities", crmHandler.ListActivities).Methods(http.MethodGet)
	api.HandleFunc("/crm/customers/{id}/activities", crmHandler.AddActivity).Methods(http.MethodPost)
	api.HandleFunc("/crm/views", crmHandler.ListViews).Methods(http.MethodGet)
	api.HandleFunc("/crm/views", crmHandler.SaveView).Methods(http.MethodPost)
	api.HandleFunc("/crm/views/{id}", crmHandler.DeleteView).Methods(http.MethodDelete)

	// WebSocket route for real-time updates
	api.HandleFunc("/ws", panelHandler.HandleWebSocket)

	// Static file server for frontend
	if cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func healthz(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.PingContext(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
