package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CrowderSoup/dealerdesk/board"
	"github.com/CrowderSoup/dealerdesk/database"
	"github.com/CrowderSoup/dealerdesk/handlers"
	"github.com/CrowderSoup/dealerdesk/services"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	envFile    string

	exportMessages int
	exportRaw      bool
)

var rootCmd = &cobra.Command{
	Use:   "dealerdesk",
	Short: "Back office for a trailer dealership",
	Long: `dealerdesk serves the progress tracker board and the customer CRM
over a JSON API with live websocket updates.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

var exportCmd = &cobra.Command{
	Use:   "export <email> <column-id>",
	Short: "Render one board column as markdown",
	Long: `Prints a one-page summary of a column: title, criticality, duration,
reminder, description, links and the most recent messages.

Example:
  dealerdesk export sam@dealer.test 5f0c7e0a-1f7e-4d0b-9d7b-1c0f3b9c2a11`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "dealerdesk.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file loaded before the config")

	exportCmd.Flags().IntVarP(&exportMessages, "messages", "n", board.DefaultExportMessages, "Number of recent messages to include")
	exportCmd.Flags().BoolVar(&exportRaw, "raw", false, "Print plain markdown instead of rendering it")

	rootCmd.AddCommand(serveCmd, exportCmd)
}

// setup loads configuration, the logger and the database shared by every command.
func setup(ctx context.Context) (*services.Config, *zap.Logger, *database.DB, error) {
	if err := services.LoadEnv(envFile); err != nil {
		return nil, nil, nil, fmt.Errorf("error loading %s: %w", envFile, err)
	}
	cfg, err := services.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := services.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, logger, db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer db.Close()

	if cfg.UsesDefaultSecret() {
		logger.Warn("JWT_SECRET is not set; using the built-in development secret")
	}

	authService := services.NewAuthService(cfg.Auth, logger)

	hub := services.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:           authService,
		Hub:            hub,
		Boards:         board.NewManager(db, logger),
		Store:          db,
		Health:         db,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
		HoldThreshold:  cfg.Server.HoldThreshold,
		ExposeLinks:    cfg.Auth.SMTP.Host == "",
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("database", string(db.Dialect())))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, logger, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer db.Close()

	email, columnID := args[0], args[1]
	c, err := board.Load(ctx, email, db, logger)
	if err != nil {
		return err
	}
	col, ok := c.Snapshot().Column(columnID)
	if !ok {
		return fmt.Errorf("%w: %s", board.ErrColumnNotFound, columnID)
	}

	md, err := board.Export(col, exportMessages)
	if err != nil {
		return err
	}
	if exportRaw {
		_, err = cmd.OutOrStdout().Write(md)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := renderer.RenderBytes(md)
	if err != nil {
		return fmt.Errorf("failed to render export: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
