// Package app wires the components together and owns startup and
// shutdown ordering.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"coursehub/internal/api"
	"coursehub/internal/auth"
	"coursehub/internal/config"
	"coursehub/internal/database"
	"coursehub/internal/hub"
	"coursehub/internal/registry"
	"coursehub/internal/room"
	"coursehub/internal/router"
	"coursehub/internal/websocket"
	pkgdatabase "coursehub/pkg/database"
)

// Application coordinates all system components.
type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	registry   *registry.Registry
	rooms      *room.Directory
	router     *router.Router
	hub        *hub.Hub
	apiServer  *api.Server
	httpServer *http.Server
}

// NewApplication initializes components in dependency order:
// Database -> Registry/Rooms -> Router -> Hub -> API -> WebSocket -> HTTP.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	migrationManager := pkgdatabase.NewMigrationManager(dbManager.GetDB())
	if err := migrationManager.ApplyMigrations(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	validator := pkgdatabase.NewSchemaValidator(dbManager.GetDB())
	if err := validator.ValidateTablesExist(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	log.Println("Database migrations applied successfully")

	connRegistry := registry.NewRegistry()
	rooms := room.NewDirectory()
	messageRouter := router.NewRouter(connRegistry, rooms)
	messageHub := hub.NewHub(messageRouter)

	tokens := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.TokenDuration)
	hasher := auth.NewPasswordHasher()
	apiServer := api.NewServer(dbManager, tokens, hasher, connRegistry)

	wsConfig := websocket.HandlerConfig{
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
		PingInterval:     cfg.WebSocket.PingInterval,
		ReadTimeout:      cfg.WebSocket.ReadTimeout,
		WriteTimeout:     cfg.WebSocket.WriteTimeout,
		SendBuffer:       cfg.WebSocket.SendBuffer,
		HandshakeTimeout: 10 * time.Second,
	}
	wsHandler := websocket.NewHandler(messageHub, wsConfig)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		registry:   connRegistry,
		rooms:      rooms,
		router:     messageRouter,
		hub:        messageHub,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start launches the hub first so frames can be processed, then the
// HTTP server.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting coursehub on %s", app.httpServer.Addr)

	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.hub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("coursehub started successfully")
		return nil
	case <-ctx.Done():
		_ = app.hub.Stop()
		return ctx.Err()
	}
}

// Stop shuts components down in reverse order: HTTP -> Hub -> Database.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down coursehub")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.hub.Stop(); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}

	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("coursehub shutdown complete")
	return nil
}

// GetAddr returns the bound server address.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
