package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"pollroom/internal/api"
	"pollroom/internal/config"
	"pollroom/internal/hub"
	"pollroom/internal/moderation"
	"pollroom/internal/websocket"
)

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config     *config.Config
	log        *slog.Logger
	registry   *websocket.Registry
	sessionHub *hub.Hub
	apiServer  *api.Server
	httpServer *http.Server
	listener   net.Listener
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Moderator → Registry → Hub → WebSocket handler → API → HTTP
func NewApplication(cfg *config.Config, log *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// Validate configuration before component initialization
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Build the chat moderator
	moderator, err := moderation.NewModerator(cfg.Moderation.CensoredWords, []rune(cfg.Moderation.CensorChar)[0])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize moderator: %w", err)
	}

	// STEP 2: Initialize WebSocket registry for connection tracking
	registry := websocket.NewRegistry(log)

	// STEP 3: Initialize the session hub, the single owner of classroom state
	var opts []hub.Option
	if moderator.Enabled() {
		opts = append(opts, hub.WithCensor(moderator))
	}
	sessionHub := hub.NewHub(HubOptions(cfg), registry, log, opts...)

	// STEP 4: Initialize WebSocket handler and API server
	wsHandler := websocket.NewHandler(registry, sessionHub, SocketSettings(cfg), log)
	apiServer := api.NewServer(sessionHub, registry, log)

	// STEP 5: Setup HTTP server with both API and WebSocket endpoints
	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		log:        log,
		registry:   registry,
		sessionHub: sessionHub,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// HubOptions maps the session configuration onto hub rules
func HubOptions(cfg *config.Config) hub.Options {
	return hub.Options{
		InstructorSecret:    cfg.Session.InstructorSecret,
		InstructorName:      cfg.Session.InstructorName,
		DefaultPollDuration: cfg.Session.DefaultPollDuration(),
		MaxPollDuration:     cfg.Session.MaxPollDuration(),
		MaxChatHistory:      cfg.Session.MaxChatHistory,
		MaxMessageLength:    cfg.Session.MaxMessageLength,
		ChatRateWindow:      cfg.Session.ChatRateWindow(),
	}
}

// SocketSettings maps the websocket configuration onto transport settings
func SocketSettings(cfg *config.Config) websocket.Settings {
	return websocket.Settings{
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		ReadTimeout:    cfg.WebSocket.ReadTimeout,
		PingInterval:   cfg.WebSocket.PingInterval,
		SendBuffer:     cfg.WebSocket.BufferSize,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}
}

// Start begins application execution
// Hub starts first to handle commands, then the HTTP server accepts connections
func (app *Application) Start(ctx context.Context) error {
	// STEP 1: Start the session hub; its lifetime is owned by Stop
	if err := app.sessionHub.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to start session hub: %w", err)
	}

	// STEP 2: Bind before serving so the address is known and bind errors surface here
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = app.sessionHub.Stop()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener

	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error("HTTP server error", "err", err)
		}
	}()

	app.log.Info("Pollroom started", "addr", listener.Addr().String(), "environment", app.config.Environment)
	return nil
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → connections → Hub
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info("Shutting down pollroom")

	var errs []error

	// STEP 1: Stop accepting new connections
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// STEP 2: Close live websocket connections
	app.registry.CloseAll()

	// STEP 3: Stop command processing
	if err := app.sessionHub.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}

	app.log.Info("Pollroom shutdown complete")
	return errors.Join(errs...)
}

// GetAddr returns the bound address once started, the configured one before
func (app *Application) GetAddr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}
