package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"pollroom/pkg/interfaces"
	"pollroom/pkg/types"
)

// Registry interface to avoid tight coupling to websocket.Registry implementation
type Registry interface {
	GetStats() map[string]int
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	coordinator interfaces.Coordinator
	registry    Registry
	router      *http.ServeMux
	log         *slog.Logger
}

// FUNCTIONAL DISCOVERY: Constructor initializes all dependencies and sets up routing
// Dependency injection pattern maintains architectural boundaries
func NewServer(coordinator interfaces.Coordinator, registry Registry, log *slog.Logger) *Server {
	s := &Server{
		coordinator: coordinator,
		registry:    registry,
		router:      http.NewServeMux(),
		log:         log,
	}

	s.setupRoutes()
	return s
}

// ARCHITECTURAL DISCOVERY: Every route is a read, one middleware enforces that
// along with CORS and the JSON content type
func (s *Server) setupRoutes() {
	s.router.Handle("/api/session", s.readOnly(http.HandlerFunc(s.handleSession)))
}

// FUNCTIONAL DISCOVERY: Implement http.Handler interface for integration with standard HTTP server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SessionResponse is the read-only view of the classroom
type SessionResponse struct {
	Poll              *types.Poll         `json:"poll"`
	Percentages       map[string]int      `json:"percentages"`
	Participation     types.Participation `json:"participation"`
	Roster            []string            `json:"roster"`
	ChatCount         int                 `json:"chatCount"`
	InstructorPresent bool                `json:"instructorPresent"`
	ConnectionCount   int                 `json:"connectionCount"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FUNCTIONAL DISCOVERY: GET /api/session - Session state with connection count
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snapshot, err := s.coordinator.Snapshot(ctx)
	if err != nil {
		s.log.Warn("Snapshot failed", "err", err)
		if errors.Is(err, interfaces.ErrCoordinatorStopped) {
			s.sendError(w, "Session is not running", http.StatusServiceUnavailable)
		} else {
			s.sendError(w, "Failed to read session", http.StatusInternalServerError)
		}
		return
	}

	// FUNCTIONAL DISCOVERY: Include current connection count from registry
	response := SessionResponse{
		Poll:              snapshot.Poll,
		Percentages:       snapshot.Percentages,
		Participation:     snapshot.Participation,
		Roster:            snapshot.Roster,
		ChatCount:         len(snapshot.ChatHistory),
		InstructorPresent: snapshot.InstructorPresent,
		ConnectionCount:   s.registry.GetStats()["total_connections"],
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Debug("Failed to write session response", "err", err)
	}
}

// sendError writes the JSON error body; 503 carries a Retry-After hint
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

const allowedMethods = "GET, OPTIONS"

// readOnly serves preflights, refuses anything but GET and marks responses as JSON
func (s *Server) readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", allowedMethods)
		header.Set("Access-Control-Allow-Headers", "Content-Type")
		header.Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodOptions:
			header.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			next.ServeHTTP(w, r)
		default:
			header.Set("Allow", allowedMethods)
			s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
