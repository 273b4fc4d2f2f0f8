package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/lo"
	"pollroom/pkg/interfaces"
	"pollroom/pkg/types"
)

// Registry tracks live connections and delivers session events to them
// ARCHITECTURAL DISCOVERY: Pure connection management without session logic
// maintains clean separation between connection tracking and the hub
type Registry struct {
	mu          sync.RWMutex                     // TECHNICAL DISCOVERY: RWMutex optimizes for read-heavy fan-out
	connections map[string]interfaces.Connection // connection id -> Connection for O(1) lookup
	log         *slog.Logger
}

// NewRegistry creates an empty connection registry
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		connections: make(map[string]interfaces.Connection),
		log:         log,
	}
}

// RegisterConnection adds conn under its id
func (r *Registry) RegisterConnection(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID()]; exists {
		return ErrDuplicateConnection
	}
	r.connections[conn.ID()] = conn
	return nil
}

// UnregisterConnection removes conn from the registry
// FUNCTIONAL DISCOVERY: Idempotent operation safe for concurrent unregistration
// RACE CONDITION FIX: Only removes the connection if it matches the one currently registered
func (r *Registry) UnregisterConnection(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if registered, exists := r.connections[conn.ID()]; exists && registered == conn {
		delete(r.connections, conn.ID())
	}
}

// GetConnection returns the live connection with the given id
func (r *Registry) GetConnection(connectionID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[connectionID]
	return conn, exists
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	return map[string]int{
		"total_connections": r.Count(),
	}
}

// Broadcast sends an event to every live connection
func (r *Registry) Broadcast(event string, payload any) {
	r.BroadcastExcept("", event, payload)
}

// BroadcastExcept sends an event to every live connection but excludedID
func (r *Registry) BroadcastExcept(excludedID string, event string, payload any) {
	data, ok := r.encode(event, payload)
	if !ok {
		return
	}
	for _, conn := range r.snapshot() {
		if conn.ID() == excludedID {
			continue
		}
		r.deliver(conn, event, data)
	}
}

// SendTo sends an event to one connection, unknown ids are ignored
func (r *Registry) SendTo(connectionID string, event string, payload any) {
	conn, exists := r.GetConnection(connectionID)
	if !exists {
		r.log.Debug("Dropping event for unknown connection", "conn", connectionID, "event", event)
		return
	}
	data, ok := r.encode(event, payload)
	if !ok {
		return
	}
	r.deliver(conn, event, data)
}

// Disconnect flushes pending frames and closes the connection
func (r *Registry) Disconnect(connectionID string) {
	conn, exists := r.GetConnection(connectionID)
	if !exists {
		return
	}
	r.UnregisterConnection(conn)
	conn.CloseGracefully()
}

// CloseAll closes every live connection, used at shutdown
func (r *Registry) CloseAll() {
	for _, conn := range r.snapshot() {
		r.UnregisterConnection(conn)
		conn.CloseGracefully()
	}
}

// FUNCTIONAL DISCOVERY: Frames are encoded once per event, not once per recipient
func (r *Registry) encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(types.Frame{Event: event, Data: payload})
	if err != nil {
		r.log.Error("Failed to encode event", "event", event, "err", err)
		return nil, false
	}
	return data, true
}

// deliver queues data on conn and drops the connection when it cannot keep up
func (r *Registry) deliver(conn interfaces.Connection, event string, data []byte) {
	err := conn.SendEncoded(data)
	switch {
	case err == nil:
	case errors.Is(err, ErrSendBufferFull):
		r.log.Warn("Dropping slow connection", "conn", conn.ID(), "event", event)
		r.UnregisterConnection(conn)
		// Close asynchronously so the hub loop never waits on the network
		go func() { _ = conn.Close() }()
	default:
		r.log.Debug("Event not delivered", "conn", conn.ID(), "event", event, "err", err)
	}
}

func (r *Registry) snapshot() []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.connections)
}
