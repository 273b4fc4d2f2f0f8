package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"pollroom/pkg/interfaces"
	"pollroom/pkg/types"
)

// inboundFrame is a client frame before its payload is decoded into a command
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ack   *int64          `json:"ack"`
}

// Handler accepts websocket clients and feeds their frames to the coordinator
// ARCHITECTURAL DISCOVERY: Clean separation of WebSocket handling from session logic,
// frames are decoded into commands here and nowhere else
type Handler struct {
	registry    *Registry
	coordinator interfaces.Coordinator
	settings    Settings
	upgrader    websocket.Upgrader
	log         *slog.Logger
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(registry *Registry, coordinator interfaces.Coordinator, settings Settings, log *slog.Logger) *Handler {
	return &Handler{
		registry:    registry,
		coordinator: coordinator,
		settings:    settings.withDefaults(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// FUNCTIONAL DISCOVERY: Allow all origins, classroom clients are served from anywhere
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// HandleWebSocket upgrades the request and serves the connection until it drops
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	wsConn := NewConnection(uuid.New().String(), conn, h.settings)
	if err := h.registry.RegisterConnection(wsConn); err != nil {
		h.log.Error("Failed to register connection", "conn", wsConn.ID(), "err", err)
		_ = wsConn.Close()
		return
	}
	h.log.Debug("Connection accepted", "conn", wsConn.ID(), "remote", r.RemoteAddr)

	go h.handleConnection(wsConn)
}

// handleConnection manages the connection lifecycle with heartbeat monitoring
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// FUNCTIONAL DISCOVERY: The coordinator learns about every drop,
		// kicked and slow connections included
		h.registry.UnregisterConnection(conn)
		_ = conn.Close()
		if _, err := h.coordinator.Dispatch(context.Background(), conn.ID(), types.Disconnect{}); err != nil &&
			!errors.Is(err, interfaces.ErrCoordinatorStopped) {
			h.log.Warn("Failed to report disconnect", "conn", conn.ID(), "err", err)
		}
		h.log.Debug("Connection closed", "conn", conn.ID())
	}()

	conn.conn.SetReadLimit(h.settings.MaxMessageSize)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout)); err != nil {
		h.log.Warn("Failed to set read deadline", "conn", conn.ID(), "err", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
	})

	go h.heartbeat(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Info("WebSocket read error", "conn", conn.ID(), "err", err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			h.handleFrame(conn, data)
		}
	}
}

// heartbeat pings the client until the connection closes
func (h *Handler) heartbeat(conn *Connection) {
	ticker := time.NewTicker(h.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

// handleFrame decodes one client frame, dispatches it and sends the ack if one was requested
func (h *Handler) handleFrame(conn *Connection, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.log.Debug("Malformed frame", "conn", conn.ID(), "err", err)
		return
	}

	cmd, err := types.DecodeCommand(frame.Event, frame.Data)
	if err != nil {
		h.log.Debug("Undecodable frame", "conn", conn.ID(), "event", frame.Event, "err", err)
		h.ack(conn, frame.Ack, types.ErrorReply(err))
		return
	}

	reply, err := h.coordinator.Dispatch(conn.ctx, conn.ID(), cmd)
	if err != nil {
		h.log.Warn("Dispatch failed", "conn", conn.ID(), "event", frame.Event, "err", err)
		reply = types.ErrorReply(types.ErrInternal)
	}
	h.ack(conn, frame.Ack, reply)
}

func (h *Handler) ack(conn *Connection, ack *int64, reply types.Reply) {
	if ack == nil {
		return
	}
	if err := conn.Send(types.Frame{Event: types.EventAck, Data: reply, Ack: ack}); err != nil {
		h.log.Debug("Failed to send ack", "conn", conn.ID(), "err", err)
	}
}
