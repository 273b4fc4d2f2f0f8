//go:generate go run go.uber.org/mock/mockgen -source=broadcaster.go -destination=../../internal/mocks/mock_broadcaster.go -package=mocks
package interfaces

// Broadcaster delivers outbound events to connections
// ARCHITECTURAL DISCOVERY: Fan-out abstracted from the transport so the hub
// decides recipients without knowing how frames reach the wire
type Broadcaster interface {
	// Broadcast sends an event to every live connection
	Broadcast(event string, payload any)

	// SendTo sends an event to a single connection, unknown ids are ignored
	SendTo(connectionID string, event string, payload any)

	// BroadcastExcept sends an event to every live connection but one
	BroadcastExcept(excludedID string, event string, payload any)

	// Disconnect closes a connection after its pending frames are flushed
	Disconnect(connectionID string)
}
