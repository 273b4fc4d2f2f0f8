package interfaces

// Connection represents one live duplex client connection
// ARCHITECTURAL DISCOVERY: Pure abstraction without implementation details
// ensures clean boundaries between WebSocket infrastructure and business logic
type Connection interface {
	// ID returns the stable identity assigned when the connection was accepted
	ID() string

	// Send marshals v and queues it for delivery without blocking the caller
	Send(v any) error

	// SendEncoded queues an already encoded frame without blocking the caller
	SendEncoded(data []byte) error

	// Close closes the connection immediately
	Close() error

	// CloseGracefully closes the connection once already queued frames are written
	CloseGracefully()
}
