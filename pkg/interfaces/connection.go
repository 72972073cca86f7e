package interfaces

// Connection is the outbound half of the one live transport
// connection. Implemented by internal/websocket; mocked in tests.
type Connection interface {
	// Send marshals v and queues it for transmission in call order.
	Send(v interface{}) error
	// SendRaw queues an already-marshaled frame unchanged.
	SendRaw(data []byte) error
	// Backlog returns the number of bytes queued but not yet written.
	Backlog() int
	// IsOpen reports whether the transport can currently accept data.
	IsOpen() bool
	// Close tears the transport down. Idempotent.
	Close() error
}
