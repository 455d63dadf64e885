package client

// Transport moves raw envelope bytes between the client and the host over
// one persistent connection. Implementations own connect, receive and
// reconnect mechanics; the Connection layered on top only sees ordered
// message delivery through the callback.
//
// OnMessage must be set before Start. The callback runs on the transport's
// receive path, so it must hand work off quickly and never block.
type Transport interface {
	// Start establishes the connection and begins delivering inbound
	// messages to the OnMessage callback.
	Start() error

	// Send writes one message to the host.
	Send(data []byte) error

	// OnMessage registers the inbound message callback.
	OnMessage(fn func(data []byte))

	// Close tears the connection down. No callbacks fire afterwards.
	Close() error
}
