package client

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket defaults.
const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultMinBackoff   = 200 * time.Millisecond
	DefaultMaxBackoff   = 30 * time.Second
)

// WebSocket is a reconnecting Transport over a single websocket
// connection. A dropped socket is redialed with exponential backoff until
// Close is called; messages sent while disconnected fail with
// ErrNotConnected and are not buffered.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	writeTimeout time.Duration
	minBackoff   time.Duration
	maxBackoff   time.Duration
	onReconnect  func(attempt int)

	onMessage func([]byte)

	mu   sync.Mutex // guards conn swaps and writes
	conn *websocket.Conn
	done chan struct{}

	closeOnce sync.Once
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) WebSocketOption {
	return func(ws *WebSocket) {
		ws.dialer = d
	}
}

// WithWriteTimeout sets the per-message write deadline.
func WithWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.writeTimeout = d
	}
}

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(min, max time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.minBackoff = min
		ws.maxBackoff = max
	}
}

// WithReconnectHook registers a callback invoked after every successful
// redial with the attempt count it took.
func WithReconnectHook(fn func(attempt int)) WebSocketOption {
	return func(ws *WebSocket) {
		ws.onReconnect = fn
	}
}

// WithTransportLogger sets the transport logger.
func WithTransportLogger(logger *slog.Logger) WebSocketOption {
	return func(ws *WebSocket) {
		ws.logger = logger
	}
}

// NewWebSocket creates a reconnecting websocket transport for url.
func NewWebSocket(url string, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		url:          url,
		dialer:       websocket.DefaultDialer,
		logger:       slog.Default(),
		writeTimeout: DefaultWriteTimeout,
		minBackoff:   DefaultMinBackoff,
		maxBackoff:   DefaultMaxBackoff,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// OnMessage implements Transport.
func (ws *WebSocket) OnMessage(fn func(data []byte)) {
	ws.onMessage = fn
}

// Start dials the host and begins the receive loop. The initial dial error
// is returned to the caller; later drops are redialed in the background.
func (ws *WebSocket) Start() error {
	conn, _, err := ws.dialer.Dial(ws.url, nil)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	ws.conn = conn
	ws.mu.Unlock()

	go ws.readLoop()
	return nil
}

// Send implements Transport.
func (ws *WebSocket) Send(data []byte) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn == nil {
		return ErrNotConnected
	}
	ws.conn.SetWriteDeadline(time.Now().Add(ws.writeTimeout))
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

// Close implements Transport.
func (ws *WebSocket) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		close(ws.done)
		ws.mu.Lock()
		if ws.conn != nil {
			err = ws.conn.Close()
			ws.conn = nil
		}
		ws.mu.Unlock()
	})
	return err
}

func (ws *WebSocket) closed() bool {
	select {
	case <-ws.done:
		return true
	default:
		return false
	}
}

// readLoop reads messages until Close, redialing on connection loss.
func (ws *WebSocket) readLoop() {
	for {
		ws.mu.Lock()
		conn := ws.conn
		ws.mu.Unlock()
		if conn == nil {
			if !ws.reconnect() {
				return
			}
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ws.closed() {
				return
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				ws.logger.Error("read error", "error", err)
			}
			conn.Close()
			ws.mu.Lock()
			ws.conn = nil
			ws.mu.Unlock()
			if !ws.reconnect() {
				return
			}
			continue
		}

		if ws.onMessage != nil {
			ws.onMessage(msg)
		}
	}
}

// reconnect redials with exponential backoff until a socket is live or the
// transport is closed. It reports whether the receive loop should go on.
func (ws *WebSocket) reconnect() bool {
	backoff := ws.minBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-ws.done:
			return false
		case <-time.After(backoff):
		}

		conn, _, err := ws.dialer.Dial(ws.url, nil)
		if err == nil {
			ws.mu.Lock()
			ws.conn = conn
			ws.mu.Unlock()
			ws.logger.Info("reconnected", "attempt", attempt)
			if ws.onReconnect != nil {
				ws.onReconnect(attempt)
			}
			return true
		}

		ws.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
		backoff *= 2
		if backoff > ws.maxBackoff {
			backoff = ws.maxBackoff
		}
	}
}
