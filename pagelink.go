// Package pagelink is a Go client for Pagelink hosts: it builds a tree of
// UI controls in memory and keeps the remote rendering host synchronized
// with it over a persistent websocket connection.
//
// OpenPage connects a shared page:
//
//	session, err := pagelink.OpenPage(ctx, "greeter")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//
//	txt := control.New("text")
//	txt.SetAttr("value", "Hello, world!")
//	session.Add(ctx, txt)
//
// RunApp serves a multi-user app page, invoking the handler once per user
// session the host announces.
package pagelink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pagelink-dev/pagelink/pkg/client"
	"github.com/pagelink-dev/pagelink/pkg/control"
	"github.com/pagelink-dev/pagelink/pkg/protocol"
)

// DefaultServer is the websocket endpoint of a locally running host.
const DefaultServer = "ws://localhost:8550/ws"

type options struct {
	server       string
	hostClientID string
	token        string
	permissions  string
	update       bool
	logger       *slog.Logger
	metrics      *client.Metrics
}

// Option configures OpenPage and RunApp.
type Option func(*options)

// WithServer sets the host websocket URL (default ws://localhost:8550/ws).
func WithServer(url string) Option {
	return func(o *options) {
		o.server = url
	}
}

// WithHostClientID resumes a previous host client registration.
func WithHostClientID(id string) Option {
	return func(o *options) {
		o.hostClientID = id
	}
}

// WithToken sets the host auth token.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithPermissions sets the page permission spec.
func WithPermissions(permissions string) Option {
	return func(o *options) {
		o.permissions = permissions
	}
}

// WithUpdate keeps the page's existing content instead of starting clean.
func WithUpdate(update bool) Option {
	return func(o *options) {
		o.update = update
	}
}

// WithLogger sets the logger used across the connection and pages.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics instruments the connection with Prometheus metrics.
func WithMetrics(m *client.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Session is a live connection bound to one registered page.
type Session struct {
	*control.Page
	conn *client.Connection
}

// Conn exposes the underlying connection.
func (s *Session) Conn() *client.Connection { return s.conn }

// Close tears down the connection. Pending calls fail with
// client.ErrConnectionClosed.
func (s *Session) Close() error { return s.conn.Close() }

// OpenPage connects to the host, registers pageName as a shared page and
// returns the live page bound to the shared zero session.
func OpenPage(ctx context.Context, pageName string, opts ...Option) (*Session, error) {
	o := buildOptions(opts)

	router := newRouter()
	conn, err := dial(o, router)
	if err != nil {
		return nil, err
	}

	resp, err := conn.RegisterHostClient(ctx, &protocol.RegisterHostClientRequest{
		HostClientID: o.hostClientID,
		PageName:     pageName,
		IsApp:        false,
		Update:       o.update,
		AuthToken:    o.token,
		Permissions:  o.permissions,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	page := control.NewPage(conn, resp.PageName, resp.SessionID, control.WithLogger(o.logger))
	router.bind(resp.SessionID, page)

	if err := page.FetchDetails(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &Session{Page: page, conn: conn}, nil
}

// RunApp connects to the host, registers pageName as an app page and runs
// handler in its own goroutine for every user session the host announces.
// It blocks until ctx is done, then closes the connection.
func RunApp(ctx context.Context, pageName string, handler func(page *control.Page), opts ...Option) error {
	o := buildOptions(opts)

	router := newRouter()
	conn, err := dial(o, router)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.OnSessionCreated(func(s protocol.SessionCreated) {
		page := control.NewPage(conn, s.PageName, s.SessionID, control.WithLogger(o.logger))
		router.bind(s.SessionID, page)
		if err := page.FetchDetails(ctx); err != nil {
			o.logger.Error("page details fetch failed",
				"session_id", s.SessionID, "error", err)
			return
		}
		// one long-lived goroutine per user session
		go handler(page)
	})

	if _, err := conn.RegisterHostClient(ctx, &protocol.RegisterHostClientRequest{
		HostClientID: o.hostClientID,
		PageName:     pageName,
		IsApp:        true,
		Update:       o.update,
		AuthToken:    o.token,
		Permissions:  o.permissions,
	}); err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

func buildOptions(opts []Option) *options {
	o := &options{
		server: DefaultServer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// dial builds the transport and connection stack and starts it, wiring
// host pushes into the session router.
func dial(o *options, router *sessionRouter) (*client.Connection, error) {
	wsOpts := []client.WebSocketOption{client.WithTransportLogger(o.logger)}
	if o.metrics != nil {
		m := o.metrics
		wsOpts = append(wsOpts, client.WithReconnectHook(func(int) { m.Reconnected() }))
	}
	ws := client.NewWebSocket(o.server, wsOpts...)

	connOpts := []client.Option{client.WithConnectionLogger(o.logger)}
	if o.metrics != nil {
		connOpts = append(connOpts, client.WithMetrics(o.metrics))
	}
	conn := client.NewConnection(ws, connOpts...)
	conn.OnEvent(router.route)

	if err := conn.Start(); err != nil {
		return nil, err
	}
	return conn, nil
}

// sessionRouter fans events out to the page registered for their session.
type sessionRouter struct {
	mu    sync.Mutex
	pages map[string]*control.Page
}

func newRouter() *sessionRouter {
	return &sessionRouter{pages: make(map[string]*control.Page)}
}

func (r *sessionRouter) bind(sessionID string, page *control.Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[sessionID] = page
}

func (r *sessionRouter) route(e protocol.PageEvent) {
	r.mu.Lock()
	page := r.pages[e.SessionID]
	r.mu.Unlock()
	if page != nil {
		page.RouteEvent(e)
	}
}
