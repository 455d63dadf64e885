package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagelink-dev/pagelink/pkg/protocol"
)

// Default tracer name for client spans.
const defaultTracerName = "pagelink"

// Connection multiplexes correlated request/reply calls and host pushes
// over one Transport. Every outbound call gets a fresh ULID correlation
// id; the caller blocks until the reply with that id arrives, the context
// expires, or the connection closes. Pushes (empty id) are routed to the
// registered event and session handlers on a bounded dispatch pool, never
// inline with the receive path.
type Connection struct {
	transport Transport
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *Metrics
	dispatch  *dispatcher

	mu      sync.Mutex
	pending map[string]chan json.RawMessage
	closed  bool

	onEvent          func(e protocol.PageEvent)
	onSessionCreated func(s protocol.SessionCreated)

	hostClientID string
	pageName     string
}

// Option configures a Connection.
type Option func(*Connection)

// WithConnectionLogger sets the connection logger.
func WithConnectionLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithMetrics instruments the connection.
func WithMetrics(m *Metrics) Option {
	return func(c *Connection) {
		c.metrics = m
	}
}

// WithTracer sets the tracer used for call spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Connection) {
		c.tracer = t
	}
}

// WithDispatchPool sizes the push dispatch pool.
func WithDispatchPool(workers, queue int) Option {
	return func(c *Connection) {
		c.dispatch = newDispatcher(workers, queue, c.logger)
	}
}

// NewConnection wraps transport with the correlated messaging layer.
// Handlers must be registered before Start.
func NewConnection(transport Transport, opts ...Option) *Connection {
	c := &Connection{
		transport: transport,
		logger:    slog.Default(),
		tracer:    otel.Tracer(defaultTracerName),
		pending:   make(map[string]chan json.RawMessage),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dispatch == nil {
		c.dispatch = newDispatcher(DefaultDispatchWorkers, DefaultDispatchQueue, c.logger)
	}
	transport.OnMessage(c.handleMessage)
	return c
}

// OnEvent registers the handler for pageEventToHost pushes.
func (c *Connection) OnEvent(fn func(e protocol.PageEvent)) {
	c.onEvent = fn
}

// OnSessionCreated registers the handler for sessionCreated pushes.
func (c *Connection) OnSessionCreated(fn func(s protocol.SessionCreated)) {
	c.onSessionCreated = fn
}

// HostClientID returns the host-assigned client id after registration.
func (c *Connection) HostClientID() string { return c.hostClientID }

// PageName returns the fully qualified page name after registration.
func (c *Connection) PageName() string { return c.pageName }

// Start connects the underlying transport.
func (c *Connection) Start() error {
	return c.transport.Start()
}

// Close tears down the transport, stops the dispatch pool and fails every
// pending call with ErrConnectionClosed.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	err := c.transport.Close()
	c.dispatch.stop()
	return err
}

// RegisterHostClient registers this process as the host client for a page
// and records the assigned client id and qualified page name.
func (c *Connection) RegisterHostClient(ctx context.Context, req *protocol.RegisterHostClientRequest) (*protocol.RegisterHostClientResponse, error) {
	resp := &protocol.RegisterHostClientResponse{}
	if err := c.call(ctx, protocol.ActionRegisterHostClient, req, resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &HostError{Action: protocol.ActionRegisterHostClient, Message: resp.Error}
	}
	c.hostClientID = resp.HostClientID
	c.pageName = resp.PageName
	return resp, nil
}

// SendCommand sends one page command and blocks for its result.
func (c *Connection) SendCommand(ctx context.Context, pageName, sessionID string, cmd *protocol.Command) (*protocol.PageCommandResponse, error) {
	req := &protocol.PageCommandRequest{
		PageName:  pageName,
		SessionID: sessionID,
		Command:   cmd,
	}
	resp := &protocol.PageCommandResponse{}
	if err := c.call(ctx, protocol.ActionPageCommandFromHost, req, resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &HostError{Action: protocol.ActionPageCommandFromHost, Message: resp.Error}
	}
	return resp, nil
}

// SendCommandsBatch sends an ordered command batch and blocks for its
// results. The host applies the batch atomically in emission order.
func (c *Connection) SendCommandsBatch(ctx context.Context, pageName, sessionID string, cmds []*protocol.Command) (*protocol.PageCommandsBatchResponse, error) {
	req := &protocol.PageCommandsBatchRequest{
		PageName:  pageName,
		SessionID: sessionID,
		Commands:  cmds,
	}
	resp := &protocol.PageCommandsBatchResponse{}
	if err := c.call(ctx, protocol.ActionPageCommandsBatchFromHost, req, resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &HostError{Action: protocol.ActionPageCommandsBatchFromHost, Message: resp.Error}
	}
	return resp, nil
}

// call performs one correlated round trip and unmarshals the reply payload
// into out.
func (c *Connection) call(ctx context.Context, action string, payload, out any) error {
	ctx, span := c.tracer.Start(ctx, "pagelink.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("pagelink.action", action)))
	defer span.End()

	start := time.Now()
	raw, err := c.roundTrip(ctx, action, payload)
	if err == nil {
		if uerr := json.Unmarshal(raw, out); uerr != nil {
			err = &CallError{Action: action, Err: fmt.Errorf("malformed reply: %w", uerr)}
		}
	}

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.metrics.observeCall(action, status, time.Since(start).Seconds())
	return err
}

// roundTrip registers a correlation id, sends the envelope and blocks for
// the matching reply payload.
func (c *Connection) roundTrip(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	id := ulid.Make().String()
	msg, err := protocol.NewMessage(id, action, payload)
	if err != nil {
		return nil, &CallError{Action: action, Err: err}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, &CallError{Action: action, Err: err}
	}

	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &CallError{Action: action, Err: ErrConnectionClosed}
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.transport.Send(data); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, &CallError{Action: action, Err: err}
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, &CallError{Action: action, Err: ErrConnectionClosed}
		}
		return reply, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &CallError{Action: action, Err: ErrCallTimeout}
		}
		return nil, &CallError{Action: action, Err: ctx.Err()}
	}
}

// handleMessage runs on the transport receive path. Replies wake exactly
// one blocked caller; pushes are decoded and handed to the dispatch pool.
func (c *Connection) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Error("malformed envelope", "error", err)
		return
	}

	if msg.ID != "" {
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Warn("reply with no pending call", "id", msg.ID)
			return
		}
		ch <- msg.Payload
		return
	}

	switch msg.Action {
	case protocol.ActionPageEventToHost:
		var e protocol.PageEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			c.logger.Error("malformed event push", "error", err)
			return
		}
		c.metrics.observePush(msg.Action)
		if handler := c.onEvent; handler != nil {
			c.submitPush(msg.Action, func() { handler(e) })
		}

	case protocol.ActionSessionCreated:
		var s protocol.SessionCreated
		if err := json.Unmarshal(msg.Payload, &s); err != nil {
			c.logger.Error("malformed session push", "error", err)
			return
		}
		c.metrics.observePush(msg.Action)
		if handler := c.onSessionCreated; handler != nil {
			c.submitPush(msg.Action, func() { handler(s) })
		}

	default:
		c.logger.Warn("unknown push action", "action", msg.Action)
	}
}

func (c *Connection) submitPush(action string, job func()) {
	if !c.dispatch.submit(job) {
		c.metrics.observeDrop()
		c.logger.Warn("dispatch queue full, push dropped", "action", action)
	}
}
