// Package client implements the session transport: a correlated
// request/reply messaging layer over one persistent socket connection to a
// Pagelink host.
//
// Transport abstracts the physical connection; WebSocket is the shipped
// implementation, redialing with exponential backoff when the socket
// drops. Connection sits on top and multiplexes synchronous calls (each
// tagged with a ULID correlation id) with host pushes, which are routed to
// registered handlers on a bounded worker pool so the receive loop never
// executes handler code inline.
//
// Calls take a context; cancellation or expiry fails the call with a
// distinct ErrCallTimeout kind instead of blocking forever, and closing
// the connection fails every still-pending call with ErrConnectionClosed.
//
// Optional Prometheus metrics (NewMetrics) and OpenTelemetry spans cover
// call counts, round-trip latency, push routing and reconnects.
package client
