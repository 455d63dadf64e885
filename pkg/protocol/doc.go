// Package protocol defines the JSON wire protocol spoken between a host
// client and the Pagelink host.
//
// Every message travelling over the socket is a single Message envelope:
//
//	{ "id": "...", "action": "...", "payload": { ... } }
//
// For request/reply actions the id is a fresh correlation token and the
// host echoes it back on the reply. Host-originated pushes (events, session
// notifications) carry an empty id.
//
// # Actions
//
//   - registerHostClient: connection setup, returns host client and session ids
//   - pageCommandFromHost: a single page command, returns result string
//   - pageCommandsBatchFromHost: an ordered command batch, returns results
//     aligned with the batch's "add" commands
//   - sessionCreated: host push, a new user session was opened
//   - pageEventToHost: host push, a user interaction event
//
// # Commands
//
// A Command is the unit of a page mutation script. Indent encodes nesting
// depth (two per level) so the host can rebuild subtree structure from a
// flat list. An "add" command carries an entire new subtree as nested
// commands; a "set" command carries only changed attributes; a "remove"
// command carries the ids of detached controls as values.
package protocol
