// Package control implements the client-side UI tree and the engine that
// keeps a remote rendering host synchronized with it.
//
// # Model
//
// Control is the addressable unit: a type name, an attribute store with
// per-slot dirty tracking, an ordered child list and optional event
// handlers. Page is the root control of one host session; it owns the
// id→control index and a single lock serializing every mutation cycle.
//
// # Synchronization
//
// Page.Update walks the tree comparing each control's current children
// against the snapshot from the last successful sync, computing a minimal
// edit script (remove runs, add runs with full subtrees, recursion into
// unchanged nodes) plus "set" commands for dirty attributes. The flat,
// indentation-addressed command batch goes to the host in one correlated
// call; the reply carries freshly minted ids which are bound back to the
// added controls in traversal order. Dirty bits, child snapshots and index
// entries advance only after the host accepts the batch, so a failed call
// leaves the local model exactly one state behind and the next sync
// resends the same changes.
//
// # Events
//
// Host pushes are routed through Page.RouteEvent on the connection's
// dispatch pool. Page-level "change" batches are applied to attribute
// stores without dirtying them; control events invoke the bound handler
// and wake any WaitEvent caller.
package control
