package control

import (
	"strconv"

	"github.com/pagelink-dev/pagelink/pkg/diff"
	"github.com/pagelink-dev/pagelink/pkg/protocol"
)

// buildUpdateCommands emits the control's pending changes: a "set" command
// when dirty attributes exist, then the edit script transforming the
// previous child snapshot into the current child list. Matched children
// are recursed into, deleted runs become one "remove" command, and new
// children become "add" commands carrying their full subtree. The running
// offset n counts children already in place, so each "add" lands at the
// position the host must insert at when applying commands in order.
func (c *Control) buildUpdateCommands(tx *syncTx, cmds *[]*protocol.Command) {
	update := c.commandAttrs(true, tx)
	if len(update.Attrs) > 0 {
		update.Name = "set"
		*cmds = append(*cmds, update)
	}

	prev := c.prevChildren
	cur := c.children

	byKey := make(map[uint64]*Control, len(prev)+len(cur))
	prevKeys := make([]uint64, len(prev))
	curKeys := make([]uint64, len(cur))
	for i, ctl := range prev {
		byKey[ctl.key] = ctl
		prevKeys[i] = ctl.key
	}
	for i, ctl := range cur {
		byKey[ctl.key] = ctl
		curKeys[i] = ctl.key
	}

	n := 0
	for _, op := range diff.Opcodes(prevKeys, curKeys) {
		switch op.Tag {
		case diff.OpEqual:
			for _, k := range prevKeys[op.A1:op.A2] {
				byKey[k].buildUpdateCommands(tx, cmds)
				n++
			}

		case diff.OpDelete:
			*cmds = append(*cmds, removeRun(tx, prevKeys[op.A1:op.A2], byKey))

		case diff.OpReplace:
			*cmds = append(*cmds, removeRun(tx, prevKeys[op.A1:op.A2], byKey))
			n = c.addRun(tx, curKeys[op.B1:op.B2], byKey, n, cmds)

		case diff.OpInsert:
			n = c.addRun(tx, curKeys[op.B1:op.B2], byKey, n, cmds)
		}
	}

	tx.snapshot(c)
}

// removeRun marks a run of former children (and their descendants) for
// detachment and builds the "remove" command naming their uids.
func removeRun(tx *syncTx, keys []uint64, byKey map[uint64]*Control) *protocol.Command {
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ctl := byKey[k]
		collectDetached(tx, ctl)
		ids = append(ids, ctl.uid)
	}
	return &protocol.Command{Name: "remove", Values: ids}
}

// addRun serializes a run of new children into "add" commands attached to
// this control at the running offset, returning the advanced offset.
func (c *Control) addRun(tx *syncTx, keys []uint64, byKey map[uint64]*Control, n int, cmds *[]*protocol.Command) int {
	for _, k := range keys {
		inner := byKey[k].commandTree(0, tx)
		*cmds = append(*cmds, &protocol.Command{
			Name:     "add",
			Attrs:    map[string]string{"to": c.uid, "at": strconv.Itoa(n)},
			Commands: inner,
		})
		n++
	}
	return n
}

// collectDetached records ctl and all of its descendants for removal from
// the page index on commit.
func collectDetached(tx *syncTx, ctl *Control) {
	for _, child := range ctl.children {
		collectDetached(tx, child)
	}
	tx.detached = append(tx.detached, ctl)
}
