package control

import (
	"sort"

	"github.com/pagelink-dev/pagelink/pkg/protocol"
)

// commandTree flattens the control's subtree into definition commands, one
// per node, children indented two deeper than their parent. Every
// serialized control is appended to tx.added in traversal order; the
// host's reply assigns ids in that same order. A control re-entering the
// tree gives up its stale index entry so the old id cannot collide with
// the fresh one.
func (c *Control) commandTree(indent int, tx *syncTx) []*protocol.Command {
	if c.uid != "" {
		tx.reclaimed = append(tx.reclaimed, c.uid)
	}

	cmd := c.commandAttrs(false, tx)
	cmd.Indent = indent
	cmd.Values = append(cmd.Values, c.typeName)
	cmds := []*protocol.Command{cmd}

	tx.added = append(tx.added, c)

	for _, child := range c.children {
		cmds = append(cmds, child.commandTree(indent+2, tx)...)
	}

	tx.snapshot(c)
	return cmds
}

// commandAttrs collects the control's attributes into a command, recording
// each emitted attribute for the clean fold on commit. For a full
// definition (update false) every attribute is emitted plus the user id;
// for a delta (update true) only dirty attributes are, tagged with the
// control's uid, and a control with no uid yet yields an empty command.
func (c *Control) commandAttrs(update bool, tx *syncTx) *protocol.Command {
	cmd := &protocol.Command{Attrs: map[string]string{}}

	if update && c.uid == "" {
		return cmd
	}

	names := make([]string, 0, len(c.attrs))
	for name := range c.attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		slot := c.attrs[name]
		if (update && !slot.dirty) || name == "id" {
			continue
		}
		cmd.Attrs[name] = attrString(slot.val)
		tx.cleanAttr(c, name)
	}

	if id, ok := c.attrs["id"]; ok && !update {
		cmd.Attrs["id"] = attrString(id.val)
	} else if update && len(cmd.Attrs) > 0 {
		cmd.Values = append(cmd.Values, c.uid)
	}

	return cmd
}
