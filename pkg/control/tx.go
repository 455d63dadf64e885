package control

// syncTx collects the side effects of building a command batch so they are
// applied only after the host accepts the batch. A failed round trip then
// leaves dirty bits, previous-child snapshots and the page index exactly
// one state behind the host, and the next sync resends the same changes.
type syncTx struct {
	// attributes to fold back to clean
	cleaned []attrRef
	// previous-child snapshots to advance to the current child list
	snapshots []snapshotRef
	// controls leaving the tree, to detach from the index
	detached []*Control
	// stale ids to reclaim for controls re-entering the tree
	reclaimed []string
	// newly serialized controls in traversal order; the reply assigns
	// one id per entry
	added []*Control
}

type attrRef struct {
	ctl  *Control
	name string
}

type snapshotRef struct {
	ctl      *Control
	children []*Control
}

func (tx *syncTx) cleanAttr(ctl *Control, name string) {
	tx.cleaned = append(tx.cleaned, attrRef{ctl: ctl, name: name})
}

func (tx *syncTx) snapshot(ctl *Control) {
	children := make([]*Control, len(ctl.children))
	copy(children, ctl.children)
	tx.snapshots = append(tx.snapshots, snapshotRef{ctl: ctl, children: children})
}

// commit applies the recorded effects against the page.
func (tx *syncTx) commit(p *Page) {
	for _, a := range tx.cleaned {
		if slot, ok := a.ctl.attrs[a.name]; ok {
			a.ctl.attrs[a.name] = attrValue{val: slot.val, dirty: false}
		}
	}
	for _, s := range tx.snapshots {
		s.ctl.prevChildren = s.children
	}
	for _, id := range tx.reclaimed {
		delete(p.index, id)
	}
	for _, ctl := range tx.detached {
		delete(p.index, ctl.uid)
		ctl.page = nil
		ctl.handlers = nil
	}
}
