package control

import (
	"context"
	"sync/atomic"
)

// keyCounter mints surrogate keys for controls. Keys identify a control
// instance during child-list diffing, so two structurally identical
// controls never compare equal.
var keyCounter uint64

func nextKey() uint64 {
	return atomic.AddUint64(&keyCounter, 1)
}

// EventHandler is a callback bound to a named control event.
type EventHandler func(e *Event)

// Control is a node of the UI tree: a type name, an attribute store, an
// ordered child list and optional event handlers. Controls start detached;
// they become addressable (and get a host-assigned uid) once a tree
// containing them is synchronized through a Page.
//
// Typed widget wrappers embed *Control and expose their property surface
// through the attribute accessors.
type Control struct {
	typeName string
	key      uint64
	attrs    map[string]attrValue
	children []*Control
	// child list as of the last successful sync, the diff baseline
	prevChildren []*Control
	handlers     map[string]EventHandler
	uid          string
	page         *Page
}

// New creates a detached control of the given type.
func New(typeName string) *Control {
	return &Control{
		typeName: typeName,
		key:      nextKey(),
		attrs:    make(map[string]attrValue),
	}
}

// TypeName returns the control's type name as sent to the host.
func (c *Control) TypeName() string { return c.typeName }

// UID returns the host-assigned id, or "" while the control is detached.
func (c *Control) UID() string { return c.uid }

// Page returns the page owning this control, or nil while detached.
func (c *Control) Page() *Page { return c.page }

// ID returns the user-assigned id attribute.
func (c *Control) ID() string { return c.StringAttr("id") }

// SetID sets the user-assigned id attribute.
func (c *Control) SetID(id string) { c.SetAttr("id", id) }

// lock takes the owning page's tree lock, if any, and returns the
// matching unlock. Detached controls need no locking.
func (c *Control) lock() func() {
	if p := c.page; p != nil {
		p.mu.Lock()
		return p.mu.Unlock
	}
	return func() {}
}

// Children returns a copy of the current child list.
func (c *Control) Children() []*Control {
	defer c.lock()()
	out := make([]*Control, len(c.children))
	copy(out, c.children)
	return out
}

// Add appends children. The change is local until the next sync.
func (c *Control) Add(children ...*Control) {
	defer c.lock()()
	c.children = append(c.children, children...)
}

// Insert places children starting at position at.
func (c *Control) Insert(at int, children ...*Control) {
	defer c.lock()()
	c.insert(at, children...)
}

func (c *Control) insert(at int, children ...*Control) {
	if at < 0 {
		at = 0
	}
	if at > len(c.children) {
		at = len(c.children)
	}
	for i, child := range children {
		n := at + i
		c.children = append(c.children, nil)
		copy(c.children[n+1:], c.children[n:])
		c.children[n] = child
	}
}

// Remove detaches the given children from the child list. Controls not
// present are ignored.
func (c *Control) Remove(children ...*Control) {
	defer c.lock()()
	c.remove(children...)
}

func (c *Control) remove(children ...*Control) {
	for _, child := range children {
		for i, cur := range c.children {
			if cur == child {
				c.children = append(c.children[:i], c.children[i+1:]...)
				break
			}
		}
	}
}

// RemoveAt detaches the child at position i.
func (c *Control) RemoveAt(i int) {
	defer c.lock()()
	c.removeAt(i)
}

func (c *Control) removeAt(i int) {
	c.children = append(c.children[:i], c.children[i+1:]...)
}

// OnEvent binds handler to the named event. A nil handler unbinds it.
// Handlers are purely local and never serialized.
func (c *Control) OnEvent(name string, handler EventHandler) {
	defer c.lock()()
	if c.handlers == nil {
		c.handlers = make(map[string]EventHandler)
	}
	c.handlers[name] = handler
}

// Handler returns the handler bound to the named event, or nil. The event
// router resolves handlers under the page lock; callers reading a handler
// of an attached control while events flow should do the same.
func (c *Control) Handler(name string) EventHandler {
	return c.handlers[name]
}

// Update pushes this control's pending changes (dirty attributes and child
// list edits) to the host.
func (c *Control) Update(ctx context.Context) error {
	if c.page == nil {
		return ErrNotAttached
	}
	return c.page.Update(ctx, c)
}

// Clean removes all of the control's children on the host and detaches
// their subtrees from the page index.
func (c *Control) Clean(ctx context.Context) error {
	if c.page == nil {
		return ErrNotAttached
	}
	p := c.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.sendCommand(ctx, "clean", c.uid); err != nil {
		return err
	}
	c.prevChildren = nil
	for _, child := range c.children {
		detach(p.index, child)
	}
	c.children = nil
	return nil
}

// detach drops ctl and all of its descendants from the index and releases
// their local bindings.
func detach(index map[string]*Control, ctl *Control) {
	for _, child := range ctl.children {
		detach(index, child)
	}
	delete(index, ctl.uid)
	ctl.page = nil
	ctl.handlers = nil
}
