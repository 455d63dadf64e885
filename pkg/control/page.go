package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pagelink-dev/pagelink/pkg/protocol"
)

// PageID is the reserved id of the root control of every page.
const PageID = "page"

// Conn is the slice of the session transport the page model needs: a way
// to send one command or an ordered batch and block for the host's reply.
// *client.Connection implements it.
type Conn interface {
	SendCommand(ctx context.Context, pageName, sessionID string, cmd *protocol.Command) (*protocol.PageCommandResponse, error)
	SendCommandsBatch(ctx context.Context, pageName, sessionID string, cmds []*protocol.Command) (*protocol.PageCommandsBatchResponse, error)
}

// Page is the root of a control tree bound to one host session. It owns
// the id index for every synchronized control on the page and serializes
// all tree mutations behind a single lock, so concurrent updates cannot
// interleave their command batches.
type Page struct {
	*Control

	conn      Conn
	pageName  string
	sessionID string
	logger    *slog.Logger

	// mu guards the tree, the index and the full diff-and-send cycle
	mu    sync.Mutex
	index map[string]*Control

	evMu      sync.Mutex
	lastEvent *Event
	eventSig  chan struct{}
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithLogger sets the page logger.
func WithLogger(logger *slog.Logger) PageOption {
	return func(p *Page) {
		p.logger = logger
	}
}

// NewPage binds a page root to a host session reachable through conn.
func NewPage(conn Conn, pageName, sessionID string, opts ...PageOption) *Page {
	root := New(PageID)
	root.uid = PageID
	root.setAttr("id", PageID, false)

	p := &Page{
		Control:   root,
		conn:      conn,
		pageName:  pageName,
		sessionID: sessionID,
		logger:    slog.Default(),
		index:     map[string]*Control{PageID: root},
		eventSig:  make(chan struct{}, 1),
	}
	root.page = p
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the fully qualified page name.
func (p *Page) Name() string { return p.pageName }

// SessionID returns the host session this page is bound to.
func (p *Page) SessionID() string { return p.sessionID }

// Get returns the control registered under id, or nil.
func (p *Page) Get(id string) *Control {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index[id]
}

// Update synchronizes the given controls (or the whole page when none are
// given) with the host: dirty attributes become "set" commands, child list
// edits become "remove"/"add" commands, and ids minted for added controls
// are folded back into the index. Local state advances only after the host
// accepts the batch.
func (p *Page) Update(ctx context.Context, ctrls ...*Control) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.update(ctx, ctrls...)
}

func (p *Page) update(ctx context.Context, ctrls ...*Control) error {
	if len(ctrls) == 0 {
		ctrls = []*Control{p.Control}
	}

	tx := &syncTx{}
	var cmds []*protocol.Command
	for _, ctl := range ctrls {
		ctl.buildUpdateCommands(tx, &cmds)
	}
	if len(cmds) == 0 {
		return nil
	}

	resp, err := p.conn.SendCommandsBatch(ctx, p.pageName, p.sessionID, cmds)
	if err != nil {
		return err
	}
	tx.commit(p)

	// one id per added control, in traversal order across result lines
	var ids []string
	for _, line := range resp.Results {
		ids = append(ids, strings.Fields(line)...)
	}
	if len(ids) != len(tx.added) {
		return idMismatchError(len(tx.added), len(ids))
	}
	for i, id := range ids {
		ctl := tx.added[i]
		ctl.uid = id
		ctl.page = p
		p.index[id] = ctl
	}
	return nil
}

// Add appends controls to the page and synchronizes.
func (p *Page) Add(ctx context.Context, ctrls ...*Control) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children = append(p.children, ctrls...)
	return p.update(ctx)
}

// Insert places controls at position at and synchronizes.
func (p *Page) Insert(ctx context.Context, at int, ctrls ...*Control) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Control.insert(at, ctrls...)
	return p.update(ctx)
}

// Remove detaches controls from the page and synchronizes.
func (p *Page) Remove(ctx context.Context, ctrls ...*Control) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Control.remove(ctrls...)
	return p.update(ctx)
}

// RemoveAt detaches the control at position i and synchronizes.
func (p *Page) RemoveAt(ctx context.Context, i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Control.removeAt(i)
	return p.update(ctx)
}

// Clean removes every control from the page on the host and empties the
// local tree and index.
func (p *Page) Clean(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.sendCommand(ctx, "clean", p.uid); err != nil {
		return err
	}
	p.prevChildren = nil
	for _, child := range p.children {
		detach(p.index, child)
	}
	p.children = nil
	return nil
}

// ShowSignin displays the host's sign-in dialog and blocks until the user
// signs in (true) or, when allowDismiss is set, dismisses it (false).
func (p *Page) ShowSignin(ctx context.Context, authProviders string, authGroups, allowDismiss bool) (bool, error) {
	p.mu.Lock()
	p.setAttr("signin", authProviders, true)
	p.setAttr("signingroups", authGroups, true)
	p.setAttr("signinallowdismiss", allowDismiss, true)
	err := p.update(ctx)
	p.mu.Unlock()
	if err != nil {
		return false, err
	}

	for {
		e, err := p.WaitEvent(ctx)
		if err != nil {
			return false, err
		}
		if e.Target != PageID {
			continue
		}
		switch strings.ToLower(e.Name) {
		case "signin":
			return true, nil
		case "dismisssignin":
			return false, nil
		}
	}
}

// Error shows an error banner on the page.
func (p *Page) Error(ctx context.Context, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.sendCommand(ctx, "error", message)
	return err
}

// Signout signs the current user out.
func (p *Page) Signout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.sendCommand(ctx, "signout")
	return err
}

// CanAccess reports whether the signed-in user matches the given
// users-and-groups spec.
func (p *Page) CanAccess(ctx context.Context, usersAndGroups string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	resp, err := p.sendCommand(ctx, "canAccess", usersAndGroups)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(resp.Result, "true"), nil
}

func (p *Page) sendCommand(ctx context.Context, name string, values ...string) (*protocol.PageCommandResponse, error) {
	return p.conn.SendCommand(ctx, p.pageName, p.sessionID, protocol.NewCommand(name, values...))
}

// pageDetailAttrs are fetched from the host when a page opens.
var pageDetailAttrs = []string{
	"hash",
	"winwidth",
	"winheight",
	"userauthprovider",
	"userid",
	"userlogin",
	"username",
	"useremail",
	"userclientip",
}

// FetchDetails pulls the host-side page state (location hash, window size,
// signed-in user attributes) into the attribute store without marking it
// dirty.
func (p *Page) FetchDetails(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmds := make([]*protocol.Command, len(pageDetailAttrs))
	for i, name := range pageDetailAttrs {
		cmds[i] = protocol.NewCommand("get", PageID, name)
	}
	resp, err := p.conn.SendCommandsBatch(ctx, p.pageName, p.sessionID, cmds)
	if err != nil {
		return err
	}
	if len(resp.Results) != len(pageDetailAttrs) {
		return fmt.Errorf("%w: %d results for %d gets", ErrBadReply, len(resp.Results), len(pageDetailAttrs))
	}
	for i, name := range pageDetailAttrs {
		p.setAttr(name, resp.Results[i], false)
	}
	return nil
}

// RouteEvent routes a host push to this page: "change" deltas are applied
// straight to the attribute stores without dirtying them (they originate
// from the host, resending them would echo), any other event is resolved
// against the index, stored as the most recent event for WaitEvent callers
// and handed to the bound handler, if any.
//
// RouteEvent runs on the connection's dispatch pool, so handler code never
// blocks the socket receive loop.
func (p *Page) RouteEvent(e protocol.PageEvent) {
	p.logger.Debug("page event",
		"target", e.EventTarget, "name", e.EventName, "data", e.EventData)

	if e.EventTarget == PageID && e.EventName == "change" {
		p.applyChanges(e.EventData)
		return
	}

	p.mu.Lock()
	ctl, ok := p.index[e.EventTarget]
	if !ok {
		p.mu.Unlock()
		return
	}
	ev := &Event{
		Target:  e.EventTarget,
		Name:    e.EventName,
		Data:    e.EventData,
		Control: ctl,
		Page:    p,
	}
	handler := ctl.Handler(e.EventName)
	p.mu.Unlock()

	p.evMu.Lock()
	p.lastEvent = ev
	p.evMu.Unlock()
	select {
	case p.eventSig <- struct{}{}:
	default:
	}

	// outside the page lock: handlers may mutate the tree and sync
	if handler != nil {
		handler(ev)
	}
}

// applyChanges applies a host-originated batch of attribute deltas. Each
// entry targets the control under its "i" id; unknown ids are skipped.
func (p *Page) applyChanges(data string) {
	var props []map[string]any
	if err := json.Unmarshal([]byte(data), &props); err != nil {
		p.logger.Error("malformed change event", "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, prop := range props {
		id, _ := prop["i"].(string)
		ctl, ok := p.index[id]
		if !ok {
			continue
		}
		for name, value := range prop {
			if name != "i" {
				ctl.setAttr(name, value, false)
			}
		}
	}
}

// WaitEvent blocks until the next event arrives on the page, or until ctx
// is done. Events already delivered before the call do not count.
func (p *Page) WaitEvent(ctx context.Context) (*Event, error) {
	// drain a stale signal so only a fresh event wakes us
	select {
	case <-p.eventSig:
	default:
	}

	select {
	case <-p.eventSig:
		p.evMu.Lock()
		defer p.evMu.Unlock()
		return p.lastEvent, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
