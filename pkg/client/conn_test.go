package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pagelink-dev/pagelink/pkg/protocol"
)

// fakeTransport is an in-memory Transport. replyFn, when set, is invoked
// on its own goroutine with each sent envelope so tests can script host
// replies.
type fakeTransport struct {
	mu        sync.Mutex
	sent      []protocol.Message
	onMessage func([]byte)
	closed    bool
	replyFn   func(msg protocol.Message)
}

func (f *fakeTransport) Start() error { return nil }

func (f *fakeTransport) Send(data []byte) error {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	fn := f.replyFn
	f.mu.Unlock()
	if fn != nil {
		go fn(msg)
	}
	return nil
}

func (f *fakeTransport) OnMessage(fn func([]byte)) { f.onMessage = fn }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// deliver injects an inbound envelope as if the host had sent it.
func (f *fakeTransport) deliver(t *testing.T, id, action string, payload any) {
	t.Helper()
	msg, err := protocol.NewMessage(id, action, payload)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	f.onMessage(data)
}

// echoReplies wires a replier answering every command with its name as
// the result.
func echoReplies(f *fakeTransport) {
	f.replyFn = func(msg protocol.Message) {
		var req protocol.PageCommandRequest
		_ = json.Unmarshal(msg.Payload, &req)
		resp := protocol.PageCommandResponse{Result: req.Command.Name}
		out, _ := protocol.NewMessage(msg.ID, msg.Action, resp)
		data, _ := json.Marshal(out)
		f.onMessage(data)
	}
}

func TestSendCommandRoundTrip(t *testing.T) {
	f := &fakeTransport{}
	echoReplies(f)
	c := NewConnection(f)
	defer c.Close()

	resp, err := c.SendCommand(context.Background(), "p", "s",
		protocol.NewCommand("clean"))
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if resp.Result != "clean" {
		t.Errorf("Result = %q, want %q", resp.Result, "clean")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) != 1 {
		t.Fatalf("sent %d envelopes, want 1", len(f.sent))
	}
	env := f.sent[0]
	if env.ID == "" {
		t.Error("envelope has no correlation id")
	}
	if env.Action != protocol.ActionPageCommandFromHost {
		t.Errorf("action = %q, want %q", env.Action, protocol.ActionPageCommandFromHost)
	}
}

func TestConcurrentCallsCorrelate(t *testing.T) {
	f := &fakeTransport{}
	f.replyFn = func(msg protocol.Message) {
		var req protocol.PageCommandRequest
		_ = json.Unmarshal(msg.Payload, &req)
		// scramble reply timing so ordering cannot hide miscorrelation
		if len(req.Command.Values) > 0 && req.Command.Values[0] == "slow" {
			time.Sleep(30 * time.Millisecond)
		}
		resp := protocol.PageCommandResponse{Result: req.Command.Name}
		out, _ := protocol.NewMessage(msg.ID, msg.Action, resp)
		data, _ := json.Marshal(out)
		f.onMessage(data)
	}
	c := NewConnection(f)
	defer c.Close()

	names := []string{"alpha", "beta", "gamma", "delta"}
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(name string, slow bool) {
			defer wg.Done()
			cmd := protocol.NewCommand(name)
			if slow {
				cmd.Values = append(cmd.Values, "slow")
			}
			resp, err := c.SendCommand(context.Background(), "p", "s", cmd)
			if err != nil {
				t.Errorf("SendCommand(%s): %v", name, err)
				return
			}
			if resp.Result != name {
				t.Errorf("call %s got reply %q", name, resp.Result)
			}
		}(name, i%2 == 0)
	}
	wg.Wait()
}

func TestCallTimeout(t *testing.T) {
	f := &fakeTransport{} // never replies
	c := NewConnection(f)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.SendCommand(ctx, "p", "s", protocol.NewCommand("clean"))
	if !errors.Is(err, ErrCallTimeout) {
		t.Errorf("error = %v, want ErrCallTimeout", err)
	}
}

func TestCallCancelled(t *testing.T) {
	f := &fakeTransport{}
	c := NewConnection(f)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := c.SendCommand(ctx, "p", "s", protocol.NewCommand("clean"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	f := &fakeTransport{}
	c := NewConnection(f)

	errc := make(chan error, 1)
	go func() {
		_, err := c.SendCommand(context.Background(), "p", "s",
			protocol.NewCommand("clean"))
		errc <- err
	}()

	// wait for the call to register before closing
	for {
		c.mu.Lock()
		n := len(c.pending)
		c.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("pending call error = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call did not fail after Close")
	}
}

func TestCallAfterCloseFails(t *testing.T) {
	f := &fakeTransport{}
	c := NewConnection(f)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := c.SendCommand(context.Background(), "p", "s",
		protocol.NewCommand("clean"))
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("error = %v, want ErrConnectionClosed", err)
	}
	if !f.closed {
		t.Error("Close did not close the transport")
	}
}

func TestHostErrorSurfaced(t *testing.T) {
	f := &fakeTransport{}
	f.replyFn = func(msg protocol.Message) {
		resp := protocol.PageCommandResponse{Error: "no such page"}
		out, _ := protocol.NewMessage(msg.ID, msg.Action, resp)
		data, _ := json.Marshal(out)
		f.onMessage(data)
	}
	c := NewConnection(f)
	defer c.Close()

	_, err := c.SendCommand(context.Background(), "p", "s",
		protocol.NewCommand("clean"))
	var herr *HostError
	if !errors.As(err, &herr) {
		t.Fatalf("error = %v, want *HostError", err)
	}
	if herr.Message != "no such page" {
		t.Errorf("host error message = %q, want %q", herr.Message, "no such page")
	}
}

func TestRegisterHostClientRecordsIdentity(t *testing.T) {
	f := &fakeTransport{}
	f.replyFn = func(msg protocol.Message) {
		resp := protocol.RegisterHostClientResponse{
			HostClientID: "hc-9",
			PageName:     "acct/index",
			SessionID:    "0",
		}
		out, _ := protocol.NewMessage(msg.ID, msg.Action, resp)
		data, _ := json.Marshal(out)
		f.onMessage(data)
	}
	c := NewConnection(f)
	defer c.Close()

	resp, err := c.RegisterHostClient(context.Background(),
		&protocol.RegisterHostClientRequest{PageName: "index"})
	if err != nil {
		t.Fatalf("RegisterHostClient: %v", err)
	}
	if resp.SessionID != "0" {
		t.Errorf("SessionID = %q, want %q", resp.SessionID, "0")
	}
	if c.HostClientID() != "hc-9" {
		t.Errorf("HostClientID = %q, want %q", c.HostClientID(), "hc-9")
	}
	if c.PageName() != "acct/index" {
		t.Errorf("PageName = %q, want %q", c.PageName(), "acct/index")
	}
}

func TestEventPushDispatched(t *testing.T) {
	f := &fakeTransport{}
	got := make(chan protocol.PageEvent, 1)
	c := NewConnection(f)
	c.OnEvent(func(e protocol.PageEvent) { got <- e })
	defer c.Close()

	f.deliver(t, "", protocol.ActionPageEventToHost, protocol.PageEvent{
		EventTarget: "_1",
		EventName:   "click",
	})

	select {
	case e := <-got:
		if e.EventTarget != "_1" || e.EventName != "click" {
			t.Errorf("event = %+v, want click on _1", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event push not dispatched")
	}
}

func TestSessionCreatedPushDispatched(t *testing.T) {
	f := &fakeTransport{}
	got := make(chan protocol.SessionCreated, 1)
	c := NewConnection(f)
	c.OnSessionCreated(func(s protocol.SessionCreated) { got <- s })
	defer c.Close()

	f.deliver(t, "", protocol.ActionSessionCreated, protocol.SessionCreated{
		PageName:  "acct/app",
		SessionID: "s-7",
	})

	select {
	case s := <-got:
		if s.SessionID != "s-7" {
			t.Errorf("SessionID = %q, want %q", s.SessionID, "s-7")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session push not dispatched")
	}
}

func TestUnmatchedReplyIgnored(t *testing.T) {
	f := &fakeTransport{}
	c := NewConnection(f)
	defer c.Close()
	// a reply nobody is waiting for must not panic or block
	f.deliver(t, "no-such-call", protocol.ActionPageCommandFromHost,
		protocol.PageCommandResponse{Result: "x"})
}
