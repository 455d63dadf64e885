package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pagelink-dev/pagelink"
	"github.com/pagelink-dev/pagelink/pkg/client"
	"github.com/pagelink-dev/pagelink/pkg/control"
	"github.com/pagelink-dev/pagelink/pkg/hosttest"
)

func openTestPage(t *testing.T) (*hosttest.Server, *pagelink.Session) {
	t.Helper()
	srv := hosttest.NewServer()
	t.Cleanup(srv.Close)

	session, err := pagelink.OpenPage(context.Background(), "index",
		pagelink.WithServer(srv.URL()))
	if err != nil {
		t.Fatalf("OpenPage: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return srv, session
}

func TestOpenPageRegistersAndFetchesDetails(t *testing.T) {
	srv := hosttest.NewServer()
	defer srv.Close()
	srv.SetPageValue("hash", "route1")

	session, err := pagelink.OpenPage(context.Background(), "index",
		pagelink.WithServer(srv.URL()))
	if err != nil {
		t.Fatalf("OpenPage: %v", err)
	}
	defer session.Close()

	if session.SessionID() != "0" {
		t.Errorf("SessionID = %q, want the shared zero session", session.SessionID())
	}
	if got := session.StringAttr("hash"); got != "route1" {
		t.Errorf("hash = %q, want %q", got, "route1")
	}

	// page open pulls the detail attributes with get commands
	gets := 0
	for _, cmd := range srv.Commands() {
		if cmd.Name == "get" {
			gets++
		}
	}
	if gets == 0 {
		t.Error("no get commands recorded during page open")
	}
}

func TestAddControlsOverWire(t *testing.T) {
	srv, session := openTestPage(t)
	srv.ResetCommands()

	parent := control.New("stack")
	child := control.New("text")
	child.SetAttr("value", "hello")
	parent.Add(child)

	if err := session.Add(context.Background(), parent); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if parent.UID() == "" || child.UID() == "" {
		t.Error("controls did not receive host ids")
	}
	if session.Get(child.UID()) != child {
		t.Error("child not registered in the page index")
	}

	cmds := srv.Commands()
	if len(cmds) != 1 || cmds[0].Name != "add" {
		t.Fatalf("recorded commands = %v, want a single add", cmds)
	}
	if len(cmds[0].Commands) != 2 {
		t.Errorf("add carries %d subtree commands, want 2", len(cmds[0].Commands))
	}
	if got := cmds[0].Commands[1].Attrs["value"]; got != "hello" {
		t.Errorf("serialized child value = %q, want %q", got, "hello")
	}
}

func TestEventRoutedToHandler(t *testing.T) {
	srv, session := openTestPage(t)

	btn := control.New("button")
	clicked := make(chan *control.Event, 1)
	btn.OnEvent("click", func(e *control.Event) { clicked <- e })
	if err := session.Add(context.Background(), btn); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := srv.PushEvent(session.Name(), session.SessionID(),
		btn.UID(), "click", "x=1"); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	select {
	case e := <-clicked:
		if e.Control != btn || e.Data != "x=1" {
			t.Errorf("event = %+v, want click on the button with x=1", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("click never reached the handler")
	}
}

func TestWaitEvent(t *testing.T) {
	srv, session := openTestPage(t)

	btn := control.New("button")
	if err := session.Add(context.Background(), btn); err != nil {
		t.Fatalf("Add: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		srv.PushEvent(session.Name(), session.SessionID(), btn.UID(), "click", "")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := session.WaitEvent(ctx)
	if err != nil {
		t.Fatalf("WaitEvent: %v", err)
	}
	if ev.Name != "click" || ev.Control != btn {
		t.Errorf("event = %+v, want click on the button", ev)
	}
}

func TestChangeEventAppliedClean(t *testing.T) {
	srv, session := openTestPage(t)

	box := control.New("textbox")
	if err := session.Add(context.Background(), box); err != nil {
		t.Fatalf("Add: %v", err)
	}

	data := `[{"i":"` + box.UID() + `","value":"typed"}]`
	if err := srv.PushEvent(session.Name(), session.SessionID(),
		control.PageID, "change", data); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for box.StringAttr("value") != "typed" {
		if time.Now().After(deadline) {
			t.Fatal("change delta never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// a host-applied value must not be echoed back on the next sync
	srv.ResetCommands()
	if err := session.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := srv.Commands(); len(got) != 0 {
		t.Errorf("sync after change sent %d commands, want 0", len(got))
	}
}

func TestBatchErrorSurfaced(t *testing.T) {
	srv, session := openTestPage(t)
	srv.BatchError = "page is closed"

	err := session.Add(context.Background(), control.New("text"))
	var herr *client.HostError
	if !errors.As(err, &herr) {
		t.Fatalf("error = %v, want *client.HostError", err)
	}
	if herr.Message != "page is closed" {
		t.Errorf("host error = %q, want %q", herr.Message, "page is closed")
	}
}

func TestRunAppReceivesSessions(t *testing.T) {
	srv := hosttest.NewServer()
	defer srv.Close()

	pages := make(chan *control.Page, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pagelink.RunApp(ctx, "app", func(page *control.Page) {
			pages <- page
		}, pagelink.WithServer(srv.URL()))
	}()

	select {
	case page := <-pages:
		if page.SessionID() == "" || page.SessionID() == "0" {
			t.Errorf("session id = %q, want a dedicated app session", page.SessionID())
		}
		if err := page.Add(context.Background(), control.New("text")); err != nil {
			t.Errorf("Add on session page: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no session announced")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunApp returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunApp did not stop on cancel")
	}
}
