package client

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRunsJobs(t *testing.T) {
	d := newDispatcher(2, 8, slog.Default())
	var n atomic.Int32
	for i := 0; i < 8; i++ {
		if !d.submit(func() { n.Add(1) }) {
			t.Fatalf("submit %d rejected", i)
		}
	}
	d.stop()
	if got := n.Load(); got != 8 {
		t.Errorf("ran %d jobs, want 8", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := newDispatcher(1, 1, slog.Default())
	defer d.stop()

	block := make(chan struct{})
	started := make(chan struct{})
	if !d.submit(func() { close(started); <-block }) {
		t.Fatal("first submit rejected")
	}
	<-started

	// worker busy, one queue slot: the second queued job fills it
	if !d.submit(func() {}) {
		t.Fatal("queueable submit rejected")
	}
	if d.submit(func() {}) {
		t.Error("submit accepted on a full queue")
	}
	close(block)
}

func TestDispatcherSubmitAfterStop(t *testing.T) {
	d := newDispatcher(1, 1, slog.Default())
	d.stop()
	if d.submit(func() {}) {
		t.Error("submit accepted after stop")
	}
}

func TestDispatcherRecoversHandlerPanic(t *testing.T) {
	d := newDispatcher(1, 4, slog.Default())
	defer d.stop()

	if !d.submit(func() { panic("boom") }) {
		t.Fatal("submit rejected")
	}
	done := make(chan struct{})
	if !d.submit(func() { close(done) }) {
		t.Fatal("submit after panic rejected")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after handler panic")
	}
}
