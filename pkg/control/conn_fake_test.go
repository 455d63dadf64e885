package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pagelink-dev/pagelink/pkg/protocol"
)

// fakeConn is an in-memory Conn that mints sequential ids for "add"
// commands, records every batch, and can fail the next call on demand.
type fakeConn struct {
	mu       sync.Mutex
	batches  [][]*protocol.Command
	commands []*protocol.Command
	nextID   int
	failNext error
	// dropResults truncates the reply of the next batch to simulate a
	// host answering with too few result lines.
	dropResults bool
	values      map[string]string
}

func newFakeConn() *fakeConn {
	return &fakeConn{values: map[string]string{}}
}

func (f *fakeConn) SendCommand(ctx context.Context, pageName, sessionID string, cmd *protocol.Command) (*protocol.PageCommandResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	f.commands = append(f.commands, cmd)
	return &protocol.PageCommandResponse{}, nil
}

func (f *fakeConn) SendCommandsBatch(ctx context.Context, pageName, sessionID string, cmds []*protocol.Command) (*protocol.PageCommandsBatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	f.batches = append(f.batches, cmds)
	f.commands = append(f.commands, cmds...)

	resp := &protocol.PageCommandsBatchResponse{}
	for _, cmd := range cmds {
		switch cmd.Name {
		case "add":
			ids := make([]string, len(cmd.Commands))
			for i := range cmd.Commands {
				f.nextID++
				ids[i] = fmt.Sprintf("_%d", f.nextID)
			}
			resp.Results = append(resp.Results, strings.Join(ids, " "))
		case "get":
			name := ""
			if len(cmd.Values) > 1 {
				name = cmd.Values[1]
			}
			resp.Results = append(resp.Results, f.values[name])
		}
	}
	if f.dropResults && len(resp.Results) > 0 {
		resp.Results = resp.Results[:len(resp.Results)-1]
		f.dropResults = false
	}
	return resp, nil
}

func (f *fakeConn) lastBatch() []*protocol.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

func (f *fakeConn) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

var errBoom = errors.New("boom")
