// Package hosttest provides an in-process mock Pagelink host for tests.
//
// The server speaks the real JSON envelope protocol over a websocket
// endpoint: it registers host clients, answers command batches with
// sequentially minted control ids, and can inject pushes (events, session
// notices) into connected clients. Received commands are recorded for
// assertions.
package hosttest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pagelink-dev/pagelink/pkg/protocol"
)

// Server is a mock host bound to an httptest listener.
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	// CommandResult, when set, supplies the result and error strings for
	// single pageCommandFromHost calls.
	CommandResult func(cmd *protocol.Command) (result, errMsg string)

	// BatchError, when set, is returned as the error of the next batch
	// call and then cleared.
	BatchError string

	mu       sync.Mutex
	conns    []*hostConn
	nextID   int
	sessions int
	commands []*protocol.Command
	values   map[string]string
}

// hostConn serializes writes to one client socket.
type hostConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (hc *hostConn) writeJSON(v any) error {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.conn.WriteJSON(v)
}

// NewServer starts a mock host listening on a random local port.
func NewServer() *Server {
	s := &Server{
		logger: slog.Default(),
		values: make(map[string]string),
	}
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	s.httpServer = httptest.NewServer(r)
	return s
}

// URL returns the websocket endpoint clients should dial.
func (s *Server) URL() string {
	return strings.Replace(s.httpServer.URL, "http", "ws", 1) + "/ws"
}

// Close shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	for _, hc := range s.conns {
		hc.conn.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.httpServer.Close()
}

// Commands returns a copy of every command received so far, in order.
func (s *Server) Commands() []*protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*protocol.Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// ResetCommands clears the recorded command log.
func (s *Server) ResetCommands() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
}

// SetPageValue sets the value returned for "get" commands on name.
func (s *Server) SetPageValue(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// PushEvent injects a pageEventToHost push into every connected client.
func (s *Server) PushEvent(pageName, sessionID, target, name, data string) error {
	return s.push(protocol.ActionPageEventToHost, &protocol.PageEvent{
		PageName:    pageName,
		SessionID:   sessionID,
		EventTarget: target,
		EventName:   name,
		EventData:   data,
	})
}

// PushSessionCreated injects a sessionCreated push into every connected
// client.
func (s *Server) PushSessionCreated(pageName, sessionID string) error {
	return s.push(protocol.ActionSessionCreated, &protocol.SessionCreated{
		PageName:  pageName,
		SessionID: sessionID,
	})
}

func (s *Server) push(action string, payload any) error {
	msg, err := protocol.NewMessage("", action, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	conns := make([]*hostConn, len(s.conns))
	copy(conns, s.conns)
	s.mu.Unlock()
	for _, hc := range conns {
		if err := hc.writeJSON(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "error", err)
		return
	}
	hc := &hostConn{conn: conn}
	s.mu.Lock()
	s.conns = append(s.conns, hc)
	s.mu.Unlock()

	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := s.handleMessage(hc, &msg); err != nil {
			s.logger.Error("message failed", "action", msg.Action, "error", err)
			return
		}
	}
}

func (s *Server) handleMessage(hc *hostConn, msg *protocol.Message) error {
	switch msg.Action {
	case protocol.ActionRegisterHostClient:
		var req protocol.RegisterHostClientRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return err
		}
		return s.reply(hc, msg, s.register(&req))

	case protocol.ActionPageCommandFromHost:
		var req protocol.PageCommandRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return err
		}
		s.record(req.Command)
		result, errMsg := "", ""
		if s.CommandResult != nil {
			result, errMsg = s.CommandResult(req.Command)
		}
		return s.reply(hc, msg, &protocol.PageCommandResponse{Result: result, Error: errMsg})

	case protocol.ActionPageCommandsBatchFromHost:
		var req protocol.PageCommandsBatchRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return err
		}
		return s.reply(hc, msg, s.runBatch(req.Commands))

	default:
		return fmt.Errorf("hosttest: unsupported action %q", msg.Action)
	}
}

// register answers a host client registration. A non-app page gets the
// shared zero session; an app page gets no session id up front and a
// sessionCreated push instead.
func (s *Server) register(req *protocol.RegisterHostClientRequest) *protocol.RegisterHostClientResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	hostClientID := req.HostClientID
	if hostClientID == "" {
		s.nextID++
		hostClientID = fmt.Sprintf("hc-%d", s.nextID)
	}
	pageName := req.PageName
	if pageName == "" {
		pageName = "test/index"
	}

	resp := &protocol.RegisterHostClientResponse{
		HostClientID: hostClientID,
		PageName:     pageName,
	}
	if req.IsApp {
		s.sessions++
		sessionID := fmt.Sprintf("s-%d", s.sessions)
		// announce the first session once the reply is on the wire
		go s.PushSessionCreated(pageName, sessionID)
	} else {
		resp.SessionID = "0"
	}
	return resp
}

// runBatch executes a command batch: "add" commands mint one id per
// serialized control, "get" commands look up page values, and everything
// else produces no result line.
func (s *Server) runBatch(cmds []*protocol.Command) *protocol.PageCommandsBatchResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.BatchError != "" {
		errMsg := s.BatchError
		s.BatchError = ""
		return &protocol.PageCommandsBatchResponse{Error: errMsg}
	}

	resp := &protocol.PageCommandsBatchResponse{Results: []string{}}
	for _, cmd := range cmds {
		s.commands = append(s.commands, cmd)
		switch cmd.Name {
		case "add":
			ids := make([]string, len(cmd.Commands))
			for i := range cmd.Commands {
				s.nextID++
				ids[i] = fmt.Sprintf("_%d", s.nextID)
			}
			resp.Results = append(resp.Results, strings.Join(ids, " "))
		case "get":
			name := ""
			if len(cmd.Values) > 1 {
				name = cmd.Values[1]
			}
			resp.Results = append(resp.Results, s.values[name])
		}
	}
	return resp
}

func (s *Server) record(cmd *protocol.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
}

func (s *Server) reply(hc *hostConn, msg *protocol.Message, payload any) error {
	out, err := protocol.NewMessage(msg.ID, msg.Action, payload)
	if err != nil {
		return err
	}
	return hc.writeJSON(out)
}
