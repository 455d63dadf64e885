package protocol

import "encoding/json"

// Action names understood by the host.
const (
	ActionRegisterHostClient        = "registerHostClient"
	ActionSessionCreated            = "sessionCreated"
	ActionPageCommandFromHost       = "pageCommandFromHost"
	ActionPageCommandsBatchFromHost = "pageCommandsBatchFromHost"
	ActionPageEventToHost           = "pageEventToHost"
)

// Message is the envelope for everything crossing the socket.
// ID is a correlation token for request/reply actions and empty for pushes.
type Message struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage builds an envelope with the payload marshaled in place.
func NewMessage(id, action string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{ID: id, Action: action, Payload: raw}, nil
}
