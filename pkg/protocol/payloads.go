package protocol

// RegisterHostClientRequest asks the host to register this process as a
// host client for a page. HostClientID resumes a previous registration
// after a reconnect.
type RegisterHostClientRequest struct {
	HostClientID string `json:"hostClientID,omitempty"`
	PageName     string `json:"pageName"`
	IsApp        bool   `json:"isApp"`
	Update       bool   `json:"update"`
	AuthToken    string `json:"authToken,omitempty"`
	Permissions  string `json:"permissions,omitempty"`
}

// RegisterHostClientResponse is the reply to RegisterHostClientRequest.
// PageName comes back fully qualified (account/page).
type RegisterHostClientResponse struct {
	HostClientID string `json:"hostClientID"`
	PageName     string `json:"pageName"`
	SessionID    string `json:"sessionID"`
	Error        string `json:"error"`
}

// PageCommandRequest carries a single command for a page session.
type PageCommandRequest struct {
	PageName  string   `json:"pageName"`
	SessionID string   `json:"sessionID"`
	Command   *Command `json:"command"`
}

// PageCommandResponse is the reply to PageCommandRequest.
type PageCommandResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// PageCommandsBatchRequest carries an ordered command batch. The host
// applies the batch atomically in emission order.
type PageCommandsBatchRequest struct {
	PageName  string     `json:"pageName"`
	SessionID string     `json:"sessionID"`
	Commands  []*Command `json:"commands"`
}

// PageCommandsBatchResponse is the reply to PageCommandsBatchRequest.
// Results holds one string per result-bearing command in batch order; for
// "add" commands the string is a space-separated list of freshly minted
// control ids in subtree traversal order.
type PageCommandsBatchResponse struct {
	Results []string `json:"results"`
	Error   string   `json:"error"`
}

// PageEvent is pushed by the host when a user interacts with a control.
type PageEvent struct {
	PageName    string `json:"pageName"`
	SessionID   string `json:"sessionID"`
	EventTarget string `json:"eventTarget"`
	EventName   string `json:"eventName"`
	EventData   string `json:"eventData"`
}

// SessionCreated is pushed by the host when a new user session is opened
// against a registered app page.
type SessionCreated struct {
	PageName  string `json:"pageName"`
	SessionID string `json:"sessionID"`
}
