package remote

// Websocket frames shared by the sync server and the ws client backend.

const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpSet         = "set"

	FrameAck   = "ack"
	FrameError = "error"
	FrameValue = "value"
)

// Request is a client-to-server frame.
type Request struct {
	Op    string   `json:"op"`
	ID    string   `json:"id"`
	Path  string   `json:"path,omitempty"`
	Sub   string   `json:"sub,omitempty"`
	Items []string `json:"items,omitempty"`
}

// Frame is a server-to-client frame. Value frames always carry a non-nil Items.
type Frame struct {
	Type  string   `json:"type"`
	ID    string   `json:"id,omitempty"`
	Sub   string   `json:"sub,omitempty"`
	Path  string   `json:"path,omitempty"`
	Items []string `json:"items"`
	Error string   `json:"error,omitempty"`
}
