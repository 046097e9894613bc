package realtime

import "encoding/json"

// Control frame types exchanged with websocket clients.
const (
	FrameConnected    = "connected"
	FramePing         = "ping"
	FramePong         = "pong"
	FrameSubscribe    = "subscribe"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribe  = "unsubscribe"
	FrameUnsubscribed = "unsubscribed"
	FrameError        = "error"
)

// Error frame messages.
const (
	msgAccessDenied    = "access denied to requested project"
	msgUnknownType     = "unrecognized message type"
	msgMalformed       = "malformed message"
	msgMissingProject  = "projectId is required"
	msgAdmittedProject = "cannot leave the authorized project"
)

type inboundFrame struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId,omitempty"`
}

type outboundFrame struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Message   string `json:"message,omitempty"`
}

func encodeFrame(f outboundFrame) []byte {
	// outboundFrame holds only strings; Marshal cannot fail.
	b, _ := json.Marshal(f)
	return b
}
