// ABOUTME: JSON messages exchanged on the remote trigger endpoint
// ABOUTME: One request per text frame, answered by exactly one ack
package remote

// Path is the websocket endpoint
const Path = "/trigger"

// Request types
const (
	TypeStart   = "voice/start"
	TypeStopAll = "voice/stop_all"
	TypeVoices  = "voices"
	TypeAck     = "ack"
)

// Request is sent by a remote
type Request struct {
	Type  string `json:"type"`
	Voice int    `json:"voice"`
}

// Reply acknowledges one request
type Reply struct {
	Type     string `json:"type"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Voices   int    `json:"voices"`
	Instance string `json:"instance,omitempty"`
}
