package types

// Envelope is the wire unit exchanged over every socket, in both directions.
// Pings is a pointer so an absent field keeps its default of true.
type Envelope struct {
	Author  string `json:"author"`
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
	System  bool   `json:"system,omitempty"`
	Pings   *bool  `json:"pings,omitempty"`
}

// AllowsPings reports whether the envelope may trigger notifications.
func (e Envelope) AllowsPings() bool {
	return e.Pings == nil || *e.Pings
}

// ClientRequest is a version-1 client frame. Version 0 clients send raw text
// instead, which the relay treats as the body of a send request.
type ClientRequest struct {
	Type  string `json:"type"`
	Data  string `json:"data,omitempty"`
	Nonce string `json:"nonce,omitempty"`
}

const (
	RequestSend   = "send"
	RequestOnline = "request_online"
)

type ModRequest struct {
	ID     int    `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// MuteRequest mutes until a fixed instant, or for a human-entered duration
// such as "1d 2h30m". Both empty means unmute.
type MuteRequest struct {
	ID       int    `json:"id"`
	Until    string `json:"until,omitempty"`
	Duration string `json:"duration,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type LinkRequest struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type AcceptingRequest struct {
	Enabled bool `json:"enabled"`
}

type ModResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}
