package pushserver

import "encoding/json"

// inbound is a client command. Data is decoded per command.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is a server event as written to the socket.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
