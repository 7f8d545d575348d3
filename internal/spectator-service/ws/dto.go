package ws

// ClientMsg é a mensagem recebida do cliente WebSocket.
// Type: subscribe | unsubscribe | ping
// Slot: índice do slot ("0", "1", ...) ou "all"
type ClientMsg struct {
	Type string `json:"type"`
	Slot string `json:"slot"`
}

// ServerMsg confirma assinaturas e responde pings. Eventos do motor seguem
// como events.Envelope.
type ServerMsg struct {
	Type  string `json:"type"` // subscribed | unsubscribed | pong | error
	Slot  string `json:"slot,omitempty"`
	Error string `json:"error,omitempty"`
}

const AllSlots = "all"
