package whatsapp

const (
	APIBase          = "/api"
	EndpointSendText = "/sendText"
	EndpointGroups   = "/groups"
)

// Group is one WhatsApp group as reported by the gateway.
type Group struct {
	JID  string `json:"id"`
	Name string `json:"name"`
}

// SendMessageResponse is the gateway's acknowledgement of a send.
type SendMessageResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type sendTextRequest struct {
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
	Session string `json:"session"`
}
