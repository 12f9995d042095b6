package bus

// Inbound event kinds produced by channels.
const (
	// KindGroupMessage is a message posted in the monitored vault group.
	KindGroupMessage = "group_message"
	// KindDeepLinkStart is a /start request, with any deep-link payload
	// carried in Content.
	KindDeepLinkStart = "deeplink_start"
)

// Peer identifies where a message came from (direct, group, channel).
type Peer struct {
	Kind string `json:"kind"` // "direct" | "group" | "channel" | ""
	ID   string `json:"id"`
}

type InboundMessage struct {
	Channel   string            `json:"channel"`
	Kind      string            `json:"kind"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content,omitempty"`
	Peer      Peer              `json:"peer"`
	MessageID string            `json:"message_id,omitempty"` // platform message ID
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type OutboundMessage struct {
	Channel        string `json:"channel"`
	ChatID         string `json:"chat_id"`
	Content        string `json:"content"`
	ReplyTo        string `json:"reply_to,omitempty"` // platform message ID to reply to
	DisablePreview bool   `json:"disable_preview,omitempty"`
}
