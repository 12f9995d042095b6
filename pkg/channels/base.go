package channels

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tinyland-inc/linkvault/pkg/bus"
	"github.com/tinyland-inc/linkvault/pkg/vault"
)

// ErrContentUnavailable marks a delivery failure the user should see as
// "content gone": the source message was deleted or the bot lost access
// to the vault chat. It is never retried.
var ErrContentUnavailable = errors.New("content unavailable")

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// Deliverer is implemented by channels that can copy an archived message
// to a requesting user.
type Deliverer interface {
	Deliver(ctx context.Context, chatID string, ref vault.Reference) error
}

// DeepLinker is implemented by channels that can mint a shareable deep
// link for a token.
type DeepLinker interface {
	DeepLink(token string) string
}

type BaseChannel struct {
	bus       *bus.MessageBus
	running   atomic.Bool
	name      string
	allowList []string
}

func NewBaseChannel(name string, b *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		bus:       b,
		name:      name,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	// Extract parts from compound senderID like "123456|username"
	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		// Strip leading "@" from allowed value for username matching
		trimmed := strings.TrimPrefix(allowed, "@")
		allowedID := trimmed
		allowedUser := ""
		if idx := strings.Index(trimmed, "|"); idx > 0 {
			allowedID = trimmed[:idx]
			allowedUser = trimmed[idx+1:]
		}

		// Either side may use the "id|username" compound form.
		if senderID == allowed ||
			idPart == allowed ||
			senderID == trimmed ||
			idPart == trimmed ||
			idPart == allowedID ||
			(allowedUser != "" && senderID == allowedUser) ||
			(userPart != "" && (userPart == allowed || userPart == trimmed || userPart == allowedUser)) {
			return true
		}
	}

	return false
}

// HandleMessage publishes an inbound event to the bus, applying the
// channel allowlist first.
func (c *BaseChannel) HandleMessage(
	kind string,
	peer bus.Peer,
	messageID, senderID, chatID, content string,
	metadata map[string]string,
) {
	if !c.IsAllowed(senderID) {
		return
	}

	if messageID == "" {
		messageID = uuid.New().String()
	}

	msg := bus.InboundMessage{
		Channel:   c.name,
		Kind:      kind,
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   content,
		Peer:      peer,
		MessageID: messageID,
		Metadata:  metadata,
	}

	c.bus.PublishInbound(context.TODO(), msg)
}

func (c *BaseChannel) SetRunning(running bool) {
	c.running.Store(running)
}
