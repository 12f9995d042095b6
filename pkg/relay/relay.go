// Package relay implements the core of linkvault: archiving vault-group
// messages under fresh tokens and resolving deep-link starts back into
// message deliveries.
//
// The relay is the single consumer of inbound bus events, so each event
// is handled to completion before the next one starts. Every failure
// path ends in a short, non-technical reply; raw transport errors never
// reach the user.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tinyland-inc/linkvault/pkg/bus"
	"github.com/tinyland-inc/linkvault/pkg/channels"
	"github.com/tinyland-inc/linkvault/pkg/config"
	"github.com/tinyland-inc/linkvault/pkg/logger"
	"github.com/tinyland-inc/linkvault/pkg/token"
	"github.com/tinyland-inc/linkvault/pkg/vault"
)

// User-facing replies. Kept short and free of any transport detail.
const (
	msgSaved        = "✅ Saved!\n🔗 Share this link:\n%s"
	msgSaveFailed   = "❌ Failed to save this message. Please try again."
	msgWelcome      = "👋 Welcome! Open a shared link to have its content delivered here."
	msgGroupStart   = "👋 Hey! Please message me directly to access shared content."
	msgChannelStart = "📢 Use the links shared here to access the content!"
	msgInvalidLink  = "⚠️ Invalid link format. Please use a valid link."
	msgUnavailable  = "⚠️ This content is no longer available or the link is invalid."
	msgFailed       = "😔 Something went wrong. Please try again later."
)

// ChannelManager is the slice of channels.Manager the relay needs.
type ChannelManager interface {
	Deliverer(channel string) (channels.Deliverer, bool)
	DeepLinker(channel string) (channels.DeepLinker, bool)
}

type Relay struct {
	cfg     *config.Config
	bus     *bus.MessageBus
	store   *vault.Store
	manager ChannelManager
}

func New(cfg *config.Config, msgBus *bus.MessageBus, store *vault.Store) *Relay {
	return &Relay{
		cfg:   cfg,
		bus:   msgBus,
		store: store,
	}
}

// SetChannelManager injects the channel manager used for deep-link
// minting and copy delivery.
func (r *Relay) SetChannelManager(m ChannelManager) {
	r.manager = m
}

// Run consumes inbound events until ctx is canceled or the bus closes.
func (r *Relay) Run(ctx context.Context) {
	for {
		msg, ok := r.bus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		r.handleInbound(ctx, msg)
	}
}

func (r *Relay) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	switch msg.Kind {
	case bus.KindGroupMessage:
		r.archive(ctx, msg)
	case bus.KindDeepLinkStart:
		r.resolve(ctx, msg)
	default:
		logger.WarnCF("relay", "Unknown inbound kind dropped", map[string]any{"kind": msg.Kind})
	}
}

// archive assigns a token to a vault-group message, persists the
// mapping, and replies in-thread with the shareable deep link.
func (r *Relay) archive(ctx context.Context, msg bus.InboundMessage) {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		logger.ErrorCF("relay", "Bad chat id on group message", map[string]any{"chat_id": msg.ChatID})
		return
	}
	messageID, err := strconv.Atoi(msg.MessageID)
	if err != nil {
		logger.ErrorCF("relay", "Bad message id on group message", map[string]any{"message_id": msg.MessageID})
		return
	}

	tok, err := token.Generate()
	if err != nil {
		// Randomness-source failure; nothing sane to do but report it.
		logger.ErrorCF("relay", "Token generation failed", map[string]any{"error": err.Error()})
		r.reply(ctx, msg, msgSaveFailed)
		return
	}

	ref := vault.Reference{
		ChatID:    chatID,
		MessageID: messageID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.store.Put(tok, ref); err != nil {
		if errors.Is(err, vault.ErrTokenExists) {
			// Uniqueness is assumed; a collision is a defect, and the
			// existing mapping is left untouched.
			logger.ErrorCF("relay", "Generated token collided, insert refused", map[string]any{
				"token": tok,
			})
		} else {
			logger.ErrorCF("relay", "Failed to persist mapping", map[string]any{
				"token": tok,
				"error": err.Error(),
			})
		}
		r.reply(ctx, msg, msgSaveFailed)
		return
	}

	linker, ok := r.manager.DeepLinker(msg.Channel)
	if !ok {
		logger.ErrorCF("relay", "Channel cannot mint deep links", map[string]any{"channel": msg.Channel})
		return
	}

	r.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel:        msg.Channel,
		ChatID:         msg.ChatID,
		Content:        fmt.Sprintf(msgSaved, linker.DeepLink(tok)),
		ReplyTo:        msg.MessageID,
		DisablePreview: true,
	})

	logger.InfoCF("relay", "Archived message", map[string]any{
		"token":      tok,
		"message_id": messageID,
	})
}

// resolve turns a deep-link start into a content delivery, or into one
// of the short "unavailable" notices. It never mutates the store.
func (r *Relay) resolve(ctx context.Context, msg bus.InboundMessage) {
	// /start in a group or channel cannot deliver content there;
	// point the user at a direct conversation instead.
	switch msg.Peer.Kind {
	case "group":
		r.reply(ctx, msg, msgGroupStart)
		return
	case "channel":
		r.reply(ctx, msg, msgChannelStart)
		return
	}

	tok := msg.Content
	if tok == "" {
		r.reply(ctx, msg, msgWelcome)
		return
	}
	if !token.Valid(tok) {
		r.reply(ctx, msg, msgInvalidLink)
		return
	}

	ref, err := r.store.Get(tok)
	if err != nil {
		logger.InfoCF("relay", "Unknown token requested", map[string]any{
			"token":     tok,
			"requester": msg.SenderID,
		})
		r.reply(ctx, msg, msgUnavailable)
		return
	}

	deliverer, ok := r.manager.Deliverer(msg.Channel)
	if !ok {
		logger.ErrorCF("relay", "Channel cannot deliver content", map[string]any{"channel": msg.Channel})
		r.reply(ctx, msg, msgFailed)
		return
	}

	err = deliverer.Deliver(ctx, msg.ChatID, ref)
	switch {
	case err == nil:
		logger.InfoCF("relay", "Delivered content", map[string]any{
			"token":     tok,
			"requester": msg.SenderID,
		})
	case errors.Is(err, channels.ErrContentUnavailable):
		// Deleted source or lost vault access reads the same to the
		// user as an unknown token.
		logger.WarnCF("relay", "Source content gone", map[string]any{
			"token": tok,
			"error": err.Error(),
		})
		r.reply(ctx, msg, msgUnavailable)
	default:
		logger.ErrorCF("relay", "Delivery failed", map[string]any{
			"token": tok,
			"error": err.Error(),
		})
		r.reply(ctx, msg, msgFailed)
	}
}

func (r *Relay) reply(ctx context.Context, msg bus.InboundMessage, text string) {
	r.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: text,
	})
}
