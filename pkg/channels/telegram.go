package channels

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/tinyland-inc/linkvault/pkg/bus"
	"github.com/tinyland-inc/linkvault/pkg/config"
	"github.com/tinyland-inc/linkvault/pkg/logger"
	"github.com/tinyland-inc/linkvault/pkg/vault"
)

// TelegramChannel watches the vault group and serves deep-link starts
// over the Telegram Bot API.
//
// The allowlist restricts who may archive messages from the vault group;
// it is deliberately not applied to deep-link starts, which are the
// public surface of the bot.
type TelegramChannel struct {
	*BaseChannel
	bot         *telego.Bot
	username    string
	vaultChatID int64
	maxAttempts int
	backoff     time.Duration
	cancel      context.CancelFunc
}

func NewTelegramChannel(
	cfg config.TelegramConfig,
	delivery config.DeliveryConfig,
	msgBus *bus.MessageBus,
) (*TelegramChannel, error) {
	bot, err := telego.NewBot(cfg.Token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	maxAttempts := delivery.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := time.Duration(delivery.BackoffMS) * time.Millisecond
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", msgBus, cfg.AllowFrom),
		bot:         bot,
		vaultChatID: cfg.VaultChatID,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	me, err := c.bot.GetMe(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("telegram getMe: %w", err)
	}
	c.username = me.Username

	updates, err := c.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("telegram long polling: %w", err)
	}

	c.SetRunning(true)
	logger.InfoCF("telegram", "Connected", map[string]any{
		"bot":        "@" + me.Username,
		"vault_chat": c.vaultChatID,
	})

	go func() {
		for update := range updates {
			c.handleUpdate(update)
		}
		c.SetRunning(false)
	}()

	return nil
}

func (c *TelegramChannel) Stop(_ context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.SetRunning(false)
	return nil
}

// DeepLink builds the shareable t.me link that reopens this bot with the
// token as the /start payload.
func (c *TelegramChannel) DeepLink(token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", c.username, token)
}

// handleUpdate classifies an update into a bus event. Everything else
// (other groups, plain DMs without /start, media the bot is not watching)
// is ignored.
func (c *TelegramChannel) handleUpdate(update telego.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	messageID := strconv.Itoa(msg.MessageID)

	senderID := ""
	if msg.From != nil {
		senderID = strconv.FormatInt(msg.From.ID, 10)
		if msg.From.Username != "" {
			senderID += "|" + msg.From.Username
		}
	}

	if payload, ok := c.parseStart(msg.Text); ok {
		peer := bus.Peer{Kind: peerKind(msg.Chat.Type), ID: chatID}
		// Deep-link starts bypass the allowlist: anyone holding a link
		// may redeem it.
		c.bus.PublishInbound(context.TODO(), bus.InboundMessage{
			Channel:   c.Name(),
			Kind:      bus.KindDeepLinkStart,
			SenderID:  senderID,
			ChatID:    chatID,
			Content:   payload,
			Peer:      peer,
			MessageID: messageID,
		})
		return
	}

	if isGroupType(msg.Chat.Type) && msg.Chat.ID == c.vaultChatID {
		c.HandleMessage(
			bus.KindGroupMessage,
			bus.Peer{Kind: "group", ID: chatID},
			messageID, senderID, chatID, msg.Text,
			nil,
		)
	}
}

// parseStart extracts the deep-link payload from a /start command,
// tolerating the /start@botname form used in groups.
func (c *TelegramChannel) parseStart(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	cmd := fields[0]
	if cmd != "/start" && cmd != "/start@"+c.username {
		return "", false
	}
	if len(fields) > 1 {
		return fields[1], true
	}
	return "", true
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}

	params := tu.Message(tu.ID(chatID), msg.Content)
	if msg.ReplyTo != "" {
		if replyID, err := strconv.Atoi(msg.ReplyTo); err == nil {
			params.ReplyParameters = &telego.ReplyParameters{MessageID: replyID}
		}
	}
	if msg.DisablePreview {
		params.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}

	return c.withRetry(ctx, func(cx context.Context) error {
		_, err := c.bot.SendMessage(cx, params)
		return err
	})
}

// Deliver copies the referenced vault message to the requesting chat.
// A deleted source message or lost vault access surfaces as
// ErrContentUnavailable; transient transport failures are retried first.
func (c *TelegramChannel) Deliver(ctx context.Context, chatID string, ref vault.Reference) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	err = c.withRetry(ctx, func(cx context.Context) error {
		_, err := c.bot.CopyMessage(cx, &telego.CopyMessageParams{
			ChatID:     tu.ID(id),
			FromChatID: tu.ID(ref.ChatID),
			MessageID:  ref.MessageID,
		})
		return err
	})
	if err == nil {
		return nil
	}

	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) && (apiErr.ErrorCode == 400 || apiErr.ErrorCode == 403) {
		return fmt.Errorf("%w: %s", ErrContentUnavailable, apiErr.Description)
	}
	return err
}

// withRetry runs op up to maxAttempts times with exponential backoff.
// A rate-limit retry_after hint from Telegram overrides the computed
// backoff for that attempt. Permanent API errors fail immediately.
func (c *TelegramChannel) withRetry(ctx context.Context, op func(context.Context) error) error {
	delay := c.backoff
	var lastErr error

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !transientError(err) || attempt >= c.maxAttempts {
			return lastErr
		}

		wait := delay
		if hint, ok := retryAfterHint(err); ok {
			wait = hint
		}
		logger.WarnCF("telegram", "Transient API failure, retrying", map[string]any{
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		})

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
}

// transientError reports whether the failure is worth retrying:
// rate limits, Telegram server errors, and anything that is not a
// structured API response (network-level failures).
func transientError(err error) bool {
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == 429 || apiErr.ErrorCode >= 500
	}
	return true
}

func retryAfterHint(err error) (time.Duration, bool) {
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) && apiErr.Parameters != nil && apiErr.Parameters.RetryAfter > 0 {
		return time.Duration(apiErr.Parameters.RetryAfter) * time.Second, true
	}
	return 0, false
}

func peerKind(chatType string) string {
	switch chatType {
	case telego.ChatTypePrivate:
		return "direct"
	case telego.ChatTypeGroup, telego.ChatTypeSupergroup:
		return "group"
	case telego.ChatTypeChannel:
		return "channel"
	default:
		return ""
	}
}

func isGroupType(chatType string) bool {
	return chatType == telego.ChatTypeGroup || chatType == telego.ChatTypeSupergroup
}
