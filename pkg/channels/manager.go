package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/tinyland-inc/linkvault/pkg/bus"
	"github.com/tinyland-inc/linkvault/pkg/config"
	"github.com/tinyland-inc/linkvault/pkg/logger"
)

// Manager owns the configured channels: it starts and stops them and
// pumps outbound bus messages to the channel that must send them.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	bus      *bus.MessageBus
}

func NewManager(cfg *config.Config, msgBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      msgBus,
	}

	if cfg.Channels.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Channels.Telegram, cfg.Delivery, msgBus)
		if err != nil {
			return nil, fmt.Errorf("creating telegram channel: %w", err)
		}
		m.channels[ch.Name()] = ch
	}

	if len(m.channels) == 0 {
		return nil, fmt.Errorf("no channels enabled")
	}
	return m, nil
}

// Start starts every channel and the outbound dispatch loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("starting %s channel: %w", name, err)
		}
		logger.InfoCF("channels", "Channel started", map[string]any{"channel": name})
	}

	go m.dispatchOutbound(ctx)
	return nil
}

// Stop stops all running channels.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Channel stop failed", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

// Channel returns the channel registered under name.
func (m *Manager) Channel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Deliverer returns the named channel's copy-delivery interface, if it
// has one.
func (m *Manager) Deliverer(name string) (Deliverer, bool) {
	ch, ok := m.Channel(name)
	if !ok {
		return nil, false
	}
	d, ok := ch.(Deliverer)
	return d, ok
}

// DeepLinker returns the named channel's deep-link builder, if it has one.
func (m *Manager) DeepLinker(name string) (DeepLinker, bool) {
	ch, ok := m.Channel(name)
	if !ok {
		return nil, false
	}
	d, ok := ch.(DeepLinker)
	return d, ok
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}

		ch, found := m.Channel(msg.Channel)
		if !found {
			logger.WarnCF("channels", "Outbound for unknown channel dropped", map[string]any{
				"channel": msg.Channel,
			})
			continue
		}

		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Outbound send failed", map[string]any{
				"channel": msg.Channel,
				"chat_id": msg.ChatID,
				"error":   err.Error(),
			})
		}
	}
}
