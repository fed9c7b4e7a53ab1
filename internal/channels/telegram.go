// Package channels delivers task outcomes to external messaging surfaces.
package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/marchhare/go-crew/internal/bus"
)

// Telegram caps messages at 4096 characters; leave room for the header.
const maxMessageLen = 3900

// sender is the slice of the Telegram bot API the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier announces terminal task states to Telegram. It is
// outbound only: it subscribes to task lifecycle events and sends a message
// for each task that asked to be announced.
type TelegramNotifier struct {
	bot           sender
	bus           *bus.Bus
	logger        *slog.Logger
	defaultChatID int64
}

// NewTelegramNotifier connects to the Bot API and returns a notifier.
func NewTelegramNotifier(token string, defaultChatID int64, b *bus.Bus, logger *slog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram notifier connected", "user", bot.Self.UserName)
	return &TelegramNotifier{
		bot:           bot,
		bus:           b,
		logger:        logger,
		defaultChatID: defaultChatID,
	}, nil
}

// Start consumes task events until the context is cancelled.
func (n *TelegramNotifier) Start(ctx context.Context) {
	sub := n.bus.Subscribe("task.")
	defer n.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Ch():
			if !ok {
				return
			}
			n.handle(ev)
		}
	}
}

func (n *TelegramNotifier) handle(ev bus.Event) {
	if ev.Topic != bus.TopicTaskComplete && ev.Topic != bus.TopicTaskError {
		return
	}
	te, ok := ev.Payload.(bus.TaskEvent)
	if !ok || !te.NotifyOnComplete {
		return
	}

	chatID := n.resolveChat(te.NotifyTarget)
	if chatID == 0 {
		n.logger.Warn("no chat id for task notification", "task_id", te.TaskID)
		return
	}

	msg := tgbotapi.NewMessage(chatID, formatTaskMessage(te))
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("telegram send failed", "task_id", te.TaskID, "error", err)
	}
}

func (n *TelegramNotifier) resolveChat(target string) int64 {
	if target != "" {
		if id, err := strconv.ParseInt(target, 10, 64); err == nil {
			return id
		}
		n.logger.Warn("unparseable notify target, using default chat", "target", target)
	}
	return n.defaultChatID
}

// formatTaskMessage renders one terminal task event as a Telegram message.
func formatTaskMessage(te bus.TaskEvent) string {
	var b strings.Builder
	if te.Error != "" {
		fmt.Fprintf(&b, "❌ Task failed (%s)\n", te.AgentID)
		fmt.Fprintf(&b, "Prompt: %s\n", truncate(te.Prompt, 200))
		fmt.Fprintf(&b, "Error: %s", truncate(te.Error, 500))
		return b.String()
	}
	fmt.Fprintf(&b, "✅ Task complete (%s)\n", te.AgentID)
	fmt.Fprintf(&b, "Prompt: %s\n\n", truncate(te.Prompt, 200))
	b.WriteString(truncate(te.Result, maxMessageLen))
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune; the
// Bot API rejects invalid UTF-8 outright.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
