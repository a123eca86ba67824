// Package notify pushes terminal run outcomes to Telegram. It is a passive
// listener on the run event stream; the engine never waits on it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akalogirou/weft/internal/config"
	"github.com/akalogirou/weft/internal/events"
	"github.com/akalogirou/weft/internal/natsbus"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nats-io/nats.go"
)

const telegramMessageLimit = 4096

type Notifier struct {
	bot    *telego.Bot
	chatID int64
}

// New returns nil without error when no token is configured; the gateway
// treats a nil notifier as disabled.
func New(cfg config.NotifyConfig) (*Notifier, error) {
	if cfg.TelegramToken == "" {
		return nil, nil
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("notify: telegram token set but chat_id missing")
	}
	bot, err := telego.NewBot(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: cfg.ChatID}, nil
}

// Start subscribes to the run event stream and reports terminal runs until
// ctx is cancelled.
func (n *Notifier) Start(ctx context.Context, client *natsbus.Client) error {
	sub, err := client.Subscribe(natsbus.TopicEventsAnyRun, func(msg *nats.Msg) {
		var evt events.Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			return
		}
		if evt.Type != events.RunFinished {
			return
		}
		if err := n.send(ctx, FormatRunFinished(evt)); err != nil {
			slog.Error("telegram notification failed", "run", evt.RunID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe run events: %w", err)
	}

	slog.Info("telegram notifier started", "chat", n.chatID)
	<-ctx.Done()
	_ = sub.Unsubscribe()
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	for _, chunk := range chunkMessage(text, telegramMessageLimit) {
		if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(n.chatID), chunk)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// FormatRunFinished renders a terminal run event as a short notification.
func FormatRunFinished(evt events.Event) string {
	status, _ := evt.Payload["status"].(string)

	var b strings.Builder
	switch status {
	case "completed":
		b.WriteString("✅ run completed")
	case "partially_failed":
		b.WriteString("⚠️ run partially failed")
	default:
		b.WriteString("❌ run failed")
	}
	fmt.Fprintf(&b, "\nid: %s", evt.RunID)
	if artifacts, ok := evt.Payload["artifacts"].(float64); ok {
		fmt.Fprintf(&b, "\nartifacts: %d", int(artifacts))
	}
	return b.String()
}

// chunkMessage splits text into pieces that fit Telegram's message size
// limit, preferring newline boundaries.
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}
