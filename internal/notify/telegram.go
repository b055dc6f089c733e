// Package notify sends order summaries to the staff Telegram channel.
// Delivery is best-effort: callers log failures and never let them affect
// order state.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/royal-restaurant/api/internal/store"
	"github.com/shopspring/decimal"
)

// Telegram dispatches order notifications to a single chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram connects the bot and resolves the target chat.
func NewTelegram(botToken, chatID string) (*Telegram, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: id}, nil
}

// Notify sends the order summary. The error is returned for logging only;
// callers must not propagate it into the order result.
func (t *Telegram) Notify(ctx context.Context, order store.Order) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatOrderMessage(order))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatOrderMessage renders the staff-facing order summary.
func FormatOrderMessage(o store.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🛒 *New order* (#%s)\n\n", o.ID)
	fmt.Fprintf(&b, "👤 *Customer:* %s %s\n", o.Customer.FirstName, o.Customer.LastName)
	if o.Customer.Phone != "" {
		fmt.Fprintf(&b, "📞 *Phone:* %s\n", o.Customer.Phone)
	}
	if o.Customer.Address != "" {
		fmt.Fprintf(&b, "📍 *Address:* %s\n", o.Customer.Address)
	}
	if o.Customer.Location != "" {
		fmt.Fprintf(&b, "🗺 *Location:* %s\n", o.Customer.Location)
	}

	b.WriteString("\n📦 *Items:*\n")
	for _, line := range o.Lines {
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		fmt.Fprintf(&b, "• %s × %d = %s\n", line.Name, line.Quantity, lineTotal.StringFixed(2))
	}

	fmt.Fprintf(&b, "\n💰 *Total:* %s\n", o.Total.StringFixed(2))
	if o.PaymentRef != "" {
		fmt.Fprintf(&b, "💳 *Payment ref:* %s\n", o.PaymentRef)
	}
	if o.Customer.DeliveryType != "" {
		fmt.Fprintf(&b, "🚚 *Delivery:* %s\n", o.Customer.DeliveryType)
	}
	if o.Customer.Notes != "" {
		fmt.Fprintf(&b, "📝 *Notes:* %s\n", o.Customer.Notes)
	}

	return b.String()
}
