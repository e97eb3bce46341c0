package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"solana-wallet/internal/features/valuation"
	log "solana-wallet/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier delivers one alert message. parseMode is a Telegram parse mode hint.
type Notifier interface {
	Send(ctx context.Context, message, parseMode string) error
}

// TelegramNotifier posts messages and charts into a single chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token, chatID string) (*TelegramNotifier, error) {
	id, err := ParseChatID(chatID)
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.LogInfo("Telegram bot authorized", zap.String("username", bot.Self.UserName))
	return NewTelegramNotifierWithBot(bot, id), nil
}

func NewTelegramNotifierWithBot(bot *tgbotapi.BotAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) Bot() *tgbotapi.BotAPI { return n.bot }

func (n *TelegramNotifier) ChatID() int64 { return n.chatID }

func (n *TelegramNotifier) Send(ctx context.Context, message, parseMode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, message)
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// SendPhoto uploads a local image with an HTML caption.
func (n *TelegramNotifier) SendPhoto(ctx context.Context, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(photo); err != nil {
		return fmt.Errorf("failed to send telegram photo: %w", err)
	}
	return nil
}

// LogNotifier only writes alerts to the log. Used when Telegram is not configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, message, _ string) error {
	log.LogSuccess("Alert: " + strings.ReplaceAll(stripTags(message), "\n", " "))
	return nil
}

func ParseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	return id, nil
}

// FormatAlertMessage renders the HTML alert text for one asset.
func FormatAlertMessage(alert valuation.AlertEvent) string {
	return fmt.Sprintf("New Total Value: $%s\nMint Address:\n<code> %s</code>\n",
		FormatUSD(alert.TotalValue), alert.AssetID)
}

// FormatUSD rounds to cents and groups thousands: 1234567.891 -> 1,234,567.89
func FormatUSD(v decimal.Decimal) string {
	s := v.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
