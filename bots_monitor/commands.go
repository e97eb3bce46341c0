package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"solana-wallet/internal/clients_api/solana"
	"solana-wallet/internal/features/tg_charts"
	"solana-wallet/internal/features/valuation"
	"solana-wallet/internal/infra/journal"
	log "solana-wallet/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
	maxSnapshotRows     = 20
)

// SnapshotReader is a read-only view of the persisted snapshot.
// The handler uses its own store instance so it never shares state with a running cycle.
type SnapshotReader interface {
	Load() map[string]valuation.Record
	Records() []valuation.Record
}

type HistoryReader interface {
	Last(n int) ([]journal.Entry, error)
}

type IgnoreEditor interface {
	Load() ([]string, error)
	Add(mint string) error
	Remove(mint string) error
}

type CommandOptions struct {
	ChatID    int64
	Snapshot  SnapshotReader
	History   HistoryReader // optional
	Ignore    IgnoreEditor  // optional
	ChartsDir string
}

// CommandHandler answers bot commands sent from the configured chat.
type CommandHandler struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	snapshot  SnapshotReader
	history   HistoryReader
	ignore    IgnoreEditor
	chartsDir string
}

func NewCommandHandler(bot *tgbotapi.BotAPI, opts CommandOptions) *CommandHandler {
	return &CommandHandler{
		bot:       bot,
		chatID:    opts.ChatID,
		snapshot:  opts.Snapshot,
		history:   opts.History,
		ignore:    opts.Ignore,
		chartsDir: opts.ChartsDir,
	}
}

// Run consumes long-poll updates until ctx is done.
func (h *CommandHandler) Run(ctx context.Context) {
	if h.bot == nil {
		log.LogWarn("Bot is nil, command handler not started")
		return
	}

	log.LogInfo("Starting command handler", zap.Int64("chatID", h.chatID))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			h.bot.StopReceivingUpdates()
			log.LogInfo("Command handler stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				h.Handle(update.Message)
			}
		}
	}
}

// Handle dispatches one message. Messages from other chats and plain text are ignored.
func (h *CommandHandler) Handle(message *tgbotapi.Message) {
	if message.Chat == nil || message.Chat.ID != h.chatID || !message.IsCommand() {
		return
	}

	command := message.Command()
	args := strings.TrimSpace(message.CommandArguments())

	log.LogDebug("Received command",
		zap.String("command", command),
		zap.String("args", args),
		zap.String("username", username(message)))

	switch command {
	case "snapshot":
		h.handleSnapshot(message)
	case "history":
		h.handleHistory(message, args)
	case "chart":
		h.handleChart(message)
	case "ignore":
		h.handleIgnore(message, args)
	case "unignore":
		h.handleUnignore(message, args)
	case "ignored":
		h.handleIgnored(message)
	case "helps", "help", "start":
		h.reply(message, HelpText)
	}
}

const HelpText = "" +
	"Commands:\n" +
	"• <code>/snapshot</code> - current value of every position\n" +
	"• <code>/history [n]</code> - last alerts\n" +
	"• <code>/chart</code> - chart of the largest positions\n" +
	"• <code>/ignore {mint}</code> - stop valuing a token\n" +
	"• <code>/unignore {mint}</code> - value a token again\n" +
	"• <code>/ignored</code> - ignored tokens"

func (h *CommandHandler) handleSnapshot(message *tgbotapi.Message) {
	h.snapshot.Load()
	h.reply(message, FormatSnapshotMessage(h.snapshot.Records()))
}

func (h *CommandHandler) handleHistory(message *tgbotapi.Message, args string) {
	if h.history == nil {
		h.reply(message, "Alert history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			h.reply(message, "Usage: /history [n]\n\nExample: /history 5")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.Last(limit)
	if err != nil {
		log.LogError("Failed to read alert history", zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
		return
	}
	h.reply(message, FormatHistoryMessage(entries))
}

func (h *CommandHandler) handleChart(message *tgbotapi.Message) {
	h.snapshot.Load()
	records := h.snapshot.Records()

	path, err := tg_charts.GenerateSnapshotChart(records, h.chartsDir)
	if err != nil {
		log.LogWarn("Failed to generate snapshot chart", zap.Error(err))
		h.reply(message, "Nothing to chart yet")
		return
	}

	photo := tgbotapi.NewPhoto(message.Chat.ID, tgbotapi.FilePath(path))
	photo.Caption = fmt.Sprintf("Total Value: $%s", FormatUSD(totalValue(records)))
	photo.ParseMode = tgbotapi.ModeHTML
	photo.ReplyToMessageID = message.MessageID
	if _, err := h.bot.Send(photo); err != nil {
		log.LogError("Failed to send chart", zap.String("path", path), zap.Error(err))
		return
	}

	log.LogInfo("Snapshot chart sent", zap.String("username", username(message)))
}

func (h *CommandHandler) handleIgnore(message *tgbotapi.Message, mint string) {
	if h.ignore == nil {
		h.reply(message, "Ignore list is disabled")
		return
	}
	if mint == "" {
		h.reply(message, "Usage: /ignore {mint}")
		return
	}
	if !h.validMint(message, mint) {
		return
	}

	if err := h.ignore.Add(mint); err != nil {
		log.LogError("Failed to add ignored mint", zap.String("mint", mint), zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
		return
	}

	h.reply(message, fmt.Sprintf("<code>%s</code> will be skipped from the next cycle", mint))
	log.LogInfo("Mint ignored via command",
		zap.String("mint", mint),
		zap.String("username", username(message)))
}

func (h *CommandHandler) handleUnignore(message *tgbotapi.Message, mint string) {
	if h.ignore == nil {
		h.reply(message, "Ignore list is disabled")
		return
	}
	if mint == "" {
		h.reply(message, "Usage: /unignore {mint}")
		return
	}
	if !h.validMint(message, mint) {
		return
	}

	if err := h.ignore.Remove(mint); err != nil {
		log.LogDebug("Failed to remove ignored mint", zap.String("mint", mint), zap.Error(err))
		h.reply(message, fmt.Sprintf("<code>%s</code> is not in the list", mint))
		return
	}

	h.reply(message, fmt.Sprintf("<code>%s</code> removed from the list", mint))
	log.LogInfo("Mint unignored via command",
		zap.String("mint", mint),
		zap.String("username", username(message)))
}

func (h *CommandHandler) handleIgnored(message *tgbotapi.Message) {
	if h.ignore == nil {
		h.reply(message, "Ignore list is disabled")
		return
	}
	mints, err := h.ignore.Load()
	if err != nil {
		log.LogError("Failed to load ignore list", zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
		return
	}
	if len(mints) == 0 {
		h.reply(message, "No ignored tokens")
		return
	}

	var b strings.Builder
	b.WriteString("Ignored tokens:\n")
	for _, m := range mints {
		fmt.Fprintf(&b, "<code>%s</code>\n", m)
	}
	h.reply(message, b.String())
}

// validMint answers with an error when mint is not a public key. The echoed input is
// escaped so the HTML reply itself cannot be rejected.
func (h *CommandHandler) validMint(message *tgbotapi.Message, mint string) bool {
	if err := solana.ValidatePublicKey(mint); err != nil {
		h.reply(message, fmt.Sprintf("Invalid mint address <code>%s</code>", html.EscapeString(mint)))
		return false
	}
	return true
}

func (h *CommandHandler) reply(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyToMessageID = message.MessageID
	if _, err := h.bot.Send(msg); err != nil {
		log.LogError("Failed to send reply", zap.Error(err))
	}
}

// FormatSnapshotMessage lists positions by value, largest first, with the wallet total.
func FormatSnapshotMessage(records []valuation.Record) string {
	if len(records) == 0 {
		return "Snapshot is empty"
	}

	sorted := tg_charts.TopRecords(records, 0)
	var b strings.Builder
	b.WriteString("<b>Wallet snapshot</b>\n\n")
	for i, r := range sorted {
		if i == maxSnapshotRows {
			fmt.Fprintf(&b, "... and %d more\n", len(sorted)-maxSnapshotRows)
			break
		}
		fmt.Fprintf(&b, "<code>%s</code> $%s (%s × $%s)\n",
			tg_charts.ShortMint(r.AssetID), FormatUSD(r.TotalValue), r.Quantity.String(), r.UnitPrice.String())
	}
	fmt.Fprintf(&b, "\nTotal Value: $%s", FormatUSD(totalValue(records)))
	return b.String()
}

// FormatHistoryMessage renders journal entries newest first.
func FormatHistoryMessage(entries []journal.Entry) string {
	if len(entries) == 0 {
		return "No alerts yet"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Last %d alerts</b>\n\n", len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(&b, "%s <code>%s</code> $%s → $%s\n",
			e.Time.UTC().Format("2006-01-02 15:04"),
			tg_charts.ShortMint(e.Mint),
			FormatUSD(e.PreviousValue),
			FormatUSD(e.TotalValue))
	}
	return b.String()
}

func totalValue(records []valuation.Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.TotalValue)
	}
	return total
}

func username(message *tgbotapi.Message) string {
	if message.From == nil {
		return ""
	}
	return message.From.UserName
}
