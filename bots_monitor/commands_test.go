package bot

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"solana-wallet/internal/features/valuation"
	storage "solana-wallet/internal/infra/fs"
	"solana-wallet/internal/infra/journal"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

type fakeHistory struct {
	entries []journal.Entry
	err     error
	asked   int
}

func (f *fakeHistory) Last(n int) ([]journal.Entry, error) {
	f.asked = n
	return f.entries, f.err
}

func command(chatID int64, text string) *tgbotapi.Message {
	first := strings.Fields(text)[0]
	return &tgbotapi.Message{
		MessageID: 3,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{UserName: "owner"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(first)}},
	}
}

func newHandler(t *testing.T, history HistoryReader) (*CommandHandler, *[]telegramCall, *storage.CSVSnapshotStore) {
	t.Helper()
	bot, calls := fakeTelegram(t, false)
	dir := t.TempDir()

	store, err := storage.NewCSVSnapshotStore(filepath.Join(dir, "tokens.csv"))
	require.NoError(t, err)

	h := NewCommandHandler(bot, CommandOptions{
		ChatID:    -100,
		Snapshot:  store,
		History:   history,
		Ignore:    storage.NewIgnoreList(filepath.Join(dir, "ignored.json")),
		ChartsDir: filepath.Join(dir, "charts"),
	})
	return h, calls, store
}

func lastText(calls *[]telegramCall) string {
	c := (*calls)[len(*calls)-1]
	return c.form["text"]
}

func TestCommandHandler_IgnoresOtherChats(t *testing.T) {
	h, calls, _ := newHandler(t, nil)
	h.Handle(command(-999, "/snapshot"))
	h.Handle(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -100}, Text: "hello"})
	assert.Len(t, *calls, 1, "only getMe")
}

func TestCommandHandler_Snapshot(t *testing.T) {
	h, calls, store := newHandler(t, nil)
	store.Load()
	store.Upsert("So11111111111111111111111111111111111111112", dec("2"), dec("150"))
	store.Upsert(usdcMint, dec("10"), dec("1"))
	require.NoError(t, store.Flush())

	h.Handle(command(-100, "/snapshot"))

	text := lastText(calls)
	assert.Contains(t, text, "<code>So11...1112</code> $300.00")
	assert.Contains(t, text, "Total Value: $310.00")
	assert.Less(t, strings.Index(text, "So11"), strings.Index(text, "EPjF"))
	assert.Equal(t, "3", (*calls)[len(*calls)-1].form["reply_to_message_id"])
}

func TestCommandHandler_History(t *testing.T) {
	history := &fakeHistory{entries: []journal.Entry{
		{Time: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC), Mint: usdcMint, PreviousValue: dec("10"), TotalValue: dec("50")},
	}}
	h, calls, _ := newHandler(t, history)

	h.Handle(command(-100, "/history 3"))
	assert.Equal(t, 3, history.asked)
	assert.Contains(t, lastText(calls), "2026-01-02 03:04 <code>EPjF...Dt1v</code> $10.00 → $50.00")

	h.Handle(command(-100, "/history"))
	assert.Equal(t, defaultHistoryLimit, history.asked)

	h.Handle(command(-100, "/history 500"))
	assert.Equal(t, maxHistoryLimit, history.asked)

	h.Handle(command(-100, "/history abc"))
	assert.Contains(t, lastText(calls), "Usage: /history")

	history.err = errors.New("broken")
	h.Handle(command(-100, "/history"))
	assert.Contains(t, lastText(calls), "An error occurred")
}

func TestCommandHandler_HistoryDisabled(t *testing.T) {
	h, calls, _ := newHandler(t, nil)
	h.Handle(command(-100, "/history"))
	assert.Equal(t, "Alert history is disabled", lastText(calls))
}

func TestCommandHandler_IgnoreFlow(t *testing.T) {
	h, calls, _ := newHandler(t, nil)

	h.Handle(command(-100, "/ignore"))
	assert.Equal(t, "Usage: /ignore {mint}", lastText(calls))

	h.Handle(command(-100, "/ignore not-a-key"))
	assert.Contains(t, lastText(calls), "Invalid mint address")

	h.Handle(command(-100, "/ignore "+usdcMint))
	assert.Contains(t, lastText(calls), "will be skipped")

	h.Handle(command(-100, "/ignored"))
	assert.Contains(t, lastText(calls), usdcMint)

	h.Handle(command(-100, "/unignore "+usdcMint))
	assert.Contains(t, lastText(calls), "removed from the list")

	h.Handle(command(-100, "/unignore "+usdcMint))
	assert.Contains(t, lastText(calls), "is not in the list")

	h.Handle(command(-100, "/unignore <x"))
	assert.Equal(t, "Invalid mint address <code>&lt;x</code>", lastText(calls))

	h.Handle(command(-100, "/ignore a&b"))
	assert.Equal(t, "Invalid mint address <code>a&amp;b</code>", lastText(calls))

	h.Handle(command(-100, "/ignored"))
	assert.Equal(t, "No ignored tokens", lastText(calls))
}

func TestCommandHandler_ChartWithoutData(t *testing.T) {
	h, calls, _ := newHandler(t, nil)
	h.Handle(command(-100, "/chart"))
	assert.Equal(t, "Nothing to chart yet", lastText(calls))
}

func TestCommandHandler_ChartSendsPhoto(t *testing.T) {
	h, calls, store := newHandler(t, nil)
	store.Load()
	store.Upsert(usdcMint, dec("10"), dec("1"))
	require.NoError(t, store.Flush())

	h.Handle(command(-100, "/chart"))
	assert.Equal(t, "sendPhoto", (*calls)[len(*calls)-1].method)
}

func TestCommandHandler_Help(t *testing.T) {
	h, calls, _ := newHandler(t, nil)
	h.Handle(command(-100, "/helps"))
	assert.Equal(t, HelpText, lastText(calls))
	assert.Equal(t, "HTML", (*calls)[len(*calls)-1].form["parse_mode"])
}

func TestFormatSnapshotMessage(t *testing.T) {
	assert.Equal(t, "Snapshot is empty", FormatSnapshotMessage(nil))

	var records []valuation.Record
	for i := 0; i < maxSnapshotRows+2; i++ {
		records = append(records, valuation.Record{AssetID: strings.Repeat("M", 12) + string(rune('a'+i)), TotalValue: dec("1")})
	}
	msg := FormatSnapshotMessage(records)
	assert.Contains(t, msg, "... and 2 more")
	assert.Contains(t, msg, "Total Value: $22.00")
}

func TestFormatHistoryMessage_NewestFirst(t *testing.T) {
	assert.Equal(t, "No alerts yet", FormatHistoryMessage(nil))

	msg := FormatHistoryMessage([]journal.Entry{
		{Time: time.Unix(0, 0), Mint: "OlderMint00000", TotalValue: dec("1")},
		{Time: time.Unix(60, 0), Mint: "NewerMint00000", TotalValue: dec("2")},
	})
	assert.Less(t, strings.Index(msg, "Newe"), strings.Index(msg, "Olde"))
}
