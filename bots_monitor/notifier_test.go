package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"solana-wallet/internal/features/valuation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUSD(t *testing.T) {
	tests := map[string]string{
		"0":             "0.00",
		"5":             "5.00",
		"999.999":       "1,000.00",
		"1234.5":        "1,234.50",
		"1234567.891":   "1,234,567.89",
		"100000":        "100,000.00",
		"-98765.4321":   "-98,765.43",
		"0.004":         "0.00",
		"12345678901.1": "12,345,678,901.10",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatUSD(dec(in)), in)
	}
}

func TestFormatAlertMessage(t *testing.T) {
	msg := FormatAlertMessage(valuation.AlertEvent{AssetID: "So11111111111111111111111111111111111111112", TotalValue: dec("150.5")})
	assert.Equal(t, "New Total Value: $150.50\nMint Address:\n<code> So11111111111111111111111111111111111111112</code>\n", msg)
}

func TestParseChatID(t *testing.T) {
	id, err := ParseChatID(" -1001234 ")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234), id)

	_, err = ParseChatID("@channel")
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Send(context.Background(), "<b>hi</b>", tgbotapi.ModeHTML))
	assert.Equal(t, "hi there", stripTags("<b>hi</b> <code>there</code>"))
}

type telegramCall struct {
	method string
	form   map[string]string
}

func fakeTelegram(t *testing.T, fail bool) (*tgbotapi.BotAPI, *[]telegramCall) {
	t.Helper()
	var mu sync.Mutex
	calls := []telegramCall{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]

		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		mu.Lock()
		calls = append(calls, telegramCall{method: method, form: form})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case method == "getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Wallet","username":"wallet_bot"}}`))
		case fail:
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100,"type":"group"}}}`))
		}
	}))
	t.Cleanup(server.Close)

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint("123:abc", server.URL+"/bot%s/%s")
	require.NoError(t, err)
	return bot, &calls
}

func TestTelegramNotifier_Send(t *testing.T) {
	bot, calls := fakeTelegram(t, false)
	n := NewTelegramNotifierWithBot(bot, -100)

	require.NoError(t, n.Send(context.Background(), "New Total Value: $1.00", tgbotapi.ModeHTML))

	require.Len(t, *calls, 2)
	sent := (*calls)[1]
	assert.Equal(t, "sendMessage", sent.method)
	assert.Equal(t, "-100", sent.form["chat_id"])
	assert.Equal(t, "New Total Value: $1.00", sent.form["text"])
	assert.Equal(t, "HTML", sent.form["parse_mode"])
}

func TestTelegramNotifier_SendError(t *testing.T) {
	bot, _ := fakeTelegram(t, true)
	n := NewTelegramNotifierWithBot(bot, -100)
	assert.Error(t, n.Send(context.Background(), "x", tgbotapi.ModeHTML))
}

func TestTelegramNotifier_CancelledContext(t *testing.T) {
	bot, calls := fakeTelegram(t, false)
	n := NewTelegramNotifierWithBot(bot, -100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Send(ctx, "x", tgbotapi.ModeHTML), context.Canceled)
	assert.Len(t, *calls, 1)
}
