package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	storage "solana-wallet/internal/infra/fs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WALLET_ADDRESS", "So11111111111111111111111111111111111111112")
	t.Setenv("IGNORE_FILE", filepath.Join(dir, "ignored.json"))
	t.Setenv("STORAGE_BACKEND", "csv")
	t.Setenv("STORAGE_PATH", filepath.Join(dir, "tokens.csv"))
	t.Setenv("JOURNAL_DIR", filepath.Join(dir, "wal"))
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--app.logs_dir", filepath.Join(dir, "logs")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestIgnoreCommands(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, dir, "ignore", "add", usdcMint)
	require.NoError(t, err)

	out, err := run(t, dir, "ignore", "list")
	require.NoError(t, err)
	assert.Equal(t, usdcMint+"\n", out)

	_, err = run(t, dir, "ignore", "add", "not-base58-0OIl")
	assert.Error(t, err)

	_, err = run(t, dir, "ignore", "remove", usdcMint)
	require.NoError(t, err)

	out, err = run(t, dir, "ignore", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSnapshotCommand(t *testing.T) {
	dir := setupEnv(t)

	store, err := storage.NewCSVSnapshotStore(filepath.Join(dir, "tokens.csv"))
	require.NoError(t, err)
	store.Load()
	store.Upsert(usdcMint, decimal.NewFromInt(1500), decimal.NewFromInt(1))
	require.NoError(t, store.Flush())

	out, err := run(t, dir, "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "MINT")
	assert.Contains(t, out, usdcMint)
	assert.Contains(t, out, "1,500.00")
}

func TestHistoryCommand_Empty(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, dir, "history", "-n", "5")
	require.NoError(t, err)
	assert.Equal(t, "no alerts yet\n", out)
}

func TestConfigErrorsSurface(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("WALLET_ADDRESS", "")

	_, err := run(t, dir, "snapshot")
	assert.Error(t, err)
}
