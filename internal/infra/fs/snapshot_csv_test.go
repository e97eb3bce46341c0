package fs

import (
	"os"
	"path/filepath"
	"testing"

	"solana-wallet/internal/features/valuation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCSVSnapshotStore_CreatesHeaderOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.csv")

	store, err := NewCSVSnapshotStore(path)
	require.NoError(t, err)
	assert.Empty(t, store.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Mint Address,Balance,Price USD,Total Value\n", string(data))
}

func TestCSVSnapshotStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.csv")
	store, err := NewCSVSnapshotStore(path)
	require.NoError(t, err)

	store.Load()
	store.Upsert("MintA", dec("1.5"), dec("2.25"))
	store.Upsert("MintB", dec("1000"), dec("0.000123"))
	require.NoError(t, store.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Mint Address,Balance,Price USD,Total Value\n"+
			"MintA,1.5,2.25,3.375\n"+
			"MintB,1000,0.000123,0.123\n",
		string(data))

	reopened, err := NewCSVSnapshotStore(path)
	require.NoError(t, err)
	records := reopened.Load()
	require.Len(t, records, 2)
	assert.True(t, records["MintA"].TotalValue.Equal(dec("3.375")))
	assert.True(t, records["MintB"].Quantity.Equal(dec("1000")))
	assert.Equal(t, "MintA", reopened.Records()[0].AssetID)
}

func TestCSVSnapshotStore_FlushWithoutChangesKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.csv")
	store, err := NewCSVSnapshotStore(path)
	require.NoError(t, err)
	store.Load()
	store.Upsert("MintA", dec("2"), dec("3"))
	require.NoError(t, store.Flush())

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)

	store.Load()
	assert.False(t, store.Upsert("MintA", dec("2"), dec("3")))
	require.NoError(t, store.Flush())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	infoAfter, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, info.ModTime(), infoAfter.ModTime())
}

func TestCSVSnapshotStore_LoadDiscardsUnflushedChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.csv")
	store, err := NewCSVSnapshotStore(path)
	require.NoError(t, err)

	store.Load()
	store.Upsert("MintA", dec("1"), dec("1"))
	assert.Empty(t, store.Load())
}

func TestCSVSnapshotStore_CorruptFileMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.csv")
	require.NoError(t, os.WriteFile(path, []byte("Mint Address,Balance,Price USD,Total Value\nMintA,abc,1,1\n"), 0644))

	store, err := NewCSVSnapshotStore(path)
	require.NoError(t, err)
	assert.Empty(t, store.Load())

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestCSVSnapshotStore_UnreadableFileBlocksFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.csv")
	store, err := NewCSVSnapshotStore(path)
	require.NoError(t, err)
	store.Load()
	store.Upsert("Old", dec("1"), dec("4"))
	require.NoError(t, store.Flush())
	saved, err := os.ReadFile(path)
	require.NoError(t, err)

	// A directory in place of the file exists but cannot be read as one.
	require.NoError(t, os.Rename(path, path+".bak"))
	require.NoError(t, os.Mkdir(path, 0755))

	engine := valuation.NewEngine(store, valuation.DefaultThresholds())
	holdings := []valuation.Holding{{AssetID: "New", Quantity: dec("1")}}
	_, _, err = engine.Evaluate(holdings, valuation.Prices{"New": dec("2")})
	assert.ErrorIs(t, err, valuation.ErrSnapshotUnreadable)

	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Rename(path+".bak", path))
	_, _, err = engine.Evaluate(holdings, valuation.Prices{"New": dec("2")})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(saved)+"New,1,2,2\n", string(data))
}

func TestDecodeSnapshot_Errors(t *testing.T) {
	tests := map[string]string{
		"wrong header":   "mint,qty,price,total\n",
		"short row":      "Mint Address,Balance,Price USD,Total Value\nMintA,1,2\n",
		"empty mint":     "Mint Address,Balance,Price USD,Total Value\n ,1,2,2\n",
		"duplicate mint": "Mint Address,Balance,Price USD,Total Value\nMintA,1,2,2\nMintA,1,2,2\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := decodeSnapshot([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestCSVSnapshotStore_WorksWithEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.csv")
	store, err := NewCSVSnapshotStore(path)
	require.NoError(t, err)
	engine := valuation.NewEngine(store, valuation.DefaultThresholds())

	holdings := []valuation.Holding{{AssetID: "X", Quantity: dec("1")}}
	_, _, err = engine.Evaluate(holdings, valuation.Prices{"X": dec("10")})
	require.NoError(t, err)

	alerts, _, err := engine.Evaluate(holdings, valuation.Prices{"X": dec("15")})
	require.NoError(t, err)
	assert.Empty(t, alerts)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "X,1,15,15\n")
}
