package fs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreList(t *testing.T) {
	list := NewIgnoreList(filepath.Join(t.TempDir(), "ignored.json"))

	mints, err := list.Load()
	require.NoError(t, err)
	assert.Empty(t, mints)

	require.NoError(t, list.Add("SpamMint"))
	require.NoError(t, list.Add("SpamMint"))
	require.NoError(t, list.Add("OtherMint"))

	mints, err = list.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"SpamMint", "OtherMint"}, mints)

	set, err := list.Set()
	require.NoError(t, err)
	assert.Contains(t, set, "OtherMint")

	require.NoError(t, list.Remove("SpamMint"))
	assert.Error(t, list.Remove("SpamMint"))
	assert.Error(t, list.Add("  "))

	mints, err = list.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"OtherMint"}, mints)
}
