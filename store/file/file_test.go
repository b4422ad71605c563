package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendbot/sale-engine/sale"
	"github.com/vendbot/sale-engine/store/file"
)

func sampleSnapshot() sale.Snapshot {
	return sale.Snapshot{
		"42": {
			Name:                "Alice",
			Messages:            []string{"User: /start", "Admin: hello"},
			Stage:               sale.StageSelectedDomestic,
			PendingCodeDigest:   sale.Digest("XK29QP"),
			SupportAccess:       false,
			SupportContacted:    false,
			LastPromptMessageID: 1001,
		},
		"7": {
			Name:          "Bob",
			Messages:      []string{"User: /start"},
			Stage:         sale.StageFileSent,
			SupportAccess: true,
		},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	st := file.New(path)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, sampleSnapshot()))

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)
}

func TestFileStore_MissingFile_LoadsEmpty(t *testing.T) {
	st := file.New(filepath.Join(t.TempDir(), "nope.json"))

	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestFileStore_CorruptFile_ReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, err := file.New(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileStore_Save_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st := file.New(filepath.Join(dir, "snapshot.json"))

	require.NoError(t, st.Save(context.Background(), sampleSnapshot()))
	require.NoError(t, st.Save(context.Background(), sampleSnapshot()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the snapshot itself remains")
	assert.Equal(t, "snapshot.json", entries[0].Name())
}
