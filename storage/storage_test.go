package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	testCases := []struct {
		key      string
		expected string
		valid    bool
	}{
		{key: "reports/gwg.json", expected: "reports/gwg.json", valid: true},
		{key: "/checkpoints//run/./latest.json", expected: "checkpoints/run/latest.json", valid: true},
		{key: `reports\win.json`, expected: "reports/win.json", valid: true},
		{key: "reports/v1..2.json", expected: "reports/v1..2.json", valid: true},
		{key: "../etc/passwd", valid: false},
		{key: "reports/../../x", valid: false},
		{key: "  ", valid: false},
		{key: "/", valid: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.key, func(t *testing.T) {
			got, err := cleanKey(testCase.key)
			if !testCase.valid {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, got)
		})
	}
}

func TestLocalStorageRoundTrip(t *testing.T) {
	base := t.TempDir()
	store, err := NewStorage(StorageConfig{Type: StorageTypeLocal, LocalPath: base})
	require.NoError(t, err)
	ctx := context.Background()

	location, err := store.Put(ctx, "checkpoints/run-1/checkpoint_latest.json", strings.NewReader(`[1]`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "checkpoints", "run-1", "checkpoint_latest.json"), location)

	_, err = store.Put(ctx, "checkpoints/run-1/checkpoint_latest.json", strings.NewReader(`[1,2]`))
	require.NoError(t, err)

	rc, err := store.Get(ctx, "checkpoints/run-1/checkpoint_latest.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(data))

	entries, err := os.ReadDir(filepath.Join(base, "checkpoints", "run-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, store.Delete(ctx, "checkpoints/run-1/checkpoint_latest.json"))
	require.NoError(t, store.Delete(ctx, "checkpoints/run-1/checkpoint_latest.json"))
	_, err = store.Get(ctx, "checkpoints/run-1/checkpoint_latest.json")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Put(ctx, "../escape.json", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewStorageUnknownType(t *testing.T) {
	_, err := NewStorage(StorageConfig{Type: "ftp"})
	require.Error(t, err)
}

func TestS3ObjectKey(t *testing.T) {
	s := &S3Storage{bucket: "audits", prefix: "finreg"}
	key, err := s.objectKey("/reports/a.json")
	require.NoError(t, err)
	assert.Equal(t, "finreg/reports/a.json", key)

	_, err = s.objectKey("../a.json")
	require.ErrorIs(t, err, ErrInvalidKey)

	assert.Equal(t, "application/json", contentType("reports/a.json"))
	assert.Equal(t, "application/octet-stream", contentType("reports/a.bin"))

	_, err = NewStorage(StorageConfig{Type: StorageTypeS3})
	require.Error(t, err)
}
