package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDump(t *testing.T, path string) map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(zr).Decode(&payload))
	return payload
}

func TestDumperRequiresDir(t *testing.T) {
	_, err := NewDumper("")
	assert.ErrorIs(t, err, ErrDumpDirRequired)
}

func TestDumperWritesChunkSnapshot(t *testing.T) {
	dir := t.TempDir()
	written := make(chan string, 1)
	d, err := NewDumper(dir, withWriteHook(func(path string) { written <- path }))
	require.NoError(t, err)
	defer d.Close()

	chunk := NewChunk()
	chunk.Groups = append(chunk.Groups, map[string]any{"xid": "camp-1", "type": "Campaign"})
	d.DumpChunk(chunk)

	path := <-written
	assert.Equal(t, dir, filepath.Dir(path))

	payload := readDump(t, path)
	groups := payload["group"].([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, "camp-1", groups[0].(map[string]any)["xid"])
}

func TestDumperWritesErrorSnapshot(t *testing.T) {
	dir := t.TempDir()
	written := make(chan string, 1)
	d, err := NewDumper(dir, withWriteHook(func(path string) { written <- path }))
	require.NoError(t, err)
	defer d.Close()

	d.DumpErrors(42, []map[string]any{{"errorReason": "tag too long"}})

	path := <-written
	assert.Contains(t, filepath.Base(path), "errors-42-")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	var payload []map[string]any
	require.NoError(t, json.NewDecoder(zr).Decode(&payload))
	require.Len(t, payload, 1)
	assert.Equal(t, "tag too long", payload[0]["errorReason"])
}
