package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"calibtrack/internal/blob/core"
)

func TestCleanKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "  ", "/etc/passwd", "../x", "a/../../x", "a/b.meta"} {
		_, err := cleanKey(key)
		require.ErrorIs(t, err, core.ErrInvalidKey, key)
	}
	k, err := cleanKey("a//b/./c.pdf")
	require.NoError(t, err)
	require.Equal(t, "a/b/c.pdf", k)
}

func TestPutWritesSidecarAndNoTempFiles(t *testing.T) {
	root := t.TempDir()
	st, err := New(root)
	require.NoError(t, err)

	_, err = st.Put(context.Background(), "sites/s/r.txt", strings.NewReader("hello"), core.PutOptions{Metadata: map[string]string{"report": "r1"}})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "sites", "s"))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"r.txt", "r.txt.meta"}, names)

	info, err := st.Head(context.Background(), "sites/s/r.txt")
	require.NoError(t, err)
	require.Equal(t, "r1", info.Metadata["report"])
	require.Len(t, info.ETag, 64)
}

func TestPutCanceledContext(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = st.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestListSkipsForeignFiles(t *testing.T) {
	root := t.TempDir()
	st, err := New(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))
	_, err = st.Put(context.Background(), "a/b", strings.NewReader("x"), core.PutOptions{})
	require.NoError(t, err)

	infos, err := st.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "a/b", infos[0].Key)
}
