package organizer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kerbaras/bukadown/pkg/buka"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/require"
)

func testCtx() context.Context {
	return logger.New().WithContext(context.Background())
}

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0755))
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func writeContainer(t *testing.T, path string, h buka.Header, items []buka.Item) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, buka.Write(&buf, h, items))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}
