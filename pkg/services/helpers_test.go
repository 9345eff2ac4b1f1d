package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kerbaras/bukadown/pkg/buka"
	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/require"
)

func testCtx() context.Context {
	return logger.New().WithContext(context.Background())
}

// rawDecoder writes the unwrapped payload to dest.png and rejects payloads
// starting with "corrupt".
type rawDecoder struct{}

func (rawDecoder) Ext() string { return ".png" }

func (rawDecoder) Decode(ctx context.Context, payload []byte, dest string) error {
	if bytes.HasPrefix(payload, []byte("corrupt")) {
		return errors.New("not an image")
	}
	return os.WriteFile(dest+".png", payload, 0644)
}

// wrapped prefixes payload with the 64 byte sub-header.
func wrapped(payload string) []byte {
	return append(bytes.Repeat([]byte{0xAB}, buka.WrappedHeaderSize), payload...)
}

func writeContainer(t *testing.T, path string, h buka.Header, items []buka.Item) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, buka.Write(&buf, h, items))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

// listFiles returns every file below root as slash separated relative paths.
func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

// memLibrary is an in-memory Library.
type memLibrary struct {
	mu       sync.Mutex
	comics   map[uint32]*data.Comic
	chapters map[[2]uint32]*data.Chapter
	reg      *data.Registry
}

func newMemLibrary() *memLibrary {
	return &memLibrary{
		comics:   make(map[uint32]*data.Comic),
		chapters: make(map[[2]uint32]*data.Chapter),
	}
}

func (m *memLibrary) SaveRegistry(reg *data.Registry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reg = reg
	return nil
}

func (m *memLibrary) GetComic(id uint32) (*data.Comic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comics[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memLibrary) SaveComic(c *data.Comic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.comics[c.ID] = &cp
	return nil
}

func (m *memLibrary) SaveChapter(ch *data.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ch
	m.chapters[[2]uint32{ch.ComicID, ch.ID}] = &cp
	return nil
}
