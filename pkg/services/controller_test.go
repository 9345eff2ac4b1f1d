package services

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/kerbaras/bukadown/pkg/buka"
	"github.com/kerbaras/bukadown/pkg/config"
	"github.com/kerbaras/bukadown/pkg/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Library.Path = filepath.Join(t.TempDir(), "library.duckdb")
	return &cfg
}

func TestNewControllerDefaults(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	assert.Equal(t, config.BackendWebP, c.Config().Decode.Backend)
	dec, err := c.Decoder()
	require.NoError(t, err)
	assert.IsType(t, &decode.ImageDecoder{}, dec)
	assert.Equal(t, ".png", dec.Ext())
}

func TestControllerDecoderSelection(t *testing.T) {
	cfg := testConfig(t)
	cfg.Decode.Format = "jpg"
	dec, err := NewController(cfg).Decoder()
	require.NoError(t, err)
	assert.Equal(t, ".jpg", dec.Ext())

	cfg.Decode.Backend = config.BackendDWebP
	cfg.Decode.DWebPPath = filepath.Join(t.TempDir(), "no-such-dwebp")
	_, err = NewController(cfg).Decoder()
	assert.Error(t, err)
}

func TestControllerRetrier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Filesystem.RetryAttempts = 3
	cfg.Filesystem.RetryDelayMS = 20

	r := NewController(cfg).Retrier()
	assert.Equal(t, 3, r.Attempts)
	assert.Equal(t, 20*time.Millisecond, r.Delay)
}

func TestControllerLibraryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Library.Enabled = false
	c := NewController(cfg)

	lib, err := c.Library()
	require.NoError(t, err)
	assert.Nil(t, lib)

	_, _, err = c.Import(testCtx(), filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestControllerImport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "buka.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE download (mid INTEGER, name TEXT, cid INTEGER, title TEXT, idx TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO download VALUES (100, 'Foo', 1, '', '1'), (100, 'Foo', 2, 'Two', '2'), (200, 'Bar', 9, '', '9')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := NewController(testConfig(t))
	defer c.Close()

	comics, chapters, err := c.Import(testCtx(), dbPath)
	require.NoError(t, err)
	assert.Equal(t, 2, comics)
	assert.Equal(t, 3, chapters)

	lib, err := c.Library()
	require.NoError(t, err)
	foo, err := lib.GetComic(100)
	require.NoError(t, err)
	require.NotNil(t, foo)
	assert.Equal(t, "Foo", foo.Name)

	chs, err := lib.GetChapters(100)
	require.NoError(t, err)
	assert.Len(t, chs, 2)
}

func TestControllerConverterUsesLibraryAndMetadata(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "buka.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE download (mid INTEGER, name TEXT, cid INTEGER, title TEXT, idx TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO download VALUES (300, 'FromDB', 31, '', '4')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := testConfig(t)
	cfg.Metadata.SQLitePath = dbPath
	cfg.Decode.Workers = 2
	c := NewController(cfg)
	defer c.Close()

	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeContainer(t, filepath.Join(in, "31.buka"), buka.Header{ComicID: 300, ChapterID: 31}, []buka.Item{
		{Name: "001.jpg", Data: []byte("x")},
	})

	conv, err := c.NewConverter(testCtx())
	require.NoError(t, err)
	_, err = conv.Run(testCtx(), in, out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "FromDB-第004话", "001.jpg"))

	lib, err := c.Library()
	require.NoError(t, err)
	chs, err := lib.GetChapters(300)
	require.NoError(t, err)
	require.Len(t, chs, 1)
	assert.Equal(t, filepath.Join(out, "FromDB-第004话"), chs[0].Path)
}
