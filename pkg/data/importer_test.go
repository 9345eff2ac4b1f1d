package data

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDownloadDB(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buka.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE download (mid INTEGER, name TEXT, cid INTEGER, title TEXT, idx TEXT)`)
	require.NoError(t, err)
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO download (mid, name, cid, title, idx) VALUES (?, ?, ?, ?, ?)`, r...)
		require.NoError(t, err)
	}
	return path
}

func TestImportSQLite(t *testing.T) {
	path := writeDownloadDB(t, [][]any{
		{200, "Bar", 21, "", "1"},
		{100, "Foo", 12, "Finale", "2"},
		{100, "Foo", 11, nil, "1"},
		{0, "bad", 5, "", "1"},
	})

	comics, err := ImportSQLite(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, comics, 2)

	foo := comics[0]
	assert.Equal(t, uint32(100), foo.ComicID)
	assert.Equal(t, "Foo", foo.ComicName)
	assert.Equal(t, "第001话", foo.Label(11))
	assert.Equal(t, "Finale", foo.Label(12))
	assert.Equal(t, KindEpisode, foo.Chapters[11].Kind)

	assert.Equal(t, uint32(200), comics[1].ComicID)
}

func TestImportSQLiteMissingFile(t *testing.T) {
	_, err := ImportSQLite(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	assert.Error(t, err)
}

func TestImportSQLiteMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE other (x INTEGER)`)
	require.NoError(t, err)
	db.Close()

	_, err = ImportSQLite(context.Background(), path)
	assert.Error(t, err)
}
