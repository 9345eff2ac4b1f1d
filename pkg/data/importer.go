package data

import (
	"context"
	"database/sql"
	"os"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// ImportSQLite reads the download table of the reader app's database and
// returns one ChapterMetadata per comic, ordered by comic ID. Every row is
// a chapter; the app does not store the numbering kind, so rows are
// treated as episodes.
func ImportSQLite(ctx context.Context, path string) ([]*ChapterMetadata, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.WithStack(err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, errors.Wrap(err, "apply pragma")
	}

	rows, err := db.QueryContext(ctx,
		`SELECT mid, name, cid, title, idx FROM download ORDER BY mid, cid`)
	if err != nil {
		return nil, errors.Wrap(err, "query download table")
	}
	defer rows.Close()

	reg := NewRegistry()
	for rows.Next() {
		var (
			mid, cid    int64
			name, title sql.NullString
			idx         sql.NullString
		)
		if err := rows.Scan(&mid, &name, &cid, &title, &idx); err != nil {
			return nil, errors.Wrap(err, "scan download row")
		}
		if mid <= 0 || cid <= 0 || mid > 1<<32-1 || cid > 1<<32-1 {
			continue
		}
		md := NewChapterMetadata(uint32(mid), name.String)
		md.AddChapter(ChapterRecord{
			ID:    uint32(cid),
			Index: idx.String,
			Title: title.String,
			Kind:  KindEpisode,
		})
		reg.Merge(md)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return reg.Comics(), nil
}
