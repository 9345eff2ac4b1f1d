package data

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/pkg/errors"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS comics (
	comic_id BIGINT PRIMARY KEY,
	name     VARCHAR NOT NULL,
	logo     VARCHAR NOT NULL DEFAULT '',
	path     VARCHAR NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS chapters (
	comic_id   BIGINT NOT NULL,
	chapter_id BIGINT NOT NULL,
	idx        VARCHAR NOT NULL DEFAULT '',
	title      VARCHAR NOT NULL DEFAULT '',
	kind       INTEGER NOT NULL DEFAULT 0,
	label      VARCHAR NOT NULL DEFAULT '',
	path       VARCHAR NOT NULL DEFAULT '',
	PRIMARY KEY (comic_id, chapter_id)
)`}

// InitDuckDB opens (creating if needed) the library database at path.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, "open duckdb")
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "create library schema")
		}
	}
	return db, nil
}

// Repository is the library of organized comics.
type Repository struct {
	db *sql.DB
}

// NewDuckDBRepository opens the library at path.
func NewDuckDBRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveComic upserts a comic row.
func (r *Repository) SaveComic(c *Comic) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO comics (comic_id, name, logo, path) VALUES (?, ?, ?, ?)`,
		int64(c.ID), c.Name, c.Logo, c.Path,
	)
	return errors.Wrapf(err, "save comic %d", c.ID)
}

// GetComic returns nil without error when the comic is unknown.
func (r *Repository) GetComic(id uint32) (*Comic, error) {
	var (
		c   Comic
		cid int64
	)
	err := r.db.QueryRow(
		`SELECT comic_id, name, logo, path FROM comics WHERE comic_id = ?`, int64(id),
	).Scan(&cid, &c.Name, &c.Logo, &c.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get comic %d", id)
	}
	c.ID = uint32(cid)
	return &c, nil
}

func (r *Repository) ListComics() ([]*Comic, error) {
	rows, err := r.db.Query(`SELECT comic_id, name, logo, path FROM comics ORDER BY name, comic_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list comics")
	}
	defer rows.Close()

	var out []*Comic
	for rows.Next() {
		var (
			c   Comic
			cid int64
		)
		if err := rows.Scan(&cid, &c.Name, &c.Logo, &c.Path); err != nil {
			return nil, errors.WithStack(err)
		}
		c.ID = uint32(cid)
		out = append(out, &c)
	}
	return out, errors.WithStack(rows.Err())
}

// SaveChapter upserts a chapter row. An empty Path keeps the stored path.
func (r *Repository) SaveChapter(ch *Chapter) error {
	_, err := r.db.Exec(
		`INSERT INTO chapters (comic_id, chapter_id, idx, title, kind, label, path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (comic_id, chapter_id) DO UPDATE SET
			idx = excluded.idx,
			title = excluded.title,
			kind = excluded.kind,
			label = excluded.label,
			path = CASE WHEN excluded.path = '' THEN path ELSE excluded.path END`,
		int64(ch.ComicID), int64(ch.ID), ch.Index, ch.Title, int(ch.Kind), ch.Label, ch.Path,
	)
	return errors.Wrapf(err, "save chapter %d/%d", ch.ComicID, ch.ID)
}

// GetChapters returns a comic's chapters ordered by label.
func (r *Repository) GetChapters(comicID uint32) ([]*Chapter, error) {
	rows, err := r.db.Query(
		`SELECT comic_id, chapter_id, idx, title, kind, label, path
		 FROM chapters WHERE comic_id = ? ORDER BY label, chapter_id`, int64(comicID),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "get chapters of %d", comicID)
	}
	defer rows.Close()

	var out []*Chapter
	for rows.Next() {
		var (
			ch        Chapter
			cid, chid int64
			kind      int
		)
		if err := rows.Scan(&cid, &chid, &ch.Index, &ch.Title, &kind, &ch.Label, &ch.Path); err != nil {
			return nil, errors.WithStack(err)
		}
		ch.ComicID, ch.ID, ch.Kind = uint32(cid), uint32(chid), Kind(kind)
		out = append(out, &ch)
	}
	return out, errors.WithStack(rows.Err())
}

// UpdateChapterPath records where a chapter was organized to.
func (r *Repository) UpdateChapterPath(comicID, chapterID uint32, path string) error {
	_, err := r.db.Exec(
		`UPDATE chapters SET path = ? WHERE comic_id = ? AND chapter_id = ?`,
		path, int64(comicID), int64(chapterID),
	)
	return errors.Wrapf(err, "update chapter %d/%d", comicID, chapterID)
}

// DeleteComic removes a comic and its chapters.
func (r *Repository) DeleteComic(id uint32) error {
	if _, err := r.db.Exec(`DELETE FROM chapters WHERE comic_id = ?`, int64(id)); err != nil {
		return errors.Wrapf(err, "delete chapters of %d", id)
	}
	_, err := r.db.Exec(`DELETE FROM comics WHERE comic_id = ?`, int64(id))
	return errors.Wrapf(err, "delete comic %d", id)
}

// GetComicWithChapterCount returns the comic with its known and organized
// chapter counts.
func (r *Repository) GetComicWithChapterCount(id uint32) (*Comic, int, int, error) {
	c, err := r.GetComic(id)
	if err != nil || c == nil {
		return c, 0, 0, err
	}
	var total, organized int
	err = r.db.QueryRow(
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE path <> '') FROM chapters WHERE comic_id = ?`, int64(id),
	).Scan(&total, &organized)
	if err != nil {
		return nil, 0, 0, errors.Wrapf(err, "count chapters of %d", id)
	}
	return c, total, organized, nil
}

// SaveRegistry upserts every comic and chapter known to reg. Paths already
// stored are kept.
func (r *Repository) SaveRegistry(reg *Registry) error {
	for _, md := range reg.Comics() {
		existing, err := r.GetComic(md.ComicID)
		if err != nil {
			return err
		}
		c := &Comic{ID: md.ComicID, Name: md.ComicName, Logo: md.Logo}
		if existing != nil {
			c.Path = existing.Path
			if c.Name == "" {
				c.Name = existing.Name
			}
		}
		if err := r.SaveComic(c); err != nil {
			return err
		}
		for _, rec := range md.Ordered() {
			ch := &Chapter{
				ID:      rec.ID,
				ComicID: md.ComicID,
				Index:   rec.Index,
				Title:   rec.Title,
				Kind:    rec.Kind,
				Label:   md.Label(rec.ID),
			}
			if err := r.SaveChapter(ch); err != nil {
				return err
			}
		}
	}
	return nil
}
