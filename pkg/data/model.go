package data

import (
	"sort"
	"strconv"
	"strings"
)

// Kind is the numbering scheme of a chapter.
type Kind int

const (
	KindUnknown Kind = iota
	KindVolume
	KindEpisode
	KindExtra
)

// ParseKind maps the descriptor "type" field ("0", "1", "2").
func ParseKind(s string) Kind {
	switch strings.TrimSpace(s) {
	case "0":
		return KindVolume
	case "1":
		return KindEpisode
	case "2":
		return KindExtra
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindVolume:
		return "volume"
	case KindEpisode:
		return "episode"
	case KindExtra:
		return "extra"
	default:
		return "unknown"
	}
}

// ChapterRecord is one entry of a descriptor's chapter table.
type ChapterRecord struct {
	ID    uint32
	Index string
	Title string
	Kind  Kind
}

// ChapterMetadata is the queryable form of a descriptor. A ComicID of zero
// means the descriptor has not been associated with a comic yet.
type ChapterMetadata struct {
	ComicID   uint32
	ComicName string
	Logo      string
	Chapters  map[uint32]ChapterRecord

	// order keeps descriptor order for listings.
	order []uint32
}

// NewChapterMetadata returns an empty descriptor for comicID.
func NewChapterMetadata(comicID uint32, name string) *ChapterMetadata {
	return &ChapterMetadata{
		ComicID:   comicID,
		ComicName: name,
		Chapters:  make(map[uint32]ChapterRecord),
	}
}

// AddChapter inserts or replaces a chapter record.
func (m *ChapterMetadata) AddChapter(rec ChapterRecord) {
	if m.Chapters == nil {
		m.Chapters = make(map[uint32]ChapterRecord)
	}
	if _, ok := m.Chapters[rec.ID]; !ok {
		m.order = append(m.order, rec.ID)
	}
	m.Chapters[rec.ID] = rec
}

// HasChapter reports whether id is in the chapter table.
func (m *ChapterMetadata) HasChapter(id uint32) bool {
	if m == nil {
		return false
	}
	_, ok := m.Chapters[id]
	return ok
}

// Ordered returns the chapter records in the order they were discovered.
// Records inserted into Chapters directly follow, sorted by ID.
func (m *ChapterMetadata) Ordered() []ChapterRecord {
	out := make([]ChapterRecord, 0, len(m.Chapters))
	seen := make(map[uint32]bool, len(m.order))
	for _, id := range m.order {
		if rec, ok := m.Chapters[id]; ok && !seen[id] {
			out = append(out, rec)
			seen[id] = true
		}
	}
	var rest []ChapterRecord
	for id, rec := range m.Chapters {
		if !seen[id] {
			rest = append(rest, rec)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
	return append(out, rest...)
}

// Label returns the directory label for a chapter: the title when present,
// otherwise a name synthesized from kind and index. Unknown chapters fall
// back to the decimal ID.
func (m *ChapterMetadata) Label(chapterID uint32) string {
	if m == nil {
		return strconv.FormatUint(uint64(chapterID), 10)
	}
	rec, ok := m.Chapters[chapterID]
	if !ok {
		return strconv.FormatUint(uint64(chapterID), 10)
	}
	if rec.Title != "" {
		return rec.Title
	}
	switch rec.Kind {
	case KindVolume:
		return "卷" + zfill(rec.Index, 2)
	case KindEpisode:
		return "第" + zfill(rec.Index, 3) + "话"
	case KindExtra:
		return "番外" + zfill(rec.Index, 2)
	default:
		return zfill(rec.Index, 3)
	}
}

// Merge folds other into m: non-empty scalar fields of other win and chapter
// tables are unioned with other's records replacing m's.
func (m *ChapterMetadata) Merge(other *ChapterMetadata) {
	if other == nil {
		return
	}
	if m.ComicID == 0 {
		m.ComicID = other.ComicID
	}
	if other.ComicName != "" {
		m.ComicName = other.ComicName
	}
	if other.Logo != "" {
		m.Logo = other.Logo
	}
	for _, rec := range other.Ordered() {
		m.AddChapter(rec)
	}
}

// Clone returns a deep copy.
func (m *ChapterMetadata) Clone() *ChapterMetadata {
	c := NewChapterMetadata(m.ComicID, m.ComicName)
	c.Logo = m.Logo
	c.Merge(m)
	return c
}

// zfill left-pads s with zeros to width, keeping a leading sign in front.
func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := strings.Repeat("0", width-len(s))
	if s != "" && (s[0] == '-' || s[0] == '+') {
		return s[:1] + pad + s[1:]
	}
	return pad + s
}

// Comic is a library row for an organized comic.
type Comic struct {
	ID   uint32
	Name string
	Logo string
	Path string
}

// Chapter is a library row for an organized chapter.
type Chapter struct {
	ID      uint32
	ComicID uint32
	Index   string
	Title   string
	Kind    Kind
	Label   string
	Path    string // organized directory, empty until renamed
}
