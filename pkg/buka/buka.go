package buka

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/pkg/errors"
)

const (
	// Magic is the signature every container starts with.
	Magic = "buka"

	// PrologueSize is the fixed size of the header read before the TOC.
	PrologueSize = 128

	// WrappedHeaderSize is the sub-header carried by wrapped image entries.
	WrappedHeaderSize = 64

	// WrappedExt marks entries whose payload is a header-wrapped image.
	WrappedExt = ".bup"

	// CoverName is the entry holding the comic cover.
	CoverName = "logo"

	// DescriptorName is the entry (and file) holding chapter metadata.
	DescriptorName = "chaporder.dat"

	// Ext is the on-disk extension of containers.
	Ext = ".buka"

	comicIDOffset   = 12
	chapterIDOffset = 16
	nameOffset      = 20
)

// ErrCorruptContainer is returned when a file is not a readable container.
var ErrCorruptContainer = errors.New("corrupt container")

// Entry is one named payload region of a container.
type Entry struct {
	Name   string
	Offset uint32
	Length uint32
}

// File is an open container. Entries are parsed once on Open and all reads
// go through the same handle.
type File struct {
	Path      string
	Version   [2]uint32
	ComicID   uint32
	ChapterID uint32
	ComicName string

	f       *os.File
	size    int64
	entries []Entry
	index   map[string]int

	descOnce sync.Once
	desc     *data.ChapterMetadata
	descErr  error
}

// Open reads the prologue and table of contents of the container at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}

	b := &File{Path: path, f: f, size: st.Size()}
	if err := b.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

func corrupt(path, format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorruptContainer, "%s: "+format, append([]interface{}{path}, args...)...)
}

func (b *File) readHeader() error {
	head := make([]byte, PrologueSize)
	n, err := b.f.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return errors.WithStack(err)
	}
	head = head[:n]

	if len(head) < len(Magic) || string(head[:len(Magic)]) != Magic {
		return corrupt(b.Path, "missing magic signature")
	}
	if len(head) < nameOffset {
		return corrupt(b.Path, "truncated prologue")
	}

	le := binary.LittleEndian
	b.Version = [2]uint32{le.Uint32(head[4:8]), le.Uint32(head[8:12])}
	b.ComicID = le.Uint32(head[comicIDOffset:])
	b.ChapterID = le.Uint32(head[chapterIDOffset:])

	end := bytes.IndexByte(head[nameOffset:], 0)
	if end < 0 {
		return corrupt(b.Path, "unterminated comic name")
	}
	b.ComicName = decodeName(head[nameOffset : nameOffset+end])

	// The length word counts itself, so the TOC spans [lenPos+4, lenPos+tocLen).
	lenPos := int64(nameOffset + end + 1)
	var word [4]byte
	if _, err := b.f.ReadAt(word[:], lenPos); err != nil {
		return corrupt(b.Path, "truncated toc length")
	}
	tocLen := int64(le.Uint32(word[:]))
	if tocLen < 4 || lenPos+tocLen > b.size {
		return corrupt(b.Path, "toc length %d out of range", tocLen)
	}

	toc := make([]byte, tocLen-4)
	if _, err := b.f.ReadAt(toc, lenPos+4); err != nil {
		return corrupt(b.Path, "truncated toc")
	}
	b.parseTOC(toc)
	return nil
}

func (b *File) parseTOC(toc []byte) {
	le := binary.LittleEndian
	b.index = make(map[string]int)
	pos := 0
	for pos+8 < len(toc) {
		offset := le.Uint32(toc[pos:])
		length := le.Uint32(toc[pos+4:])
		pos += 8

		end := bytes.IndexByte(toc[pos:], 0)
		var raw []byte
		if end < 0 {
			raw = toc[pos:]
			pos = len(toc)
		} else {
			raw = toc[pos : pos+end]
			pos += end + 1
		}

		name := decodeName(raw)
		b.index[name] = len(b.entries)
		b.entries = append(b.entries, Entry{Name: name, Offset: offset, Length: length})
	}
}

func decodeName(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}

// Close releases the underlying handle.
func (b *File) Close() error {
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return errors.WithStack(err)
}

// Entries returns the TOC in file order, duplicates included.
func (b *File) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Lookup finds an entry by name. When a name repeats the last one wins.
func (b *File) Lookup(name string) (Entry, bool) {
	i, ok := b.index[name]
	if !ok {
		return Entry{}, false
	}
	return b.entries[i], true
}

// Section returns a reader over the entry payload after skipping skip bytes.
func (b *File) Section(e Entry, skip int64) (*io.SectionReader, error) {
	if b.f == nil {
		return nil, errors.New("container is closed")
	}
	start := int64(e.Offset)
	end := start + int64(e.Length)
	if end > b.size {
		return nil, corrupt(b.Path, "entry %q runs past end of file", e.Name)
	}
	if skip > int64(e.Length) {
		return nil, corrupt(b.Path, "entry %q shorter than its %d byte header", e.Name, skip)
	}
	return io.NewSectionReader(b.f, start+skip, int64(e.Length)-skip), nil
}

// ReadRange reads an entry's payload, skipping the first skip bytes without
// reading them.
func (b *File) ReadRange(name string, skip int64) ([]byte, error) {
	e, ok := b.Lookup(name)
	if !ok {
		return nil, errors.Errorf("%s: no entry named %q", b.Path, name)
	}
	return b.readEntry(e, skip)
}

func (b *File) readEntry(e Entry, skip int64) ([]byte, error) {
	sr, err := b.Section(e, skip)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sr.Size())
	if _, err := io.ReadFull(sr, buf); err != nil {
		return nil, errors.Wrapf(err, "read entry %q", e.Name)
	}
	return buf, nil
}

// Extract reads an entry's full payload.
func (b *File) Extract(name string) ([]byte, error) {
	return b.ReadRange(name, 0)
}

// ExtractAll writes every entry verbatim under dir, using the base name of
// each entry. Later duplicates overwrite earlier ones.
func (b *File) ExtractAll(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.WithStack(err)
	}
	for _, e := range b.entries {
		payload, err := b.readEntry(e, 0)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, SafeName(e.Name)), payload, 0644); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// Descriptor parses the embedded chaporder.dat, if any. The header comic ID
// is used as the descriptor's comic ID. It returns nil without error when
// the container has no descriptor.
func (b *File) Descriptor() (*data.ChapterMetadata, error) {
	b.descOnce.Do(func() {
		if _, ok := b.Lookup(DescriptorName); !ok {
			return
		}
		raw, err := b.Extract(DescriptorName)
		if err != nil {
			b.descErr = err
			return
		}
		id := b.ComicID
		b.desc, b.descErr = data.ParseDescriptor(raw, &id)
	})
	return b.desc, b.descErr
}

// SafeName reduces an entry name to a single path element.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.FromSlash(name))
	switch base {
	case ".", "..", string(filepath.Separator), "":
		return "_"
	}
	return base
}
