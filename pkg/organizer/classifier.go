package organizer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kerbaras/bukadown/pkg/buka"
	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// DefaultSolitaryLimit is the file count below which a directory holding a
// single container is taken to be that container's chapter.
const DefaultSolitaryLimit = 4

// Evidence is what a container told us about the directory it was
// extracted into.
type Evidence struct {
	ComicID    uint32
	ChapterID  uint32
	ComicName  string
	Descriptor *data.ChapterMetadata
}

// EvidenceFromFile collects the header fields and embedded descriptor of an
// open container. A descriptor that fails to parse is ignored.
func EvidenceFromFile(f *buka.File) Evidence {
	ev := Evidence{ComicID: f.ComicID, ChapterID: f.ChapterID, ComicName: f.ComicName}
	if md, err := f.Descriptor(); err == nil {
		ev.Descriptor = md
	}
	return ev
}

// Classifier assigns a role to every directory below a root. Evidence is
// consulted in a fixed order and the first source that yields wins: the
// directory's own descriptor file, a container extracted into (or still
// sitting alone in) the directory, and finally numeric directory names
// looked up in the registry.
type Classifier struct {
	Registry      *data.Registry
	Evidence      map[string]Evidence // keyed by cleaned absolute directory path
	SolitaryLimit int
}

// NewClassifier returns a classifier backed by reg.
func NewClassifier(reg *data.Registry) *Classifier {
	return &Classifier{
		Registry:      reg,
		Evidence:      make(map[string]Evidence),
		SolitaryLimit: DefaultSolitaryLimit,
	}
}

// Record stores container evidence for dir.
func (c *Classifier) Record(dir string, ev Evidence) {
	c.Evidence[cleanAbs(dir)] = ev
}

// Classify walks every directory below root (root itself excluded) and
// returns the resulting tree. Unreadable directories are logged and left
// unclassified.
func (c *Classifier) Classify(ctx context.Context, root string) (*Tree, error) {
	log := logger.FromContext(ctx)
	tree := NewTree()

	root = filepath.Clean(root)
	c.adoptOrphans(root)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Err(err).Warn("skipping unreadable directory", logger.Data{"path": path})
			return filepath.SkipDir
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		segs := strings.Split(filepath.ToSlash(rel), "/")

		class := c.ClassifyDir(ctx, path)
		tree.Insert(segs, class)
		if class.Classified() {
			log.Debug("classified directory", logger.Data{
				"path":    rel,
				"kind":    class.Kind.String(),
				"comic":   class.ComicName,
				"chapter": class.ChapterLabel,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "classify %s", root)
	}
	return tree, nil
}

// ClassifyDir works out the role of a single directory.
func (c *Classifier) ClassifyDir(ctx context.Context, dir string) Classification {
	if class, ok := c.fromDescriptor(ctx, dir); ok {
		return class
	}
	if class, ok := c.fromContainer(ctx, dir); ok {
		return class
	}
	if class, ok := c.fromNumericName(dir); ok {
		return class
	}
	return Classification{}
}

func (c *Classifier) lookup(comicID uint32) *data.ChapterMetadata {
	if comicID == 0 || c.Registry == nil {
		return nil
	}
	md, _ := c.Registry.Lookup(comicID)
	return md
}

// nameFor prefers the given name and falls back to the registry.
func (c *Classifier) nameFor(comicID uint32, name string) string {
	if name != "" {
		return name
	}
	if md := c.lookup(comicID); md != nil {
		return md.ComicName
	}
	return ""
}

// adoptOrphans registers every descriptor below root that names no comic
// under the numeric name of its directory, so the outcome of Classify does
// not depend on the order directories are visited in.
func (c *Classifier) adoptOrphans(root string) {
	if c.Registry == nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != buka.DescriptorName {
			return nil
		}
		dir := filepath.Dir(path)
		if dir == root {
			return nil
		}
		id, numeric := data.ParseID(filepath.Base(dir))
		if !numeric {
			return nil
		}
		if md, err := c.readDescriptor(dir); err == nil && md.ComicID == 0 {
			md.ComicID = id
			c.Registry.Merge(md)
		}
		return nil
	})
}

// readDescriptor parses the descriptor file in dir. A descriptor naming no
// comic that was extracted from a container belongs to that container's
// comic.
func (c *Classifier) readDescriptor(dir string) (*data.ChapterMetadata, error) {
	raw, err := os.ReadFile(filepath.Join(dir, buka.DescriptorName))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	md, err := data.ParseDescriptor(raw, nil)
	if err != nil {
		return nil, err
	}
	if md.ComicID == 0 {
		md.ComicID = c.Evidence[cleanAbs(dir)].ComicID
	}
	return md, nil
}

func (c *Classifier) fromDescriptor(ctx context.Context, dir string) (Classification, bool) {
	id, numeric := data.ParseID(filepath.Base(dir))
	if !numeric {
		return Classification{}, false
	}
	md, err := c.readDescriptor(dir)
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			logger.FromContext(ctx).Err(err).Warn("ignoring unreadable descriptor", logger.Data{"dir": dir})
		}
		return Classification{}, false
	}
	ev := c.Evidence[cleanAbs(dir)]

	switch {
	case ev.ChapterID != 0 && md.HasChapter(ev.ChapterID):
		// the chapter of the container extracted here, even when the
		// directory carries the comic's ID
		return Classification{
			Kind:         KindChapter,
			ComicName:    firstNonEmpty(c.nameFor(md.ComicID, md.ComicName), ev.ComicName),
			ChapterLabel: md.Label(ev.ChapterID),
			ComicID:      md.ComicID,
			ChapterID:    ev.ChapterID,
		}, true

	case md.ComicID != 0 && md.ComicID == id:
		name := c.nameFor(id, md.ComicName)
		return comicClass(id, name)

	case md.HasChapter(id):
		comicID := md.ComicID
		name := firstNonEmpty(c.nameFor(comicID, md.ComicName), ev.ComicName)
		return Classification{
			Kind:         KindChapter,
			ComicName:    name,
			ChapterLabel: md.Label(id),
			ComicID:      comicID,
			ChapterID:    id,
		}, true

	case md.ComicID == 0:
		// adopted by its numeric directory before the walk
		return comicClass(id, c.nameFor(id, md.ComicName))
	}
	return Classification{}, false
}

func comicClass(id uint32, name string) (Classification, bool) {
	if name == "" {
		return Classification{}, false
	}
	return Classification{Kind: KindComic, ComicName: name, ComicID: id}, true
}

func (c *Classifier) fromContainer(ctx context.Context, dir string) (Classification, bool) {
	ev, ok := c.Evidence[cleanAbs(dir)]
	if !ok {
		ev, ok = c.solitaryEvidence(ctx, dir)
	}
	if !ok || ev.ChapterID == 0 {
		return Classification{}, false
	}

	label := ""
	if ev.Descriptor.HasChapter(ev.ChapterID) {
		label = ev.Descriptor.Label(ev.ChapterID)
	} else {
		label = c.lookup(ev.ComicID).Label(ev.ChapterID)
	}
	descName := ""
	if ev.Descriptor != nil {
		descName = ev.Descriptor.ComicName
	}
	regName := ""
	if md := c.lookup(ev.ComicID); md != nil {
		regName = md.ComicName
	}

	return Classification{
		Kind:         KindChapter,
		ComicName:    firstNonEmpty(descName, regName, ev.ComicName),
		ChapterLabel: label,
		ComicID:      ev.ComicID,
		ChapterID:    ev.ChapterID,
	}, true
}

func (c *Classifier) solitaryEvidence(ctx context.Context, dir string) (Evidence, bool) {
	path, ok, err := SolitaryContainer(dir, c.SolitaryLimit)
	if err != nil || !ok {
		return Evidence{}, false
	}
	f, err := buka.Open(path)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("skipping container", logger.Data{"path": path})
		return Evidence{}, false
	}
	defer f.Close()
	return EvidenceFromFile(f), true
}

func (c *Classifier) fromNumericName(dir string) (Classification, bool) {
	id, ok := data.ParseID(filepath.Base(dir))
	if !ok {
		return Classification{}, false
	}
	if md := c.lookup(id); md != nil && md.ComicName != "" {
		return comicClass(id, md.ComicName)
	}

	parentID, ok := data.ParseID(filepath.Base(filepath.Dir(dir)))
	if !ok {
		return Classification{}, false
	}
	md := c.lookup(parentID)
	if md == nil || !md.HasChapter(id) || md.ComicName == "" {
		return Classification{}, false
	}
	return Classification{
		Kind:         KindChapter,
		ComicName:    md.ComicName,
		ChapterLabel: md.Label(id),
		ComicID:      parentID,
		ChapterID:    id,
	}, true
}

// SolitaryContainer returns the container in dir when it is the only one,
// dir has no subdirectories, and it is either the only payload file or dir
// holds fewer than limit files.
func SolitaryContainer(dir string, limit int) (string, bool, error) {
	if limit <= 0 {
		limit = DefaultSolitaryLimit
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, errors.WithStack(err)
	}

	var (
		container string
		files     int
		payload   int
	)
	for _, e := range entries {
		if e.IsDir() {
			return "", false, nil
		}
		files++
		name := e.Name()
		if name != buka.DescriptorName && !strings.HasPrefix(name, ".") {
			payload++
		}
		if strings.EqualFold(filepath.Ext(name), buka.Ext) {
			if container != "" {
				return "", false, nil
			}
			container = filepath.Join(dir, name)
		}
	}
	if container == "" {
		return "", false, nil
	}
	return container, payload == 1 || files < limit, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func cleanAbs(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}
