package services

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/kerbaras/bukadown/pkg/buka"
	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/kerbaras/bukadown/pkg/decode"
	"github.com/kerbaras/bukadown/pkg/fsutil"
	"github.com/kerbaras/bukadown/pkg/organizer"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// LockName is the lock file created in the output root for the length of a
// run.
const LockName = ".bukadown.lock"

var (
	// ErrRunFailed is returned when a run finished but some decode or
	// filesystem operation failed.
	ErrRunFailed = errors.New("run finished with failures")

	// ErrLocked is returned when another run holds the output root.
	ErrLocked = errors.New("output directory is in use by another run")

	// ErrNameCollision marks an entry that was written as "name (N).ext"
	// because a different file already held its name.
	ErrNameCollision = errors.New("entry name already taken")
)

// Stage names reported on the event channel.
const (
	StageCopy     = "copy"
	StageExtract  = "extract"
	StageDecode   = "decode"
	StageClassify = "classify"
	StageRename   = "rename"
	StageDone     = "done"
)

// Event is a progress update of a run.
type Event struct {
	Stage string
	Path  string
	Done  int
	Total int
	Err   error
}

// Library stores what a run organized.
type Library interface {
	SaveRegistry(reg *data.Registry) error
	GetComic(id uint32) (*data.Comic, error)
	SaveComic(c *data.Comic) error
	SaveChapter(ch *data.Chapter) error
}

// Options configures a Converter. Zero values pick the defaults.
type Options struct {
	Decode        decode.Options
	Decoder       decode.Decoder
	Retrier       *fsutil.Retrier
	SolitaryLimit int
	Metadata      []*data.ChapterMetadata // merged into the registry before the walk
	Library       Library
}

// Skip is a container or file that could not be processed.
type Skip struct {
	Path string
	Err  error
}

// Report summarizes one run.
type Report struct {
	RunID       string
	Input       string
	Output      string
	Copied      int
	CopiedBytes int64
	Containers  int
	Views       int
	Bytes       int64
	Skipped     []Skip
	Cleanup     []Skip // extracted sources that could not be removed
	Queued      int
	Decoded     int
	Failures    []*decode.DecodeError
	Renames     []organizer.Rename
	Comics      int
	Chapters    int
	Duration    time.Duration
}

// RenameFailures counts the nodes whose rename failed.
func (r *Report) RenameFailures() int {
	return organizer.Failed(r.Renames)
}

// Failed reports whether the run hit a decode failure or an exhausted
// filesystem operation. Skipped corrupt containers alone do not fail a run.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0 || len(r.Cleanup) > 0 || r.RenameFailures() > 0
}

// Converter runs the whole pipeline: copy, extract, decode, classify and
// rename. Every Run owns its registry, dispatcher and tree.
type Converter struct {
	opts   Options
	events chan Event
}

func NewConverter(opts Options) *Converter {
	if opts.Decoder == nil {
		opts.Decoder = decode.NewImageDecoder(decode.FormatPNG, decode.DefaultJPEGQuality)
	}
	if opts.Retrier == nil {
		opts.Retrier = fsutil.Default
	}
	if opts.SolitaryLimit <= 0 {
		opts.SolitaryLimit = organizer.DefaultSolitaryLimit
	}
	return &Converter{
		opts:   opts,
		events: make(chan Event, 100),
	}
}

// Events returns the channel receiving progress updates. Updates are
// dropped when nobody reads them.
func (c *Converter) Events() <-chan Event {
	return c.events
}

func (c *Converter) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}

// DefaultOutput is the output directory used when none is given: a sibling
// "output" directory next to input.
func DefaultOutput(input string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(input)), "output")
}

// Run converts input into output. input is either a directory tree, which
// is copied into output first unless both are the same directory, or a
// single container, which is extracted into output/<name>. An empty output
// selects DefaultOutput. The report is returned even when the run failed.
func (c *Converter) Run(ctx context.Context, input, output string) (*Report, error) {
	start := time.Now()
	if output == "" {
		output = DefaultOutput(input)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	log := logger.FromContext(ctx).ID(id.String()).Root(logger.Data{"input": input, "output": output})
	ctx = log.WithContext(ctx)

	info, err := os.Stat(input)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := c.opts.Retrier.MkdirAll(ctx, output); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(output, LockName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "acquire output lock")
	}
	if !ok {
		return nil, errors.Wrap(ErrLocked, output)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Err(err).Warn("failed to release output lock")
		}
		os.Remove(lockPath)
	}()

	report := &Report{RunID: id.String(), Input: input, Output: output}
	run := c.newRun(ctx, report)
	defer run.close()

	log.Info("run started", logger.Data{"workers": run.dispatcher.Workers()})

	if info.IsDir() {
		err = run.convertTree(ctx, input, output)
	} else {
		err = run.convertFile(ctx, input, output)
	}
	if err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	c.emit(Event{Stage: StageDone, Path: output})
	log.Info("run finished", logger.Data{
		"containers": report.Containers,
		"decoded":    report.Decoded,
		"failed":     len(report.Failures),
		"renamed":    len(report.Renames),
		"skipped":    len(report.Skipped),
		"duration":   report.Duration.String(),
	})
	if report.Failed() {
		return report, ErrRunFailed
	}
	return report, nil
}

// run is the state of one conversion.
type run struct {
	c          *Converter
	report     *Report
	registry   *data.Registry
	classifier *organizer.Classifier
	dispatcher *decode.Dispatcher
	extractor  *Extractor
	forwarded  sync.WaitGroup
}

func (c *Converter) newRun(ctx context.Context, report *Report) *run {
	reg := data.NewRegistry()
	for _, md := range c.opts.Metadata {
		reg.Merge(md)
	}
	classifier := organizer.NewClassifier(reg)
	classifier.SolitaryLimit = c.opts.SolitaryLimit

	d := decode.NewDispatcher(ctx, c.opts.Decoder, c.opts.Decode)
	r := &run{
		c:          c,
		report:     report,
		registry:   reg,
		classifier: classifier,
		dispatcher: d,
		extractor:  NewExtractor(d, c.opts.Retrier),
	}

	r.forwarded.Add(1)
	go func() {
		defer r.forwarded.Done()
		for p := range d.GetProgressChannel() {
			c.emit(Event{Stage: StageDecode, Path: p.Dest, Done: p.Done + p.Failed, Total: p.Submitted, Err: p.Err})
		}
	}()
	return r
}

func (r *run) close() {
	r.dispatcher.Close()
	r.forwarded.Wait()
}

func (r *run) convertTree(ctx context.Context, input, output string) error {
	if !sameDir(input, output) {
		r.c.emit(Event{Stage: StageCopy, Path: input})
		stats, err := CopyTree(ctx, input, output)
		if err != nil {
			return err
		}
		r.report.Copied, r.report.CopiedBytes = stats.Files, stats.Bytes
	}
	if err := r.extractTree(ctx, output); err != nil {
		return err
	}
	r.waitDecodes(ctx)
	return r.organize(ctx, output)
}

func (r *run) convertFile(ctx context.Context, input, output string) error {
	name := filepath.Base(input)
	dir := filepath.Join(output, strings.TrimSuffix(name, filepath.Ext(name)))

	r.c.emit(Event{Stage: StageExtract, Path: input, Done: 0, Total: 1})
	res, err := r.extractor.Extract(ctx, input, dir)
	if err != nil {
		return errors.Wrapf(err, "extract %s", input)
	}
	r.recordContainer(res)
	r.c.emit(Event{Stage: StageExtract, Path: input, Done: 1, Total: 1})

	r.waitDecodes(ctx)
	return r.organize(ctx, output)
}

// extractTree is the first phase: standalone descriptors are registered,
// then every container and view file below root is extracted.
func (r *run) extractTree(ctx context.Context, root string) error {
	log := logger.FromContext(ctx)

	var descriptors, containers, views []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Err(err).Warn("skipping unreadable path", logger.Data{"path": path})
			r.report.Skipped = append(r.report.Skipped, Skip{Path: path, Err: err})
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		switch name := d.Name(); {
		case name == buka.DescriptorName:
			descriptors = append(descriptors, path)
		case strings.EqualFold(filepath.Ext(name), buka.Ext):
			containers = append(containers, path)
		case IsView(name):
			views = append(views, path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "scan %s", root)
	}

	for _, path := range descriptors {
		r.registerDescriptor(ctx, path)
	}

	for i, path := range containers {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		r.c.emit(Event{Stage: StageExtract, Path: path, Done: i, Total: len(containers)})
		r.extractContainer(ctx, root, path)
	}

	for _, path := range views {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		queued, err := r.extractor.ExtractView(ctx, path)
		if queued {
			r.report.Queued++
		}
		if err != nil {
			log.Err(err).Warn("skipping view file", logger.Data{"path": path})
			if fsutil.IsRetryExhausted(err) {
				r.report.Cleanup = append(r.report.Cleanup, Skip{Path: path, Err: err})
			} else {
				r.report.Skipped = append(r.report.Skipped, Skip{Path: path, Err: err})
			}
			continue
		}
		r.report.Views++
	}
	return nil
}

func (r *run) registerDescriptor(ctx context.Context, path string) {
	raw, err := os.ReadFile(path)
	if err == nil {
		var md *data.ChapterMetadata
		if md, err = data.ParseDescriptor(raw, nil); err == nil {
			// orphans are adopted by their directory during classification
			r.registry.Merge(md)
			return
		}
	}
	logger.FromContext(ctx).Err(err).Warn("ignoring descriptor", logger.Data{"path": path})
}

// extractContainer extracts one container found during the walk.
func (r *run) extractContainer(ctx context.Context, root, path string) {
	log := logger.FromContext(ctx)

	dir := r.containerDir(ctx, root, path)
	res, err := r.extractor.ExtractContainer(ctx, path, dir)
	if res != nil {
		r.recordContainer(res)
	}
	if err != nil {
		if res != nil {
			// extracted, but the container could not be deleted
			log.Err(err).Error("container cleanup failed", logger.Data{"path": path})
			r.report.Cleanup = append(r.report.Cleanup, Skip{Path: path, Err: err})
			return
		}
		log.Err(err).Warn("skipping container", logger.Data{"path": path})
		r.report.Skipped = append(r.report.Skipped, Skip{Path: path, Err: err})
	}
}

// recordEntries reports the entries of an extracted container that were
// unreadable or written under another name.
func (r *run) recordEntries(res *ExtractResult) {
	for _, name := range res.Failed {
		r.report.Skipped = append(r.report.Skipped, Skip{
			Path: res.Container + ":" + name,
			Err:  errors.Wrap(buka.ErrCorruptContainer, "unreadable entry"),
		})
	}
	for _, name := range res.Renamed {
		r.report.Skipped = append(r.report.Skipped, Skip{
			Path: res.Container + ":" + name,
			Err:  errors.Wrapf(ErrNameCollision, "written next to the existing file in %s", res.Dir),
		})
	}
}

// containerDir picks where a container is extracted: into its own directory
// when it sits there alone, else into a sibling directory named after it.
// The root, a directory named after the container's comic and a directory
// holding files the container would overwrite are never taken as its own
// directory.
func (r *run) containerDir(ctx context.Context, root, path string) string {
	sibling := strings.TrimSuffix(path, filepath.Ext(path))
	parent := filepath.Dir(path)
	if parent == filepath.Clean(root) {
		return sibling
	}
	solitary, ok, _ := organizer.SolitaryContainer(parent, r.c.opts.SolitaryLimit)
	if !ok || solitary != path {
		return sibling
	}
	f, err := buka.Open(path)
	if err != nil {
		return sibling
	}
	defer f.Close()

	if id, numeric := data.ParseID(filepath.Base(parent)); numeric && f.ComicID == id {
		return sibling
	}
	if clash := r.extractor.Collisions(f, parent); len(clash) > 0 {
		logger.FromContext(ctx).Info("container would overwrite files, extracting beside it", logger.Data{
			"path":    path,
			"entries": clash,
		})
		return sibling
	}
	return parent
}

func (r *run) recordContainer(res *ExtractResult) {
	r.report.Containers++
	r.report.Queued += res.Queued
	r.report.Bytes += res.Bytes
	r.classifier.Record(res.Dir, res.Evidence)
	if res.Evidence.Descriptor != nil {
		r.registry.Merge(res.Evidence.Descriptor)
	}
	r.recordEntries(res)
}

// waitDecodes is the barrier between extraction and classification.
func (r *run) waitDecodes(ctx context.Context) {
	log := logger.FromContext(ctx)

	r.c.emit(Event{Stage: StageDecode, Total: r.report.Queued})
	r.dispatcher.Wait()

	_, succeeded, _ := r.dispatcher.Stats()
	r.report.Decoded = succeeded
	r.report.Failures = r.dispatcher.Failures()
	for _, f := range r.report.Failures {
		log.Err(f.Err).Warn("decode failure", logger.Data{"name": f.Name, "dest": f.Dest})
	}
}

// organize is the second phase: classify the flattened tree and rename it
// bottom up.
func (r *run) organize(ctx context.Context, root string) error {
	r.c.emit(Event{Stage: StageClassify, Path: root})
	tree, err := r.classifier.Classify(ctx, root)
	if err != nil {
		return err
	}

	r.c.emit(Event{Stage: StageRename, Path: root, Total: tree.Len()})
	r.report.Renames = organizer.NewRenamer(r.c.opts.Retrier).Apply(ctx, root, tree)

	if r.c.opts.Library != nil {
		if err := r.catalog(ctx); err != nil {
			logger.FromContext(ctx).Err(err).Error("failed to update library")
		}
	}
	return nil
}

// catalog stores the registry and where every classified directory ended up.
func (r *run) catalog(ctx context.Context) error {
	lib := r.c.opts.Library
	if err := lib.SaveRegistry(r.registry); err != nil {
		return err
	}

	renames := make([]organizer.Rename, 0, len(r.report.Renames))
	for _, res := range r.report.Renames {
		if res.Err == nil && res.To != "" && res.Class.ComicID != 0 {
			renames = append(renames, res)
		}
	}
	// comics first so chapters never refer to a missing comic row
	sort.SliceStable(renames, func(i, j int) bool {
		return renames[i].Class.Kind == organizer.KindComic && renames[j].Class.Kind != organizer.KindComic
	})

	for _, res := range renames {
		class := res.Class
		md, _ := r.registry.Lookup(class.ComicID)

		existing, err := lib.GetComic(class.ComicID)
		if err != nil {
			return err
		}
		comic := &data.Comic{ID: class.ComicID, Name: class.ComicName}
		if existing != nil {
			comic.Logo, comic.Path = existing.Logo, existing.Path
		}
		if md != nil && md.Logo != "" {
			comic.Logo = md.Logo
		}

		switch class.Kind {
		case organizer.KindComic:
			comic.Path = res.To
			if err := lib.SaveComic(comic); err != nil {
				return err
			}
			r.report.Comics++

		case organizer.KindChapter:
			if existing == nil {
				if err := lib.SaveComic(comic); err != nil {
					return err
				}
			}
			ch := &data.Chapter{
				ID:      class.ChapterID,
				ComicID: class.ComicID,
				Label:   class.ChapterLabel,
				Path:    res.To,
			}
			if md != nil {
				for _, rec := range md.Ordered() {
					if rec.ID == class.ChapterID {
						ch.Index, ch.Title, ch.Kind = rec.Index, rec.Title, rec.Kind
					}
				}
			}
			if err := lib.SaveChapter(ch); err != nil {
				return err
			}
			r.report.Chapters++
		}
	}
	logger.FromContext(ctx).Debug("library updated", logger.Data{"comics": r.report.Comics, "chapters": r.report.Chapters})
	return nil
}

func sameDir(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
