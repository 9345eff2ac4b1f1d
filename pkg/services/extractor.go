package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kerbaras/bukadown/pkg/buka"
	"github.com/kerbaras/bukadown/pkg/decode"
	"github.com/kerbaras/bukadown/pkg/fsutil"
	"github.com/kerbaras/bukadown/pkg/organizer"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const (
	// ViewExt marks loose files written by the reader app.
	ViewExt = ".view"

	wrappedViewExt = buka.WrappedExt + ViewExt
	coverExt       = ".jpg"
)

// ExtractResult describes one extracted container.
type ExtractResult struct {
	Container string
	Dir       string
	Evidence  organizer.Evidence
	Written   int   // plain entries written as is
	Queued    int   // wrapped entries handed to the dispatcher
	Bytes     int64 // payload bytes read from the container
	Failed    []string
	Renamed   []string // entries written as "name (N).ext" next to an existing file

	claimed map[string]bool
}

// claim reserves target for one entry. A target that exists on disk or was
// already claimed by an earlier entry becomes "name (N).ext".
func (res *ExtractResult) claim(target, entry string) string {
	unique := fsutil.UniquePathFunc(target, func(p string) bool {
		if res.claimed[p] {
			return true
		}
		_, err := os.Lstat(p)
		return err == nil
	})
	if unique != target {
		res.Renamed = append(res.Renamed, entry)
	}
	res.claimed[unique] = true
	return unique
}

// Extractor turns containers into directories. Wrapped images are decoded
// on the dispatcher, everything else is written verbatim.
type Extractor struct {
	dispatcher *decode.Dispatcher
	retrier    *fsutil.Retrier
}

func NewExtractor(d *decode.Dispatcher, r *fsutil.Retrier) *Extractor {
	if r == nil {
		r = fsutil.Default
	}
	return &Extractor{dispatcher: d, retrier: r}
}

// ExtractContainer extracts the container at path into dir and deletes it
// once every entry has been read. A container with unreadable entries is
// kept so a later run can retry it.
func (e *Extractor) ExtractContainer(ctx context.Context, path, dir string) (*ExtractResult, error) {
	res, err := e.Extract(ctx, path, dir)
	if err != nil {
		return nil, err
	}
	if len(res.Failed) > 0 {
		return res, nil
	}
	if err := e.retrier.Remove(ctx, path); err != nil {
		return res, errors.Wrapf(err, "remove container %s", path)
	}
	return res, nil
}

// Extract writes the entries of the container at path into dir, queueing
// wrapped images for decoding. The container itself is left in place.
// Entries are handled in table of contents order; a repeated name is only
// extracted once, using its last occurrence.
func (e *Extractor) Extract(ctx context.Context, path, dir string) (*ExtractResult, error) {
	log := logger.FromContext(ctx)

	f, err := buka.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res := &ExtractResult{
		Container: path,
		Dir:       dir,
		Evidence:  organizer.EvidenceFromFile(f),
		claimed:   make(map[string]bool),
	}
	if err := e.retrier.MkdirAll(ctx, dir); err != nil {
		return nil, err
	}

	for _, entry := range lastEntries(f) {
		if err := e.extractEntry(ctx, f, entry, res); err != nil {
			log.Err(err).Warn("skipping entry", logger.Data{"container": path, "entry": entry.Name})
			res.Failed = append(res.Failed, entry.Name)
		}
	}

	log.Debug("extracted container", logger.Data{
		"container": path,
		"dir":       dir,
		"written":   res.Written,
		"queued":    res.Queued,
	})
	return res, nil
}

func (e *Extractor) extractEntry(ctx context.Context, f *buka.File, entry buka.Entry, res *ExtractResult) error {
	name := buka.SafeName(entry.Name)

	if isWrapped(name) {
		payload, err := f.ReadRange(entry.Name, buka.WrappedHeaderSize)
		if err != nil {
			return err
		}
		res.Bytes += int64(entry.Length)
		ext := e.dispatcher.Decoder().Ext()
		target := res.claim(filepath.Join(res.Dir, targetName(name, ext)), entry.Name)
		job := decode.Job{
			Dest:    strings.TrimSuffix(target, ext),
			Payload: payload,
			Name:    entry.Name,
		}
		if err := e.dispatcher.Submit(ctx, job); err != nil {
			return err
		}
		res.Queued++
		return nil
	}

	payload, err := f.Extract(entry.Name)
	if err != nil {
		return err
	}
	res.Bytes += int64(len(payload))
	target := filepath.Join(res.Dir, targetName(name, ""))
	if existing, err := os.ReadFile(target); err == nil && !res.claimed[target] && bytes.Equal(existing, payload) {
		res.claimed[target] = true
		res.Written++
		return nil
	}
	target = res.claim(target, entry.Name)
	if err := os.WriteFile(target, payload, 0644); err != nil {
		return errors.WithStack(err)
	}
	res.Written++
	return nil
}

// Collisions returns the entries of f that would land on an existing file
// in dir. A plain entry identical to the file already there does not
// collide.
func (e *Extractor) Collisions(f *buka.File, dir string) []string {
	ext := e.dispatcher.Decoder().Ext()
	var out []string
	for _, entry := range lastEntries(f) {
		name := buka.SafeName(entry.Name)
		target := filepath.Join(dir, targetName(name, ext))
		if _, err := os.Lstat(target); err != nil {
			continue
		}
		if !isWrapped(name) {
			payload, err := f.Extract(entry.Name)
			existing, rerr := os.ReadFile(target)
			if err == nil && rerr == nil && bytes.Equal(existing, payload) {
				continue
			}
		}
		out = append(out, entry.Name)
	}
	return out
}

// lastEntries returns the entries of f in table of contents order, keeping
// only the last occurrence of a repeated name.
func lastEntries(f *buka.File) []buka.Entry {
	entries := f.Entries()
	last := make(map[string]int, len(entries))
	for i, entry := range entries {
		last[entry.Name] = i
	}
	out := make([]buka.Entry, 0, len(last))
	for i, entry := range entries {
		if last[entry.Name] == i {
			out = append(out, entry)
		}
	}
	return out
}

func isWrapped(name string) bool {
	return strings.EqualFold(filepath.Ext(name), buka.WrappedExt)
}

// targetName is the file name an entry is written as. Wrapped images take
// the decoder's extension and the cover gets a ".jpg" one.
func targetName(name, decodedExt string) string {
	switch {
	case isWrapped(name):
		return strings.TrimSuffix(name, filepath.Ext(name)) + decodedExt
	case name == buka.CoverName:
		return name + coverExt
	}
	return name
}

// IsView reports whether path is a loose file written by the reader app.
func IsView(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ViewExt)
}

// ExtractView handles one loose view file. "X.bup.view" is unwrapped in
// memory and queued for decoding to X, then deleted. Any other "X.view" is
// renamed to X. It reports whether a decode job was queued.
func (e *Extractor) ExtractView(ctx context.Context, path string) (bool, error) {
	lower := strings.ToLower(path)

	if !strings.HasSuffix(lower, wrappedViewExt) {
		return false, e.retrier.Rename(ctx, path, path[:len(path)-len(ViewExt)])
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return false, errors.WithStack(err)
	}
	if len(raw) < buka.WrappedHeaderSize {
		return false, errors.Errorf("%s: shorter than its %d byte header", path, buka.WrappedHeaderSize)
	}
	job := decode.Job{
		Dest:    path[:len(path)-len(wrappedViewExt)],
		Payload: raw[buka.WrappedHeaderSize:],
		Name:    filepath.Base(path),
	}
	if err := e.dispatcher.Submit(ctx, job); err != nil {
		return false, err
	}
	return true, e.retrier.Remove(ctx, path)
}
