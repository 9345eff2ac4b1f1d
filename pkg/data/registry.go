package data

import "sort"

// Registry accumulates the descriptors discovered during one run, keyed by
// comic ID. It is owned by a single goroutine and is not locked.
type Registry struct {
	comics map[uint32]*ChapterMetadata
}

func NewRegistry() *Registry {
	return &Registry{comics: make(map[uint32]*ChapterMetadata)}
}

// Merge folds md into the entry for md.ComicID and returns the merged entry.
// Descriptors without a comic ID are not registered and nil is returned.
func (r *Registry) Merge(md *ChapterMetadata) *ChapterMetadata {
	if md == nil || md.ComicID == 0 {
		return nil
	}
	cur, ok := r.comics[md.ComicID]
	if !ok {
		cur = md.Clone()
		r.comics[md.ComicID] = cur
		return cur
	}
	cur.Merge(md)
	return cur
}

// Lookup returns the metadata registered for comicID.
func (r *Registry) Lookup(comicID uint32) (*ChapterMetadata, bool) {
	md, ok := r.comics[comicID]
	return md, ok
}

// Comics returns every registered comic ordered by ID.
func (r *Registry) Comics() []*ChapterMetadata {
	out := make([]*ChapterMetadata, 0, len(r.comics))
	for _, md := range r.comics {
		out = append(out, md)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComicID < out[j].ComicID })
	return out
}

func (r *Registry) Len() int {
	return len(r.comics)
}
