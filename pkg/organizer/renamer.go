package organizer

import (
	"context"
	"path/filepath"

	"github.com/kerbaras/bukadown/pkg/fsutil"
	"github.com/robinjoseph08/golib/logger"
)

// Rename is the outcome for one classified directory.
type Rename struct {
	From  string // path before any rename in this pass
	To    string // final path once every ancestor has been renamed too
	Class Classification
	Err   error
}

// Renamer applies a classification tree to disk.
type Renamer struct {
	Retrier *fsutil.Retrier
}

func NewRenamer(r *fsutil.Retrier) *Renamer {
	return &Renamer{Retrier: r}
}

// Apply renames every classified directory below root, deepest first, so
// that renaming a parent never invalidates a pending child. A destination
// that already exists is merged into. Failures are recorded on the node and
// the remaining nodes are still processed.
func (r *Renamer) Apply(ctx context.Context, root string, tree *Tree) []Rename {
	log := logger.FromContext(ctx)
	retrier := r.Retrier
	if retrier == nil {
		retrier = fsutil.Default
	}

	renamed := make(map[string]string) // node key -> new base name
	var results []Rename
	keys := make([]string, 0)

	for _, n := range tree.Nodes() {
		if !n.Class.Classified() {
			continue
		}
		parent, hasParent := tree.Parent(n.Segments)
		name := TargetName(n.Class, parent, hasParent)
		from := filepath.Join(root, filepath.Join(n.Segments...))
		res := Rename{From: from, Class: n.Class}

		base := n.Segments[len(n.Segments)-1]
		if name == "" || name == base {
			results = append(results, res)
			keys = append(keys, key(n.Segments))
			continue
		}

		to := filepath.Join(filepath.Dir(from), name)
		if err := retrier.Move(ctx, from, to); err != nil {
			res.Err = err
			log.Err(err).Error("rename failed", logger.Data{"from": from, "to": to})
		} else {
			renamed[key(n.Segments)] = name
			log.Info("renamed", logger.Data{"from": from, "to": to, "kind": n.Class.Kind.String()})
		}
		results = append(results, res)
		keys = append(keys, key(n.Segments))
	}

	// resolve final locations now that every ancestor has moved
	for i := range results {
		segs := tree.nodes[keys[i]].Segments
		final := make([]string, len(segs))
		for j := range segs {
			final[j] = segs[j]
			if name, ok := renamed[key(segs[:j+1])]; ok {
				final[j] = name
			}
		}
		results[i].To = filepath.Join(root, filepath.Join(final...))
		if results[i].Err != nil {
			results[i].To = ""
		}
	}
	return results
}

// Failed counts the renames that could not be applied.
func Failed(results []Rename) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
