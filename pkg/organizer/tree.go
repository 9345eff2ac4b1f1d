package organizer

import (
	"sort"
	"strings"
)

// Kind is the role inferred for a directory.
type Kind int

const (
	KindUnknown Kind = iota
	KindComic
	KindChapter
)

func (k Kind) String() string {
	switch k {
	case KindComic:
		return "comic"
	case KindChapter:
		return "chapter"
	default:
		return "unknown"
	}
}

// Classification is what a directory turned out to be. ComicName is set for
// comics and chapters, ChapterLabel only for chapters. The IDs are kept so
// the result can be recorded in the library.
type Classification struct {
	Kind         Kind
	ComicName    string
	ChapterLabel string
	ComicID      uint32
	ChapterID    uint32
}

// Classified reports whether c carries a role.
func (c Classification) Classified() bool {
	return c.Kind != KindUnknown
}

// Node is one directory of the tree, addressed by its path segments
// relative to the processing root.
type Node struct {
	Segments []string
	Class    Classification
}

// Tree maps segment sequences to classifications. Every key has all of its
// prefixes present, so the tree can be walked from the root without gaps.
type Tree struct {
	nodes map[string]*Node
}

func NewTree() *Tree {
	return &Tree{nodes: make(map[string]*Node)}
}

// segments never contain NUL, so it is safe as a separator
func key(segs []string) string {
	return strings.Join(segs, "\x00")
}

// Insert sets the classification of segs, creating unclassified entries for
// any missing prefix. Empty sequences are ignored.
func (t *Tree) Insert(segs []string, c Classification) {
	if len(segs) == 0 {
		return
	}
	for i := 1; i < len(segs); i++ {
		k := key(segs[:i])
		if _, ok := t.nodes[k]; !ok {
			t.nodes[k] = &Node{Segments: clone(segs[:i])}
		}
	}
	t.nodes[key(segs)] = &Node{Segments: clone(segs), Class: c}
}

// Get returns the classification stored for segs.
func (t *Tree) Get(segs []string) (Classification, bool) {
	n, ok := t.nodes[key(segs)]
	if !ok {
		return Classification{}, false
	}
	return n.Class, true
}

// Has reports whether segs is a key of the tree.
func (t *Tree) Has(segs []string) bool {
	_, ok := t.nodes[key(segs)]
	return ok
}

// Parent returns the classification of the node directly above segs.
// Top-level nodes have no parent.
func (t *Tree) Parent(segs []string) (Classification, bool) {
	if len(segs) < 2 {
		return Classification{}, false
	}
	return t.Get(segs[:len(segs)-1])
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

// Nodes returns every node, deepest first. Nodes of equal depth are ordered
// by their segments so the order is stable between runs.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Segments, out[j].Segments
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return key(a) < key(b)
	})
	return out
}

func clone(segs []string) []string {
	out := make([]string, len(segs))
	copy(out, segs)
	return out
}
