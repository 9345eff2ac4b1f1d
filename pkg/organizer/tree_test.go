package organizer

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeInsertCreatesPrefixes(t *testing.T) {
	tree := NewTree()
	tree.Insert([]string{"a", "b", "c"}, Classification{Kind: KindChapter, ComicName: "x", ChapterLabel: "1"})

	assert.Equal(t, 3, tree.Len())
	for _, segs := range [][]string{{"a"}, {"a", "b"}} {
		c, ok := tree.Get(segs)
		require.True(t, ok, segs)
		assert.False(t, c.Classified())
	}
	c, ok := tree.Get([]string{"a", "b", "c"})
	require.True(t, ok)
	assert.Equal(t, KindChapter, c.Kind)
}

func TestTreeInsertKeepsExistingPrefixes(t *testing.T) {
	tree := NewTree()
	tree.Insert([]string{"a"}, Classification{Kind: KindComic, ComicName: "A"})
	tree.Insert([]string{"a", "b"}, Classification{})

	c, _ := tree.Get([]string{"a"})
	assert.Equal(t, KindComic, c.Kind)

	p, ok := tree.Parent([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, "A", p.ComicName)

	_, ok = tree.Parent([]string{"a"})
	assert.False(t, ok)
}

func TestTreeIgnoresEmptyKey(t *testing.T) {
	tree := NewTree()
	tree.Insert(nil, Classification{Kind: KindComic})
	assert.Zero(t, tree.Len())
}

func TestTreePrefixProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tree := NewTree()
	var inserted [][]string

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(6)
		segs := make([]string, n)
		for j := range segs {
			segs[j] = fmt.Sprintf("s%d", rng.Intn(4))
		}
		tree.Insert(segs, Classification{Kind: Kind(rng.Intn(3))})
		inserted = append(inserted, segs)
	}

	for _, segs := range inserted {
		for i := 1; i <= len(segs); i++ {
			assert.True(t, tree.Has(segs[:i]), "missing prefix %v of %v", segs[:i], segs)
		}
	}
	for _, n := range tree.Nodes() {
		for i := 1; i < len(n.Segments); i++ {
			assert.True(t, tree.Has(n.Segments[:i]))
		}
	}
}

func TestTreeNodesDeepestFirst(t *testing.T) {
	tree := NewTree()
	tree.Insert([]string{"b"}, Classification{})
	tree.Insert([]string{"a", "y", "z"}, Classification{})
	tree.Insert([]string{"a", "x"}, Classification{})

	var got []string
	for _, n := range tree.Nodes() {
		got = append(got, key(n.Segments))
	}
	assert.Equal(t, []string{
		key([]string{"a", "y", "z"}),
		key([]string{"a", "x"}),
		key([]string{"a", "y"}),
		key([]string{"a"}),
		key([]string{"b"}),
	}, got)
}
