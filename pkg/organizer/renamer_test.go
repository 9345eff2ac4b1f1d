package organizer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/kerbaras/bukadown/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRenamer() *Renamer {
	return NewRenamer(&fsutil.Retrier{Attempts: 2, Delay: time.Millisecond})
}

func TestRenameComicAndNestedChapter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "123/456/001.jpg", "page")

	tree := NewTree()
	tree.Insert([]string{"123"}, Classification{Kind: KindComic, ComicName: "FooComic", ComicID: 123})
	tree.Insert([]string{"123", "456"}, Classification{Kind: KindChapter, ComicName: "FooComic", ChapterLabel: "Episode 001"})

	results := testRenamer().Apply(testCtx(), root, tree)
	require.Len(t, results, 2)
	assert.Zero(t, Failed(results))

	assert.FileExists(t, filepath.Join(root, "FooComic", "Episode 001", "001.jpg"))
	assert.NoDirExists(t, filepath.Join(root, "123"))

	byID := map[uint32]Rename{}
	for _, r := range results {
		byID[r.Class.ComicID] = r
	}
	assert.Equal(t, filepath.Join(root, "FooComic"), byID[123].To)
	assert.Equal(t, filepath.Join(root, "FooComic", "Episode 001"), byID[0].To)
	assert.Equal(t, filepath.Join(root, "123", "456"), byID[0].From)
}

func TestRenameChapterUnderUnrelatedParent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "downloads/456/001.jpg", "page")

	tree := NewTree()
	tree.Insert([]string{"downloads", "456"}, Classification{Kind: KindChapter, ComicName: "FooComic", ChapterLabel: "Episode 001"})

	results := testRenamer().Apply(testCtx(), root, tree)
	assert.Zero(t, Failed(results))
	assert.FileExists(t, filepath.Join(root, "downloads", "FooComic-Episode 001", "001.jpg"))
}

func TestRenameMergesIntoExisting(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "123/a.jpg", "from 123")
	writeFile(t, root, "123/shared.jpg", "new")
	writeFile(t, root, "123/sub/x.jpg", "x")
	writeFile(t, root, "FooComic/b.jpg", "existing")
	writeFile(t, root, "FooComic/shared.jpg", "old")

	tree := NewTree()
	tree.Insert([]string{"123"}, Classification{Kind: KindComic, ComicName: "FooComic"})

	results := testRenamer().Apply(testCtx(), root, tree)
	assert.Zero(t, Failed(results))

	assert.NoDirExists(t, filepath.Join(root, "123"))
	for rel, want := range map[string]string{
		"a.jpg":          "from 123",
		"b.jpg":          "existing",
		"shared.jpg":     "old",
		"shared (1).jpg": "new",
		"sub/x.jpg":      "x",
	} {
		got, err := os.ReadFile(filepath.Join(root, "FooComic", filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, want, string(got), rel)
	}
}

func TestRenameSkipsUnknownAndUnchanged(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "misc", "FooComic")

	tree := NewTree()
	tree.Insert([]string{"misc"}, Classification{})
	tree.Insert([]string{"FooComic"}, Classification{Kind: KindComic, ComicName: "FooComic"})

	results := testRenamer().Apply(testCtx(), root, tree)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, filepath.Join(root, "FooComic"), results[0].To)
	assert.DirExists(t, filepath.Join(root, "misc"))
}

func TestRenameFailureIsPerNode(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "111", "222")

	tree := NewTree()
	tree.Insert([]string{"111"}, Classification{Kind: KindComic, ComicName: "Gone"})
	tree.Insert([]string{"222"}, Classification{Kind: KindComic, ComicName: "Kept"})
	tree.Insert([]string{"333"}, Classification{Kind: KindComic, ComicName: "Missing"})

	results := testRenamer().Apply(testCtx(), root, tree)
	assert.Equal(t, 1, Failed(results))
	assert.DirExists(t, filepath.Join(root, "Gone"))
	assert.DirExists(t, filepath.Join(root, "Kept"))
}

// Buka container for comic 100 chapter 7, after extraction and decode.
func TestExampleScenario(t *testing.T) {
	md := data.NewChapterMetadata(100, "")
	md.AddChapter(data.ChapterRecord{ID: 7, Index: "007", Title: "", Kind: data.KindEpisode})
	ev := Evidence{ComicID: 100, ChapterID: 7, ComicName: "测试漫画", Descriptor: md}

	t.Run("standalone", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "chapter/001.jpg", "plain")
		writeFile(t, root, "chapter/002.png", "decoded")

		c := NewClassifier(data.NewRegistry())
		c.Record(filepath.Join(root, "chapter"), ev)
		tree, err := c.Classify(testCtx(), root)
		require.NoError(t, err)

		testRenamer().Apply(testCtx(), root, tree)
		assert.FileExists(t, filepath.Join(root, "测试漫画-第007话", "001.jpg"))
		assert.FileExists(t, filepath.Join(root, "测试漫画-第007话", "002.png"))
	})

	t.Run("nested", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "100/chaporder.dat", `{"name":"测试漫画","logo":"http://x/100-a.jpg"}`)
		writeFile(t, root, "100/chapter/001.jpg", "plain")

		c := NewClassifier(data.NewRegistry())
		c.Record(filepath.Join(root, "100", "chapter"), ev)
		tree, err := c.Classify(testCtx(), root)
		require.NoError(t, err)

		testRenamer().Apply(testCtx(), root, tree)
		assert.FileExists(t, filepath.Join(root, "测试漫画", "第007话", "001.jpg"))
	})
}

func TestClassifyRenameIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "123/chaporder.dat", fooDescriptor)
	writeFile(t, root, "123/456/001.jpg", "a")
	writeFile(t, root, "123/457/001.jpg", "b")

	reg := fooRegistry()
	tree, err := NewClassifier(reg).Classify(testCtx(), root)
	require.NoError(t, err)
	testRenamer().Apply(testCtx(), root, tree)

	assert.FileExists(t, filepath.Join(root, "FooComic", "Episode 001", "001.jpg"))
	assert.FileExists(t, filepath.Join(root, "FooComic", "第002话", "001.jpg"))

	// a second pass over the organized tree changes nothing
	tree, err = NewClassifier(reg).Classify(testCtx(), root)
	require.NoError(t, err)
	for _, n := range tree.Nodes() {
		assert.False(t, n.Class.Classified(), n.Segments)
	}
	results := testRenamer().Apply(testCtx(), root, tree)
	assert.Empty(t, results)
	assert.FileExists(t, filepath.Join(root, "FooComic", "Episode 001", "001.jpg"))
}
