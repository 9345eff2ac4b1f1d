package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/kerbaras/bukadown/pkg/buka"
	"github.com/kerbaras/bukadown/pkg/data"
	"github.com/kerbaras/bukadown/pkg/decode"
	"github.com/kerbaras/bukadown/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const comicDescriptor = `{
	"name": "测试漫画",
	"logo": "http://img.example.com/logo/100-s.jpg",
	"links": [
		{"cid": "7", "idx": "007", "title": "", "type": "1"},
		{"cid": "8", "idx": "008", "title": "", "type": "1"}
	]
}`

const embeddedDescriptor = `{"name": "测试漫画", "links": [{"cid": "7", "idx": "007", "title": "", "type": "1"}]}`

func chapterSeven() []buka.Item {
	return []buka.Item{
		{Name: "001.jpg", Data: []byte("plain")},
		{Name: "002.bup", Data: wrapped("decoded")},
		{Name: buka.DescriptorName, Data: []byte(embeddedDescriptor)},
	}
}

func testConverter(opts Options) *Converter {
	opts.Decoder = rawDecoder{}
	opts.Decode = decode.Options{Workers: 2}
	opts.Retrier = &fsutil.Retrier{Attempts: 2, Delay: 1}
	return NewConverter(opts)
}

func TestConvertTree(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeFile(t, in, "100/chaporder.dat", comicDescriptor)
	writeContainer(t, filepath.Join(in, "100", "7.buka"), buka.Header{ComicID: 100, ChapterID: 7, ComicName: "测试漫画"}, chapterSeven())
	writeContainer(t, filepath.Join(in, "100", "8.buka"), buka.Header{ComicID: 100, ChapterID: 8, ComicName: "测试漫画"}, []buka.Item{
		{Name: "001.jpg", Data: []byte("eight")},
	})
	writeFile(t, in, "notes.txt", "not copied")

	lib := newMemLibrary()
	report, err := testConverter(Options{Library: lib}).Run(testCtx(), in, out)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"测试漫画/chaporder.dat",
		"测试漫画/第007话/001.jpg",
		"测试漫画/第007话/002.png",
		"测试漫画/第007话/chaporder.dat",
		"测试漫画/第008话/001.jpg",
	}, listFiles(t, out))
	assert.Equal(t, "decoded", readFile(t, filepath.Join(out, "测试漫画", "第007话", "002.png")))
	assert.NoFileExists(t, filepath.Join(out, LockName))

	// the source tree is left alone
	assert.FileExists(t, filepath.Join(in, "100", "7.buka"))

	assert.Equal(t, 3, report.Copied)
	assert.Equal(t, 2, report.Containers)
	assert.Equal(t, 1, report.Queued)
	assert.Equal(t, 1, report.Decoded)
	assert.Empty(t, report.Failures)
	assert.Empty(t, report.Skipped)
	assert.Len(t, report.Renames, 3)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.Failed())

	require.Contains(t, lib.comics, uint32(100))
	assert.Equal(t, filepath.Join(out, "测试漫画"), lib.comics[100].Path)
	assert.Equal(t, "http://img.example.com/logo/100-s.jpg", lib.comics[100].Logo)
	require.Contains(t, lib.chapters, [2]uint32{100, 7})
	assert.Equal(t, filepath.Join(out, "测试漫画", "第007话"), lib.chapters[[2]uint32{100, 7}].Path)
	assert.Equal(t, "007", lib.chapters[[2]uint32{100, 7}].Index)
	assert.Equal(t, data.KindEpisode, lib.chapters[[2]uint32{100, 7}].Kind)
	assert.Equal(t, filepath.Join(out, "测试漫画", "第008话"), lib.chapters[[2]uint32{100, 8}].Path)
	assert.NotNil(t, lib.reg)
}

func TestConvertInPlaceIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "100/chaporder.dat", comicDescriptor)
	writeContainer(t, filepath.Join(root, "100", "7.buka"), buka.Header{ComicID: 100, ChapterID: 7, ComicName: "测试漫画"}, chapterSeven())
	writeContainer(t, filepath.Join(root, "100", "8.buka"), buka.Header{ComicID: 100, ChapterID: 8}, nil)

	_, err := testConverter(Options{}).Run(testCtx(), root, root)
	require.NoError(t, err)
	first := listFiles(t, root)
	assert.NotContains(t, first, "100/7.buka")

	report, err := testConverter(Options{}).Run(testCtx(), root, root)
	require.NoError(t, err)
	assert.Equal(t, first, listFiles(t, root))
	assert.Zero(t, report.Containers)
	assert.Zero(t, report.Copied)
}

func TestConvertSingleFile(t *testing.T) {
	in := filepath.Join(t.TempDir(), "7.buka")
	out := t.TempDir()
	writeContainer(t, in, buka.Header{ComicID: 100, ChapterID: 7, ComicName: "测试漫画"}, chapterSeven())

	report, err := testConverter(Options{}).Run(testCtx(), in, out)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"测试漫画-第007话/001.jpg",
		"测试漫画-第007话/002.png",
		"测试漫画-第007话/chaporder.dat",
	}, listFiles(t, out))
	assert.FileExists(t, in)
	assert.Equal(t, 1, report.Containers)
}

func TestConvertSolitaryContainer(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	// the app's per chapter directory holding nothing but the container
	writeContainer(t, filepath.Join(in, "100", "7", "7.buka"), buka.Header{ComicID: 100, ChapterID: 7, ComicName: "测试漫画"}, chapterSeven())
	writeFile(t, in, "100/chaporder.dat", comicDescriptor)

	_, err := testConverter(Options{}).Run(testCtx(), in, out)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "测试漫画", "第007话", "001.jpg"))
	assert.NoDirExists(t, filepath.Join(out, "测试漫画", "第007话", "7"))
}

func TestConvertSolitaryContainerKeepsExistingFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "7/001.jpg", "user data")
	writeContainer(t, filepath.Join(root, "7", "7.buka"), buka.Header{ComicID: 42, ChapterID: 7, ComicName: "C"}, []buka.Item{
		{Name: "001.jpg", Data: []byte("from container")},
	})

	report, err := testConverter(Options{}).Run(testCtx(), root, root)
	require.NoError(t, err)

	assert.Equal(t, "user data", readFile(t, filepath.Join(root, "7", "001.jpg")))
	var contents []string
	for _, rel := range listFiles(t, root) {
		contents = append(contents, readFile(t, filepath.Join(root, filepath.FromSlash(rel))))
	}
	assert.ElementsMatch(t, []string{"user data", "from container"}, contents)
	assert.Equal(t, 1, report.Containers)
	assert.Empty(t, report.Skipped)
}

func TestConvertImportedMetadata(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeFile(t, in, "300/30/chaporder.dat", "{}")
	writeContainer(t, filepath.Join(in, "300", "31.buka"), buka.Header{ComicID: 300, ChapterID: 31}, []buka.Item{
		{Name: "001.jpg", Data: []byte("x")},
	})

	md := data.NewChapterMetadata(300, "Imported")
	md.AddChapter(data.ChapterRecord{ID: 30, Index: "1", Kind: data.KindEpisode})
	md.AddChapter(data.ChapterRecord{ID: 31, Title: "Finale", Kind: data.KindEpisode})

	_, err := testConverter(Options{Metadata: []*data.ChapterMetadata{md}}).Run(testCtx(), in, out)
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(out, "Imported", "Finale"))
	assert.DirExists(t, filepath.Join(out, "Imported", "第001话"))
}

func TestConvertDecodeFailure(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeContainer(t, filepath.Join(in, "5.buka"), buka.Header{ComicID: 1, ChapterID: 5, ComicName: "Comic"}, []buka.Item{
		{Name: "001.bup", Data: wrapped("fine")},
		{Name: "002.bup", Data: wrapped("corrupt bytes")},
		{Name: "003.bup", Data: wrapped("also fine")},
	})

	report, err := testConverter(Options{}).Run(testCtx(), in, out)
	assert.ErrorIs(t, err, ErrRunFailed)
	require.NotNil(t, report)
	assert.True(t, report.Failed())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "002.bup", report.Failures[0].Name)
	assert.Equal(t, 2, report.Decoded)

	// the rest of the run still happened
	assert.Equal(t, []string{"Comic-5/001.png", "Comic-5/003.png"}, listFiles(t, out))
}

func TestConvertSkipsCorruptContainer(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeFile(t, in, "bad/junk.buka", "garbage")
	writeContainer(t, filepath.Join(in, "good", "9.buka"), buka.Header{ComicID: 2, ChapterID: 9, ComicName: "Good"}, []buka.Item{
		{Name: "001.jpg", Data: []byte("ok")},
	})

	report, err := testConverter(Options{}).Run(testCtx(), in, out)
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	assert.ErrorIs(t, report.Skipped[0].Err, buka.ErrCorruptContainer)
	assert.FileExists(t, filepath.Join(out, "bad", "junk.buka"))
	assert.FileExists(t, filepath.Join(out, "Good-9", "001.jpg"))
}

func TestConvertViews(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(in, "loose"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "loose", "001.bup.view"), wrapped("one"), 0644))
	writeFile(t, in, "loose/002.jpg.view", "two")

	report, err := testConverter(Options{}).Run(testCtx(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Views)
	assert.Equal(t, []string{"loose/001.png", "loose/002.jpg"}, listFiles(t, out))
}

func TestConvertLockedOutput(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	lock := flock.New(filepath.Join(out, LockName))
	ok, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Unlock()

	_, err = testConverter(Options{}).Run(testCtx(), in, out)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestConvertMissingInput(t *testing.T) {
	_, err := testConverter(Options{}).Run(testCtx(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.Error(t, err)
}

func TestConvertEvents(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeContainer(t, filepath.Join(in, "1.buka"), buka.Header{ComicID: 1, ChapterID: 1, ComicName: "C"}, []buka.Item{
		{Name: "001.bup", Data: wrapped("x")},
	})

	c := testConverter(Options{})
	_, err := c.Run(testCtx(), in, out)
	require.NoError(t, err)

	stages := map[string]bool{}
	for len(c.Events()) > 0 {
		stages[(<-c.Events()).Stage] = true
	}
	for _, stage := range []string{StageCopy, StageExtract, StageDecode, StageClassify, StageRename, StageDone} {
		assert.True(t, stages[stage], stage)
	}
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "output"), DefaultOutput(filepath.Join("data", "download")))
	assert.Equal(t, filepath.Join("data", "output"), DefaultOutput(filepath.Join("data", "download")+string(filepath.Separator)))
}
