package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindVolume, ParseKind("0"))
	assert.Equal(t, KindEpisode, ParseKind(" 1 "))
	assert.Equal(t, KindExtra, ParseKind("2"))
	assert.Equal(t, KindUnknown, ParseKind("9"))
	assert.Equal(t, KindUnknown, ParseKind(""))
	assert.Equal(t, "episode", KindEpisode.String())
}

func TestLabel(t *testing.T) {
	md := NewChapterMetadata(1, "FooComic")
	md.AddChapter(ChapterRecord{ID: 1, Index: "3", Kind: KindVolume})
	md.AddChapter(ChapterRecord{ID: 2, Index: "7", Kind: KindEpisode})
	md.AddChapter(ChapterRecord{ID: 3, Index: "1", Kind: KindExtra})
	md.AddChapter(ChapterRecord{ID: 4, Index: "5", Kind: KindUnknown})
	md.AddChapter(ChapterRecord{ID: 5, Index: "5", Title: "Episode 001", Kind: KindEpisode})
	md.AddChapter(ChapterRecord{ID: 6, Index: "1234", Kind: KindEpisode})

	tests := []struct {
		id   uint32
		want string
	}{
		{1, "卷03"},
		{2, "第007话"},
		{3, "番外01"},
		{4, "005"},
		{5, "Episode 001"},
		{6, "第1234话"},
		{99, "99"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, md.Label(tt.id), "chapter %d", tt.id)
	}

	var nilMD *ChapterMetadata
	assert.Equal(t, "42", nilMD.Label(42))
}

func TestZfill(t *testing.T) {
	assert.Equal(t, "007", zfill("7", 3))
	assert.Equal(t, "007", zfill("007", 3))
	assert.Equal(t, "-07", zfill("-7", 3))
	assert.Equal(t, "000", zfill("", 3))
	assert.Equal(t, "12345", zfill("12345", 3))
}

func TestMerge(t *testing.T) {
	a := NewChapterMetadata(10, "Old")
	a.Logo = "logo-a"
	a.AddChapter(ChapterRecord{ID: 1, Index: "1", Kind: KindEpisode})
	a.AddChapter(ChapterRecord{ID: 2, Index: "2", Kind: KindEpisode})

	b := NewChapterMetadata(10, "")
	b.AddChapter(ChapterRecord{ID: 2, Index: "2", Title: "Two", Kind: KindEpisode})
	b.AddChapter(ChapterRecord{ID: 3, Index: "1", Kind: KindExtra})

	a.Merge(b)

	assert.Equal(t, "Old", a.ComicName, "empty name must not overwrite")
	assert.Equal(t, "logo-a", a.Logo)
	require.Len(t, a.Chapters, 3)
	assert.Equal(t, "Two", a.Label(2))
	assert.Equal(t, "番外01", a.Label(3))

	var ids []uint32
	for _, rec := range a.Ordered() {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []uint32{1, 2, 3}, ids)

	c := NewChapterMetadata(10, "New")
	a.Merge(c)
	assert.Equal(t, "New", a.ComicName)
}

func TestMergeAdoptsComicID(t *testing.T) {
	orphan := NewChapterMetadata(0, "Orphan")
	orphan.Merge(NewChapterMetadata(55, ""))
	assert.Equal(t, uint32(55), orphan.ComicID)

	owned := NewChapterMetadata(1, "")
	owned.Merge(NewChapterMetadata(2, ""))
	assert.Equal(t, uint32(1), owned.ComicID)
}

func TestOrderedIncludesDirectInserts(t *testing.T) {
	md := NewChapterMetadata(1, "x")
	md.AddChapter(ChapterRecord{ID: 9})
	md.Chapters[3] = ChapterRecord{ID: 3}
	md.Chapters[1] = ChapterRecord{ID: 1}

	var ids []uint32
	for _, rec := range md.Ordered() {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []uint32{9, 1, 3}, ids)
}

func TestClone(t *testing.T) {
	md := NewChapterMetadata(1, "x")
	md.AddChapter(ChapterRecord{ID: 1, Index: "1"})

	c := md.Clone()
	c.AddChapter(ChapterRecord{ID: 2})
	c.ComicName = "y"

	assert.Len(t, md.Chapters, 1)
	assert.Equal(t, "x", md.ComicName)
	assert.Equal(t, md.ComicID, c.ComicID)
}
