package manifest

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangas-dl/pkg/data"
)

func testManga() *data.Manga {
	return &data.Manga{
		ID:            "a1b2",
		Title:         "Test Manga",
		AltTitles:     []string{"Alt One", "Alt Two"},
		URL:           "/manga/a1b2",
		PublicURL:     "https://mangadex.org/title/a1b2",
		Authors:       []string{"Someone"},
		Description:   "A description",
		Rating:        0.8,
		ContentRating: data.ContentRatingSafe,
		State:         data.StateOngoing,
		Source:        "MANGADEX",
		CoverURL:      "https://example.com/cover.jpg",
		Tags:          []data.Tag{{Key: "action", Title: "Action"}},
		Chapters: []*data.Chapter{
			{ID: "c1", Title: "One", Number: 1, Volume: 1, URL: "/chapter/c1", Branch: "en", UploadDate: time.UnixMilli(1_700_000_000_000)},
			{ID: "c2", Title: "Two", Number: 2, Volume: 1, URL: "/chapter/c2", Branch: "en", Scanlator: "Group"},
			{ID: "c3", Title: "Two and a half", Number: 2.5, Volume: 2, URL: "/chapter/c3", Branch: "en"},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	manga := testManga()

	m := New()
	m.SetWorkInfo(manga)
	for i, ch := range manga.Chapters {
		m.AddChapter(data.IndexedChapter{Index: i, Chapter: ch}, "")
	}

	decoded := Parse([]byte(m.String()))
	info, ok := decoded.WorkInfo()
	require.True(t, ok)
	assert.Equal(t, manga, info)
}

func TestParseGarbage(t *testing.T) {
	for _, in := range []string{"", "{", `{"id": 12`, "[]", "null", `{"title": "no id"}`, `{"chapters": "nope"}`} {
		m := Parse([]byte(in))
		info, ok := m.WorkInfo()
		assert.False(t, ok, in)
		assert.Nil(t, info, in)
		assert.Equal(t, 0, m.ChapterCount(), in)
	}
}

func TestParseIgnoresUnknownFields(t *testing.T) {
	m := Parse([]byte(`{"id":"x","title":"T","extra":{"a":1},"chapters":{"c1":{"number":1,"entries":"^00000000_001\\d{3}","file":"1.cbz","future":true}}}`))
	info, ok := m.WorkInfo()
	require.True(t, ok)
	assert.Equal(t, "T", info.Title)
	assert.Equal(t, data.RatingUnknown, info.Rating)

	file, ok := m.ChapterFileName("c1")
	assert.True(t, ok)
	assert.Equal(t, "1.cbz", file)
}

func TestLegacyFields(t *testing.T) {
	m := Parse([]byte(`{"id":"x","title":"T","title_alt":"Alt","author":"Someone","nsfw":true,"chapters":{}}`))
	info, ok := m.WorkInfo()
	require.True(t, ok)
	assert.Equal(t, []string{"Alt"}, info.AltTitles)
	assert.Equal(t, []string{"Someone"}, info.Authors)
	assert.Equal(t, data.ContentRatingAdult, info.ContentRating)
}

func TestAddChapterFirstWriteWins(t *testing.T) {
	m := New()
	ch := &data.Chapter{ID: "c1", Number: 1}

	assert.True(t, m.AddChapter(data.IndexedChapter{Index: 0, Chapter: ch}, "first.cbz"))
	assert.False(t, m.AddChapter(data.IndexedChapter{Index: 5, Chapter: ch}, "second.cbz"))

	file, ok := m.ChapterFileName("c1")
	assert.True(t, ok)
	assert.Equal(t, "first.cbz", file)

	re, err := m.ChapterEntries("c1")
	require.NoError(t, err)
	assert.True(t, re.MatchString("00000000_001000.png"))
	assert.False(t, re.MatchString("00000000_006000.png"))
}

func TestAddChapterNullFile(t *testing.T) {
	m := New()
	m.AddChapter(data.IndexedChapter{Index: 0, Chapter: &data.Chapter{ID: "c1"}}, "")

	_, ok := m.ChapterFileName("c1")
	assert.False(t, ok)

	var raw struct {
		Chapters map[string]map[string]any `json:"chapters"`
	}
	require.NoError(t, json.Unmarshal([]byte(m.String()), &raw))
	v, present := raw.Chapters["c1"]["file"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestRemoveChapter(t *testing.T) {
	m := New()
	m.AddChapter(data.IndexedChapter{Index: 0, Chapter: &data.Chapter{ID: "c1"}}, "a.cbz")

	assert.True(t, m.RemoveChapter("c1"))
	assert.False(t, m.RemoveChapter("c1"))
	assert.False(t, m.HasChapter("c1"))

	_, err := m.ChapterEntries("c1")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestChapterEntriesMatchPageNames(t *testing.T) {
	m := New()
	ch := &data.Chapter{ID: "c1", Branch: "English"}
	m.AddChapter(data.IndexedChapter{Index: 11, Chapter: ch}, "")

	re, err := m.ChapterEntries("c1")
	require.NoError(t, err)
	for page := 0; page < 3; page++ {
		assert.True(t, re.MatchString(PageName("English", 11, page, "jpg")))
	}
	assert.False(t, re.MatchString(PageName("English", 10, 0, "jpg")))
	assert.False(t, re.MatchString(PageName("Spanish", 11, 0, "jpg")))
}

func TestSetWorkInfoKeepsChapters(t *testing.T) {
	m := New()
	m.AddChapter(data.IndexedChapter{Index: 0, Chapter: &data.Chapter{ID: "c1"}}, "a.cbz")

	manga := testManga()
	m.SetWorkInfo(manga)
	manga.Title = "Renamed"
	m.SetWorkInfo(manga)

	info, ok := m.WorkInfo()
	require.True(t, ok)
	assert.Equal(t, "Renamed", info.Title)
	assert.Len(t, info.Chapters, 1)
}

func TestSetFromAndMerge(t *testing.T) {
	prior := New()
	prior.SetWorkInfo(testManga())
	prior.SetCoverEntry("cover.jpg")
	prior.AddChapter(data.IndexedChapter{Index: 0, Chapter: &data.Chapter{ID: "c1", Number: 1}}, "0_One.cbz")
	prior.AddChapter(data.IndexedChapter{Index: 1, Chapter: &data.Chapter{ID: "c2", Number: 2}}, "1_Two.cbz")

	m := New()
	m.SetFrom(prior)
	assert.Equal(t, "cover.jpg", m.CoverEntry())
	assert.Equal(t, 2, m.ChapterCount())

	// SetFrom copies, later changes to the source do not leak
	prior.RemoveChapter("c1")
	assert.True(t, m.HasChapter("c1"))

	current := New()
	current.AddChapter(data.IndexedChapter{Index: 4, Chapter: &data.Chapter{ID: "c2", Number: 2}}, "")
	added := current.MergeChapters(m)
	assert.Equal(t, 1, added)

	_, ok := current.ChapterFileName("c2")
	assert.False(t, ok, "existing record must not be replaced")
	file, ok := current.ChapterFileName("c1")
	assert.True(t, ok)
	assert.Equal(t, "0_One.cbz", file)
}

func TestWorkInfoOrdersChaptersByNumber(t *testing.T) {
	m := New()
	m.SetWorkInfo(&data.Manga{ID: "x", Title: "T"})
	m.AddChapter(data.IndexedChapter{Index: 0, Chapter: &data.Chapter{ID: "b", Number: 3}}, "")
	m.AddChapter(data.IndexedChapter{Index: 1, Chapter: &data.Chapter{ID: "z", Number: 1}}, "")
	m.AddChapter(data.IndexedChapter{Index: 2, Chapter: &data.Chapter{ID: "a", Number: 1}}, "")

	info, ok := m.WorkInfo()
	require.True(t, ok)
	var ids []string
	for _, ch := range info.Chapters {
		ids = append(ids, ch.ID)
	}
	assert.Equal(t, []string{"z", "a", "b"}, ids)
}

func TestWriteFileAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	_, ok := Load(path)
	assert.False(t, ok)

	m := New()
	m.SetWorkInfo(testManga())
	require.NoError(t, m.WriteFile(path))

	loaded, ok := Load(path)
	require.True(t, ok)
	info, ok := loaded.WorkInfo()
	require.True(t, ok)
	assert.Equal(t, "Test Manga", info.Title)
	assert.True(t, strings.Contains(loaded.String(), `    "app_id": "mangas-dl"`))
}

func TestBranchHash(t *testing.T) {
	assert.Equal(t, int32(0), BranchHash(""))
	assert.Equal(t, int32(3241), BranchHash("en"))
	assert.Equal(t, int32(99162322), BranchHash("hello"))
	assert.Equal(t, "00003241_012003.png", PageName("en", 11, 3, "png"))
	assert.Equal(t, "00000000_000000", CoverName(""))
	assert.Equal(t, "00000000_000000.jpeg", CoverName("jpeg"))
	assert.Equal(t, "00000000_001000", PageName("", 0, 0, "toolong"))
}
