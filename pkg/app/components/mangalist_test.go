package components

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kerbaras/mangas-dl/pkg/data"
)

func TestNewMangaList(t *testing.T) {
	list := NewMangaList()

	assert.NotNil(t, list)
	assert.Empty(t, list.Items)
	assert.Contains(t, list.View(), "No manga in library")
}

func TestMangaListView(t *testing.T) {
	list := NewMangaList()
	list.SetItems([]MangaListItem{
		{
			Entry: &data.LibraryEntry{
				ID:         "1",
				Title:      "One Piece",
				Source:     "MANGADEX",
				Format:     "dir",
				OutputPath: "/library/One_Piece",
				UpdatedAt:  time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
			},
			ChapterCount:    12,
			DownloadedCount: 10,
		},
		{
			Entry:           &data.LibraryEntry{ID: "2", Title: "Naruto", Source: "MANGADEX", Format: "cbz"},
			ChapterCount:    3,
			DownloadedCount: 3,
		},
	})

	view := list.View()
	assert.Contains(t, view, "Title")
	assert.Contains(t, view, "One Piece")
	assert.Contains(t, view, "10/12")
	assert.Contains(t, view, "2024-05-01 10:30")
	assert.Contains(t, view, "Naruto")
	assert.Contains(t, view, "3/3")
}

func TestSearchResults(t *testing.T) {
	assert.Contains(t, SearchResults(nil), "No results")

	view := SearchResults([]*data.Manga{
		{Title: "Naruto", Authors: []string{"Kishimoto Masashi"}, State: data.StateFinished, PublicURL: "https://mangadex.org/title/abc"},
		{Title: "Boruto", URL: "/manga/def"},
	})
	assert.Contains(t, view, "Naruto")
	assert.Contains(t, view, "Kishimoto Masashi")
	assert.Contains(t, view, "finished")
	assert.Contains(t, view, "https://mangadex.org/title/abc")
	assert.Contains(t, view, "/manga/def")
}

func TestMangaListShowsEveryRow(t *testing.T) {
	var items []MangaListItem
	for i := 1; i <= 5; i++ {
		items = append(items, MangaListItem{
			Entry:           &data.LibraryEntry{ID: fmt.Sprint(i), Title: fmt.Sprintf("Manga %d", i), Source: "MANGADEX"},
			ChapterCount:    i,
			DownloadedCount: i,
		})
	}
	list := NewMangaList()
	list.SetItems(items)

	view := list.View()
	for i := 1; i <= 5; i++ {
		assert.Contains(t, view, fmt.Sprintf("Manga %d", i))
		assert.Contains(t, view, fmt.Sprintf("%d/%d", i, i))
	}
}

func TestChapterList(t *testing.T) {
	assert.Contains(t, ChapterList(nil), "No chapters recorded")

	view := ChapterList([]*data.LibraryChapter{
		{ID: "a", Number: 1, Volume: 1, Name: "Romance Dawn", Branch: "en", Downloaded: true},
		{ID: "b", Number: 1.5, Name: "Extra", Branch: "en"},
	})
	assert.Contains(t, view, "Romance Dawn")
	assert.Contains(t, view, "1.5")
	assert.Contains(t, view, "downloaded")
	assert.Contains(t, view, "missing")
}
