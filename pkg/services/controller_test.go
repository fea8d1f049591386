package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/output"
	"github.com/kerbaras/mangas-dl/pkg/sources"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

type mockLibrary struct {
	mu       sync.Mutex
	mangas   []*data.LibraryEntry
	chapters []*data.LibraryChapter
	updated  []string
	deleted  []string
	saveErr  error
}

func (m *mockLibrary) SaveManga(entry *data.LibraryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mangas = append(m.mangas, entry)
	return nil
}

func (m *mockLibrary) SaveChapter(chapter *data.LibraryChapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chapters = append(m.chapters, chapter)
	return nil
}

func (m *mockLibrary) GetChapters(mangaID string) ([]*data.LibraryChapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.LibraryChapter
	for _, ch := range m.chapters {
		if ch.MangaID == mangaID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *mockLibrary) UpdateChapterStatus(mangaID, chapterID string, downloaded bool, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.chapters {
		if ch.MangaID == mangaID && ch.ID == chapterID {
			ch.Downloaded = downloaded
			ch.FilePath = filePath
		}
	}
	m.updated = append(m.updated, chapterID)
	return nil
}

func (m *mockLibrary) ListMangas() ([]*data.LibraryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mangas, nil
}

func (m *mockLibrary) DeleteManga(mangaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, mangaID)
	return nil
}

func TestNewMangaController(t *testing.T) {
	provider := &mockProvider{}
	c := NewMangaController(ControllerConfig{Providers: []sources.Provider{provider}, Logger: zerolog.Nop()})

	assert.NotNil(t, c)
	assert.Len(t, c.Providers(), 1)
	assert.NotNil(t, c.client)
	assert.NotNil(t, c.limiter)

	entries, err := c.Library()
	assert.NoError(t, err)
	assert.Nil(t, entries)
}

func TestControllerResolve(t *testing.T) {
	manga := testManga(2)
	empty := &data.Manga{ID: "empty", Title: "Empty"}

	provider := &mockProvider{
		name: "MOCK",
		resolveFunc: func(_ context.Context, link string) (*data.Manga, error) {
			switch link {
			case "mock://full":
				return manga, nil
			case "mock://empty":
				return empty, nil
			case "mock://gone":
				return nil, data.ErrNotFound
			}
			return nil, data.ErrUnsupported
		},
	}
	c := NewMangaController(ControllerConfig{Providers: []sources.Provider{provider}, Logger: zerolog.Nop()})
	ctx := context.Background()

	t.Run("resolved", func(t *testing.T) {
		p, m, err := c.Resolve(ctx, "mock://full")
		require.NoError(t, err)
		assert.Equal(t, "MOCK", p.Name())
		assert.Same(t, manga, m)
	})

	t.Run("no chapters", func(t *testing.T) {
		_, _, err := c.Resolve(ctx, "mock://empty")
		assert.ErrorIs(t, err, data.ErrNotFound)
	})

	t.Run("not found", func(t *testing.T) {
		_, _, err := c.Resolve(ctx, "mock://gone")
		assert.ErrorIs(t, err, data.ErrNotFound)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, _, err := c.Resolve(ctx, "https://example.com/manga")
		assert.ErrorIs(t, err, data.ErrUnsupported)
	})
}

func TestControllerSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("no searchable source", func(t *testing.T) {
		c := NewMangaController(ControllerConfig{Providers: []sources.Provider{&mockProvider{}}})
		_, err := c.Search(ctx, "naruto")
		assert.ErrorIs(t, err, data.ErrUnsupported)
	})

	t.Run("results from every searcher", func(t *testing.T) {
		a := &mockSearcher{searchFunc: func(_ context.Context, q string) ([]*data.Manga, error) {
			return []*data.Manga{{ID: "a", Title: q}}, nil
		}}
		b := &mockSearcher{searchFunc: func(context.Context, string) ([]*data.Manga, error) {
			return nil, data.Transient(errors.New("timeout"))
		}}
		c := NewMangaController(ControllerConfig{Providers: []sources.Provider{a, &mockProvider{}, b}})

		results, err := c.Search(ctx, "naruto")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "naruto", results[0].Title)
	})

	t.Run("every searcher failed", func(t *testing.T) {
		s := &mockSearcher{searchFunc: func(context.Context, string) ([]*data.Manga, error) {
			return nil, data.Transient(errors.New("timeout"))
		}}
		c := NewMangaController(ControllerConfig{Providers: []sources.Provider{s}})

		_, err := c.Search(ctx, "naruto")
		assert.True(t, data.IsTransient(err))
	})
}

func TestControllerDownload(t *testing.T) {
	server := newImageServer(t)
	manga := testManga(2)
	manga.PublicURL = "https://example.com/manga-test"
	library := &mockLibrary{}

	c := NewMangaController(ControllerConfig{
		Providers: []sources.Provider{pagesProvider(server.URL, 2)},
		Library:   library,
		Client:    server.Client(),
		Logger:    zerolog.Nop(),
	})

	dest := t.TempDir()
	var (
		mu      sync.Mutex
		updates []DownloadProgress
	)
	res, err := c.Download(context.Background(), DownloadRequest{
		Provider:    c.Providers()[0],
		Manga:       manga,
		Destination: dest,
		Options:     Options{Retry: fastRetry()},
	}, func(p DownloadProgress) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	})
	require.NoError(t, err)

	// two chapters go into a single archive named after the title
	assert.Equal(t, filepath.Join(dest, "Test_Manga.cbz"), res.Path)
	assert.FileExists(t, res.Path)

	require.NotEmpty(t, updates)
	assert.Equal(t, StatusPreparing, updates[0].Status)
	assert.Equal(t, StatusComplete, updates[len(updates)-1].Status)

	require.Len(t, library.mangas, 1)
	entry := library.mangas[0]
	assert.Equal(t, "manga-test", entry.ID)
	assert.Equal(t, "MOCK", entry.Source)
	assert.Equal(t, "https://example.com/manga-test", entry.URL)
	assert.Equal(t, "cbz", entry.Format)
	assert.Equal(t, res.Path, entry.OutputPath)
	require.Len(t, library.chapters, 2)
	assert.True(t, library.chapters[0].Downloaded)
	assert.Equal(t, "ch1", library.chapters[0].ID)
}

func TestControllerDownloadRecordsMissingChapters(t *testing.T) {
	server := newImageServer(t)
	manga := testManga(4)
	library := &mockLibrary{}
	c := NewMangaController(ControllerConfig{Library: library, Client: server.Client(), Logger: zerolog.Nop()})

	download := func(rng string) *Result {
		t.Helper()
		r, err := utils.ParseChaptersRange(rng)
		require.NoError(t, err)
		res, err := c.Download(context.Background(), DownloadRequest{
			Provider:    pagesProvider(server.URL, 1),
			Manga:       manga,
			Destination: filepath.Join(t.TempDir(), "out"),
			Format:      output.FormatDir,
			Options:     Options{Range: r, Retry: fastRetry()},
		}, nil)
		require.NoError(t, err)
		return res
	}

	download("1-2")
	require.Len(t, library.chapters, 4)
	for _, ch := range library.chapters {
		assert.Equal(t, ch.ID == "ch1" || ch.ID == "ch2", ch.Downloaded, ch.ID)
	}
	assert.Empty(t, library.updated)

	res := download("3")
	assert.Len(t, library.chapters, 4)
	assert.Equal(t, []string{"ch3"}, library.updated)
	for _, ch := range library.chapters {
		if ch.ID == "ch3" {
			assert.True(t, ch.Downloaded)
			assert.Equal(t, res.Path, ch.FilePath)
		}
	}
}

func TestControllerForget(t *testing.T) {
	library := &mockLibrary{}
	c := NewMangaController(ControllerConfig{Library: library, Logger: zerolog.Nop()})
	require.NoError(t, c.Forget("manga-test"))
	assert.Equal(t, []string{"manga-test"}, library.deleted)

	disabled := NewMangaController(ControllerConfig{Logger: zerolog.Nop()})
	assert.ErrorIs(t, disabled.Forget("manga-test"), data.ErrNotFound)
}

func TestControllerDownloadBranch(t *testing.T) {
	server := newImageServer(t)
	manga := testManga(2)
	manga.Chapters = append(manga.Chapters, &data.Chapter{ID: "es1", Number: 1, Branch: "es"})

	c := NewMangaController(ControllerConfig{Client: server.Client(), Logger: zerolog.Nop()})
	chapters, ok := data.SelectBranch(manga.Chapters, "es", "")
	require.True(t, ok)

	dest := filepath.Join(t.TempDir(), "spanish")
	res, err := c.Download(context.Background(), DownloadRequest{
		Provider:    pagesProvider(server.URL, 1),
		Manga:       manga,
		Chapters:    chapters,
		Destination: dest,
		Format:      output.FormatDir,
		Options:     Options{Retry: fastRetry()},
	}, nil)
	require.NoError(t, err)

	require.Len(t, res.Chapters, 1)
	assert.Equal(t, "es1", res.Chapters[0].Chapter.ID)
	assert.Equal(t, 0, res.Chapters[0].Index)
	assert.FileExists(t, filepath.Join(dest, "0_Chapter_1.cbz"))
}

func TestControllerDownloadLibraryFailure(t *testing.T) {
	server := newImageServer(t)
	manga := testManga(1)
	library := &mockLibrary{saveErr: errors.New("database is locked")}

	c := NewMangaController(ControllerConfig{Library: library, Client: server.Client(), Logger: zerolog.Nop()})
	res, err := c.Download(context.Background(), DownloadRequest{
		Provider:    pagesProvider(server.URL, 1),
		Manga:       manga,
		Destination: filepath.Join(t.TempDir(), "out.zip"),
		Options:     Options{Retry: fastRetry()},
	}, nil)
	require.NoError(t, err)
	assert.FileExists(t, res.Path)
	assert.Empty(t, library.chapters)
}

func TestControllerDownloadInvalidDestination(t *testing.T) {
	c := NewMangaController(ControllerConfig{Logger: zerolog.Nop()})
	_, err := c.Download(context.Background(), DownloadRequest{
		Provider:    &mockProvider{},
		Manga:       testManga(1),
		Destination: filepath.Join(t.TempDir(), "out.rar"),
	}, nil)
	assert.ErrorIs(t, err, data.ErrInvalidArgument)

	_, err = c.Download(context.Background(), DownloadRequest{
		Provider: &mockProvider{},
		Manga:    &data.Manga{ID: "empty"},
	}, nil)
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestFormatOf(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "dir", formatOf(dir))
	assert.Equal(t, "cbz", formatOf(filepath.Join(dir, "a.CBZ")))
	assert.Equal(t, "zip", formatOf(filepath.Join(dir, "a.zip")))
}
