package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/output"
	"github.com/kerbaras/mangas-dl/pkg/sources"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

// Library records finished downloads.
type Library interface {
	SaveManga(entry *data.LibraryEntry) error
	SaveChapter(chapter *data.LibraryChapter) error
	GetChapters(mangaID string) ([]*data.LibraryChapter, error)
	UpdateChapterStatus(mangaID, chapterID string, downloaded bool, filePath string) error
	ListMangas() ([]*data.LibraryEntry, error)
	DeleteManga(mangaID string) error
}

type ControllerConfig struct {
	Providers []sources.Provider
	// Library may be nil, downloads are then not recorded.
	Library Library
	Client  *http.Client
	Limiter *RateLimiter
	Logger  zerolog.Logger
}

// MangaController wires providers, the downloader and the library together
// for one session.
type MangaController struct {
	providers []sources.Provider
	library   Library
	client    *http.Client
	limiter   *RateLimiter
	log       zerolog.Logger
}

func NewMangaController(config ControllerConfig) *MangaController {
	client := config.Client
	if client == nil {
		client = http.DefaultClient
	}
	limiter := config.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(DefaultThrottleInterval)
	}
	return &MangaController{
		providers: config.Providers,
		library:   config.Library,
		client:    client,
		limiter:   limiter,
		log:       config.Logger.With().Str("module", "controller").Logger(),
	}
}

func (c *MangaController) Providers() []sources.Provider {
	return c.providers
}

// Resolve finds the provider for link and fetches the work. A work without
// chapters is reported as data.ErrNotFound.
func (c *MangaController) Resolve(ctx context.Context, link string) (sources.Provider, *data.Manga, error) {
	provider, manga, err := sources.Resolve(ctx, c.providers, link)
	if err != nil {
		return provider, nil, err
	}
	if manga == nil {
		return provider, nil, fmt.Errorf("manga %w", data.ErrNotFound)
	}
	if len(manga.Chapters) == 0 {
		return provider, manga, fmt.Errorf("manga contains no chapters: %w", data.ErrNotFound)
	}
	c.log.Debug().Str("source", provider.Name()).Str("manga", manga.ID).Int("chapters", len(manga.Chapters)).Msg("Resolved link")
	return provider, manga, nil
}

// Search queries every provider that supports searching.
func (c *MangaController) Search(ctx context.Context, query string) ([]*data.Manga, error) {
	var (
		out      []*data.Manga
		errs     []error
		searched bool
	)
	for _, p := range c.providers {
		s, ok := p.(sources.Searcher)
		if !ok {
			continue
		}
		searched = true
		results, err := s.Search(ctx, query)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Title(), err))
			continue
		}
		out = append(out, results...)
	}
	if !searched {
		return nil, fmt.Errorf("no source supports searching: %w", data.ErrUnsupported)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Library lists the recorded downloads.
func (c *MangaController) Library() ([]*data.LibraryEntry, error) {
	if c.library == nil {
		return nil, nil
	}
	return c.library.ListMangas()
}

// LibraryChapters lists the recorded chapters of one manga.
func (c *MangaController) LibraryChapters(mangaID string) ([]*data.LibraryChapter, error) {
	if c.library == nil {
		return nil, nil
	}
	return c.library.GetChapters(mangaID)
}

// Forget removes a manga and its chapters from the library. Downloaded files
// are left alone.
func (c *MangaController) Forget(mangaID string) error {
	if c.library == nil {
		return fmt.Errorf("library is disabled: %w", data.ErrNotFound)
	}
	return c.library.DeleteManga(mangaID)
}

type DownloadRequest struct {
	Provider sources.Provider
	Manga    *data.Manga
	// Chapters are the chapters positions refer to, typically one branch.
	// Nil means every chapter of Manga.
	Chapters []*data.Chapter
	// Destination is a file or directory; empty means the working directory.
	Destination   string
	Format        output.Format
	Options       Options
	OutputOptions []output.Option
}

// Download runs one session. onProgress, when set, is called from a separate
// goroutine for every progress update and never after Download returns.
func (c *MangaController) Download(ctx context.Context, req DownloadRequest, onProgress func(DownloadProgress)) (*Result, error) {
	chapters := req.Chapters
	if chapters == nil {
		chapters = req.Manga.Chapters
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("nothing to download: %w", data.ErrNotFound)
	}
	work := *req.Manga
	work.Chapters = chapters

	dest := req.Destination
	if dest == "" {
		dest = "."
	}
	dest, err := filepath.Abs(utils.ExpandHome(dest))
	if err != nil {
		return nil, err
	}

	opts := append([]output.Option{output.WithLogger(c.log)}, req.OutputOptions...)
	out, err := output.Create(dest, &work, req.Format, opts...)
	if err != nil {
		return nil, err
	}

	d := NewDownloader(req.Provider, c.client, c.limiter, req.Options, c.log)
	var wg sync.WaitGroup
	if onProgress != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range d.GetProgressChannel() {
				onProgress(p)
			}
		}()
	}

	res, err := d.Download(ctx, &work, chapters, out)
	d.Close()
	wg.Wait()
	if err != nil {
		return nil, err
	}

	c.record(req.Provider, &work, res)
	return res, nil
}

// record stores the session in the library. Failures are only logged.
func (c *MangaController) record(provider sources.Provider, manga *data.Manga, res *Result) {
	if c.library == nil {
		return
	}

	entry := &data.LibraryEntry{
		ID:         manga.ID,
		Source:     provider.Name(),
		Title:      manga.Title,
		URL:        manga.PublicURL,
		CoverURL:   manga.BestCoverURL(),
		OutputPath: res.Path,
		Format:     formatOf(res.Path),
	}
	if entry.URL == "" {
		entry.URL = manga.URL
	}
	if err := c.library.SaveManga(entry); err != nil {
		c.log.Warn().Err(err).Msg("Failed to record manga in library")
		return
	}

	known := make(map[string]bool)
	if prior, err := c.library.GetChapters(manga.ID); err != nil {
		c.log.Warn().Err(err).Msg("Failed to read library chapters")
	} else {
		for _, ch := range prior {
			known[ch.ID] = true
		}
	}

	downloaded := make(map[string]bool, len(res.Chapters))
	for _, ic := range res.Chapters {
		downloaded[ic.Chapter.ID] = true
	}

	// every chapter of the work is listed so the library can tell what is missing
	for _, ch := range manga.Chapters {
		var err error
		switch {
		case known[ch.ID] && downloaded[ch.ID]:
			err = c.library.UpdateChapterStatus(manga.ID, ch.ID, true, res.Path)
		case known[ch.ID]:
			continue
		default:
			chapter := &data.LibraryChapter{
				ID:      ch.ID,
				MangaID: manga.ID,
				Number:  ch.Number,
				Volume:  ch.Volume,
				Name:    ch.Name(),
				Branch:  ch.Branch,
			}
			if downloaded[ch.ID] {
				chapter.Downloaded = true
				chapter.FilePath = res.Path
			}
			err = c.library.SaveChapter(chapter)
		}
		if err != nil {
			c.log.Warn().Err(err).Str("chapter", ch.ID).Msg("Failed to record chapter in library")
		}
	}
}

func formatOf(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return string(output.FormatDir)
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
