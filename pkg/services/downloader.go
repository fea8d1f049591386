package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/output"
	"github.com/kerbaras/mangas-dl/pkg/sources"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

const (
	DefaultParallelism = 4
	MaxParallelism     = 10

	imageAccept = "image/webp,image/png;q=0.9,image/jpeg,*/*;q=0.8"
)

// Options tune a download session.
type Options struct {
	// Parallelism bounds the pages of a chapter fetched at the same time.
	Parallelism int
	// Throttle spaces image requests through the rate limiter.
	Throttle bool
	// Range selects chapters by position; the zero value selects all.
	Range utils.ChaptersRange
	Retry RetryPolicy
	// TempDir is where the session's scratch directory is created. Empty means
	// the system default.
	TempDir   string
	UserAgent string
}

// Result describes a finished session.
type Result struct {
	Path     string
	Chapters []data.IndexedChapter
	Pages    int
}

// Downloader fetches the chapters of one work into a LocalOutput.
type Downloader struct {
	provider     sources.Provider
	client       *http.Client
	limiter      *RateLimiter
	opts         Options
	log          zerolog.Logger
	progressChan chan DownloadProgress
	closeOnce    sync.Once
}

// NewDownloader creates a new Downloader instance. A nil client uses
// http.DefaultClient; a nil limiter disables throttling.
func NewDownloader(provider sources.Provider, client *http.Client, limiter *RateLimiter, opts Options, log zerolog.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.Parallelism > MaxParallelism {
		opts.Parallelism = MaxParallelism
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = utils.DefaultUserAgent
	}
	return &Downloader{
		provider:     provider,
		client:       client,
		limiter:      limiter,
		opts:         opts,
		log:          log.With().Str("module", "downloader").Str("source", provider.Name()).Logger(),
		progressChan: make(chan DownloadProgress, 100),
	}
}

// GetProgressChannel returns the channel for receiving download progress updates
func (d *Downloader) GetProgressChannel() <-chan DownloadProgress {
	return d.progressChan
}

// Close closes the progress channel. Call it once Download has returned.
func (d *Downloader) Close() {
	d.closeOnce.Do(func() {
		close(d.progressChan)
	})
}

// Download fetches the cover and every selected chapter of manga into out, then
// merges with what was already there and finishes the output. chapters is the
// list positions refer to. Whatever the outcome, out is cleaned up and closed
// and the scratch directory removed before Download returns.
func (d *Downloader) Download(ctx context.Context, manga *data.Manga, chapters []*data.Chapter, out output.LocalOutput) (res *Result, err error) {
	if manga == nil {
		return nil, fmt.Errorf("manga cannot be nil")
	}

	log := d.log.With().Str("manga", manga.ID).Logger()
	selected := d.opts.Range.Size(len(chapters))
	counter := newPageCounter(selected)

	tempDir, err := os.MkdirTemp(d.opts.TempDir, "mangas-dl-")
	if err != nil {
		out.Cleanup()
		out.Close()
		return nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}

	defer func() {
		out.Cleanup()
		if cerr := out.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close output")
		}
		if rerr := os.RemoveAll(tempDir); rerr != nil {
			log.Warn().Err(rerr).Str("dir", tempDir).Msg("Failed to remove temporary directory")
		}

		done, total := counter.snapshot()
		switch {
		case err == nil:
			d.sendProgress(DownloadProgress{MangaID: manga.ID, Chapter: selected, Chapters: selected, Done: done, Total: done, Status: StatusComplete})
		case errors.Is(err, context.Canceled):
			log.Info().Msg("Download cancelled")
			d.sendProgress(DownloadProgress{MangaID: manga.ID, Chapters: selected, Done: done, Total: total, Status: StatusCancelled, Error: err})
		default:
			log.Error().Err(err).Msg("Download failed")
			d.sendProgress(DownloadProgress{MangaID: manga.ID, Chapters: selected, Done: done, Total: total, Status: StatusError, Error: err})
		}
	}()

	d.sendProgress(DownloadProgress{MangaID: manga.ID, Chapters: selected, Status: StatusPreparing})
	log.Info().Int("chapters", selected).Str("output", out.RootPath()).Msg("Starting download")

	if err := d.downloadCover(ctx, manga, tempDir, out); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("Failed to download cover, continuing without it")
	}

	res = &Result{Path: out.RootPath()}
	for i, chapter := range chapters {
		if !d.opts.Range.Contains(i) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ic := data.IndexedChapter{Index: i, Chapter: chapter}
		pages, err := d.downloadChapter(ctx, manga.ID, ic, counter, tempDir, out)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("chapter %s: %w", chapter.Name(), err)
		}
		res.Chapters = append(res.Chapters, ic)
		res.Pages += pages
	}

	d.sendProgress(DownloadProgress{MangaID: manga.ID, Chapter: selected, Chapters: selected, Status: StatusFinalizing})
	if err := out.MergeWithExisting(); err != nil {
		return nil, fmt.Errorf("failed to merge with existing output: %w", err)
	}
	if err := out.Finish(); err != nil {
		return nil, fmt.Errorf("failed to finish output: %w", err)
	}

	log.Info().Int("chapters", len(res.Chapters)).Int("pages", res.Pages).Msg("Download complete")
	return res, nil
}

// downloadChapter fetches every page of one chapter with at most Parallelism
// requests in flight, then flushes the chapter.
func (d *Downloader) downloadChapter(ctx context.Context, mangaID string, ic data.IndexedChapter, counter *pageCounter, tempDir string, out output.LocalOutput) (int, error) {
	chapter := ic.Chapter
	log := d.log.With().Str("chapter", chapter.ID).Logger()

	progress := DownloadProgress{
		MangaID:     mangaID,
		ChapterID:   chapter.ID,
		ChapterName: chapter.Name(),
		Chapter:     counter.started() + 1,
		Chapters:    counter.chapters,
		Status:      StatusDownloading,
	}
	progress.Done, progress.Total = counter.snapshot()
	d.sendProgress(progress)

	pages, err := Retry(ctx, d.opts.Retry, log, func(ctx context.Context) ([]data.Page, error) {
		return d.provider.GetPages(ctx, chapter)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get pages: %w", err)
	}
	counter.addChapter(len(pages))
	log.Debug().Int("pages", len(pages)).Msg("Downloading chapter")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Parallelism)
	for n, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := RetryDo(gctx, d.opts.Retry, log, func(ctx context.Context) error {
				return d.downloadPage(ctx, ic, n, page, tempDir, out)
			})
			if err != nil {
				return fmt.Errorf("page %d: %w", n+1, err)
			}

			p := progress
			p.Done, p.Total = counter.step()
			d.sendProgress(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	p := progress
	p.Status = StatusFinalizing
	p.Done, p.Total = counter.snapshot()
	d.sendProgress(p)

	if _, err := out.FlushChapter(chapter); err != nil {
		return 0, fmt.Errorf("failed to flush chapter: %w", err)
	}
	return len(pages), nil
}

func (d *Downloader) downloadPage(ctx context.Context, ic data.IndexedChapter, n int, page data.Page, tempDir string, out output.LocalOutput) error {
	url, err := d.provider.GetPageURL(ctx, page)
	if err != nil {
		return err
	}
	file, err := d.downloadFile(ctx, url, tempDir)
	if err != nil {
		return err
	}
	defer os.Remove(file)
	return out.AddPage(ic, file, n, fileExtension(url, file))
}

func (d *Downloader) downloadCover(ctx context.Context, manga *data.Manga, tempDir string, out output.LocalOutput) error {
	coverURL := manga.BestCoverURL()
	if coverURL == "" {
		return nil
	}
	return RetryDo(ctx, d.opts.Retry, d.log, func(ctx context.Context) error {
		file, err := d.downloadFile(ctx, coverURL, tempDir)
		if err != nil {
			return err
		}
		defer os.Remove(file)
		return out.AddCover(file, fileExtension(coverURL, file))
	})
}

// fileExtension prefers the extension of the link and falls back to the
// image header.
func fileExtension(url, file string) string {
	if ext := utils.ExtensionFromURL(url); ext != "" {
		return ext
	}
	return utils.ImageExtension(file)
}

// downloadFile stores the body of url in a new file of dir. A partially
// written file is removed when the transfer fails.
func (d *Downloader) downloadFile(ctx context.Context, url, dir string) (string, error) {
	if d.opts.Throttle {
		if err := d.limiter.Wait(ctx, d.provider.Name()); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", imageAccept)
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("User-Agent", d.opts.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", utils.RequestError(ctx, err)
	}
	defer resp.Body.Close()

	if err := utils.CheckResponse(resp); err != nil {
		return "", err
	}

	path := filepath.Join(dir, uuid.NewString()+".tmp")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", utils.RequestError(ctx, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// sendProgress sends a progress update (non-blocking)
func (d *Downloader) sendProgress(progress DownloadProgress) {
	select {
	case d.progressChan <- progress:
	default:
		// Channel full, skip this update
	}
}
