package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"

	"github.com/kerbaras/mangas-dl/pkg/archive"
	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/manifest"
)

// ArchiveOutput writes the whole work into one archive. The archive is built
// next to the target and replaces it on Finish.
type ArchiveOutput struct {
	mu    sync.Mutex
	root  string
	out   *archive.Writer
	index *manifest.Manifest
	log   zerolog.Logger
}

func NewArchiveOutput(root string, manga *data.Manga, opts ...Option) (*ArchiveOutput, error) {
	o := newOptions(opts)
	w, err := archive.Create(root+tmpSuffix, o.archiveOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	index := manifest.New()
	index.SetWorkInfo(manga)
	return &ArchiveOutput{
		root:  root,
		out:   w,
		index: index,
		log:   o.log.With().Str("module", "output").Str("root", root).Logger(),
	}, nil
}

func (a *ArchiveOutput) RootPath() string {
	return a.root
}

// MergeWithExisting copies every page of an archive already at the target into
// the new one and adopts the chapter records of its manifest. Pages written in
// this session win over old ones with the same name, and a cover stored in this
// session replaces the old cover whatever its extension.
func (a *ArchiveOutput) MergeWithExisting() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := os.Stat(a.root); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	r, err := zip.OpenReader(a.root)
	if err != nil {
		return fmt.Errorf("failed to open existing archive %s: %w", a.root, err)
	}
	defer r.Close()

	var prior *manifest.Manifest
	for _, f := range r.File {
		if f.Name != manifest.FileName {
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			a.log.Warn().Err(err).Msg("Existing manifest is unreadable, ignoring it")
			break
		}
		prior = manifest.Parse(b)
		break
	}

	newCover := a.index.CoverEntry() != ""
	copied := 0
	for _, f := range r.File {
		if f.Name == manifest.FileName {
			continue
		}
		if newCover && (isCoverEntry(f.Name) || (prior != nil && f.Name == prior.CoverEntry())) {
			continue
		}
		ok, err := a.out.CopyEntry(f)
		if err != nil {
			return fmt.Errorf("failed to copy %s from existing archive: %w", f.Name, err)
		}
		if ok {
			copied++
		}
	}

	if prior != nil {
		merged := a.index.MergeChapters(prior)
		if !newCover {
			a.index.SetCoverEntry(prior.CoverEntry())
		}
		a.log.Debug().Int("entries", copied).Int("chapters", merged).Msg("Merged existing archive")
	}
	return nil
}

func (a *ArchiveOutput) AddCover(file, ext string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := manifest.CoverName(ext)
	if _, err := a.out.PutFile(name, file); err != nil {
		return fmt.Errorf("failed to store cover: %w", err)
	}
	a.index.SetCoverEntry(name)
	return nil
}

func (a *ArchiveOutput) AddPage(chapter data.IndexedChapter, file string, page int, ext string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := manifest.PageName(chapter.Chapter.Branch, chapter.Index, page, ext)
	if _, err := a.out.PutFile(name, file); err != nil {
		return fmt.Errorf("failed to add page %s: %w", name, err)
	}
	a.index.AddChapter(chapter, "")
	return nil
}

func (a *ArchiveOutput) FlushChapter(*data.Chapter) (bool, error) {
	return false, nil
}

func (a *ArchiveOutput) Finish() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, err := a.index.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if _, err := a.out.PutBytes(manifest.FileName, b); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := a.out.Finish(); err != nil {
		return err
	}
	// rename replaces a previous archive in one step
	if err := os.Rename(a.out.Path(), a.root); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

func (a *ArchiveOutput) Cleanup() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.out.Close()
	if err := os.Remove(a.out.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.Warn().Err(err).Str("file", a.out.Path()).Msg("Failed to remove temporary archive")
	}
}

func (a *ArchiveOutput) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.Close()
}

// isCoverEntry matches the cover name with any extension.
func isCoverEntry(name string) bool {
	return strings.TrimSuffix(name, path.Ext(name)) == manifest.CoverName("")
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
