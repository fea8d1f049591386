package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kerbaras/mangas-dl/pkg/archive"
	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/manifest"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

const (
	tmpSuffix         = ".tmp"
	chapterNameMaxLen = 32
	chapterArchiveExt = ".cbz"
	coverBaseName     = "cover"
)

// DirOutput writes one archive per chapter into a directory next to the
// manifest. Chapter archives are written under a temporary name and renamed
// once complete.
type DirOutput struct {
	mu       sync.Mutex
	root     string
	index    *manifest.Manifest
	chapters map[string]*archive.Writer
	opts     options
	log      zerolog.Logger
}

// NewDirOutput opens root, loading the manifest of a previous session if there
// is one.
func NewDirOutput(root string, manga *data.Manga, opts ...Option) (*DirOutput, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	o := newOptions(opts)
	index, ok := manifest.Load(filepath.Join(root, manifest.FileName))
	if !ok {
		index = manifest.New()
	}
	index.SetWorkInfo(manga)

	d := &DirOutput{
		root:     root,
		index:    index,
		chapters: make(map[string]*archive.Writer),
		opts:     o,
		log:      o.log.With().Str("module", "output").Str("root", root).Logger(),
	}
	if ok {
		d.log.Debug().Int("chapters", index.ChapterCount()).Msg("Resuming directory output")
	}
	return d, nil
}

func (d *DirOutput) RootPath() string {
	return d.root
}

func (d *DirOutput) MergeWithExisting() error {
	return nil
}

func (d *DirOutput) AddCover(file, ext string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := coverBaseName
	if ext != "" && len(ext) <= 4 {
		name += "." + ext
	}
	if err := copyFile(file, filepath.Join(d.root, name)); err != nil {
		return fmt.Errorf("failed to store cover: %w", err)
	}

	// a previous cover with another extension would be left behind
	prev := filepath.Base(d.index.CoverEntry())
	if prev != name && strings.TrimSuffix(prev, filepath.Ext(prev)) == coverBaseName {
		if err := os.Remove(filepath.Join(d.root, prev)); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.log.Warn().Err(err).Str("file", prev).Msg("Failed to remove previous cover")
		}
	}
	d.index.SetCoverEntry(name)
	return d.flushIndex()
}

func (d *DirOutput) AddPage(chapter data.IndexedChapter, file string, page int, ext string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	fileName := d.chapterFileName(chapter)
	w, ok := d.chapters[chapter.Chapter.ID]
	if !ok {
		var err error
		w, err = archive.Create(filepath.Join(d.root, fileName+tmpSuffix), d.opts.archiveOptions()...)
		if err != nil {
			return fmt.Errorf("failed to create chapter archive: %w", err)
		}
		d.chapters[chapter.Chapter.ID] = w
	}

	name := manifest.PageName(chapter.Chapter.Branch, chapter.Index, page, ext)
	if _, err := w.PutFile(name, file); err != nil {
		return fmt.Errorf("failed to add page %s: %w", name, err)
	}
	d.index.AddChapter(chapter, fileName)
	return nil
}

func (d *DirOutput) FlushChapter(chapter *data.Chapter) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.chapters[chapter.ID]
	if !ok {
		return false, nil
	}
	delete(d.chapters, chapter.ID)
	if err := finishAndRename(w); err != nil {
		return false, err
	}
	return true, d.flushIndex()
}

// Finish completes chapter archives still open, then writes the manifest. A
// chapter whose archive could not be completed is left out of the manifest.
func (d *DirOutput) Finish() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for id, w := range d.chapters {
		if err := finishAndRename(w); err != nil {
			errs = append(errs, err)
			d.index.RemoveChapter(id)
		}
		delete(d.chapters, id)
	}
	if err := d.flushIndex(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *DirOutput) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, w := range d.chapters {
		w.Close()
		if err := os.Remove(w.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.log.Warn().Err(err).Str("file", w.Path()).Msg("Failed to remove temporary chapter archive")
		}
		delete(d.chapters, id)
	}
}

func (d *DirOutput) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, w := range d.chapters {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// chapterFileName reuses the name recorded by an earlier session, otherwise it
// derives a free one from the chapter position and name.
func (d *DirOutput) chapterFileName(chapter data.IndexedChapter) string {
	if name, ok := d.index.ChapterFileName(chapter.Chapter.ID); ok {
		return name
	}
	base := utils.Truncate(strconv.Itoa(chapter.Index)+"_"+utils.FileNameSafe(chapter.Chapter.Name()), chapterNameMaxLen)
	return filepath.Base(utils.NextAvailable(filepath.Join(d.root, base+chapterArchiveExt)))
}

func (d *DirOutput) flushIndex() error {
	if err := d.index.WriteFile(filepath.Join(d.root, manifest.FileName)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func finishAndRename(w *archive.Writer) error {
	err := w.Finish()
	w.Close()
	if err != nil {
		os.Remove(w.Path())
		return err
	}
	final := strings.TrimSuffix(w.Path(), tmpSuffix)
	if err := os.Rename(w.Path(), final); err != nil {
		os.Remove(w.Path())
		return fmt.Errorf("failed to move chapter archive into place: %w", err)
	}
	return nil
}
