package integrations

import (
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"

	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/manifest"
)

// EPubBuilder compiles a finished download, directory or single archive, into
// one EPUB file. Everything it needs is read from the output's manifest.
type EPubBuilder struct {
	log zerolog.Logger
}

func NewEPubBuilder(log zerolog.Logger) *EPubBuilder {
	return &EPubBuilder{log: log.With().Str("module", "epub").Logger()}
}

// Export writes the EPUB for the output at src to dest. An empty dest puts it
// next to src with an .epub extension.
func (p *EPubBuilder) Export(src, dest string) (string, error) {
	out, err := openOutput(src)
	if err != nil {
		return "", err
	}
	defer out.Close()

	manga, ok := out.index.WorkInfo()
	if !ok {
		return "", fmt.Errorf("%s has no usable manifest: %w", src, data.ErrNotFound)
	}
	if dest == "" {
		dest = strings.TrimSuffix(src, filepath.Ext(src)) + ".epub"
		if info, err := os.Stat(src); err == nil && info.IsDir() {
			dest = filepath.Clean(src) + ".epub"
		}
	}

	tempDir, err := os.MkdirTemp("", "mangas-epub-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	e, err := epub.NewEpub(manga.Title)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}
	if len(manga.Authors) > 0 {
		e.SetAuthor(strings.Join(manga.Authors, ", "))
	}
	if manga.Description != "" {
		e.SetDescription(manga.Description)
	}

	if cover := out.index.CoverEntry(); cover != "" {
		if err := p.addCover(e, out, cover, tempDir); err != nil {
			p.log.Warn().Err(err).Msg("Failed to add cover, continuing without it")
		}
	}

	sections := 0
	for _, chapter := range manga.Chapters {
		pages, err := out.chapterPages(chapter.ID)
		if err != nil {
			return "", fmt.Errorf("chapter %s: %w", chapter.Name(), err)
		}
		if len(pages) == 0 {
			p.log.Warn().Str("chapter", chapter.ID).Msg("Chapter has no pages, skipping")
			continue
		}
		if err := p.addChapter(e, chapter, pages, tempDir); err != nil {
			return "", fmt.Errorf("failed to add chapter %s: %w", chapter.Name(), err)
		}
		sections++
	}
	if sections == 0 {
		return "", fmt.Errorf("no chapters to compile: %w", data.ErrNotFound)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := e.Write(dest); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}

	p.log.Info().Str("file", dest).Int("chapters", sections).Msg("EPub written")
	return dest, nil
}

func (p *EPubBuilder) addCover(e *epub.Epub, out *outputReader, name, tempDir string) error {
	path, err := out.extract(name, tempDir)
	if err != nil {
		return err
	}
	internalPath, err := e.AddImage(path, "cover"+filepath.Ext(name))
	if err != nil {
		return err
	}
	e.SetCover(internalPath, "")
	return nil
}

// addChapter adds a single chapter's images to the EPub as one section
func (p *EPubBuilder) addChapter(e *epub.Epub, chapter *data.Chapter, pages []*zip.File, tempDir string) error {
	chapterTitle := "Chapter " + data.FormatNumber(chapter.Number)
	if chapter.Number <= 0 {
		chapterTitle = chapter.Name()
	}
	if chapter.Volume > 0 {
		chapterTitle = fmt.Sprintf("Vol. %d, %s", chapter.Volume, chapterTitle)
	}
	if chapter.Title != "" && chapter.Number > 0 {
		chapterTitle = fmt.Sprintf("%s: %s", chapterTitle, chapter.Title)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(chapterTitle))

	for i, page := range pages {
		path, err := extractFile(page, filepath.Join(tempDir, page.Name))
		if err != nil {
			return err
		}
		internalPath, err := e.AddImage(path, page.Name)
		if err != nil {
			return fmt.Errorf("failed to add image %s: %w", page.Name, err)
		}
		fmt.Fprintf(&body,
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>%s`,
			internalPath, i+1, "\n",
		)
	}

	if _, err := e.AddSection(body.String(), chapterTitle, "", ""); err != nil {
		return fmt.Errorf("failed to add section: %w", err)
	}
	return nil
}

// outputReader gives uniform access to the pages of either output layout.
type outputReader struct {
	root  string
	index *manifest.Manifest
	// archive is the single archive of an archive output, nil for directories.
	archive  *zip.ReadCloser
	chapters []*zip.ReadCloser
}

func openOutput(src string) (*outputReader, error) {
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", src, data.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		index, ok := manifest.Load(filepath.Join(src, manifest.FileName))
		if !ok {
			return nil, fmt.Errorf("%s has no manifest: %w", src, data.ErrNotFound)
		}
		return &outputReader{root: src, index: index}, nil
	}

	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	for _, f := range r.File {
		if f.Name != manifest.FileName {
			continue
		}
		b, err := readAll(f)
		if err != nil {
			r.Close()
			return nil, err
		}
		return &outputReader{root: src, index: manifest.Parse(b), archive: r}, nil
	}
	r.Close()
	return nil, fmt.Errorf("%s has no manifest: %w", src, data.ErrNotFound)
}

func (o *outputReader) Close() error {
	var errs []error
	for _, r := range o.chapters {
		errs = append(errs, r.Close())
	}
	if o.archive != nil {
		errs = append(errs, o.archive.Close())
	}
	return errors.Join(errs...)
}

// chapterPages returns the page entries of a chapter in reading order. In a
// directory output they come from the chapter archive, in a single archive
// from the entries matching the chapter's recorded name pattern.
func (o *outputReader) chapterPages(id string) ([]*zip.File, error) {
	if o.archive != nil {
		pattern, err := o.index.ChapterEntries(id)
		if err != nil {
			return nil, err
		}
		return pageEntries(o.archive.File, pattern), nil
	}

	name, ok := o.index.ChapterFileName(id)
	if !ok {
		return nil, nil
	}
	r, err := zip.OpenReader(filepath.Join(o.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open chapter archive: %w", err)
	}
	// entries are read lazily, the reader is closed with the output
	o.chapters = append(o.chapters, r)
	return pageEntries(r.File, nil), nil
}

// extract copies a top level output entry (the cover) into dir.
func (o *outputReader) extract(name, dir string) (string, error) {
	if o.archive == nil {
		return filepath.Join(o.root, name), nil
	}
	for _, f := range o.archive.File {
		if f.Name == name {
			return extractFile(f, filepath.Join(dir, name))
		}
	}
	return "", fmt.Errorf("entry %s: %w", name, data.ErrNotFound)
}

func pageEntries(files []*zip.File, pattern *regexp.Regexp) []*zip.File {
	var pages []*zip.File
	for _, f := range files {
		if f.FileInfo().IsDir() || f.Name == manifest.FileName {
			continue
		}
		if pattern != nil && !pattern.MatchString(f.Name) {
			continue
		}
		pages = append(pages, f)
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Name < pages[j].Name
	})
	return pages
}

func extractFile(f *zip.File, path string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return "", err
	}
	return path, out.Close()
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
