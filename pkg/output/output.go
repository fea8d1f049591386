package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog"

	"github.com/kerbaras/mangas-dl/pkg/archive"
	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/manifest"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

// LocalOutput is where a download session stores what it fetched. All methods
// are safe for concurrent use.
type LocalOutput interface {
	// RootPath is the final location of the output.
	RootPath() string
	// MergeWithExisting absorbs a previous output found at RootPath.
	MergeWithExisting() error
	// AddCover stores the cover, replacing any previous one.
	AddCover(file, ext string) error
	// AddPage stores page number page of a chapter.
	AddPage(chapter data.IndexedChapter, file string, page int, ext string) error
	// FlushChapter completes a chapter. It reports false when the output has
	// nothing to flush per chapter.
	FlushChapter(chapter *data.Chapter) (bool, error)
	// Finish writes the manifest and moves the output to RootPath.
	Finish() error
	// Cleanup removes temporary files left by an unfinished session.
	Cleanup()
	Close() error
}

type Format string

const (
	FormatAuto Format = ""
	FormatCBZ  Format = "cbz"
	FormatZip  Format = "zip"
	FormatDir  Format = "dir"
)

// AutoArchiveMaxChapters is the largest chapter count for which a single
// archive is chosen when no format was requested.
const AutoArchiveMaxChapters = 3

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAuto, FormatCBZ, FormatZip, FormatDir:
		return f, nil
	case "auto":
		return FormatAuto, nil
	default:
		return FormatAuto, fmt.Errorf("%w: unknown format %q (want cbz, zip or dir)", data.ErrInvalidArgument, s)
	}
}

type options struct {
	level int
	log   zerolog.Logger
}

type Option func(*options)

// WithCompressionLevel sets the deflate level of the written archives.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func newOptions(opts []Option) options {
	o := options{level: flate.DefaultCompression, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) archiveOptions() []archive.Option {
	return []archive.Option{archive.WithCompressionLevel(o.level)}
}

// Resolve picks the output path and format for dest:
//   - a directory holding a manifest is resumed as a directory output;
//   - any other directory gets a new entry named after the title;
//   - an existing file is merged in place as an archive;
//   - a missing path takes its format from the extension.
func Resolve(dest string, manga *data.Manga, format Format) (string, Format, error) {
	info, err := os.Stat(dest)
	switch {
	case err == nil && info.IsDir():
		if _, err := os.Stat(filepath.Join(dest, manifest.FileName)); err == nil {
			return dest, FormatDir, nil
		}
		if format == FormatAuto {
			format = FormatDir
			if len(manga.Chapters) <= AutoArchiveMaxChapters {
				format = FormatCBZ
			}
		}
		name := utils.FileNameSafe(manga.Title)
		if name == "" {
			name = utils.FileNameSafe(manga.ID)
		}
		if format != FormatDir {
			name += "." + string(format)
		}
		return utils.NextAvailable(filepath.Join(dest, name)), format, nil

	case err == nil:
		if format == FormatDir {
			return "", FormatAuto, fmt.Errorf("%w: %s is a file, cannot write a directory output there", data.ErrInvalidArgument, dest)
		}
		if format == FormatAuto {
			format = FormatCBZ
			if strings.EqualFold(filepath.Ext(dest), ".zip") {
				format = FormatZip
			}
		}
		return dest, format, nil

	case errors.Is(err, os.ErrNotExist):
		if format == FormatAuto {
			switch ext := strings.ToLower(filepath.Ext(dest)); ext {
			case ".cbz":
				format = FormatCBZ
			case ".zip":
				format = FormatZip
			case "":
				format = FormatDir
			default:
				return "", FormatAuto, fmt.Errorf("%w: cannot infer output format from extension %q", data.ErrInvalidArgument, ext)
			}
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return "", FormatAuto, fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
		}
		return dest, format, nil

	default:
		return "", FormatAuto, err
	}
}

// Create resolves dest and opens the matching output.
func Create(dest string, manga *data.Manga, format Format, opts ...Option) (LocalOutput, error) {
	path, format, err := Resolve(dest, manga, format)
	if err != nil {
		return nil, err
	}
	if format == FormatDir {
		return NewDirOutput(path, manga, opts...)
	}
	return NewArchiveOutput(path, manga, opts...)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
