package data

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS mangas (
	id          VARCHAR PRIMARY KEY,
	source      VARCHAR,
	title       VARCHAR,
	url         VARCHAR,
	cover_url   VARCHAR,
	output_path VARCHAR,
	format      VARCHAR,
	updated_at  TIMESTAMP
);
CREATE TABLE IF NOT EXISTS chapters (
	id         VARCHAR,
	manga_id   VARCHAR,
	number     DOUBLE,
	volume     INTEGER,
	name       VARCHAR,
	branch     VARCHAR,
	downloaded BOOLEAN,
	file_path  VARCHAR,
	PRIMARY KEY (manga_id, id)
);
`

// InitDuckDB opens the library database at path, creating parent directories
// and tables as needed.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create library directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create library tables: %w", err)
	}

	return db, nil
}

// LibraryEntry is a downloaded manga as recorded in the library.
type LibraryEntry struct {
	ID         string
	Source     string
	Title      string
	URL        string
	CoverURL   string
	OutputPath string
	Format     string
	UpdatedAt  time.Time
}

// LibraryChapter is a chapter row of the library.
type LibraryChapter struct {
	ID         string
	MangaID    string
	Number     float32
	Volume     int
	Name       string
	Branch     string
	Downloaded bool
	FilePath   string
}

// Repository stores the download library.
type Repository struct {
	db *sql.DB
}

// OpenRepository opens (or creates) the library database at path.
func OpenRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveManga inserts or replaces a library entry.
func (r *Repository) SaveManga(entry *LibraryEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO mangas (id, source, title, url, cover_url, output_path, format, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Source, entry.Title, entry.URL, entry.CoverURL, entry.OutputPath, entry.Format, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save manga %s: %w", entry.ID, err)
	}
	return nil
}

// GetManga returns nil without error when the manga is not in the library.
func (r *Repository) GetManga(id string) (*LibraryEntry, error) {
	row := r.db.QueryRow(
		`SELECT id, source, title, url, cover_url, output_path, format, updated_at FROM mangas WHERE id = ?`, id,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

func (r *Repository) ListMangas() ([]*LibraryEntry, error) {
	rows, err := r.db.Query(
		`SELECT id, source, title, url, cover_url, output_path, format, updated_at FROM mangas ORDER BY title`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*LibraryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// SaveChapter inserts or replaces a chapter row.
func (r *Repository) SaveChapter(chapter *LibraryChapter) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO chapters (id, manga_id, number, volume, name, branch, downloaded, file_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chapter.ID, chapter.MangaID, float64(chapter.Number), chapter.Volume, chapter.Name, chapter.Branch,
		chapter.Downloaded, chapter.FilePath,
	)
	if err != nil {
		return fmt.Errorf("failed to save chapter %s: %w", chapter.ID, err)
	}
	return nil
}

// GetChapters returns the chapters of a manga ordered by volume and number.
func (r *Repository) GetChapters(mangaID string) ([]*LibraryChapter, error) {
	rows, err := r.db.Query(
		`SELECT id, manga_id, number, volume, name, branch, downloaded, file_path
		 FROM chapters WHERE manga_id = ? ORDER BY volume, number`, mangaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*LibraryChapter
	for rows.Next() {
		var (
			ch     LibraryChapter
			number float64
		)
		if err := rows.Scan(&ch.ID, &ch.MangaID, &number, &ch.Volume, &ch.Name, &ch.Branch, &ch.Downloaded, &ch.FilePath); err != nil {
			return nil, err
		}
		ch.Number = float32(number)
		out = append(out, &ch)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateChapterStatus(mangaID, chapterID string, downloaded bool, filePath string) error {
	_, err := r.db.Exec(
		`UPDATE chapters SET downloaded = ?, file_path = ? WHERE manga_id = ? AND id = ?`,
		downloaded, filePath, mangaID, chapterID,
	)
	return err
}

// DeleteManga removes a manga and its chapters.
func (r *Repository) DeleteManga(mangaID string) error {
	if _, err := r.db.Exec(`DELETE FROM chapters WHERE manga_id = ?`, mangaID); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM mangas WHERE id = ?`, mangaID)
	return err
}

// GetMangaWithChapterCount returns the entry with its total and downloaded chapter counts.
func (r *Repository) GetMangaWithChapterCount(mangaID string) (*LibraryEntry, int, int, error) {
	entry, err := r.GetManga(mangaID)
	if err != nil || entry == nil {
		return entry, 0, 0, err
	}

	var total, downloaded int
	err = r.db.QueryRow(
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE downloaded) FROM chapters WHERE manga_id = ?`, mangaID,
	).Scan(&total, &downloaded)
	if err != nil {
		return nil, 0, 0, err
	}
	return entry, total, downloaded, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*LibraryEntry, error) {
	var entry LibraryEntry
	if err := s.Scan(&entry.ID, &entry.Source, &entry.Title, &entry.URL, &entry.CoverURL,
		&entry.OutputPath, &entry.Format, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	return &entry, nil
}
