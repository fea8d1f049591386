package manifest

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"
	"unicode/utf16"

	"github.com/goccy/go-json"

	"github.com/kerbaras/mangas-dl/pkg/data"
)

const (
	// FileName is the manifest file of a directory output and the manifest entry
	// of an archive output.
	FileName = "index.json"
	AppID    = "mangas-dl"
)

// AppVersion is written into every manifest. It is overridden at build time.
var AppVersion = "dev"

// PageNamePattern formats a page entry from (branch hash, chapter position + 1,
// page number).
const PageNamePattern = "%08d_%03d%03d"

type tag struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

type chapter struct {
	Number     float32 `json:"number"`
	Volume     int     `json:"volume"`
	URL        string  `json:"url"`
	Name       string  `json:"name"`
	UploadDate int64   `json:"uploadDate"`
	Scanlator  string  `json:"scanlator,omitempty"`
	Branch     string  `json:"branch,omitempty"`
	Entries    string  `json:"entries"`
	File       *string `json:"file"`
	Position   int     `json:"position"`
}

type document struct {
	ID            string              `json:"id,omitempty"`
	Title         string              `json:"title,omitempty"`
	TitleAlt      string              `json:"title_alt,omitempty"`
	AltTitles     []string            `json:"alt_titles,omitempty"`
	URL           string              `json:"url,omitempty"`
	PublicURL     string              `json:"public_url,omitempty"`
	Author        string              `json:"author,omitempty"`
	Authors       []string            `json:"authors,omitempty"`
	Cover         string              `json:"cover,omitempty"`
	Description   string              `json:"description,omitempty"`
	Rating        *float32            `json:"rating,omitempty"`
	ContentRating string              `json:"content_rating,omitempty"`
	NSFW          bool                `json:"nsfw"`
	State         string              `json:"state,omitempty"`
	Source        string              `json:"source,omitempty"`
	CoverLarge    string              `json:"cover_large,omitempty"`
	Tags          []tag               `json:"tags"`
	Chapters      map[string]*chapter `json:"chapters"`
	AppID         string              `json:"app_id,omitempty"`
	AppVersion    string              `json:"app_version,omitempty"`
	CoverEntry    string              `json:"cover_entry,omitempty"`
}

// Manifest describes a downloaded work: its metadata and, per chapter, where
// the pages of that chapter were stored. Chapter records are never replaced
// once added. A Manifest is not safe for concurrent use.
type Manifest struct {
	doc document
}

func New() *Manifest {
	return &Manifest{doc: document{Chapters: make(map[string]*chapter)}}
}

// Parse decodes a manifest. Malformed input yields an empty manifest, so that a
// damaged file is treated as if there was no prior state.
func Parse(b []byte) *Manifest {
	m := New()
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return m
	}
	if doc.Chapters == nil {
		doc.Chapters = make(map[string]*chapter)
	}
	for id, ch := range doc.Chapters {
		if ch == nil {
			delete(doc.Chapters, id)
		}
	}
	m.doc = doc
	return m
}

// Load reads the manifest at path. A missing file is reported as false, any
// other problem yields an empty manifest.
func Load(path string) (*Manifest, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return Parse(b), true
}

// SetWorkInfo overwrites every work level field and keeps the chapters.
func (m *Manifest) SetWorkInfo(manga *data.Manga) {
	d := &m.doc
	d.ID = manga.ID
	d.Title = manga.Title
	d.AltTitles = append([]string(nil), manga.AltTitles...)
	d.TitleAlt = ""
	if len(manga.AltTitles) > 0 {
		d.TitleAlt = manga.AltTitles[0]
	}
	d.URL = manga.URL
	d.PublicURL = manga.PublicURL
	d.Authors = append([]string(nil), manga.Authors...)
	d.Author = ""
	if len(manga.Authors) > 0 {
		d.Author = manga.Authors[0]
	}
	d.Cover = manga.CoverURL
	d.Description = manga.Description
	rating := manga.Rating
	d.Rating = &rating
	d.ContentRating = string(manga.ContentRating)
	d.NSFW = manga.ContentRating == data.ContentRatingAdult
	d.State = string(manga.State)
	d.Source = manga.Source
	d.CoverLarge = manga.LargeCoverURL
	d.Tags = make([]tag, len(manga.Tags))
	for i, t := range manga.Tags {
		d.Tags[i] = tag{Key: t.Key, Title: t.Title}
	}
	if d.Chapters == nil {
		d.Chapters = make(map[string]*chapter)
	}
	d.AppID = AppID
	d.AppVersion = AppVersion
}

// WorkInfo rebuilds the work from the manifest, with chapters ordered by
// number (ties keep the order they were downloaded in). It reports false when
// the manifest holds no usable work.
func (m *Manifest) WorkInfo() (*data.Manga, bool) {
	d := m.doc
	if d.ID == "" || d.Title == "" {
		return nil, false
	}

	manga := &data.Manga{
		ID:            d.ID,
		Title:         d.Title,
		AltTitles:     d.AltTitles,
		URL:           d.URL,
		PublicURL:     d.PublicURL,
		Authors:       d.Authors,
		Description:   d.Description,
		Rating:        data.RatingUnknown,
		ContentRating: data.ContentRating(d.ContentRating),
		State:         data.MangaState(d.State),
		Source:        d.Source,
		CoverURL:      d.Cover,
		LargeCoverURL: d.CoverLarge,
	}
	if len(manga.AltTitles) == 0 && d.TitleAlt != "" {
		manga.AltTitles = []string{d.TitleAlt}
	}
	if len(manga.Authors) == 0 && d.Author != "" {
		manga.Authors = []string{d.Author}
	}
	if d.Rating != nil {
		manga.Rating = *d.Rating
	}
	if manga.ContentRating == "" && d.NSFW {
		manga.ContentRating = data.ContentRatingAdult
	}
	for _, t := range d.Tags {
		manga.Tags = append(manga.Tags, data.Tag{Key: t.Key, Title: t.Title})
	}

	ids := m.sortedChapterIDs()
	for _, id := range ids {
		ch := d.Chapters[id]
		c := &data.Chapter{
			ID:        id,
			Title:     ch.Name,
			Number:    ch.Number,
			Volume:    ch.Volume,
			URL:       ch.URL,
			Scanlator: ch.Scanlator,
			Branch:    ch.Branch,
		}
		if ch.UploadDate > 0 {
			c.UploadDate = time.UnixMilli(ch.UploadDate)
		}
		manga.Chapters = append(manga.Chapters, c)
	}
	return manga, true
}

func (m *Manifest) sortedChapterIDs() []string {
	ids := make([]string, 0, len(m.doc.Chapters))
	for id := range m.doc.Chapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.doc.Chapters[ids[i]], m.doc.Chapters[ids[j]]
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return ids[i] < ids[j]
	})
	return ids
}

// AddChapter records a chapter unless it is already present. An empty file
// name is stored as null. It reports whether the chapter was added.
func (m *Manifest) AddChapter(ic data.IndexedChapter, file string) bool {
	c := ic.Chapter
	if _, ok := m.doc.Chapters[c.ID]; ok {
		return false
	}
	entry := &chapter{
		Number:    c.Number,
		Volume:    c.Volume,
		URL:       c.URL,
		Name:      c.Title,
		Scanlator: c.Scanlator,
		Branch:    c.Branch,
		Entries:   fmt.Sprintf(`^%08d_%03d\d{3}`, BranchHash(c.Branch), ic.Index+1),
		Position:  ic.Index,
	}
	if !c.UploadDate.IsZero() {
		entry.UploadDate = c.UploadDate.UnixMilli()
	}
	if file != "" {
		entry.File = &file
	}
	m.doc.Chapters[c.ID] = entry
	return true
}

func (m *Manifest) RemoveChapter(id string) bool {
	if _, ok := m.doc.Chapters[id]; !ok {
		return false
	}
	delete(m.doc.Chapters, id)
	return true
}

func (m *Manifest) HasChapter(id string) bool {
	_, ok := m.doc.Chapters[id]
	return ok
}

func (m *Manifest) ChapterCount() int {
	return len(m.doc.Chapters)
}

// ChapterFileName returns the stored file of a chapter, if it has one.
func (m *Manifest) ChapterFileName(id string) (string, bool) {
	ch, ok := m.doc.Chapters[id]
	if !ok || ch.File == nil || *ch.File == "" {
		return "", false
	}
	return *ch.File, true
}

// ChapterEntries returns the pattern matching the page entries of a chapter.
func (m *Manifest) ChapterEntries(id string) (*regexp.Regexp, error) {
	ch, ok := m.doc.Chapters[id]
	if !ok {
		return nil, fmt.Errorf("chapter %s: %w", id, data.ErrNotFound)
	}
	return regexp.Compile(ch.Entries)
}

func (m *Manifest) CoverEntry() string {
	return m.doc.CoverEntry
}

func (m *Manifest) SetCoverEntry(name string) {
	m.doc.CoverEntry = name
}

// SetFrom replaces every field with the ones of other.
func (m *Manifest) SetFrom(other *Manifest) {
	m.doc = other.clone().doc
}

// MergeChapters copies the chapter records of other that are missing here. The
// records are copied as they are, so their entry patterns stay valid for the
// pages they describe.
func (m *Manifest) MergeChapters(other *Manifest) int {
	n := 0
	for id, ch := range other.doc.Chapters {
		if _, ok := m.doc.Chapters[id]; ok {
			continue
		}
		c := *ch
		m.doc.Chapters[id] = &c
		n++
	}
	return n
}

func (m *Manifest) clone() *Manifest {
	b, err := m.Bytes()
	if err != nil {
		return New()
	}
	return Parse(b)
}

// Bytes encodes the manifest as indented JSON.
func (m *Manifest) Bytes() ([]byte, error) {
	return json.MarshalIndent(m.doc, "", "    ")
}

func (m *Manifest) String() string {
	b, err := m.Bytes()
	if err != nil {
		return "{}"
	}
	return string(b)
}

// WriteFile writes the manifest to path through a temporary file.
func (m *Manifest) WriteFile(path string) error {
	b, err := m.Bytes()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// PageName is the entry name of a page, with ext appended when it is 1 to 4
// characters long.
func PageName(branch string, position, page int, ext string) string {
	return withExt(fmt.Sprintf(PageNamePattern, BranchHash(branch), position+1, page), ext)
}

// CoverName is the cover entry name inside an archive output.
func CoverName(ext string) string {
	return withExt(fmt.Sprintf(PageNamePattern, 0, 0, 0), ext)
}

func withExt(name, ext string) string {
	if ext != "" && len(ext) <= 4 {
		return name + "." + ext
	}
	return name
}

// BranchHash is the 32-bit polynomial string hash (s[0]*31^(n-1) + ... over
// UTF-16 code units) of a branch name; the empty branch hashes to 0.
func BranchHash(branch string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(branch)) {
		h = 31*h + int32(u)
	}
	return h
}
