package data

import (
	"fmt"
	"strconv"
	"time"
)

// RatingUnknown marks a manga without a known rating.
const RatingUnknown float32 = -1

type ContentRating string

const (
	ContentRatingSafe       ContentRating = "SAFE"
	ContentRatingSuggestive ContentRating = "SUGGESTIVE"
	ContentRatingAdult      ContentRating = "ADULT"
)

type MangaState string

const (
	StateOngoing   MangaState = "ONGOING"
	StateFinished  MangaState = "FINISHED"
	StateAbandoned MangaState = "ABANDONED"
	StatePaused    MangaState = "PAUSED"
)

type Tag struct {
	Key   string
	Title string
}

// Manga is the work snapshot fetched once per session. It is treated as read-only
// after the provider returns it.
type Manga struct {
	ID            string
	Title         string
	AltTitles     []string
	URL           string
	PublicURL     string
	Authors       []string
	Description   string
	Rating        float32
	ContentRating ContentRating
	State         MangaState
	Source        string
	CoverURL      string
	LargeCoverURL string
	Tags          []Tag
	Chapters      []*Chapter
}

// BestCoverURL prefers the large cover.
func (m *Manga) BestCoverURL() string {
	if m.LargeCoverURL != "" {
		return m.LargeCoverURL
	}
	return m.CoverURL
}

type Chapter struct {
	ID         string
	Title      string
	Number     float32
	Volume     int
	URL        string
	UploadDate time.Time
	Scanlator  string
	Branch     string // translation line, empty when unknown
}

// Name returns a display name, falling back to the chapter number.
func (c *Chapter) Name() string {
	if c.Title != "" {
		return c.Title
	}
	if c.Number > 0 {
		return fmt.Sprintf("Chapter %s", FormatNumber(c.Number))
	}
	return "Unnamed chapter"
}

// IndexedChapter is a chapter together with its zero-based position in the
// chapter list of the session.
type IndexedChapter struct {
	Index   int
	Chapter *Chapter
}

// Page is resolved per chapter and never persisted on its own.
type Page struct {
	ID  string
	URL string
}

// FormatNumber renders chapter numbers without a trailing ".0".
func FormatNumber(n float32) string {
	return strconv.FormatFloat(float64(n), 'f', -1, 32)
}
