package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kerbaras/mangas-dl/pkg/data"
	"github.com/kerbaras/mangas-dl/pkg/utils"
)

const (
	MangaDexName        = "MANGADEX"
	mangaDexAPI         = "https://api.mangadex.org"
	mangaDexUploads     = "https://uploads.mangadex.org"
	mangaDexSite        = "https://mangadex.org"
	mangaDexFeedLimit   = 500
	mangaDexSearchLimit = 20
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

type localized map[string]string

// UnmarshalJSON accepts the empty array the API sends instead of an empty object.
func (l *localized) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		*l = nil
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*l = m
	return nil
}

// best prefers English, then any romanized title, then whatever there is.
func (l localized) best() string {
	if v, ok := l["en"]; ok && v != "" {
		return v
	}
	for k, v := range l {
		if strings.HasSuffix(k, "-ro") && v != "" {
			return v
		}
	}
	for _, v := range l {
		if v != "" {
			return v
		}
	}
	return ""
}

type relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		FileName string `json:"fileName"`
	} `json:"attributes"`
}

type Manga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title         localized   `json:"title"`
		AltTitles     []localized `json:"altTitles"`
		Description   localized   `json:"description"`
		Status        string      `json:"status"`
		ContentRating string      `json:"contentRating"`
		Tags          []struct {
			ID         string `json:"id"`
			Attributes struct {
				Name localized `json:"name"`
			} `json:"attributes"`
		} `json:"tags"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

func (m *Manga) ToManga(uploadsURL string) *data.Manga {
	out := &data.Manga{
		ID:            m.ID,
		Title:         m.Attributes.Title.best(),
		URL:           "/manga/" + m.ID,
		PublicURL:     mangaDexSite + "/title/" + m.ID,
		Description:   m.Attributes.Description.best(),
		Rating:        data.RatingUnknown,
		ContentRating: contentRating(m.Attributes.ContentRating),
		State:         mangaState(m.Attributes.Status),
		Source:        MangaDexName,
	}
	for _, alt := range m.Attributes.AltTitles {
		for _, v := range alt {
			if v != "" && v != out.Title {
				out.AltTitles = append(out.AltTitles, v)
			}
		}
	}
	for _, tag := range m.Attributes.Tags {
		out.Tags = append(out.Tags, data.Tag{Key: tag.ID, Title: tag.Attributes.Name.best()})
	}
	for _, rel := range m.Relationships {
		switch rel.Type {
		case "author", "artist":
			if rel.Attributes.Name != "" && !slices.Contains(out.Authors, rel.Attributes.Name) {
				out.Authors = append(out.Authors, rel.Attributes.Name)
			}
		case "cover_art":
			if rel.Attributes.FileName != "" {
				base := fmt.Sprintf("%s/covers/%s/%s", uploadsURL, m.ID, rel.Attributes.FileName)
				out.CoverURL = base + ".256.jpg"
				out.LargeCoverURL = base
			}
		}
	}
	return out
}

type Chapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       string `json:"title"`
		Language    string `json:"translatedLanguage"`
		Volume      string `json:"volume"`
		Number      string `json:"chapter"`
		ExternalURL string `json:"externalUrl"`
		PublishAt   string `json:"publishAt"`
		Pages       int    `json:"pages"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

func (c *Chapter) ToChapter() *data.Chapter {
	out := &data.Chapter{
		ID:     c.ID,
		Title:  c.Attributes.Title,
		URL:    "/chapter/" + c.ID,
		Branch: c.Attributes.Language,
	}
	if n, err := strconv.ParseFloat(c.Attributes.Number, 32); err == nil {
		out.Number = float32(n)
	}
	if t, err := time.Parse(time.RFC3339, c.Attributes.PublishAt); err == nil {
		out.UploadDate = t
	}
	if v, err := strconv.Atoi(c.Attributes.Volume); err == nil {
		out.Volume = v
	}
	for _, rel := range c.Relationships {
		if rel.Type == "scanlation_group" && rel.Attributes.Name != "" {
			out.Scanlator = rel.Attributes.Name
			break
		}
	}
	return out
}

type MangaDex struct {
	api        *utils.API
	uploadsURL string
}

type MangaDexOption func(*mangaDexConfig)

type mangaDexConfig struct {
	client     *http.Client
	baseURL    string
	uploadsURL string
	userAgent  string
}

func WithHTTPClient(client *http.Client) MangaDexOption {
	return func(c *mangaDexConfig) { c.client = client }
}

// WithBaseURL points the provider at another API host, e.g. a test server.
func WithBaseURL(baseURL string) MangaDexOption {
	return func(c *mangaDexConfig) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithUploadsURL(uploadsURL string) MangaDexOption {
	return func(c *mangaDexConfig) { c.uploadsURL = strings.TrimRight(uploadsURL, "/") }
}

func WithUserAgent(userAgent string) MangaDexOption {
	return func(c *mangaDexConfig) { c.userAgent = userAgent }
}

func NewMangaDex(opts ...MangaDexOption) *MangaDex {
	cfg := mangaDexConfig{baseURL: mangaDexAPI, uploadsURL: mangaDexUploads}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MangaDex{
		api:        utils.NewAPI(cfg.client, cfg.baseURL, cfg.userAgent),
		uploadsURL: cfg.uploadsURL,
	}
}

func (m *MangaDex) Name() string  { return MangaDexName }
func (m *MangaDex) Title() string { return "MangaDex" }

// ParseLink extracts the manga id from a title link or a bare id.
func ParseLink(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if uuidPattern.MatchString(link) {
		return strings.ToLower(link), true
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "mangadex.org" {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || (parts[0] != "title" && parts[0] != "manga") || !uuidPattern.MatchString(parts[1]) {
		return "", false
	}
	return strings.ToLower(parts[1]), true
}

func (m *MangaDex) Resolve(ctx context.Context, link string) (*data.Manga, error) {
	id, ok := ParseLink(link)
	if !ok {
		return nil, fmt.Errorf("%w: %s", data.ErrUnsupported, link)
	}

	manga, err := m.GetManga(ctx, id)
	if err != nil {
		return nil, err
	}
	chapters, err := m.GetChapters(ctx, id)
	if err != nil {
		return nil, err
	}
	manga.Chapters = chapters
	return manga, nil
}

func (m *MangaDex) Search(ctx context.Context, query string) ([]*data.Manga, error) {
	params := url.Values{
		"title":      {query},
		"limit":      {strconv.Itoa(mangaDexSearchLimit)},
		"includes[]": {"cover_art", "author"},
	}
	var mangas struct {
		Data []Manga `json:"data"`
	}
	if err := m.api.Get(ctx, "/manga", params, &mangas); err != nil {
		return nil, err
	}
	out := make([]*data.Manga, len(mangas.Data))
	for i, manga := range mangas.Data {
		out[i] = manga.ToManga(m.uploadsURL)
	}
	return out, nil
}

func (m *MangaDex) GetManga(ctx context.Context, id string) (*data.Manga, error) {
	params := url.Values{"includes[]": {"author", "artist", "cover_art"}}
	var manga struct {
		Data Manga `json:"data"`
	}
	if err := m.api.Get(ctx, "/manga/"+id, params, &manga); err != nil {
		return nil, err
	}
	return manga.Data.ToManga(m.uploadsURL), nil
}

// GetChapters walks the whole feed of a manga. Chapters hosted on other sites
// are left out since they have no pages here.
func (m *MangaDex) GetChapters(ctx context.Context, mangaID string) ([]*data.Chapter, error) {
	var out []*data.Chapter
	for offset := 0; ; offset += mangaDexFeedLimit {
		params := url.Values{
			"limit":           {strconv.Itoa(mangaDexFeedLimit)},
			"offset":          {strconv.Itoa(offset)},
			"order[volume]":   {"asc"},
			"order[chapter]":  {"asc"},
			"includes[]":      {"scanlation_group"},
			"contentRating[]": {"safe", "suggestive", "erotica", "pornographic"},
		}
		var feed struct {
			Data  []Chapter `json:"data"`
			Total int       `json:"total"`
		}
		if err := m.api.Get(ctx, "/manga/"+mangaID+"/feed", params, &feed); err != nil {
			return nil, err
		}
		for _, chapter := range feed.Data {
			if chapter.Attributes.ExternalURL != "" {
				continue
			}
			out = append(out, chapter.ToChapter())
		}
		if len(feed.Data) == 0 || offset+len(feed.Data) >= feed.Total {
			break
		}
	}
	return out, nil
}

func (m *MangaDex) GetPages(ctx context.Context, chapter *data.Chapter) ([]data.Page, error) {
	var server struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	if err := m.api.Get(ctx, "/at-home/server/"+chapter.ID, nil, &server); err != nil {
		return nil, err
	}
	pages := make([]data.Page, len(server.Chapter.Data))
	for i, file := range server.Chapter.Data {
		pages[i] = data.Page{
			ID:  file,
			URL: fmt.Sprintf("%s/data/%s/%s", server.BaseURL, server.Chapter.Hash, file),
		}
	}
	return pages, nil
}

func (m *MangaDex) GetPageURL(_ context.Context, page data.Page) (string, error) {
	if page.URL == "" {
		return "", fmt.Errorf("page %s has no url: %w", page.ID, data.ErrNotFound)
	}
	return page.URL, nil
}

func contentRating(s string) data.ContentRating {
	switch s {
	case "safe":
		return data.ContentRatingSafe
	case "suggestive":
		return data.ContentRatingSuggestive
	case "erotica", "pornographic":
		return data.ContentRatingAdult
	default:
		return ""
	}
}

func mangaState(s string) data.MangaState {
	switch s {
	case "ongoing":
		return data.StateOngoing
	case "completed":
		return data.StateFinished
	case "hiatus":
		return data.StatePaused
	case "cancelled":
		return data.StateAbandoned
	default:
		return ""
	}
}
