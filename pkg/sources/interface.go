package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/kerbaras/mangas-dl/pkg/data"
)

// Provider resolves works on one remote site. Failures use the error taxonomy
// of package data so that callers can tell transient errors from fatal ones.
type Provider interface {
	// Name identifies the source, e.g. for rate limiting.
	Name() string
	// Title is a human readable name of the site.
	Title() string
	// Resolve returns the work behind link with its chapters. Links of other
	// sites yield data.ErrUnsupported.
	Resolve(ctx context.Context, link string) (*data.Manga, error)
	GetPages(ctx context.Context, chapter *data.Chapter) ([]data.Page, error)
	GetPageURL(ctx context.Context, page data.Page) (string, error)
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]*data.Manga, error)
}

// Resolve asks each provider in turn and returns the first that recognizes link.
func Resolve(ctx context.Context, providers []Provider, link string) (Provider, *data.Manga, error) {
	for _, p := range providers {
		manga, err := p.Resolve(ctx, link)
		if errors.Is(err, data.ErrUnsupported) {
			continue
		}
		if err != nil {
			return p, nil, err
		}
		return p, manga, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", data.ErrUnsupported, link)
}
