package scrapers

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

// Extractor turns one fetched, parsed listing page into candidate machine
// records. Implementations are pure: no network I/O, no shared state.
// Candidates missing a required field (unique key, title, link) are skipped
// and counted rather than failing the page; missing optional fields are
// substituted with domain.Unknown.
type Extractor interface {
	Type() string
	Extract(doc *goquery.Document) Extraction
}

// Extraction is the result of parsing one page.
type Extraction struct {
	Machines []domain.Machine
	Skipped  int
}

// Paginator is implemented by extractors whose sites paginate listing results.
// PageURL builds the URL for a 1-based page number from the configured base URL.
type Paginator interface {
	PageURL(baseURL string, page int) (string, error)
}
