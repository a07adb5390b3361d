package scrapers

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

const (
	SiteTypeCraigslist = "craigslist"

	craigslistBaseURL = "https://craigslist.org"
)

// craigslistTimeIndicators are the relative-age fragments craigslist mixes
// into the meta line ahead of the location.
var craigslistTimeIndicators = []string{
	"mins ago", "min ago", "hours ago", "hour ago", "days ago", "day ago",
}

// craigslistExtractor parses craigslist gallery search results. Results are
// newest-first, so these sites run in marker tracking mode.
type craigslistExtractor struct{}

// NewCraigslistExtractor builds the extractor for craigslist listings.
func NewCraigslistExtractor() Extractor {
	return craigslistExtractor{}
}

func (craigslistExtractor) Type() string { return SiteTypeCraigslist }

// Extract walks the search result cards in page order.
func (e craigslistExtractor) Extract(doc *goquery.Document) Extraction {
	var out Extraction

	doc.Find("div.cl-search-result").Each(func(_ int, item *goquery.Selection) {
		m, ok := e.extractMachine(item)
		if !ok {
			out.Skipped++
			return
		}
		out.Machines = append(out.Machines, m)
	})

	return out
}

func (e craigslistExtractor) extractMachine(item *goquery.Selection) (domain.Machine, bool) {
	uniqueKey, _ := item.Attr("data-pid")
	uniqueKey = strings.TrimSpace(uniqueKey)
	if uniqueKey == "" {
		return domain.Machine{}, false
	}

	link := item.Find("a.main").First()
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return domain.Machine{}, false
	}

	title := e.extractTitle(item)
	if title == "" {
		return domain.Machine{}, false
	}

	m := domain.Machine{
		SiteType:  SiteTypeCraigslist,
		UniqueKey: uniqueKey,
		Title:     title,
		Category:  "Heavy Equipment",
		Price:     strings.TrimSpace(item.Find("span.priceinfo").First().Text()),
		Year:      domain.Unknown,
		Hours:     domain.Unknown,
		Location:  e.parseLocation(item.Find("div.meta").First().Text()),
		Link:      absoluteURL(craigslistBaseURL, href),
	}

	if src, ok := link.Find("img").First().Attr("src"); ok {
		// Lazy-loaded cards carry an inline placeholder instead of a real URL.
		if !strings.HasPrefix(src, "data:image") {
			m.ImageURL = strings.TrimSpace(src)
		}
	}

	return m, true
}

// extractTitle prefers the posting-title label, then the anchor text, then the
// card's title attribute.
func (craigslistExtractor) extractTitle(item *goquery.Selection) string {
	posting := item.Find("a.posting-title").First()
	if label := strings.TrimSpace(posting.Find("span.label").First().Text()); label != "" {
		return label
	}
	if text := strings.TrimSpace(posting.Text()); text != "" {
		return text
	}
	attr, _ := item.Attr("title")
	return strings.TrimSpace(attr)
}

// parseLocation pulls the location out of the meta line, which interleaves a
// posting age ("26 mins ago"), the location, and separator dots.
func (craigslistExtractor) parseLocation(meta string) string {
	for _, indicator := range craigslistTimeIndicators {
		meta = strings.ReplaceAll(meta, indicator, "")
	}
	meta = strings.TrimSpace(meta)
	if meta == "" {
		return ""
	}

	// The leading token is the numeric part of the stripped age fragment.
	if idx := strings.IndexAny(meta, " \t\n"); idx >= 0 {
		return cleanLocation(meta[idx+1:])
	}
	// A single remaining token is the location itself, unless it is the
	// residue of a date or posting age.
	if !strings.Contains(meta, "/") && !isDigits(cleanLocation(meta)) {
		return cleanLocation(meta)
	}
	return ""
}

func cleanLocation(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "•", ""))
}
