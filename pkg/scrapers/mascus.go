package scrapers

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

const (
	SiteTypeMascus = "mascus"

	mascusBaseURL = "https://www.mascus.co.uk"
)

// mascusExtractor parses Mascus search result pages. Results are newest-first,
// which is what makes this site suitable for marker tracking.
type mascusExtractor struct{}

// NewMascusExtractor builds the extractor for Mascus listings.
func NewMascusExtractor() Extractor {
	return mascusExtractor{}
}

func (mascusExtractor) Type() string { return SiteTypeMascus }

// Extract walks the search result wrappers in page order.
func (e mascusExtractor) Extract(doc *goquery.Document) Extraction {
	var out Extraction

	doc.Find("div.SearchResult_searchResultItemWrapper__VVVnZ").Each(func(_ int, item *goquery.Selection) {
		m, ok := e.extractMachine(item)
		if !ok {
			out.Skipped++
			return
		}
		out.Machines = append(out.Machines, m)
	})

	return out
}

func (e mascusExtractor) extractMachine(item *goquery.Selection) (domain.Machine, bool) {
	href, _ := item.Find("a.SearchResult_assetHeaderUrl__EMde6").First().Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return domain.Machine{}, false
	}

	// Listing URLs end in <key>.html.
	uniqueKey := lastPathSegment(strings.TrimSuffix(href, ".html"))
	if uniqueKey == "" {
		return domain.Machine{}, false
	}

	title := strings.TrimSpace(item.Find("h3.SearchResult_brandmodel__04K2L").First().Text())
	if title == "" {
		return domain.Machine{}, false
	}

	year, hours, location := e.parseMetaLine(item)

	m := domain.Machine{
		SiteType:  SiteTypeMascus,
		UniqueKey: uniqueKey,
		Title:     title,
		Category:  "Mascus - Construction Equipment",
		Price:     strings.TrimSpace(item.Find("div.typography__Heading5-sc-1tyz4zr-10").First().Text()),
		Year:      orUnknown(year),
		Hours:     orUnknown(hours),
		Location:  location,
		Link:      absoluteURL(mascusBaseURL, href),
	}

	if img := item.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
		alt, _ := s.Attr("alt")
		return alt == title
	}).First(); img.Length() > 0 {
		m.ImageURL, _ = img.Attr("src")
	}

	return m, true
}

// parseMetaLine splits the "2018 • 4 500 h • Somewhere UK • Dealer" line into
// its year, hours, and location parts.
func (mascusExtractor) parseMetaLine(item *goquery.Selection) (year, hours, location string) {
	text := item.Find("p.typography__BodyText2-sc-1tyz4zr-2").First().Text()
	parts := strings.Split(text, "•")
	if len(parts) < 2 {
		return "", "", ""
	}

	for _, part := range parts {
		cleaned := strings.TrimSpace(part)
		switch {
		case len(cleaned) == 4 && isDigits(cleaned):
			year = cleaned
		case strings.Contains(cleaned, "h") && isDigits(stripSpaces(strings.ReplaceAll(cleaned, "h", ""))):
			hours = cleaned
		}
	}

	location = strings.TrimSpace(parts[len(parts)-2])
	return year, hours, location
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
