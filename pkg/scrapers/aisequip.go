package scrapers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

const (
	SiteTypeAISEquip = "aisequip"

	aisequipBaseURL = "https://www.aisequip.com"
)

// aisequipExtractor parses the aisequip.com pre-owned machines grid. The site
// paginates via a `_paged` query parameter that is not linked in the HTML, so
// the extractor also implements Paginator.
type aisequipExtractor struct{}

// NewAISEquipExtractor builds the extractor for AIS Equipment listings.
func NewAISEquipExtractor() Extractor {
	return aisequipExtractor{}
}

func (aisequipExtractor) Type() string { return SiteTypeAISEquip }

// PageURL appends `_paged=N` for pages past the first.
func (aisequipExtractor) PageURL(baseURL string, page int) (string, error) {
	if page <= 1 {
		return baseURL, nil
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse aisequip url: %w", err)
	}
	q := parsed.Query()
	q.Set("_paged", fmt.Sprintf("%d", page))
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// Extract walks the machines container; each listing is an <a> wrapping a
// div.machine card.
func (e aisequipExtractor) Extract(doc *goquery.Document) Extraction {
	var out Extraction

	doc.Find("div.machines a").Each(func(_ int, link *goquery.Selection) {
		card := link.Find("div.machine").First()
		if card.Length() == 0 {
			return
		}

		m, ok := e.extractMachine(link, card)
		if !ok {
			out.Skipped++
			return
		}
		out.Machines = append(out.Machines, m)
	})

	return out
}

func (e aisequipExtractor) extractMachine(link, card *goquery.Selection) (domain.Machine, bool) {
	href, _ := link.Attr("href")
	full := absoluteURL(aisequipBaseURL, href)
	if full == "" {
		return domain.Machine{}, false
	}

	uniqueKey := lastPathSegment(full)
	if uniqueKey == "" {
		return domain.Machine{}, false
	}

	title := strings.TrimSpace(card.Find("h3").First().Text())
	if title == "" {
		return domain.Machine{}, false
	}

	return domain.Machine{
		SiteType:  SiteTypeAISEquip,
		UniqueKey: uniqueKey,
		Title:     title,
		Category:  strings.TrimSpace(card.Find("div.machine-category").First().Text()),
		Price:     strings.TrimSpace(card.Find("div.machine-price").First().Text()),
		Year:      orUnknown(stripLabel(card.Find("div.machine-year").First().Text(), "Year")),
		Hours:     orUnknown(stripLabel(card.Find("div.machine-hours").First().Text(), "Hours")),
		Location:  stripLabel(card.Find("div.machine-location").First().Text(), "Location"),
		Link:      full,
		ImageURL:  e.extractImageURL(card),
	}, true
}

// extractImageURL handles both <picture> with a webp source and plain <img>
// tags, skipping placeholder images.
func (aisequipExtractor) extractImageURL(card *goquery.Selection) string {
	if picture := card.Find("picture img").First(); picture.Length() > 0 {
		if src, ok := picture.Attr("src"); ok && strings.TrimSpace(src) != "" {
			return absoluteURL(aisequipBaseURL, src)
		}
	}

	img := card.Find("img").First()
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		if strings.Contains(strings.ToLower(src), "placeholder") {
			return ""
		}
		return absoluteURL(aisequipBaseURL, src)
	}
	return ""
}
