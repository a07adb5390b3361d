package scrapers

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

const (
	SiteTypeMonroeTractor = "monroetractor"

	monroeBaseURL = "https://www.monroetractor.com"
)

var (
	monroeStockKeyRe = regexp.MustCompile(`/(H\d+)/?$`)
	monroeModelRe    = regexp.MustCompile(`Model:\s*([^\|]+?)(?:\||Stock)`)
	monroeStockRe    = regexp.MustCompile(`Stock #:\s*([^\n]+)`)
	monroePriceRe    = regexp.MustCompile(`Price:\s*([^\n]+)`)
	monroeLocationRe = regexp.MustCompile(`Location:\s*([^\n]+)`)
	monroeYearRe     = regexp.MustCompile(`Year:\s*(\d{4})`)
)

// monroeTractorExtractor parses the monroetractor.com construction equipment
// grid. A single response carries the full (lazily rendered) listing set; the
// site does not paginate.
type monroeTractorExtractor struct{}

// NewMonroeTractorExtractor builds the extractor for Monroe Tractor listings.
func NewMonroeTractorExtractor() Extractor {
	return monroeTractorExtractor{}
}

func (monroeTractorExtractor) Type() string { return SiteTypeMonroeTractor }

// Extract walks every equip-item-wrap card under the equipment container.
func (e monroeTractorExtractor) Extract(doc *goquery.Document) Extraction {
	var out Extraction

	if doc.Find("div.equipment_by_type").Length() == 0 {
		return out
	}

	doc.Find("div.equip-item-wrap").Each(func(_ int, item *goquery.Selection) {
		m, ok := e.extractMachine(item)
		if !ok {
			out.Skipped++
			return
		}
		out.Machines = append(out.Machines, m)
	})

	return out
}

func (e monroeTractorExtractor) extractMachine(item *goquery.Selection) (domain.Machine, bool) {
	card := item.Find("div.equip_item").First()
	if card.Length() == 0 {
		return domain.Machine{}, false
	}

	href, _ := card.Find("a.image").First().Attr("href")
	full := absoluteURL(monroeBaseURL, href)
	if full == "" {
		return domain.Machine{}, false
	}

	uniqueKey := e.uniqueKey(full)
	if uniqueKey == "" {
		return domain.Machine{}, false
	}

	details := card.Find("div.details").First()
	if details.Length() == 0 {
		return domain.Machine{}, false
	}

	brand := strings.TrimSpace(details.Find("div.top strong").First().Text())
	if brand == "" {
		brand = "Unknown"
	}

	bottom := details.Find("div.bottom").First().Text()

	model := matchGroup(monroeModelRe, bottom)
	if model == "" {
		model = "Unknown"
	}
	stockNum := matchGroup(monroeStockRe, bottom)
	if stockNum == "" {
		stockNum = uniqueKey
	}
	year := matchGroup(monroeYearRe, bottom)

	title := brand + " " + model
	if year != "" {
		title += " " + year
	}
	if stockNum != "" {
		title += " " + stockNum
	}

	price := matchGroup(monroePriceRe, bottom)
	if price == "" {
		price = "Upon Request"
	}
	location := matchGroup(monroeLocationRe, bottom)
	if location == "" {
		location = domain.Unknown
	}

	return domain.Machine{
		SiteType:  SiteTypeMonroeTractor,
		UniqueKey: uniqueKey,
		Title:     title,
		Category:  "Construction Equipment",
		Price:     price,
		Year:      orUnknown(year),
		Hours:     domain.Unknown, // not exposed by this site
		Location:  location,
		Link:      full,
		ImageURL:  e.extractImageURL(card),
	}, true
}

// uniqueKey pulls the stock number from the listing URL, falling back to the
// last path segment.
func (monroeTractorExtractor) uniqueKey(u string) string {
	if m := monroeStockKeyRe.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return lastPathSegment(u)
}

func (monroeTractorExtractor) extractImageURL(card *goquery.Selection) string {
	img := card.Find("a.image img").First()
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		if strings.Contains(src, "img-loading") {
			return ""
		}
		return absoluteURL(monroeBaseURL, src)
	}
	return ""
}

func matchGroup(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
