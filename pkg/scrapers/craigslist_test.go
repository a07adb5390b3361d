package scrapers

import (
	"testing"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

const craigslistPage = `<html><body>
<div class="cl-search-result" data-pid="7812345678" title="CAT D6 Dozer">
  <a class="main" href="/atl/hvo/d/winder-cat-d6-dozer/7812345678.html">
    <img src="https://images.craigslist.org/00a0a_abc123_600x450.jpg"/>
  </a>
  <a class="posting-title"><span class="label">CAT D6 Dozer</span></a>
  <span class="priceinfo">$78,500</span>
  <div class="meta">26 mins ago<span class="separator">•</span>Winder</div>
</div>
<div class="cl-search-result" data-pid="7812340000">
  <a class="main" href="https://atlanta.craigslist.org/d/komatsu-pc210/7812340000.html">
    <img src="data:image/png;base64,iVBORw0KGgo="/>
  </a>
  <a class="posting-title">Komatsu PC210 Excavator</a>
  <div class="meta">2 days ago</div>
</div>
<div class="cl-search-result" data-pid="7812339999">
  <a class="main" href="/d/no-title/7812339999.html"></a>
</div>
<div class="cl-search-result">
  <a class="main" href="/d/no-pid/0.html"></a>
  <a class="posting-title"><span class="label">No PID Machine</span></a>
</div>
</body></html>`

func TestCraigslistExtract(t *testing.T) {
	res := NewCraigslistExtractor().Extract(parseDoc(t, craigslistPage))

	if len(res.Machines) != 2 {
		t.Fatalf("expected 2 machines, got %d", len(res.Machines))
	}
	if res.Skipped != 2 {
		t.Fatalf("expected 2 skipped candidates (no title, no pid), got %d", res.Skipped)
	}

	first := res.Machines[0]
	if first.UniqueKey != "7812345678" {
		t.Errorf("unique key = %q", first.UniqueKey)
	}
	if first.Title != "CAT D6 Dozer" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Price != "$78,500" {
		t.Errorf("price = %q", first.Price)
	}
	if first.Location != "Winder" {
		t.Errorf("location = %q", first.Location)
	}
	if first.Category != "Heavy Equipment" {
		t.Errorf("category = %q", first.Category)
	}
	if first.Link != "https://craigslist.org/atl/hvo/d/winder-cat-d6-dozer/7812345678.html" {
		t.Errorf("link = %q", first.Link)
	}
	if first.ImageURL != "https://images.craigslist.org/00a0a_abc123_600x450.jpg" {
		t.Errorf("image = %q", first.ImageURL)
	}
	if first.Year != domain.Unknown || first.Hours != domain.Unknown {
		t.Errorf("year/hours should use sentinels: year=%q hours=%q", first.Year, first.Hours)
	}

	second := res.Machines[1]
	if second.UniqueKey != "7812340000" {
		t.Errorf("unique key = %q", second.UniqueKey)
	}
	if second.Title != "Komatsu PC210 Excavator" {
		t.Errorf("anchor text fallback title = %q", second.Title)
	}
	if second.Link != "https://atlanta.craigslist.org/d/komatsu-pc210/7812340000.html" {
		t.Errorf("absolute link should pass through, got %q", second.Link)
	}
	if second.ImageURL != "" {
		t.Errorf("inline placeholder image should be dropped, got %q", second.ImageURL)
	}
	if second.Location != "" {
		t.Errorf("age-only meta line has no location, got %q", second.Location)
	}
}

func TestCraigslistExtractPreservesPageOrder(t *testing.T) {
	res := NewCraigslistExtractor().Extract(parseDoc(t, craigslistPage))
	if res.Machines[0].UniqueKey != "7812345678" || res.Machines[1].UniqueKey != "7812340000" {
		t.Fatalf("order not preserved: %q, %q", res.Machines[0].UniqueKey, res.Machines[1].UniqueKey)
	}
}

func TestCraigslistTitleFallsBackToCardAttribute(t *testing.T) {
	page := `<html><body>
<div class="cl-search-result" data-pid="1" title="Attr Title Loader">
  <a class="main" href="/d/loader/1.html"></a>
</div>
</body></html>`

	res := NewCraigslistExtractor().Extract(parseDoc(t, page))
	if len(res.Machines) != 1 {
		t.Fatalf("expected 1 machine, got %d", len(res.Machines))
	}
	if res.Machines[0].Title != "Attr Title Loader" {
		t.Fatalf("title = %q", res.Machines[0].Title)
	}
}
