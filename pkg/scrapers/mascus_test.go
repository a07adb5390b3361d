package scrapers

import (
	"testing"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

const mascusPage = `<html><body>
<div class="SearchResult_searchResultItemWrapper__VVVnZ">
  <a class="SearchResult_assetHeaderUrl__EMde6" href="/construction/used-wheel-loaders/volvo-l150h/xk0dygvi.html"></a>
  <h3 class="SearchResult_brandmodel__04K2L">Volvo L150H</h3>
  <div class="typography__Heading5-sc-1tyz4zr-10">GBP 98,000</div>
  <p class="typography__BodyText2-sc-1tyz4zr-2">2018 • 7200h • Leeds UK • BigIron Dealer</p>
  <img alt="Volvo L150H" src="https://images.mascus.com/xk0dygvi.jpg"/>
</div>
<div class="SearchResult_searchResultItemWrapper__VVVnZ">
  <a class="SearchResult_assetHeaderUrl__EMde6" href="/construction/used-excavators/jcb-js220/ab12cd34.html"></a>
  <h3 class="SearchResult_brandmodel__04K2L">JCB JS220</h3>
</div>
<div class="SearchResult_searchResultItemWrapper__VVVnZ">
  <h3 class="SearchResult_brandmodel__04K2L">No Link Machine</h3>
</div>
</body></html>`

func TestMascusExtract(t *testing.T) {
	res := NewMascusExtractor().Extract(parseDoc(t, mascusPage))

	if len(res.Machines) != 2 {
		t.Fatalf("expected 2 machines, got %d", len(res.Machines))
	}
	if res.Skipped != 1 {
		t.Fatalf("expected 1 skipped candidate (no link), got %d", res.Skipped)
	}

	first := res.Machines[0]
	if first.UniqueKey != "xk0dygvi" {
		t.Errorf("unique key = %q", first.UniqueKey)
	}
	if first.Title != "Volvo L150H" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Price != "GBP 98,000" {
		t.Errorf("price = %q", first.Price)
	}
	if first.Year != "2018" {
		t.Errorf("year = %q", first.Year)
	}
	if first.Hours != "7200h" {
		t.Errorf("hours = %q", first.Hours)
	}
	if first.Location != "Leeds UK" {
		t.Errorf("location = %q", first.Location)
	}
	if first.Link != "https://www.mascus.co.uk/construction/used-wheel-loaders/volvo-l150h/xk0dygvi.html" {
		t.Errorf("link = %q", first.Link)
	}
	if first.ImageURL != "https://images.mascus.com/xk0dygvi.jpg" {
		t.Errorf("image = %q", first.ImageURL)
	}

	second := res.Machines[1]
	if second.UniqueKey != "ab12cd34" {
		t.Errorf("unique key = %q", second.UniqueKey)
	}
	if second.Year != domain.Unknown || second.Hours != domain.Unknown {
		t.Errorf("missing meta line should use sentinels: year=%q hours=%q", second.Year, second.Hours)
	}
}

func TestMascusExtractPreservesPageOrder(t *testing.T) {
	res := NewMascusExtractor().Extract(parseDoc(t, mascusPage))
	if res.Machines[0].UniqueKey != "xk0dygvi" || res.Machines[1].UniqueKey != "ab12cd34" {
		t.Fatalf("order not preserved: %q, %q", res.Machines[0].UniqueKey, res.Machines[1].UniqueKey)
	}
}
