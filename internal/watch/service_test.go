package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ironscout-hq/ironscout/internal/domain"
	"github.com/ironscout-hq/ironscout/internal/storage"
	"github.com/ironscout-hq/ironscout/pkg/httpclient"
	"github.com/ironscout-hq/ironscout/pkg/notifiers"
	"github.com/ironscout-hq/ironscout/pkg/scrapers"
	"github.com/ironscout-hq/ironscout/pkg/sites"
)

type fakeResponse struct {
	body []byte
	code int
}

func (r fakeResponse) Body() []byte    { return r.body }
func (r fakeResponse) StatusCode() int { return r.code }

type fakeHTTP struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeHTTP) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.pages[url]; ok {
		return fakeResponse{body: []byte(body), code: 200}, nil
	}
	return fakeResponse{body: nil, code: 404}, nil
}

type fakeStore struct {
	records map[string]domain.Machine
	markers map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]domain.Machine),
		markers: make(map[string]string),
	}
}

func identity(siteType, searchLabel, uniqueKey string) string {
	return siteType + "|" + searchLabel + "|" + uniqueKey
}

func (f *fakeStore) Init() error  { return nil }
func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) Exists(siteType, searchLabel, uniqueKey string) (bool, error) {
	_, ok := f.records[identity(siteType, searchLabel, uniqueKey)]
	return ok, nil
}

func (f *fakeStore) Insert(m domain.Machine) (domain.Machine, storage.InsertResult, error) {
	key := identity(m.SiteType, m.SearchLabel, m.UniqueKey)
	if _, ok := f.records[key]; ok {
		return m, storage.DuplicateRejected, nil
	}
	m.FirstSeen = time.Now().UTC()
	f.records[key] = m
	return m, storage.Inserted, nil
}

func (f *fakeStore) Marker(searchLabel string) (string, error) {
	return f.markers[searchLabel], nil
}

func (f *fakeStore) SaveMarker(searchLabel, markerKey string) error {
	f.markers[searchLabel] = markerKey
	return nil
}

type fakeDispatcher struct {
	events []notifiers.Event
	err    error
}

func (f *fakeDispatcher) Notify(_ context.Context, evt notifiers.Event) (int, error) {
	f.events = append(f.events, evt)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakeDispatcher) Size() int { return 1 }

// listingPage renders a minimal machines grid with one card per key.
func listingPage(keys ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="machines">`)
	for _, k := range keys {
		fmt.Fprintf(&b, `<a href="/machine/%s/"><div class="machine"><h3>Machine %s</h3>`+
			`<div class="machine-price">$10,000</div></div></a>`, k, k)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

const emptyPage = `<html><body><div class="machines"></div></body></html>`

func testSite(id, url string) sites.Site {
	return sites.Site{
		ID:             id,
		Type:           scrapers.SiteTypeAISEquip,
		SearchLabel:    "Excavators " + id,
		URL:            url,
		Tracking:       sites.TrackingStore,
		MaxPages:       3,
		RequestDelayMs: 1,
	}
}

func newTestService(client httpclient.Client, store storage.Store, fanout Dispatcher) *Service {
	return NewService(client, scrapers.DefaultRegistry(), store, fanout)
}

func TestRunPersistsAndNotifiesNewListings(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{pages: map[string]string{
		url:              listingPage("cat-320", "deere-350"),
		url + "?_paged=2": emptyPage,
	}}
	store := newFakeStore()
	fanout := &fakeDispatcher{}
	svc := newTestService(client, store, fanout)

	sum, err := svc.Run(context.Background(), []sites.Site{testSite("s1", url)}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.NewRecords != 2 {
		t.Fatalf("NewRecords = %d, want 2", sum.NewRecords)
	}
	if sum.Extracted != 2 || sum.Duplicates != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(store.records) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(store.records))
	}
	if len(fanout.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(fanout.events))
	}
	if fanout.events[0].Kind != notifiers.KindListing {
		t.Fatalf("event kind = %s", fanout.events[0].Kind)
	}
	if fanout.events[0].Machine.UniqueKey != "cat-320" {
		t.Fatalf("events out of page order: first is %s", fanout.events[0].Machine.UniqueKey)
	}
	if fanout.events[0].Machine.SearchLabel != "Excavators s1" {
		t.Fatalf("search label not stamped: %q", fanout.events[0].Machine.SearchLabel)
	}
	if fanout.events[0].Machine.FirstSeen.IsZero() {
		t.Fatalf("notified listing should carry its first-seen timestamp")
	}
}

func TestRunKeepsListingsCollectedBeforeFetchFailure(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{
		pages: map[string]string{url: listingPage("cat-320")},
		errs:  map[string]error{url + "?_paged=2": errors.New("connection reset")},
	}
	store := newFakeStore()
	fanout := &fakeDispatcher{}
	svc := newTestService(client, store, fanout)

	sum, err := svc.Run(context.Background(), []sites.Site{testSite("s1", url)}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.SitesFailed != 1 {
		t.Fatalf("failed page should mark the site failed, summary = %+v", sum)
	}
	if sum.NewRecords != 1 {
		t.Fatalf("page 1 listings must survive the page 2 failure, summary = %+v", sum)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(store.records))
	}
	if len(fanout.events) != 1 || fanout.events[0].Machine.UniqueKey != "cat-320" {
		t.Fatalf("expected event for cat-320, got %+v", fanout.events)
	}
}

func TestRunSecondPassDetectsNoNew(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{pages: map[string]string{
		url:              listingPage("cat-320"),
		url + "?_paged=2": emptyPage,
	}}
	store := newFakeStore()
	fanout := &fakeDispatcher{}
	svc := newTestService(client, store, fanout)
	cfgs := []sites.Site{testSite("s1", url)}

	if _, err := svc.Run(context.Background(), cfgs, true); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	sum, err := svc.Run(context.Background(), cfgs, true)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if sum.NewRecords != 0 || sum.Duplicates != 1 {
		t.Fatalf("second pass summary = %+v", sum)
	}
	if len(fanout.events) != 1 {
		t.Fatalf("expected no extra events, got %d total", len(fanout.events))
	}
}

func TestRunIsolatesFetchFailures(t *testing.T) {
	const urlA = "https://www.aisequip.com/a/"
	const urlB = "https://www.aisequip.com/b/"
	client := &fakeHTTP{
		pages: map[string]string{
			urlB:              listingPage("deere-350"),
			urlB + "?_paged=2": emptyPage,
		},
		errs: map[string]error{urlA: errors.New("connection refused")},
	}
	store := newFakeStore()
	fanout := &fakeDispatcher{}
	svc := newTestService(client, store, fanout)

	sum, err := svc.Run(context.Background(), []sites.Site{
		testSite("a", urlA),
		testSite("b", urlB),
	}, true)
	if err != nil {
		t.Fatalf("Run should isolate per-site failures: %v", err)
	}

	if sum.SitesAttempted != 2 || sum.SitesFailed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.NewRecords != 1 {
		t.Fatalf("site b should still be processed, summary = %+v", sum)
	}
}

func TestRunFailsFastOnUnknownSiteType(t *testing.T) {
	client := &fakeHTTP{}
	svc := newTestService(client, newFakeStore(), &fakeDispatcher{})

	bad := testSite("bad", "https://example.com/")
	bad.Type = "machinefinder"
	good := testSite("good", "https://www.aisequip.com/used/")

	_, err := svc.Run(context.Background(), []sites.Site{good, bad}, true)
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	var unknown *scrapers.UnknownTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTypeError, got %v", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("no fetch should happen before validation, got %v", client.calls)
	}
}

func TestRunSuppressedNotificationsStillPersist(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{pages: map[string]string{
		url:              listingPage("cat-320"),
		url + "?_paged=2": emptyPage,
	}}
	store := newFakeStore()
	fanout := &fakeDispatcher{}
	svc := newTestService(client, store, fanout)

	sum, err := svc.Run(context.Background(), []sites.Site{testSite("s1", url)}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.NewRecords != 1 || len(store.records) != 1 {
		t.Fatalf("listing should persist without notifying, summary = %+v", sum)
	}
	for _, evt := range fanout.events {
		if evt.Kind == notifiers.KindListing {
			t.Fatalf("unexpected listing event while suppressed: %+v", evt)
		}
	}
}

func TestRunAlertsOnZeroListings(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{pages: map[string]string{url: emptyPage}}
	fanout := &fakeDispatcher{}
	svc := newTestService(client, newFakeStore(), fanout)

	sum, err := svc.Run(context.Background(), []sites.Site{testSite("s1", url)}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.SitesFailed != 0 {
		t.Fatalf("empty page is not a failure, summary = %+v", sum)
	}
	if len(fanout.events) != 1 || fanout.events[0].Kind != notifiers.KindAlert {
		t.Fatalf("expected one alert event, got %+v", fanout.events)
	}
}

func TestRunNotificationFailuresAreNotFatal(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{pages: map[string]string{
		url:              listingPage("cat-320"),
		url + "?_paged=2": emptyPage,
	}}
	store := newFakeStore()
	fanout := &fakeDispatcher{err: errors.New("telegram down")}
	svc := newTestService(client, store, fanout)

	sum, err := svc.Run(context.Background(), []sites.Site{testSite("s1", url)}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.NotificationsFailed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(store.records) != 1 {
		t.Fatalf("record must persist even when delivery fails")
	}
}

func TestRunPaginatesUntilEmptyPage(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{pages: map[string]string{
		url:              listingPage("k1"),
		url + "?_paged=2": listingPage("k2"),
		url + "?_paged=3": emptyPage,
	}}
	store := newFakeStore()
	svc := newTestService(client, store, &fakeDispatcher{})

	sum, err := svc.Run(context.Background(), []sites.Site{testSite("s1", url)}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.PagesFetched != 3 {
		t.Fatalf("PagesFetched = %d, want 3", sum.PagesFetched)
	}
	if sum.NewRecords != 2 {
		t.Fatalf("NewRecords = %d, want 2", sum.NewRecords)
	}
}

func TestRunHonorsMaxItems(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{pages: map[string]string{
		url: listingPage("k1", "k2", "k3"),
	}}
	store := newFakeStore()
	svc := newTestService(client, store, &fakeDispatcher{})

	site := testSite("s1", url)
	site.MaxItems = 2
	sum, err := svc.Run(context.Background(), []sites.Site{site}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.NewRecords != 2 {
		t.Fatalf("NewRecords = %d, want 2", sum.NewRecords)
	}
	if sum.PagesFetched != 1 {
		t.Fatalf("cap reached on page 1, PagesFetched = %d", sum.PagesFetched)
	}
}

func TestMarkerModeFirstRunSetsMarkerSilently(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{pages: map[string]string{url: listingPage("k2", "k1")}}
	store := newFakeStore()
	fanout := &fakeDispatcher{}
	svc := newTestService(client, store, fanout)

	site := testSite("s1", url)
	site.Tracking = sites.TrackingMarker

	sum, err := svc.Run(context.Background(), []sites.Site{site}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.NewRecords != 0 {
		t.Fatalf("first marker pass must report nothing, summary = %+v", sum)
	}
	if len(fanout.events) != 0 {
		t.Fatalf("unexpected events on first marker pass: %+v", fanout.events)
	}
	if got := store.markers[site.SearchLabel]; got != "k2" {
		t.Fatalf("marker = %q, want k2", got)
	}
}

func TestMarkerModeReportsListingsAboveMarker(t *testing.T) {
	const url = "https://www.aisequip.com/used/"
	client := &fakeHTTP{pages: map[string]string{url: listingPage("k3", "k2", "k1")}}
	store := newFakeStore()
	fanout := &fakeDispatcher{}
	svc := newTestService(client, store, fanout)

	site := testSite("s1", url)
	site.Tracking = sites.TrackingMarker
	store.markers[site.SearchLabel] = "k2"

	sum, err := svc.Run(context.Background(), []sites.Site{site}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.NewRecords != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(fanout.events) != 1 || fanout.events[0].Machine.UniqueKey != "k3" {
		t.Fatalf("expected event for k3, got %+v", fanout.events)
	}
	if got := store.markers[site.SearchLabel]; got != "k3" {
		t.Fatalf("marker should advance to k3, got %q", got)
	}
}
