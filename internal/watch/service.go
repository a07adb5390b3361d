package watch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ironscout-hq/ironscout/internal/domain"
	"github.com/ironscout-hq/ironscout/internal/logger"
	"github.com/ironscout-hq/ironscout/internal/reconcile"
	"github.com/ironscout-hq/ironscout/internal/storage"
	"github.com/ironscout-hq/ironscout/pkg/httpclient"
	"github.com/ironscout-hq/ironscout/pkg/notifiers"
	"github.com/ironscout-hq/ironscout/pkg/scrapers"
	"github.com/ironscout-hq/ironscout/pkg/sites"
)

// FetchError marks a failure confined to one site's page retrieval or parsing.
// Such failures are logged and skipped; the rest of the run proceeds.
type FetchError struct {
	SiteID string
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch site %q (%s): %v", e.SiteID, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Dispatcher is the notification fan-out the service delivers events through.
type Dispatcher interface {
	Notify(ctx context.Context, evt notifiers.Event) (int, error)
	Size() int
}

// Summary aggregates the counters of one watch pass across all sites.
type Summary struct {
	SitesAttempted      int
	SitesFailed         int
	PagesFetched        int
	Extracted           int
	Skipped             int
	NewRecords          int
	Duplicates          int
	NotificationsSent   int
	NotificationsFailed int
}

// Service runs one watch pass: fetch every configured site, extract listings,
// reconcile them against the record store, and notify for the new ones.
type Service struct {
	client     httpclient.Client
	extractors *scrapers.Registry
	store      storage.Store
	reconciler *reconcile.Reconciler
	fanout     Dispatcher
}

// NewService wires a watch service from its collaborators.
func NewService(client httpclient.Client, extractors *scrapers.Registry, store storage.Store, fanout Dispatcher) *Service {
	return &Service{
		client:     client,
		extractors: extractors,
		store:      store,
		reconciler: reconcile.NewReconciler(store),
		fanout:     fanout,
	}
}

// Run executes one watch pass over the given sites. Every site type is
// resolved before the first request so a misconfigured entry fails the run
// without touching the network. When notify is false, new listings are still
// persisted but no events go out.
func (s *Service) Run(ctx context.Context, cfgs []sites.Site, notify bool) (Summary, error) {
	var sum Summary

	if s == nil || s.extractors == nil {
		return sum, fmt.Errorf("watch service is not initialized")
	}
	if len(cfgs) == 0 {
		return sum, fmt.Errorf("no sites configured for watching")
	}

	if err := s.extractors.Validate(cfgs); err != nil {
		return sum, err
	}

	for _, site := range cfgs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		sum.SitesAttempted++
		if err := s.runSite(ctx, site, notify, &sum); err != nil {
			var fetchErr *FetchError
			if errors.As(err, &fetchErr) {
				sum.SitesFailed++
				logger.ErrorObj("site watch failed", "site_error", map[string]any{
					"site_id": site.ID,
					"url":     fetchErr.URL,
					"error":   err.Error(),
				})
				continue
			}
			return sum, fmt.Errorf("site %q: %w", site.ID, err)
		}
	}

	return sum, nil
}

func (s *Service) runSite(ctx context.Context, site sites.Site, notify bool, sum *Summary) error {
	extractor, err := s.extractors.ExtractorFor(site.Type)
	if err != nil {
		return err
	}

	if site.Tracking == sites.TrackingMarker {
		return s.runMarkerSite(ctx, site, extractor, notify, sum)
	}
	return s.runStoreSite(ctx, site, extractor, notify, sum)
}

// runStoreSite walks the site's pages, reconciles every extracted listing
// against the record store, and notifies for the newly persisted ones. A fetch
// failure partway through pagination only skips the site's remaining pages:
// listings collected from the pages that did load are still reconciled and
// notified, and the fetch error is reported afterwards.
func (s *Service) runStoreSite(ctx context.Context, site sites.Site, extractor scrapers.Extractor, notify bool, sum *Summary) error {
	candidates, fetchErr := s.collectPages(ctx, site, extractor, sum)
	if fetchErr != nil {
		var fe *FetchError
		if !errors.As(fetchErr, &fe) || len(candidates) == 0 {
			return fetchErr
		}
	}

	if len(candidates) == 0 {
		s.alertZeroListings(ctx, site, sum)
		return nil
	}

	for i := range candidates {
		candidates[i].SearchLabel = site.SearchLabel
	}

	res, err := s.reconciler.Reconcile(candidates)
	if err != nil {
		return err
	}
	sum.NewRecords += len(res.New)
	sum.Duplicates += res.Duplicates

	logger.InfoObj("site watch completed", "site_result", map[string]any{
		"site_id":    site.ID,
		"extracted":  len(candidates),
		"new":        len(res.New),
		"duplicates": res.Duplicates,
	})

	if notify {
		s.notifyListings(ctx, site, res.New, sum)
	}
	return fetchErr
}

// runMarkerSite only remembers the newest listing key per search: everything
// above the stored marker on the first page counts as new. With no stored
// marker this is the first pass, so the marker is set and nothing is reported.
func (s *Service) runMarkerSite(ctx context.Context, site sites.Site, extractor scrapers.Extractor, notify bool, sum *Summary) error {
	doc, err := s.fetchPage(ctx, site, site.URL)
	if err != nil {
		return err
	}
	sum.PagesFetched++

	ext := extractor.Extract(doc)
	sum.Extracted += len(ext.Machines)
	sum.Skipped += ext.Skipped

	if len(ext.Machines) == 0 {
		s.alertZeroListings(ctx, site, sum)
		return nil
	}

	for i := range ext.Machines {
		ext.Machines[i].SearchLabel = site.SearchLabel
	}

	marker, err := s.store.Marker(site.SearchLabel)
	if err != nil {
		return fmt.Errorf("load marker: %w", err)
	}

	var fresh []domain.Machine
	if marker != "" {
		for _, m := range ext.Machines {
			if m.UniqueKey == marker {
				break
			}
			fresh = append(fresh, m)
		}
	}

	if err := s.store.SaveMarker(site.SearchLabel, ext.Machines[0].UniqueKey); err != nil {
		return fmt.Errorf("save marker: %w", err)
	}
	sum.NewRecords += len(fresh)

	logger.InfoObj("site watch completed", "site_result", map[string]any{
		"site_id":   site.ID,
		"extracted": len(ext.Machines),
		"new":       len(fresh),
		"first_run": marker == "",
	})

	if notify {
		s.notifyListings(ctx, site, fresh, sum)
	}
	return nil
}

// collectPages fetches the site's listing pages in order until a page comes
// back empty, the page cap is reached, or the extractor has no pagination.
func (s *Service) collectPages(ctx context.Context, site sites.Site, extractor scrapers.Extractor, sum *Summary) ([]domain.Machine, error) {
	paginator, paged := extractor.(scrapers.Paginator)

	var collected []domain.Machine
	for page := 1; page <= site.MaxPages; page++ {
		pageURL := site.URL
		if page > 1 {
			var err error
			pageURL, err = paginator.PageURL(site.URL, page)
			if err != nil {
				return collected, &FetchError{SiteID: site.ID, URL: site.URL, Err: err}
			}
			if err := sleepCtx(ctx, site.RequestDelay()); err != nil {
				return collected, err
			}
		}

		doc, err := s.fetchPage(ctx, site, pageURL)
		if err != nil {
			return collected, err
		}
		sum.PagesFetched++

		ext := extractor.Extract(doc)
		sum.Extracted += len(ext.Machines)
		sum.Skipped += ext.Skipped

		if len(ext.Machines) == 0 {
			break
		}
		collected = append(collected, ext.Machines...)

		if site.MaxItems > 0 && len(collected) >= site.MaxItems {
			collected = collected[:site.MaxItems]
			break
		}
		if !paged {
			break
		}
	}

	return collected, nil
}

func (s *Service) fetchPage(ctx context.Context, site sites.Site, pageURL string) (*goquery.Document, error) {
	resp, err := s.client.Get(ctx, pageURL, site.Headers())
	if err != nil {
		return nil, &FetchError{SiteID: site.ID, URL: pageURL, Err: err}
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, &FetchError{SiteID: site.ID, URL: pageURL, Err: fmt.Errorf("unexpected status %d", code)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, &FetchError{SiteID: site.ID, URL: pageURL, Err: fmt.Errorf("parse page: %w", err)}
	}
	return doc, nil
}

// notifyListings sends one event per new listing. Delivery failures are
// counted and logged; they never fail the site.
func (s *Service) notifyListings(ctx context.Context, site sites.Site, machines []domain.Machine, sum *Summary) {
	if s.fanout == nil || s.fanout.Size() == 0 {
		return
	}

	for _, m := range machines {
		sent, err := s.fanout.Notify(ctx, notifiers.NewListingEvent(site.ID, m))
		sum.NotificationsSent += sent
		if err != nil {
			sum.NotificationsFailed++
			logger.WarnObj("listing notification failed", "notify_error", map[string]any{
				"site_id":    site.ID,
				"unique_key": m.UniqueKey,
				"error":      err.Error(),
			})
		}
	}
}

// alertZeroListings raises an operational alert when a page yields nothing,
// which usually means the site changed its layout.
func (s *Service) alertZeroListings(ctx context.Context, site sites.Site, sum *Summary) {
	logger.WarnObj("site returned zero listings", "site_alert", map[string]any{
		"site_id": site.ID,
		"url":     site.URL,
	})

	if s.fanout == nil || s.fanout.Size() == 0 {
		return
	}

	evt := notifiers.NewAlertEvent(site.ID, site.Type, site.SearchLabel,
		fmt.Sprintf("no listings extracted from %s; the page layout may have changed", site.URL))
	sent, err := s.fanout.Notify(ctx, evt)
	sum.NotificationsSent += sent
	if err != nil {
		sum.NotificationsFailed++
		logger.WarnObj("alert notification failed", "notify_error", map[string]any{
			"site_id": site.ID,
			"error":   err.Error(),
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
