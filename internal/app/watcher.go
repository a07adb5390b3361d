package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ironscout-hq/ironscout/internal/config"
	"github.com/ironscout-hq/ironscout/internal/logger"
	"github.com/ironscout-hq/ironscout/internal/storage"
	"github.com/ironscout-hq/ironscout/internal/watch"
	"github.com/ironscout-hq/ironscout/pkg/httpclient"
	"github.com/ironscout-hq/ironscout/pkg/notifiers"
	"github.com/ironscout-hq/ironscout/pkg/scrapers"
	"github.com/ironscout-hq/ironscout/pkg/sites"
)

// Watcher is the listings watcher runtime. It owns the watch loop,
// coordinating between configured sites, the watch service, the record store,
// and the notification fanout.
type Watcher struct {
	cfg           *config.Config
	siteReg       *sites.Registry
	fanout        *notifiers.Fanout
	watchService  *watch.Service
	watchInterval time.Duration
	store         storage.Store
	cycles        int
}

// notifierLog adapts the package-level logger to the notifiers logging surface.
type notifierLog struct{}

func (notifierLog) InfoObj(msg, key string, obj interface{})  { logger.InfoObj(msg, key, obj) }
func (notifierLog) DebugObj(msg, key string, obj interface{}) { logger.DebugObj(msg, key, obj) }
func (notifierLog) WarnObj(msg, key string, obj interface{})  { logger.WarnObj(msg, key, obj) }
func (notifierLog) ErrorObj(msg, key string, obj interface{}) { logger.ErrorObj(msg, key, obj) }

// NewWatcher builds a watcher runtime from config files. Every configured
// site type is resolved here so a bad entry fails startup instead of a cycle.
func NewWatcher(ctx context.Context, cfg *config.Config) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	siteReg, err := sites.LoadRegistry(cfg.SitesFile)
	if err != nil {
		return nil, fmt.Errorf("load sites registry: %w", err)
	}
	siteList := siteReg.All()
	siteIDs := make([]string, 0, len(siteList))
	for _, s := range siteList {
		siteIDs = append(siteIDs, s.ID)
	}
	logger.InfoObj("sites registry loaded", "sites_meta", map[string]any{
		"count": len(siteIDs),
		"ids":   siteIDs,
	})

	extractors := scrapers.DefaultRegistry()
	if err := extractors.Validate(siteList); err != nil {
		return nil, err
	}

	notifierReg, err := notifiers.LoadRegistry(cfg.NotifiersFile)
	if err != nil {
		return nil, fmt.Errorf("load notifiers registry: %w", err)
	}
	enabled := notifierReg.Enabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no notifiers configured")
	}

	clients, err := notifiers.BuildAll(ctx, notifiers.DefaultRegistry(), enabled, notifierLog{})
	if err != nil {
		return nil, fmt.Errorf("build notifiers: %w", err)
	}
	fanout := notifiers.NewFanout(clients)
	notifierSummaries := make([]map[string]string, 0, len(enabled))
	for _, nCfg := range enabled {
		notifierSummaries = append(notifierSummaries, map[string]string{
			"id":   nCfg.ID,
			"type": nCfg.Type,
		})
	}
	logger.InfoObj("notifiers registry loaded", "notifiers_meta", map[string]any{
		"count":     len(notifierSummaries),
		"notifiers": notifierSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	logger.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.StoragePath,
	})

	client := httpclient.NewRestyClient(cfg.HTTPTimeout, cfg.HTTPMaxRetries)
	watchService := watch.NewService(client, extractors, store, fanout)

	return &Watcher{
		cfg:           cfg,
		siteReg:       siteReg,
		fanout:        fanout,
		watchService:  watchService,
		watchInterval: cfg.WatchInterval,
		store:         store,
	}, nil
}

// Run executes the watch loop until the context is cancelled. A zero watch
// interval performs a single pass and exits.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.watchService == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	defer w.closeStore()

	enabled := w.siteReg.Enabled()
	if len(enabled) == 0 {
		logger.WarnObj("no sites enabled; nothing to watch", "sites_file", w.cfg.SitesFile)
		return nil
	}

	logger.InfoObj("watcher starting", "watcher_state", map[string]any{
		"sites_count":     len(enabled),
		"notifiers_count": w.fanout.Size(),
		"watch_interval":  w.watchInterval.String(),
		"single_run":      w.watchInterval == 0,
	})

	if w.watchInterval == 0 {
		return w.runOnce(ctx, enabled)
	}

	if err := w.runOnce(ctx, enabled); err != nil {
		logger.ErrorObj("initial watch pass failed", "error", err)
	}

	ticker := time.NewTicker(w.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoObj("watcher loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := w.runOnce(ctx, enabled); err != nil {
				logger.ErrorObj("scheduled watch pass failed", "error", err)
			}
		}
	}
}

// runOnce performs a single watch pass across all enabled sites. Listing
// notifications are suppressed on the very first pass unless configured
// otherwise, so a fresh store does not flood the channels with history.
func (w *Watcher) runOnce(ctx context.Context, cfgs []sites.Site) error {
	start := time.Now()
	notify := w.cycles > 0 || w.cfg.NotifyOnFirstCycle
	w.cycles++

	logger.InfoObj("watch pass started", "watch_meta", map[string]any{
		"sites_count": len(cfgs),
		"cycle":       w.cycles,
		"notify":      notify,
		"started_at":  start.UTC(),
	})

	sum, err := w.watchService.Run(ctx, cfgs, notify)
	if err != nil {
		return err
	}

	logger.InfoObj("watch pass completed", "watch_summary", map[string]any{
		"sites_attempted":      sum.SitesAttempted,
		"sites_failed":         sum.SitesFailed,
		"pages_fetched":        sum.PagesFetched,
		"extracted":            sum.Extracted,
		"skipped":              sum.Skipped,
		"new_records":          sum.NewRecords,
		"duplicates":           sum.Duplicates,
		"notifications_sent":   sum.NotificationsSent,
		"notifications_failed": sum.NotificationsFailed,
		"elapsed_ms":           time.Since(start).Milliseconds(),
	})
	return nil
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (w *Watcher) closeStore() {
	if w == nil || w.store == nil {
		return
	}
	if err := w.store.Close(); err != nil {
		logger.ErrorObj("storage close failed", "error", err)
	}
}
