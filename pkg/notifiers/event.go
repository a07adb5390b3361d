package notifiers

import (
	"time"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

// EventKind distinguishes listing notifications from operational alerts.
type EventKind string

const (
	KindListing EventKind = "listing"
	KindAlert   EventKind = "alert"
)

// Event represents the payload delivered downstream.
type Event struct {
	Kind        EventKind      `json:"kind"`
	SiteID      string         `json:"site_id"`
	SiteType    string         `json:"site_type"`
	SearchLabel string         `json:"search_label"`
	Machine     domain.Machine `json:"machine"`
	Message     string         `json:"message,omitempty"`
	DetectedAt  time.Time      `json:"detected_at"`
}

// NewListingEvent constructs an Event for a newly persisted listing.
func NewListingEvent(siteID string, m domain.Machine) Event {
	return Event{
		Kind:        KindListing,
		SiteID:      siteID,
		SiteType:    m.SiteType,
		SearchLabel: m.SearchLabel,
		Machine:     m,
		DetectedAt:  time.Now().UTC(),
	}
}

// NewAlertEvent constructs an operational alert (e.g., a site returned zero
// listings, which usually means the page layout changed).
func NewAlertEvent(siteID, siteType, searchLabel, message string) Event {
	return Event{
		Kind:        KindAlert,
		SiteID:      siteID,
		SiteType:    siteType,
		SearchLabel: searchLabel,
		Message:     message,
		DetectedAt:  time.Now().UTC(),
	}
}
