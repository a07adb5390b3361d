package domain

import "time"

// Domain contains core models shared across the watcher.

// Unknown is the sentinel stored for optional listing fields the source
// page does not expose.
const Unknown = "unknown"

// Machine is one machinery listing snapshot. Identity is the composite of
// (SiteType, SearchLabel, UniqueKey); everything else is presentation data
// frozen at the moment the listing was first seen.
type Machine struct {
	SiteType    string    `json:"site_type"`
	SearchLabel string    `json:"search_label"`
	UniqueKey   string    `json:"unique_key"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Price       string    `json:"price"`
	Year        string    `json:"year"`
	Hours       string    `json:"hours"`
	Location    string    `json:"location"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"image_url"`
	FirstSeen   time.Time `json:"first_seen"`
}
