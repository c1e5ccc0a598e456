// Package event defines the telemetry record types accepted by the collector
// and the validation rules applied to inbound payloads.
package event

import "time"

// Type identifies the kind of telemetry carried by an inbound payload.
type Type string

// Known telemetry types.
const (
	TypePageview     Type = "pageview"
	TypeEvent        Type = "event"
	TypePageviewAnon Type = "pageview-anon"
)

// Field caps applied during normalization. Values beyond these limits are
// truncated, except the payload which is rejected outright.
const (
	MaxURLLen        = 2048
	MaxUserAgentLen  = 512
	MaxNameLen       = 64
	MaxResolutionLen = 20
	MaxPayloadBytes  = 2048
)

// PageviewRecord is a stored pageview row. The anonymous variant carries only
// URL, UserAgent and IPAddress.
type PageviewRecord struct {
	URL              string     `db:"url"`
	UserAgent        string     `db:"user_agent"`
	IPAddress        string     `db:"ip_address"`
	PageLoadTime     *int64     `db:"page_load_time"`
	ScreenResolution *string    `db:"screen_resolution"`
	CreatedAt        *time.Time `db:"created_at"` // nil lets the database default apply
}

// EventRecord is a stored interaction-event row.
type EventRecord struct {
	URL       string     `db:"url"`
	UserAgent string     `db:"user_agent"`
	IPAddress string     `db:"ip_address"`
	Name      string     `db:"event_name"`
	Category  string     `db:"event_category"`
	Label     *string    `db:"event_label"`
	Payload   []byte     `db:"payload"`
	CreatedAt *time.Time `db:"created_at"`
}
