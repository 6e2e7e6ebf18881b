package model

import "time"

// Occurrence is one concrete instance of a calendar entry after recurrence
// expansion and timezone resolution.
type Occurrence struct {
	SourceID string `json:"source_id"` // feed or rule ID from the config
	UID      string `json:"uid"`       // iCalendar UID

	// InstanceKey identifies the occurrence within its series. It is the
	// original (pre-override) start instant in UTC.
	InstanceKey string `json:"instance_key"`

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	AllDay bool `json:"all_day"`
	// Overridden is set when a RECURRENCE-ID instance replaced the
	// generated occurrence.
	Overridden bool `json:"overridden,omitempty"`

	// Start / End are in the configured display timezone.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Key returns a stable identifier for the occurrence across refreshes.
func (o Occurrence) Key() string {
	return o.SourceID + "/" + o.UID + "/" + o.InstanceKey
}

// InstanceKeyFor formats an original start instant as an InstanceKey.
func InstanceKeyFor(start time.Time) string {
	return start.UTC().Format("20060102T150405Z")
}
