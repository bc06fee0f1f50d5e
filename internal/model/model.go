package model

// AllDayMarker is the literal placed in Event.Time for events without a
// time-of-day component. The dashboard frontend matches on it.
const AllDayMarker = "All day"

// KhalCalendar is the calendar tag for events recovered from khal text output.
const KhalCalendar = "khal"

// Event is a single concrete occurrence as served to the dashboard.
// Both the ICS path and the khal text fallback produce this shape.
type Event struct {
	Date     string `json:"date"`     // YYYY-MM-DD
	Time     string `json:"time"`     // HH:MM or AllDayMarker
	End      string `json:"end"`      // HH:MM or ""
	Title    string `json:"title"`    // never empty after normalization
	Location string `json:"location"` // may be empty
	Calendar string `json:"calendar"` // collection display name or KhalCalendar
	AllDay   bool   `json:"all_day"`
}

// Collection describes one calendar directory under a vdir root.
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	// EventCount is the number of .ics files, not the number of occurrences.
	EventCount int    `json:"event_count"`
	Color      string `json:"color"`
}
