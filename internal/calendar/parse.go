package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "pinchy/internal/log"
)

const (
	layoutDate      = "20060102"
	layoutDateTime  = "20060102T150405"
	layoutDateTimeZ = "20060102T150405Z"
)

var errMissingStart = errors.New("missing DTSTART")

// Definition is one VEVENT as read from a file, before expansion.
type Definition struct {
	UID      string
	Summary  string
	Location string

	Start time.Time
	// End is only meaningful when HasEnd is true.
	End    time.Time
	HasEnd bool

	// AllDay is true when DTSTART is a DATE value. EndIsDate is the same
	// for DTEND.
	AllDay    bool
	EndIsDate bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on an override of one instance of a recurring
	// definition with the same UID.
	RecurrenceID    time.Time
	HasRecurrenceID bool
}

// parseResult carries the definitions of one calendar payload plus the
// number of VEVENTs that had to be skipped.
type parseResult struct {
	Definitions []Definition
	Skipped     int
}

// readDefinitions reads and parses a calendar file. Floating and
// date-only values are interpreted in loc.
func readDefinitions(path string, loc *time.Location) (parseResult, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return parseResult{}, err
	}
	return parseDefinitions(body, loc)
}

// parseDefinitions parses an iCalendar payload into definitions. Individual
// VEVENTs that cannot be interpreted are skipped and counted.
func parseDefinitions(body []byte, loc *time.Location) (parseResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return parseResult{}, errors.New("empty calendar file")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return parseResult{}, fmt.Errorf("parse calendar: %w", err)
	}

	var res parseResult
	for _, ve := range cal.Events() {
		def, err := parseVEvent(ve, loc)
		if err != nil {
			appLog.Debug("calendar vevent skipped", "reason", err)
			res.Skipped++
			continue
		}
		res.Definitions = append(res.Definitions, def)
	}
	applyOverrides(res.Definitions)
	return res, nil
}

// applyOverrides excludes overridden instances from their master rule so
// a moved instance shows only at its new slot. Overrides are expanded like
// single events.
func applyOverrides(defs []Definition) {
	overridden := make(map[string][]time.Time)
	for _, d := range defs {
		if d.HasRecurrenceID && d.UID != "" {
			overridden[d.UID] = append(overridden[d.UID], d.RecurrenceID)
		}
	}
	if len(overridden) == 0 {
		return
	}
	for i := range defs {
		d := &defs[i]
		if d.RRule == "" || d.HasRecurrenceID {
			continue
		}
		d.ExDates = append(d.ExDates, overridden[d.UID]...)
	}
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (Definition, error) {
	var out Definition

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil || strings.TrimSpace(startProp.Value) == "" {
		return out, errMissingStart
	}
	start, dateOnly, err := parseTimeValue(startProp.Value, startProp.ICalParameters, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = dateOnly

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil && strings.TrimSpace(endProp.Value) != "" {
		// An unreadable DTEND degrades to "no end" rather than dropping the event.
		if end, endDate, err := parseTimeValue(endProp.Value, endProp.ICalParameters, loc); err == nil {
			out.End = end
			out.EndIsDate = endDate
			out.HasEnd = true
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil && strings.TrimSpace(p.Value) != "" {
		if rid, _, err := parseTimeValue(p.Value, p.ICalParameters, loc); err == nil {
			out.RecurrenceID = rid
			out.HasRecurrenceID = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && !out.HasRecurrenceID {
		out.RRule = strings.TrimSpace(p.Value)
	}

	// EXDATE can appear multiple times and hold comma separated values.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := parseTimeValue(part, p.ICalParameters, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, nil
}

// parseTimeValue interprets a DATE or DATE-TIME value.
//
//   - VALUE=DATE or an 8 digit value: midnight in loc, dateOnly = true
//   - trailing Z: UTC
//   - TZID parameter: wall clock in that zone (loc if the zone is unknown)
//   - otherwise floating: wall clock in loc
func parseTimeValue(v string, params map[string][]string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}

	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") || !strings.Contains(v, "T") {
		if len(v) > len(layoutDate) {
			v = v[:len(layoutDate)]
		}
		t, err = time.ParseInLocation(layoutDate, v, loc)
		return t, true, err
	}

	if strings.HasSuffix(v, "Z") {
		t, err = time.Parse(layoutDateTimeZ, v)
		return t, false, err
	}

	zone := loc
	if tzs := params["TZID"]; len(tzs) > 0 && tzs[0] != "" {
		zone = loadZone(tzs[0], loc)
	}
	t, err = time.ParseInLocation(layoutDateTime, v, zone)
	return t, false, err
}

// loadZone resolves a TZID, tolerating quoted values and the
// "/mozilla.org/.../Europe/Berlin" style prefixes some clients emit.
func loadZone(tzid string, fallback *time.Location) *time.Location {
	name := strings.Trim(tzid, `"`)
	if z, err := time.LoadLocation(name); err == nil {
		return z
	}
	parts := strings.Split(strings.Trim(name, "/"), "/")
	for i := range parts {
		if z, err := time.LoadLocation(strings.Join(parts[i:], "/")); err == nil {
			return z
		}
	}
	appLog.Debug("unknown TZID, using display zone", "tzid", tzid, "zone", fallback.String())
	return fallback
}
