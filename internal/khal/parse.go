// Package khal recovers events from `khal list` output relayed by a chat
// agent. The output is human oriented and may be reformatted by the agent,
// so unmatched lines are dropped instead of failing the parse.
package khal

import (
	"regexp"
	"strings"

	appLog "pinchy/internal/log"
	"pinchy/internal/model"
)

// MaxEvents caps the events returned by Parse.
const MaxEvents = 50

var (
	codeFenceRE = regexp.MustCompile("```\\w*\\n?")
	dateHeader  = regexp.MustCompile(`(?i)^(?:Today|Tomorrow|Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday),?\s+(.+)`)
)

// StripCodeFences removes markdown fence markers, keeping their content.
func StripCodeFences(s string) string {
	return strings.TrimSpace(codeFenceRE.ReplaceAllString(s, ""))
}

// state is carried across lines of one Parse call.
type state struct {
	// currentDate is the YYYY-MM-DD of the last date header, or "".
	currentDate string
}

// Parse converts raw agent output into events. Lines are tried against the
// grammars in order and the first match wins.
func Parse(raw string) []model.Event {
	events := make([]model.Event, 0)
	var st state
	dropped := 0

	for _, line := range strings.Split(StripCodeFences(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := dateHeader.FindStringSubmatch(line); m != nil {
			if d, ok := ParseDate(m[1]); ok {
				st.currentDate = d
			}
			continue
		}

		ev, ok := matchLine(line, &st)
		if !ok {
			dropped++
			continue
		}
		events = append(events, ev)
		if len(events) >= MaxEvents {
			break
		}
	}

	if dropped > 0 {
		appLog.Debug("khal output lines dropped", "dropped", dropped, "events", len(events))
	}
	return events
}

func matchLine(line string, st *state) (model.Event, bool) {
	for _, g := range grammars {
		if ev, ok := g.match(line, st); ok {
			return ev, true
		}
	}
	return model.Event{}, false
}
