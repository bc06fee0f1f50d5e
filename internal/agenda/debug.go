package agenda

import (
	"context"

	"pinchy/internal/khal"
	"pinchy/internal/model"
)

// FileReport summarizes one parsed calendar file.
type FileReport struct {
	Path               string `json:"path"`
	Events             int    `json:"events"`
	SkippedDefinitions int    `json:"skipped_definitions,omitempty"`
	Error              string `json:"error,omitempty"`
}

// GatewayReport is the raw gateway answer and what the text parser made of it.
type GatewayReport struct {
	Configured bool          `json:"configured"`
	Raw        string        `json:"raw,omitempty"`
	Events     []model.Event `json:"events"`
	Error      string        `json:"error,omitempty"`
}

// DebugReport explains how an events lookup would be answered.
type DebugReport struct {
	ConfiguredPath string        `json:"configured_path"`
	Candidates     []string      `json:"candidates"`
	ResolvedPath   string        `json:"resolved_path"`
	PathSource     string        `json:"path_source"`
	Days           int           `json:"days"`
	WindowStart    string        `json:"window_start"`
	WindowEnd      string        `json:"window_end"`
	Files          []FileReport  `json:"files"`
	Gateway        GatewayReport `json:"gateway"`
}

// Debug walks both sources for the default window without caching or
// short-circuiting, and reports what each produced.
func (s *Service) Debug(ctx context.Context) DebugReport {
	configured := s.CalendarPath()
	w := s.aggregator.Window(defaultDays)

	rep := DebugReport{
		ConfiguredPath: configured,
		Candidates:     s.resolver.Candidates(configured),
		PathSource:     string(SourceNone),
		Days:           defaultDays,
		WindowStart:    w.FirstDate(),
		WindowEnd:      w.LastDate(),
		Files:          []FileReport{},
		Gateway:        GatewayReport{Events: []model.Event{}},
	}

	if root, prov, ok := s.resolver.Resolve(configured); ok {
		rep.ResolvedPath = root
		rep.PathSource = string(prov)
		for _, r := range s.aggregator.Collect(root, s.selected(), w) {
			fr := FileReport{Path: r.Path, Events: len(r.Events), SkippedDefinitions: r.SkippedDefinitions}
			if r.Err != nil {
				fr.Error = r.Err.Error()
			}
			rep.Files = append(rep.Files, fr)
		}
	}

	if !s.gatewayReady() {
		rep.Gateway.Error = "gateway not configured"
		return rep
	}
	rep.Gateway.Configured = true
	raw, err := s.gateway.ListEvents(ctx, defaultDays)
	if err != nil {
		rep.Gateway.Error = err.Error()
		return rep
	}
	rep.Gateway.Raw = raw
	rep.Gateway.Events = khal.Parse(raw)
	return rep
}
