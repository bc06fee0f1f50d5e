// Package agenda answers "what is on the calendar" from the local vdir
// tree, falling back to khal output relayed by the OpenClaw gateway.
package agenda

import (
	"context"
	"sync"
	"time"

	"pinchy/internal/calendar"
	"pinchy/internal/config"
	"pinchy/internal/khal"
	appLog "pinchy/internal/log"
	"pinchy/internal/model"
)

// Source tags where a result came from.
type Source string

const (
	SourceICS     Source = "ics"
	SourceGateway Source = "gateway"
	SourceNone    Source = "none"
)

const defaultDays = 7

// Gateway is the fallback used when no local events are available.
type Gateway interface {
	Configured() bool
	ListEvents(ctx context.Context, days int) (string, error)
	ListCalendars(ctx context.Context) ([]model.Collection, error)
}

// Result is the answer to an events lookup.
type Result struct {
	Events []model.Event `json:"events"`
	Source Source        `json:"source"`
}

// Discovery lists calendar collections and where they were found.
type Discovery struct {
	Calendars []model.Collection `json:"calendars"`
	Path      string             `json:"calendar_path"`
	Source    string             `json:"source"`
	Found     bool               `json:"found"`
}

// Service combines local aggregation with the gateway fallback.
//
// OnDetected, when set, is called with a root found through the fallback
// paths so the caller can persist it as the configured path.
type Service struct {
	resolver   *calendar.Resolver
	aggregator *calendar.Aggregator
	gateway    Gateway

	OnDetected func(path string) error

	mu           sync.RWMutex
	calendarPath string
	enabled      []string
}

// New builds a Service from cfg. gw may be nil.
func New(cfg *config.Config, gw Gateway) *Service {
	return &Service{
		resolver:     calendar.NewResolver(cfg.FallbackPaths),
		aggregator:   calendar.NewAggregator(LoadLocation(cfg.Timezone)),
		gateway:      gw,
		calendarPath: cfg.CalendarPath,
		enabled:      append([]string(nil), cfg.EnabledCalendars...),
	}
}

// SetClock pins the aggregator clock.
func (s *Service) SetClock(now func() time.Time) {
	s.aggregator.Now = now
}

// CalendarPath returns the current configured root.
func (s *Service) CalendarPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calendarPath
}

// ClampDays maps a requested lookahead to [1, 90]; non-positive means 7.
func ClampDays(days int) int {
	if days <= 0 {
		return defaultDays
	}
	if days > calendar.MaxDaysAhead {
		return calendar.MaxDaysAhead
	}
	return days
}

// resolve finds the root and adopts an auto-detected one.
func (s *Service) resolve() (string, calendar.Provenance, bool) {
	s.mu.RLock()
	configured := s.calendarPath
	s.mu.RUnlock()

	root, prov, ok := s.resolver.Resolve(configured)
	if !ok || prov != calendar.ProvenanceAutoDetected {
		return root, prov, ok
	}

	s.mu.Lock()
	changed := s.calendarPath != root
	s.calendarPath = root
	s.mu.Unlock()

	if changed {
		appLog.Info("calendar root auto-detected", "path", root, "previous", configured)
		if s.OnDetected != nil {
			if err := s.OnDetected(root); err != nil {
				appLog.Warn("failed to persist calendar root", "err", err, "path", root)
			}
		}
	}
	return root, prov, ok
}

func (s *Service) selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.enabled...)
}

func (s *Service) gatewayReady() bool {
	return s.gateway != nil && s.gateway.Configured()
}

// Events returns upcoming events for the next days. Local files win when
// they produce anything; the gateway is asked otherwise.
func (s *Service) Events(ctx context.Context, days int) Result {
	days = ClampDays(days)

	if root, _, ok := s.resolve(); ok {
		events := s.aggregator.Aggregate(root, s.selected(), days)
		if len(events) > 0 {
			return Result{Events: events, Source: SourceICS}
		}
		appLog.Debug("no local events; trying gateway", "root", root, "days", days)
	}

	if s.gatewayReady() {
		raw, err := s.gateway.ListEvents(ctx, days)
		if err != nil {
			appLog.Warn("gateway events failed", "err", err, "days", days)
		} else if events := khal.Parse(raw); len(events) > 0 {
			return Result{Events: events, Source: SourceGateway}
		}
	}

	return Result{Events: []model.Event{}, Source: SourceNone}
}

// Discover lists collections under the resolved root, or asks the gateway
// for khal's calendar names.
func (s *Service) Discover(ctx context.Context) Discovery {
	if root, prov, ok := s.resolve(); ok {
		return Discovery{
			Calendars: calendar.ListCollections(root),
			Path:      root,
			Source:    string(prov),
			Found:     true,
		}
	}

	if s.gatewayReady() {
		cals, err := s.gateway.ListCalendars(ctx)
		if err != nil {
			appLog.Warn("gateway calendar discovery failed", "err", err)
		} else if len(cals) > 0 {
			return Discovery{Calendars: cals, Path: "gateway", Source: string(SourceGateway), Found: true}
		}
	}

	return Discovery{Calendars: []model.Collection{}, Path: s.CalendarPath(), Source: string(SourceNone)}
}

// LoadLocation resolves an IANA zone name, falling back to time.Local.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}
