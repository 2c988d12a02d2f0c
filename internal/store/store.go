// Package store is the queryable event cache behind the read API. It owns
// every lifecycle transition and is the only component that writes the
// snapshot file; queries read a consistent in-memory state guarded by a
// read-write lock.
//
// Commit is all-or-nothing: the next state is persisted to disk before it
// becomes visible, so a failed write leaves the previous committed state
// authoritative both in memory and on disk.
package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crisis-aggregator/internal/dedup"
	"github.com/couchcryptid/crisis-aggregator/internal/domain"
	"github.com/couchcryptid/crisis-aggregator/internal/observability"
)

// Options holds the lifecycle windows sourced from config.
type Options struct {
	SnapshotPath    string
	StalenessWindow time.Duration // without re-observation, NEW/ACTIVE turn STALE
	ArchiveWindow   time.Duration // STALE events this old turn ARCHIVED
	RetentionWindow time.Duration // ARCHIVED events this old are dropped
}

// Store holds the committed event state.
type Store struct {
	mu     sync.RWMutex
	events map[string]domain.DisasterEvent

	// memberIndex maps per-member identity hashes to the event that absorbed
	// them, so a cluster that grew a new representative still updates the
	// event it committed as in an earlier cycle.
	memberIndex map[string]string

	lastRefreshAt time.Time
	degraded      bool

	opts    Options
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

func New(opts Options, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Store {
	return &Store{
		events:      make(map[string]domain.DisasterEvent),
		memberIndex: make(map[string]string),
		opts:        opts,
		clock:       clock,
		metrics:     metrics,
		logger:      logger,
	}
}

// CommitResult summarizes what a cycle's commit changed. CommittedIDs holds
// the final event IDs in commit order, which differ from the incoming IDs
// when a cluster matched an event from an earlier cycle.
type CommitResult struct {
	Created      int
	Updated      int
	CommittedIDs []string
}

// Commit applies one cycle's merged events. Events seen in earlier cycles
// are updated in place, keeping their ID and ingest timestamp; a NEW or
// STALE event that is re-observed becomes ACTIVE. The new state is written
// to the snapshot before it becomes queryable; a persistence failure leaves
// the previous state authoritative and returns the error.
func (s *Store) Commit(merged []dedup.Merged, degraded bool) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()

	next := make(map[string]domain.DisasterEvent, len(s.events)+len(merged))
	for id, ev := range s.events {
		next[id] = ev
	}
	nextIndex := make(map[string]string, len(s.memberIndex))
	for m, id := range s.memberIndex {
		nextIndex[m] = id
	}

	var result CommitResult
	for _, m := range merged {
		incoming := m.Event

		existingID, known := s.matchExisting(m.MemberIDs)
		if !known {
			incoming.TimestampIngested = now
			incoming.LastUpdatedAt = now
			incoming.LifecycleState = domain.LifecycleNew
			next[incoming.ID] = incoming
			result.Created++
		} else {
			prev := next[existingID]
			incoming.ID = prev.ID
			incoming.TimestampIngested = prev.TimestampIngested
			incoming.LastUpdatedAt = now
			incoming.LifecycleState = domain.LifecycleActive
			next[prev.ID] = incoming
			result.Updated++
		}

		result.CommittedIDs = append(result.CommittedIDs, incoming.ID)
		for _, memberID := range m.MemberIDs {
			nextIndex[memberID] = incoming.ID
		}
	}

	if err := s.saveSnapshot(next, nextIndex, now); err != nil {
		s.metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return CommitResult{}, err
	}
	s.metrics.SnapshotWrites.WithLabelValues("ok").Inc()

	s.events = next
	s.memberIndex = nextIndex
	s.lastRefreshAt = now
	s.degraded = degraded

	s.metrics.EventsUpserted.WithLabelValues("created").Add(float64(result.Created))
	s.metrics.EventsUpserted.WithLabelValues("updated").Add(float64(result.Updated))
	s.updateGauges()
	return result, nil
}

// matchExisting returns the committed event, if any, that already absorbed
// one of the cluster's members.
func (s *Store) matchExisting(memberIDs []string) (string, bool) {
	for _, memberID := range memberIDs {
		if eventID, ok := s.memberIndex[memberID]; ok {
			if _, live := s.events[eventID]; live {
				return eventID, true
			}
		}
	}
	return "", false
}

// Sweep advances lifecycle states by age: unrefreshed NEW/ACTIVE events turn
// STALE, old STALE events are ARCHIVED, and archived events past retention
// are dropped. The swept state persists like a commit.
func (s *Store) Sweep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	next := make(map[string]domain.DisasterEvent, len(s.events))
	nextIndex := make(map[string]string, len(s.memberIndex))

	var toStale, toArchived, dropped int
	for id, ev := range s.events {
		age := now.Sub(ev.LastUpdatedAt)
		switch {
		case ev.LifecycleState.Live() && age > s.opts.StalenessWindow:
			ev.LifecycleState = domain.LifecycleStale
			toStale++
		case ev.LifecycleState == domain.LifecycleStale && age > s.opts.ArchiveWindow:
			ev.LifecycleState = domain.LifecycleArchived
			toArchived++
		case ev.LifecycleState == domain.LifecycleArchived && age > s.opts.RetentionWindow:
			dropped++
			continue
		}
		next[id] = ev
	}
	for memberID, eventID := range s.memberIndex {
		if _, ok := next[eventID]; ok {
			nextIndex[memberID] = eventID
		}
	}

	if toStale == 0 && toArchived == 0 && dropped == 0 {
		return nil
	}

	if err := s.saveSnapshot(next, nextIndex, s.lastRefreshAt); err != nil {
		s.metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return err
	}
	s.metrics.SnapshotWrites.WithLabelValues("ok").Inc()

	s.events = next
	s.memberIndex = nextIndex
	s.updateGauges()

	s.logger.Info("lifecycle sweep complete",
		"stale", toStale, "archived", toArchived, "dropped", dropped)
	return nil
}

// Filter narrows Search results. Zero values mean "any".
type Filter struct {
	Category     domain.Category
	Region       string // substring match on resolved location text
	MinSeverity  domain.Severity
	Text         string // substring match on title
	IncludeStale bool   // include STALE and ARCHIVED events
	Limit        int
}

// Search returns matching events ranked by severity, then recency. Default
// queries see only live events; stale and archived states are opt-in.
func (s *Store) Search(f Filter) []domain.DisasterEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DisasterEvent
	for _, ev := range s.events {
		if !f.IncludeStale && !ev.LifecycleState.Live() {
			continue
		}
		if f.Category != "" && ev.Category != f.Category {
			continue
		}
		if ev.Severity < f.MinSeverity {
			continue
		}
		if f.Region != "" && !strings.Contains(strings.ToLower(ev.Location.Text), strings.ToLower(f.Region)) {
			continue
		}
		if f.Text != "" && !strings.Contains(strings.ToLower(ev.Title), strings.ToLower(f.Text)) {
			continue
		}
		out = append(out, ev)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if !out[i].TimestampObserved.Equal(out[j].TimestampObserved) {
			return out[i].TimestampObserved.After(out[j].TimestampObserved)
		}
		return out[i].ID < out[j].ID
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Get returns one event by ID.
func (s *Store) Get(id string) (domain.DisasterEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	return ev, ok
}

// Stats describes the committed state for the stats endpoint.
type Stats struct {
	Total         int                           `json:"total"`
	ByState       map[domain.LifecycleState]int `json:"by_state"`
	ByCategory    map[domain.Category]int       `json:"by_category"`
	LastRefreshAt time.Time                     `json:"last_refresh_at"`
	Degraded      bool                          `json:"degraded"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Total:         len(s.events),
		ByState:       make(map[domain.LifecycleState]int),
		ByCategory:    make(map[domain.Category]int),
		LastRefreshAt: s.lastRefreshAt,
		Degraded:      s.degraded,
	}
	for _, ev := range s.events {
		stats.ByState[ev.LifecycleState]++
		stats.ByCategory[ev.Category]++
	}
	return stats
}

// LastRefreshAt reports when the last cycle committed.
func (s *Store) LastRefreshAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefreshAt
}

// Degraded reports whether the last committed cycle was missing sources.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// updateGauges refreshes the per-state event gauges. Caller holds the lock.
func (s *Store) updateGauges() {
	counts := map[domain.LifecycleState]int{
		domain.LifecycleNew: 0, domain.LifecycleActive: 0,
		domain.LifecycleStale: 0, domain.LifecycleArchived: 0,
	}
	for _, ev := range s.events {
		counts[ev.LifecycleState]++
	}
	for state, n := range counts {
		s.metrics.StoreEvents.WithLabelValues(string(state)).Set(float64(n))
	}
}
