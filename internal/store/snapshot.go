package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// snapshotVersion guards the on-disk format. A snapshot written by an
// incompatible build reads as corrupt and the cache rebuilds from sources.
const snapshotVersion = 1

// snapshot is the on-disk cache format. Events are stored sorted by ID so
// consecutive snapshots of the same state are byte-identical.
type snapshot struct {
	Version       int                    `json:"version"`
	LastRefreshAt time.Time              `json:"last_refresh_at"`
	Events        []domain.DisasterEvent `json:"events"`
	MemberIndex   map[string]string      `json:"member_index"`
}

// saveSnapshot persists the given state atomically: written to a temp file
// in the same directory, synced, then renamed over the previous snapshot.
// Caller holds the lock.
func (s *Store) saveSnapshot(events map[string]domain.DisasterEvent, memberIndex map[string]string, lastRefreshAt time.Time) error {
	snap := snapshot{
		Version:       snapshotVersion,
		LastRefreshAt: lastRefreshAt,
		Events:        make([]domain.DisasterEvent, 0, len(events)),
		MemberIndex:   memberIndex,
	}
	for _, ev := range events {
		snap.Events = append(snap.Events, ev)
	}
	sort.Slice(snap.Events, func(i, j int) bool { return snap.Events[i].ID < snap.Events[j].ID })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.opts.SnapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.opts.SnapshotPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores committed state from disk. A missing file is a
// clean first start. A snapshot that cannot be parsed, or was written in an
// incompatible format, returns ErrCacheCorrupt; the caller starts empty and
// the next refresh cycle rebuilds the cache.
func (s *Store) LoadSnapshot() error {
	data, err := os.ReadFile(s.opts.SnapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheCorrupt, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: snapshot version %d, want %d", domain.ErrCacheCorrupt, snap.Version, snapshotVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make(map[string]domain.DisasterEvent, len(snap.Events))
	for _, ev := range snap.Events {
		s.events[ev.ID] = ev
	}
	s.memberIndex = snap.MemberIndex
	if s.memberIndex == nil {
		s.memberIndex = make(map[string]string)
	}
	s.lastRefreshAt = snap.LastRefreshAt
	s.updateGauges()

	s.logger.Info("snapshot loaded",
		"events", len(s.events), "last_refresh_at", s.lastRefreshAt)
	return nil
}
