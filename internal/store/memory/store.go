// Package memory provides in-memory store implementations for
// development/testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/huntwise/regwatch/internal/regdata"
)

// LKGStore holds last-known-good snapshots keyed by source.
type LKGStore struct {
	mu      sync.RWMutex
	entries map[string]regdata.LKGEntry
}

// NewLKGStore constructs an LKGStore.
func NewLKGStore() *LKGStore {
	return &LKGStore{entries: make(map[string]regdata.LKGEntry)}
}

// Get fetches the snapshot for a source.
func (s *LKGStore) Get(_ context.Context, sourceID string) (regdata.LKGEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[sourceID]
	if !ok {
		return regdata.LKGEntry{}, false, nil
	}
	entry.Data = entry.Data.Clone()
	return entry, true, nil
}

// Put replaces the snapshot for a source. The replacement is atomic under
// the store lock; readers never observe a partial entry.
func (s *LKGStore) Put(_ context.Context, entry regdata.LKGEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Data = entry.Data.Clone()
	s.entries[entry.SourceID] = entry
	return nil
}

// AlertLog is an append-only in-memory alert log.
type AlertLog struct {
	mu     sync.RWMutex
	alerts []regdata.Alert
}

// NewAlertLog constructs an AlertLog.
func NewAlertLog() *AlertLog {
	return &AlertLog{}
}

// Append records one alert.
func (l *AlertLog) Append(_ context.Context, alert regdata.Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, alert)
	return nil
}

// Since returns all alerts raised at or after the cutoff, oldest first.
func (l *AlertLog) Since(_ context.Context, cutoff time.Time) ([]regdata.Alert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []regdata.Alert
	for _, a := range l.alerts {
		if !a.RaisedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RaisedAt.Before(out[j].RaisedAt) })
	return out, nil
}

// BackoffStore persists consecutive-failure state per (source, category).
type BackoffStore struct {
	mu     sync.RWMutex
	states map[string]regdata.BackoffState
}

// NewBackoffStore constructs a BackoffStore.
func NewBackoffStore() *BackoffStore {
	return &BackoffStore{states: make(map[string]regdata.BackoffState)}
}

func backoffKey(sourceID string, category regdata.Category) string {
	return sourceID + "/" + string(category)
}

// Get fetches the state for a pair; a missing pair is zero failures.
func (s *BackoffStore) Get(_ context.Context, sourceID string, category regdata.Category) (regdata.BackoffState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[backoffKey(sourceID, category)]; ok {
		return state, nil
	}
	return regdata.BackoffState{SourceID: sourceID, Category: category}, nil
}

// Record upserts the state for a pair.
func (s *BackoffStore) Record(_ context.Context, state regdata.BackoffState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[backoffKey(state.SourceID, state.Category)] = state
	return nil
}

// List returns every recorded state in stable order.
func (s *BackoffStore) List(_ context.Context) ([]regdata.BackoffState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.states))
	for k := range s.states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]regdata.BackoffState, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.states[k])
	}
	return out, nil
}
