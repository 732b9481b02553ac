package meta

import (
	"sync"
	"time"
)

// FailureTracker records liveness witnesses reported by coordinators and
// answers quorum-based failure queries. add_failure always overwrites the
// prior timestamp for (addr, reporter); pruning of stale witnesses happens
// lazily on read, not via a background reaper.
type FailureTracker struct {
	mu      sync.Mutex
	witness map[string]map[string]time.Time // addr -> reporterID -> last-seen
}

func NewFailureTracker() *FailureTracker {
	return &FailureTracker{witness: make(map[string]map[string]time.Time)}
}

// AddFailure records that reporter observed addr as failed now.
func (f *FailureTracker) AddFailure(addr, reporter string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.witness[addr]
	if !ok {
		m = make(map[string]time.Time)
		f.witness[addr] = m
	}
	m[reporter] = now
}

// GetFailures prunes witnesses older than now-ttl, then returns addresses
// with at least quorum remaining distinct reporters, sorted.
func (f *FailureTracker) GetFailures(ttl time.Duration, quorum int, now time.Time) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := now.Add(-ttl)
	var out []string
	for addr, reporters := range f.witness {
		for r, t := range reporters {
			if t.Before(cutoff) {
				delete(reporters, r)
			}
		}
		if len(reporters) == 0 {
			delete(f.witness, addr)
			continue
		}
		if len(reporters) >= quorum {
			out = append(out, addr)
		}
	}
	return sortedStrings(out)
}

// Clear drops every witness recorded for addr, used after a successful
// replace_failed_proxy so a freshly-freed address doesn't carry over stale
// failure history.
func (f *FailureTracker) Clear(addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.witness, addr)
}

// GetFailedProxies is GetFailures filtered down to addresses currently bound
// to some cluster, per §4.D.
func (s *MetaStore) GetFailedProxies(ttl time.Duration, quorum int, now time.Time) []string {
	candidates := s.failures.GetFailures(ttl, quorum, now)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := candidates[:0:0]
	for _, addr := range candidates {
		if p, ok := s.allProxies[addr]; ok && !p.Free() {
			out = append(out, addr)
		}
	}
	return out
}

// AddFailure forwards a failure witness to the embedded tracker. It is not
// a mutation of MetaStore's versioned state and does not bump the epoch.
func (s *MetaStore) AddFailure(addr, reporter string, now time.Time) {
	s.failures.AddFailure(addr, reporter, now)
}

// GetFailures forwards to the embedded tracker.
func (s *MetaStore) GetFailures(ttl time.Duration, quorum int, now time.Time) []string {
	return s.failures.GetFailures(ttl, quorum, now)
}

// Snapshot returns a deep copy of the witness map, for inclusion in a
// MetaStore dump.
func (f *FailureTracker) Snapshot() map[string]map[string]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]map[string]time.Time, len(f.witness))
	for addr, reporters := range f.witness {
		m := make(map[string]time.Time, len(reporters))
		for r, t := range reporters {
			m[r] = t
		}
		out[addr] = m
	}
	return out
}

// Restore replaces the witness map wholesale, used by MetaStore.Restore.
func (f *FailureTracker) Restore(witness map[string]map[string]time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if witness == nil {
		witness = make(map[string]map[string]time.Time)
	}
	f.witness = witness
}
