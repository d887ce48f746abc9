package route

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Registry is the read-mostly route table. Reads never block: they follow
// an atomic pointer to the current snapshot. Writes (Put/Delete) take a
// mutex only to serialize against each other, build a new snapshot from
// the old one, and swap the pointer.
type Registry struct {
	current atomic.Pointer[snapshot]
	// writeMu serializes mutations across the copy-and-build sequence and
	// the pointer swap; readers never take it.
	writeMu sync.Mutex
}

// NewRegistry returns an empty Registry with no default route.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(newEmptySnapshot())
	return r
}

// Match is the resolved outcome of a Lookup.
type Match struct {
	Config *ServerConfig
	// Exact reports whether the match came from the literal index rather
	// than a wildcard suffix.
	Exact bool
}

// Lookup resolves host (already null-truncated and lower-cased by the
// caller) against the current snapshot: exact literal match
// first, then the longest matching wildcard suffix, then the configured
// default route, then a miss (ok=false).
func (r *Registry) Lookup(host string) (Match, bool) {
	snap := r.current.Load()

	if cfg, ok := snap.literal[host]; ok {
		return Match{Config: cfg, Exact: true}, true
	}

	var best *wildcardEntry
	for i := range snap.wildcards {
		w := &snap.wildcards[i]
		if !strings.HasSuffix(host, w.suffix) {
			continue
		}
		if best == nil ||
			len(w.suffix) > len(best.suffix) ||
			(len(w.suffix) == len(best.suffix) && w.order < best.order) {
			best = w
		}
	}
	if best != nil {
		return Match{Config: best.config}, true
	}

	if snap.defaultID != "" {
		if cfg, ok := snap.byID[snap.defaultID]; ok {
			return Match{Config: cfg}, true
		}
	}

	return Match{}, false
}

// Get returns the ServerConfig registered under id, if any.
func (r *Registry) Get(id string) (*ServerConfig, bool) {
	snap := r.current.Load()
	cfg, ok := snap.byID[id]
	return cfg, ok
}

// All returns every registered ServerConfig, in no particular order.
func (r *Registry) All() []*ServerConfig {
	snap := r.current.Load()
	out := make([]*ServerConfig, 0, len(snap.byID))
	for _, cfg := range snap.byID {
		out = append(out, cfg)
	}
	return out
}

// Put inserts or atomically replaces cfg by its ConfigID. Replacement does
// not affect sessions that already hold a reference to the previous
// *ServerConfig value.
func (r *Registry) Put(cfg *ServerConfig) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load()
	next := cloneSnapshot(old)
	next.byID[cfg.ConfigID] = cfg

	rebuildIndices(next)

	r.current.Store(next)
	logrus.WithFields(logrus.Fields{
		"configID": cfg.ConfigID,
		"patterns": cfg.Patterns,
	}).Info("route: registered config")
}

// Delete removes id from the registry. Returns false if id was not present.
func (r *Registry) Delete(id string) bool {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load()
	if _, ok := old.byID[id]; !ok {
		return false
	}

	next := cloneSnapshot(old)
	delete(next.byID, id)
	rebuildIndices(next)

	r.current.Store(next)
	logrus.WithField("configID", id).Info("route: removed config")
	return true
}

// SetDefault sets which ConfigID is returned when no literal or wildcard
// pattern matches. Passing "" clears the default.
func (r *Registry) SetDefault(id string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load()
	next := cloneSnapshot(old)
	next.defaultID = id
	r.current.Store(next)
}

// ReplaceAll atomically swaps the entire registry contents, used by the
// config provider on a full reload. Existing
// *ServerConfig pointers held by in-flight sessions remain valid; only the
// registry's own view of "current config for id" changes.
func (r *Registry) ReplaceAll(configs []*ServerConfig, defaultID string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	next := newEmptySnapshot()
	next.defaultID = defaultID
	for _, cfg := range configs {
		next.byID[cfg.ConfigID] = cfg
	}
	rebuildIndices(next)

	r.current.Store(next)
	logrus.WithField("count", len(configs)).Info("route: reloaded full route set")
}

func cloneSnapshot(old *snapshot) *snapshot {
	next := &snapshot{
		byID: make(map[string]*ServerConfig, len(old.byID)+1),
		defaultID: old.defaultID,
	}
	for k, v := range old.byID {
		next.byID[k] = v
	}
	return next
}

// rebuildIndices derives the literal and wildcard indices from byID.
// Insertion order for wildcard tie-breaking is taken from Go's map
// iteration only as a last resort; deliberately overlapping wildcards of
// equal length are rare, a misconfiguration whose tie-break order is
// not meant to be relied upon.
func rebuildIndices(s *snapshot) {
	s.literal = make(map[string]*ServerConfig)
	s.wildcards = s.wildcards[:0]

	order := 0
	for _, cfg := range s.byID {
		for _, pattern := range cfg.Patterns {
			p := strings.ToLower(pattern)
			if strings.HasPrefix(p, "*.") {
				s.wildcards = append(s.wildcards, wildcardEntry{
					suffix: p[1:], // keep the leading '.'
					order: order,
					config: cfg,
				})
				order++
				continue
			}
			s.literal[p] = cfg
		}
	}
}
