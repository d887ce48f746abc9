package session

import (
	"sync"
)

// Registry indexes live Sessions by ConfigID so the idle timer can ask
// "any live sessions for this route?" and the introspection API can
// enumerate or kick sessions.
type Registry struct {
	mu sync.RWMutex
	byRoute map[string]map[string]*Session // configID -> sessionID -> Session
	kickFunc map[string]func()
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		byRoute: make(map[string]map[string]*Session),
		kickFunc: make(map[string]func()),
	}
}

// Register adds sess under its ConfigID. kick is invoked by Kick to abort
// the session (typically the Supervisor's own cancel function).
func (r *Registry) Register(sess *Session, kick func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byRoute[sess.ConfigID]; !ok {
		r.byRoute[sess.ConfigID] = make(map[string]*Session)
	}
	r.byRoute[sess.ConfigID][sess.ID] = sess
	r.kickFunc[sess.ID] = kick
}

// Unregister removes sess, called once its Supervisor reaches Done/Failed.
func (r *Registry) Unregister(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.byRoute[sess.ConfigID]; ok {
		delete(m, sess.ID)
		if len(m) == 0 {
			delete(r.byRoute, sess.ConfigID)
		}
	}
	delete(r.kickFunc, sess.ID)
}

// CountForRoute returns the number of live sessions for configID, used by
// the idle-shutdown decision ("zero live player sessions").
func (r *Registry) CountForRoute(configID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRoute[configID])
}

// ListSessions returns every live session, in no particular order.
func (r *Registry) ListSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, m := range r.byRoute {
		for _, sess := range m {
			out = append(out, sess)
		}
	}
	return out
}

// ListSessionsForRoute returns the live sessions for one route.
func (r *Registry) ListSessionsForRoute(configID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := r.byRoute[configID]
	out := make([]*Session, 0, len(m))
	for _, sess := range m {
		out = append(out, sess)
	}
	return out
}

// Kick aborts the session identified by sessionID (or, if none matches, by
// username within the optional route scope), returning false if no match
// was found.
func (r *Registry) Kick(sessionIDOrUsername string, routeScope string) bool {
	r.mu.RLock()
	var target *Session
	for configID, m := range r.byRoute {
		if routeScope != "" && configID != routeScope {
			continue
		}
		for _, sess := range m {
			if sess.ID == sessionIDOrUsername || sess.Username == sessionIDOrUsername {
				target = sess
				break
			}
		}
		if target != nil {
			break
		}
	}
	var kick func()
	if target != nil {
		kick = r.kickFunc[target.ID]
	}
	r.mu.RUnlock()

	if target == nil || kick == nil {
		return false
	}
	kick()
	return true
}
