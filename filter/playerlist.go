package filter

import "github.com/google/uuid"

// PlayerInfo identifies a connecting player by name and/or UUID, mirroring
// the fields available once the login-start packet has been parsed.
type PlayerInfo struct {
	Name string
	UUID uuid.UUID
}

// PlayerEntry is one allow/deny list entry: matches by exact (name, UUID)
// pair if both are set, else by whichever of the two is set. An entry with
// neither set is inert and never matches (guards against an accidental
// empty JSON object short-circuiting the whole list).
type PlayerEntry struct {
	Name string
	UUID uuid.UUID
}

func (e PlayerEntry) matches(p PlayerInfo) bool {
	if e.Name == "" && e.UUID == uuid.Nil {
		return false
	}
	if e.Name != "" && e.UUID != uuid.Nil {
		return e.Name == p.Name && e.UUID == p.UUID
	}
	if e.UUID != uuid.Nil {
		return e.UUID == p.UUID
	}
	return e.Name == p.Name
}

// PlayerLists is one allow/deny pair, either the global set or a
// per-route override.
type PlayerLists struct {
	Allow []PlayerEntry
	Deny []PlayerEntry
}

// PlayerAllowDeny holds a global PlayerLists plus per-route overrides,
// keyed by ConfigID. ServerAllows merges the global and route-specific
// lists before evaluating.
type PlayerAllowDeny struct {
	Global PlayerLists
	Routes map[string]PlayerLists
}

// ServerAllows reports whether p may proceed for the route identified by
// configID. A nil receiver (no allow/deny configuration at all) always
// allows. Evaluation: if the merged allow list is non-empty, p must appear
// in it; otherwise p is rejected only if it appears in the merged deny
// list.
func (a *PlayerAllowDeny) ServerAllows(configID string, p PlayerInfo) bool {
	if a == nil {
		return true
	}

	allow := append([]PlayerEntry{}, a.Global.Allow...)
	deny := append([]PlayerEntry{}, a.Global.Deny...)
	if route, ok := a.Routes[configID]; ok {
		allow = append(allow, route.Allow...)
		deny = append(deny, route.Deny...)
	}

	for _, entry := range allow {
		if entry.matches(p) {
			return true
		}
	}
	if len(allow) > 0 {
		return false
	}

	for _, entry := range deny {
		if entry.matches(p) {
			return false
		}
	}
	return true
}
