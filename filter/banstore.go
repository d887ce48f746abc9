package filter

import (
	"net/netip"
	"sync"
)

// BanStore reports whether a client IP is currently banned. The proxy
// checks it first in the filter chain, ahead of any
// per-route allow/deny list.
type BanStore interface {
	IsBanned(addr netip.Addr) bool
}

// MemoryBanStore is a concurrency-safe in-memory BanStore, sufficient for
// a single-process deployment; a persistent store would satisfy the same
// interface.
type MemoryBanStore struct {
	mu sync.RWMutex
	banned map[netip.Addr]struct{}
}

// NewMemoryBanStore returns an empty in-memory ban list.
func NewMemoryBanStore() *MemoryBanStore {
	return &MemoryBanStore{banned: make(map[netip.Addr]struct{})}
}

func (s *MemoryBanStore) IsBanned(addr netip.Addr) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.banned[addr.Unmap()]
	return ok
}

// Ban adds addr to the ban list.
func (s *MemoryBanStore) Ban(addr netip.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banned[addr.Unmap()] = struct{}{}
}

// Unban removes addr from the ban list.
func (s *MemoryBanStore) Unban(addr netip.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.banned, addr.Unmap())
}
