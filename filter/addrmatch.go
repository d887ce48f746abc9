// Package filter implements the connection admission chain: ban lookup,
// per-route IP allow/deny, connection rate limiting, and the later
// username/UUID checks applied once a login packet has been parsed.
// Grounded on the teacher's server/client_filter.go and
// server/allow_deny_list.go, generalized from a single global filter to
// per-route overrides.
package filter

import (
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

// addrMatcher matches a client address against a mixed list of literal
// addresses and CIDR prefixes.
type addrMatcher struct {
	addrs []netip.Addr
	prefixes []netip.Prefix
}

func newAddrMatcher(filters []string) (*addrMatcher, error) {
	addrs := make([]netip.Addr, 0)
	prefixes := make([]netip.Prefix, 0)

	for _, f := range filters {
		if strings.Contains(f, "/") {
			prefix, err := netip.ParsePrefix(f)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix)
			continue
		}
		addr, err := netip.ParseAddr(f)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}

	return &addrMatcher{addrs: addrs, prefixes: prefixes}, nil
}

func (a *addrMatcher) Match(addr netip.Addr) bool {
	unmapped := addr.Unmap()
	for _, candidate := range a.addrs {
		if candidate == unmapped {
			return true
		}
	}
	for _, p := range a.prefixes {
		if p.Contains(unmapped) {
			return true
		}
	}
	return false
}

func (a *addrMatcher) Empty() bool {
	return len(a.addrs) == 0 && len(a.prefixes) == 0
}

// IPFilter evaluates a client address against an allow list and a deny
// list: a non-empty allow list makes it exclusive (only listed addresses
// pass); otherwise a non-empty deny list excludes listed addresses;
// otherwise everything passes.
type IPFilter struct {
	allow *addrMatcher
	deny *addrMatcher
}

// NewIPFilter builds a filter from raw address/CIDR strings.
func NewIPFilter(allows, denies []string) (*IPFilter, error) {
	allow, err := newAddrMatcher(allows)
	if err != nil {
		return nil, errors.Wrap(err, "invalid allow filter")
	}
	deny, err := newAddrMatcher(denies)
	if err != nil {
		return nil, errors.Wrap(err, "invalid deny filter")
	}
	return &IPFilter{allow: allow, deny: deny}, nil
}

// AllowAll is a permissive IPFilter used when no route or global
// configuration narrows access.
func AllowAll() *IPFilter {
	return &IPFilter{allow: &addrMatcher{}, deny: &addrMatcher{}}
}

// Allow reports whether addr passes this filter.
func (f *IPFilter) Allow(addr netip.Addr) bool {
	if f == nil {
		return true
	}
	if !f.allow.Empty() {
		return f.allow.Match(addr)
	}
	if !f.deny.Empty() {
		return !f.deny.Match(addr)
	}
	return true
}
