package filter

import "net/netip"

// Verdict is the outcome of a Chain evaluation.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictBanned
	VerdictDenied
	VerdictRateLimited
)

func (v Verdict) Reason() string {
	switch v {
	case VerdictBanned:
		return "banned"
	case VerdictDenied:
		return "not allowed"
	case VerdictRateLimited:
		return "too many connections"
	default:
		return ""
	}
}

// Chain runs the pre-login admission checks in the fixed order: ban
// lookup, then IP allow/deny, then rate limit. Username/UUID checks apply
// later against PlayerAllowDeny once a login packet is available.
type Chain struct {
	Bans BanStore
	IPFilter *IPFilter
	RateLimiter *RateLimiter
}

// Admit evaluates addr against the chain in order, stopping at the first
// rejection.
func (c *Chain) Admit(addr netip.Addr) Verdict {
	if c.Bans != nil && c.Bans.IsBanned(addr) {
		return VerdictBanned
	}
	if c.IPFilter != nil && !c.IPFilter.Allow(addr) {
		return VerdictDenied
	}
	if c.RateLimiter != nil && !c.RateLimiter.Allow(addr) {
		return VerdictRateLimited
	}
	return VerdictAllow
}
