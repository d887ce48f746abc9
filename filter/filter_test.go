package filter

import (
	"net/netip"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPFilterAllowListIsExclusive(t *testing.T) {
	f, err := NewIPFilter([]string{"10.0.0.1"}, nil)
	require.NoError(t, err)

	assert.True(t, f.Allow(netip.MustParseAddr("10.0.0.1")))
	assert.False(t, f.Allow(netip.MustParseAddr("10.0.0.2")))
}

func TestIPFilterDenyListExcludes(t *testing.T) {
	f, err := NewIPFilter(nil, []string{"192.168.0.0/16"})
	require.NoError(t, err)

	assert.False(t, f.Allow(netip.MustParseAddr("192.168.1.5")))
	assert.True(t, f.Allow(netip.MustParseAddr("8.8.8.8")))
}

func TestIPFilterEmptyAllowsAll(t *testing.T) {
	f := AllowAll()
	assert.True(t, f.Allow(netip.MustParseAddr("1.2.3.4")))
}

func TestPlayerAllowDenyMergesGlobalAndRoute(t *testing.T) {
	steve := PlayerInfo{Name: "steve"}
	alex := PlayerInfo{Name: "alex"}

	a := &PlayerAllowDeny{
		Global: PlayerLists{Allow: []PlayerEntry{{Name: "steve"}}},
		Routes: map[string]PlayerLists{
			"survival": {Allow: []PlayerEntry{{Name: "alex"}}},
		},
	}

	assert.True(t, a.ServerAllows("survival", steve))
	assert.True(t, a.ServerAllows("survival", alex))
	assert.False(t, a.ServerAllows("other-route", alex))
}

func TestPlayerAllowDenyEmptyAllowFallsBackToDeny(t *testing.T) {
	a := &PlayerAllowDeny{
		Global: PlayerLists{Deny: []PlayerEntry{{Name: "griefer"}}},
	}

	assert.False(t, a.ServerAllows("any", PlayerInfo{Name: "griefer"}))
	assert.True(t, a.ServerAllows("any", PlayerInfo{Name: "steve"}))
}

func TestPlayerEntryWithNeitherFieldNeverMatches(t *testing.T) {
	entry := PlayerEntry{}
	assert.False(t, entry.matches(PlayerInfo{Name: "steve", UUID: uuid.New()}))
}

func TestBanStore(t *testing.T) {
	store := NewMemoryBanStore()
	addr := netip.MustParseAddr("203.0.113.5")

	assert.False(t, store.IsBanned(addr))
	store.Ban(addr)
	assert.True(t, store.IsBanned(addr))
	store.Unban(addr)
	assert.False(t, store.IsBanned(addr))
}

func TestChainFixedOrder(t *testing.T) {
	addr := netip.MustParseAddr("198.51.100.7")

	bans := NewMemoryBanStore()
	bans.Ban(addr)

	ipFilter, err := NewIPFilter(nil, nil)
	require.NoError(t, err)

	chain := &Chain{
		Bans:     bans,
		IPFilter: ipFilter,
	}

	assert.Equal(t, VerdictBanned, chain.Admit(addr))
}

func TestRateLimiterBurstThenThrottle(t *testing.T) {
	limiter := NewRateLimiter(60, 2)
	addr := netip.MustParseAddr("127.0.0.1")

	assert.True(t, limiter.Allow(addr))
	assert.True(t, limiter.Allow(addr))
	assert.False(t, limiter.Allow(addr))
}

func TestRateLimiterDisabledAllowsAll(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	addr := netip.MustParseAddr("127.0.0.1")

	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow(addr))
	}
}
