package proxyproto

import (
	"net"
	"testing"

	"github.com/pires/go-proxyproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseNets(t *testing.T, cidrs ...string) []*net.IPNet {
	t.Helper()
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

func TestTrustPolicyUsesHeaderFromTrustedUpstream(t *testing.T) {
	policy := trustPolicy(parseNets(t, "10.0.0.0/8"))
	result, err := policy(&net.TCPAddr{IP: net.ParseIP("10.1.2.3")})
	require.NoError(t, err)
	assert.Equal(t, proxyproto.USE, result)
}

func TestTrustPolicyIgnoresHeaderFromUntrustedUpstream(t *testing.T) {
	policy := trustPolicy(parseNets(t, "10.0.0.0/8"))
	result, err := policy(&net.TCPAddr{IP: net.ParseIP("203.0.113.9")})
	require.NoError(t, err)
	assert.Equal(t, proxyproto.IGNORE, result)
}

func TestTrustPolicyWithNoTrustedNetworksUsesEverything(t *testing.T) {
	policy := trustPolicy(nil)
	result, err := policy(&net.TCPAddr{IP: net.ParseIP("203.0.113.9")})
	require.NoError(t, err)
	assert.Equal(t, proxyproto.USE, result)
}

func TestVersionValidatorRejectsDisallowedVersion(t *testing.T) {
	validate := versionValidator([]int{2})
	require.NotNil(t, validate)
	err := validate(&proxyproto.Header{Version: 1})
	assert.Error(t, err)
	assert.NoError(t, validate(&proxyproto.Header{Version: 2}))
}

func TestVersionValidatorNilWhenUnrestricted(t *testing.T) {
	assert.Nil(t, versionValidator(nil))
}

func TestWrapReturnsOriginalListenerWhenDisabled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	wrapped := Wrap(ln, Config{ReceiveEnabled: false})
	assert.Same(t, ln, wrapped)
}
