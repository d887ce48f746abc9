package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactBeatsWildcard(t *testing.T) {
	r := NewRegistry()
	r.Put(&ServerConfig{ConfigID: "hub", Patterns: []string{"hub.example.com"}})
	r.Put(&ServerConfig{ConfigID: "wild", Patterns: []string{"*.example.com"}})

	m, ok := r.Lookup("play.example.com")
	require.True(t, ok)
	assert.Equal(t, "wild", m.Config.ConfigID)
	assert.False(t, m.Exact)

	m, ok = r.Lookup("hub.example.com")
	require.True(t, ok)
	assert.Equal(t, "hub", m.Config.ConfigID)
	assert.True(t, m.Exact)
}

func TestLongestWildcardSuffixWins(t *testing.T) {
	r := NewRegistry()
	r.Put(&ServerConfig{ConfigID: "broad", Patterns: []string{"*.example.com"}})
	r.Put(&ServerConfig{ConfigID: "narrow", Patterns: []string{"*.play.example.com"}})

	m, ok := r.Lookup("survival.play.example.com")
	require.True(t, ok)
	assert.Equal(t, "narrow", m.Config.ConfigID)

	m, ok = r.Lookup("lobby.example.com")
	require.True(t, ok)
	assert.Equal(t, "broad", m.Config.ConfigID)
}

func TestWildcardDoesNotMatchBareDomain(t *testing.T) {
	r := NewRegistry()
	r.Put(&ServerConfig{ConfigID: "wild", Patterns: []string{"*.example.com"}})

	_, ok := r.Lookup("example.com")
	assert.False(t, ok)
}

func TestMissFallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	r.Put(&ServerConfig{ConfigID: "fallback", Patterns: []string{"unrelated.example.com"}})
	r.SetDefault("fallback")

	m, ok := r.Lookup("nowhere.invalid")
	require.True(t, ok)
	assert.Equal(t, "fallback", m.Config.ConfigID)
}

func TestMissWithNoDefaultReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("nowhere.invalid")
	assert.False(t, ok)
}

func TestDeleteDoesNotAffectHeldReference(t *testing.T) {
	r := NewRegistry()
	cfg := &ServerConfig{ConfigID: "ephemeral", Patterns: []string{"ephemeral.example.com"}}
	r.Put(cfg)

	m, ok := r.Lookup("ephemeral.example.com")
	require.True(t, ok)
	held := m.Config

	require.True(t, r.Delete("ephemeral"))
	assert.Equal(t, "ephemeral", held.ConfigID)

	_, ok = r.Lookup("ephemeral.example.com")
	assert.False(t, ok)
}

func TestReplaceAllSwapsAtomically(t *testing.T) {
	r := NewRegistry()
	r.Put(&ServerConfig{ConfigID: "old", Patterns: []string{"old.example.com"}})

	r.ReplaceAll([]*ServerConfig{
		{ConfigID: "new", Patterns: []string{"new.example.com"}},
	}, "")

	_, ok := r.Lookup("old.example.com")
	assert.False(t, ok)

	m, ok := r.Lookup("new.example.com")
	require.True(t, ok)
	assert.Equal(t, "new", m.Config.ConfigID)
}
