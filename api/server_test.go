package api

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mc-gateway/gateway/route"
	"github.com/mc-gateway/gateway/session"
)

func TestHandleListRoutes(t *testing.T) {
	routes := route.NewRegistry()
	routes.Put(&route.ServerConfig{
		ConfigID: "survival",
		Patterns: []string{"survival.example.com"},
		Backends: []route.Backend{{Address: "127.0.0.1:25566"}},
		Mode:     route.ModeOffline,
	})

	s := New(routes, session.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/routes", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []routeSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "survival", out[0].ConfigID)
	assert.Equal(t, "offline", out[0].Mode)
}

func TestHandleListSessionsAndKick(t *testing.T) {
	sessions := session.NewRegistry()
	sess := session.NewSession(&net.TCPAddr{}, "survival")
	kicked := false
	sessions.Register(sess, func() { kicked = true })

	s := New(route.NewRegistry(), sessions)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []sessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, sess.ID, out[0].ID)

	kickReq := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID+"/kick", nil)
	kickRec := httptest.NewRecorder()
	s.router.ServeHTTP(kickRec, kickReq)
	assert.Equal(t, http.StatusNoContent, kickRec.Code)
	assert.True(t, kicked)
}

func TestHandleKickMissingSessionReturns404(t *testing.T) {
	s := New(route.NewRegistry(), session.NewRegistry())

	req := httptest.NewRequest(http.MethodPost, "/sessions/unknown/kick", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
