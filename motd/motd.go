// Package motd synthesizes the status-response payload shown to a client
// pinging a route, selecting a template by the backend's current
// BackendState and substituting the ${seconds_remaining} placeholder for
// the ShuttingDown state. Grounded on the teacher's mcproto
// StatusResponse shape (server/cache.go, mcproto/write.go) for the wire
// format and on original_source/src/server/motd.rs for the template
// fields and favicon fallback behavior it was distilled from.
package motd

import (
	"encoding/base64"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mc-gateway/gateway/mcproto"
)

// BackendState mirrors servermanager.BackendState; duplicated here as a
// string key so this package has no dependency on servermanager and can
// be unit tested standalone.
type BackendState string

const (
	StateRunning BackendState = "running"
	StateStarting BackendState = "starting"
	StateStopping BackendState = "stopping"
	StateStopped BackendState = "stopped"
	StateCrashed BackendState = "crashed"
	StateUnknown BackendState = "unknown"
)

// Template is one BackendState's MOTD source, installed once per route
// and rendered on every ping (favicon file reads happen at install time,
// not per-render.F: "read at template-install time").
type Template struct {
	VersionName string
	ProtocolVersion int
	MaxPlayers int
	OnlinePlayers int
	Text string
	FaviconDataURI string
	Sample []mcproto.PlayerEntry
}

// InstallFavicon resolves favicon into a base64 data URI, accepting a
// data URI verbatim or a filesystem path whose PNG contents are read and
// encoded. A read failure never fails installation: the favicon field is
// simply omitted.
func InstallFavicon(t *Template, favicon string) {
	if favicon == "" {
		return
	}
	if strings.HasPrefix(favicon, "data:") {
		t.FaviconDataURI = favicon
		return
	}

	data, err := os.ReadFile(favicon)
	if err != nil {
		logrus.WithError(err).WithField("path", favicon).Warn("motd: failed to read favicon, omitting")
		return
	}
	t.FaviconDataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// Set is the full per-route mapping from BackendState to Template.
type Set map[BackendState]Template

// Render builds the StatusResponse for state, substituting
// secondsRemaining into ${seconds_remaining} wherever it appears in the
// template text. A missing state falls back to StateUnknown; a Set with
// neither renders the state's own name as the text rather than panicking.
func (s Set) Render(state BackendState, secondsRemaining int) mcproto.StatusResponse {
	tmpl, ok := s[state]
	if !ok {
		tmpl, ok = s[StateUnknown]
	}
	if !ok {
		tmpl = Template{Text: string(state)}
	}

	text := strings.ReplaceAll(tmpl.Text, "${seconds_remaining}", strconv.Itoa(secondsRemaining))

	return mcproto.StatusResponse{
		Version: mcproto.StatusVersion{
			Name: tmpl.VersionName,
			Protocol: tmpl.ProtocolVersion,
		},
		Players: mcproto.StatusPlayers{
			Max: tmpl.MaxPlayers,
			Online: tmpl.OnlinePlayers,
			Sample: tmpl.Sample,
		},
		Description: mcproto.StatusText{Text: text},
		Favicon: tmpl.FaviconDataURI,
	}
}

// LegacyRender renders the same template for a pre-Netty (0xFE) ping,
// which has no favicon or player-sample slots.
func (s Set) LegacyRender(state BackendState, secondsRemaining int) (protocol int, version, motd string, online, max int) {
	resp := s.Render(state, secondsRemaining)
	return resp.Version.Protocol, resp.Version.Name, resp.Description.Text, resp.Players.Online, resp.Players.Max
}
