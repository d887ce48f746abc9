package motd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesSecondsRemaining(t *testing.T) {
	set := Set{
		StateStopping: Template{Text: "shutting down in ${seconds_remaining}s"},
	}

	resp := set.Render(StateStopping, 42)
	assert.Equal(t, "shutting down in 42s", resp.Description.Text)
}

func TestRenderFallsBackToUnknown(t *testing.T) {
	set := Set{
		StateUnknown: Template{Text: "no idea"},
	}

	resp := set.Render(StateRunning, 0)
	assert.Equal(t, "no idea", resp.Description.Text)
}

func TestRenderWithNoTemplatesAtAllDoesNotPanic(t *testing.T) {
	set := Set{}
	resp := set.Render(StateRunning, 0)
	assert.Equal(t, string(StateRunning), resp.Description.Text)
}

func TestInstallFaviconFromDataURI(t *testing.T) {
	tmpl := &Template{}
	InstallFavicon(tmpl, "data:image/png;base64,AAAA")
	assert.Equal(t, "data:image/png;base64,AAAA", tmpl.FaviconDataURI)
}

func TestInstallFaviconFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "favicon.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	tmpl := &Template{}
	InstallFavicon(tmpl, path)
	assert.Contains(t, tmpl.FaviconDataURI, "data:image/png;base64,")
}

func TestInstallFaviconMissingFileIsNotFatal(t *testing.T) {
	tmpl := &Template{}
	InstallFavicon(tmpl, "/nonexistent/favicon.png")
	assert.Empty(t, tmpl.FaviconDataURI)
}
