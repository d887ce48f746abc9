package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuilderFallsBackToDiscardForUnknownBackend(t *testing.T) {
	b := NewBuilder("nonsense", nil)
	_, ok := b.(*discardBuilder)
	assert.True(t, ok)
}

func TestDiscardBuilderBuildsAllMetrics(t *testing.T) {
	m := NewBuilder(BackendDiscard, nil).Build()
	require.NotNil(t, m.Errors)
	require.NotNil(t, m.BackendWakeUpSeconds)
	require.NotNil(t, m.StatusCacheHits)
}

func TestExpvarBuilderBuildsAllMetrics(t *testing.T) {
	m := NewBuilder(BackendExpvar, nil).Build()
	require.NotNil(t, m.Errors)
	require.NotNil(t, m.FilterRejections)
}

func TestInfluxBuilderStartRequiresAddr(t *testing.T) {
	b := NewBuilder(BackendInfluxDB, &InfluxConfig{})
	err := b.Start(nil)
	assert.Error(t, err)
}
