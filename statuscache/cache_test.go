package statuscache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrFillCachesUntilTTL(t *testing.T) {
	c := New(50*time.Millisecond, 0)
	var calls int32

	producer := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	v, err := c.GetOrFill("route-a", producer)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = c.GetOrFill("route-a", producer)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	time.Sleep(80 * time.Millisecond)
	_, err = c.GetOrFill("route-a", producer)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetOrFillCallsProducerAtMostOnceConcurrently(t *testing.T) {
	c := New(time.Minute, 0)
	var calls int32
	release := make(chan struct{})

	producer := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrFill("shared-key", producer)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}

func TestGetOrFillPropagatesProducerErrorAndDoesNotCache(t *testing.T) {
	c := New(time.Minute, 0)
	boom := errors.New("backend unreachable")

	_, err := c.GetOrFill("route-b", func() (any, error) {
		return nil, boom
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestOldestEvictionOnSizeBound(t *testing.T) {
	c := New(time.Minute, 2)

	_, _ = c.GetOrFill("a", func() (any, error) { return "a", nil })
	_, _ = c.GetOrFill("b", func() (any, error) { return "b", nil })
	_, _ = c.GetOrFill("c", func() (any, error) { return "c", nil })

	assert.Equal(t, 2, c.Len())
	_, ok := c.get("a")
	assert.False(t, ok)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c := New(time.Minute, 0)
	var calls int32

	producer := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	_, _ = c.GetOrFill("route-c", producer)
	c.Invalidate("route-c")
	_, _ = c.GetOrFill("route-c", producer)

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
