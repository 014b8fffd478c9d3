package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLSingleKey(t *testing.T) {
	tests := []struct {
		name           string
		invalidate     bool
		waitBeforeNext time.Duration
		expectedCount  int
	}{
		{
			name:          "fresh cache, fetch",
			expectedCount: 1,
		},
		{
			name:          "use cache, no fetch",
			expectedCount: 1,
		},
		{
			name:          "invalidate=true, fetch",
			invalidate:    true,
			expectedCount: 2,
		},
		{
			name:           "ttl expired, fetch",
			waitBeforeNext: 2 * time.Second,
			expectedCount:  3,
		},
	}
	cache := NewTTL[string, int](1 * time.Second)
	fetchCount := 0
	fetchFunc := func(_ string) (int, error) {
		fetchCount++
		return 42, nil
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			if tt.waitBeforeNext > 0 {
				time.Sleep(tt.waitBeforeNext)
			}

			val, err := cache.Get("test", fetchFunc, tt.invalidate)
			require.NoError(err)
			require.Equal(42, val)
			require.Equal(tt.expectedCount, fetchCount)
		})
	}
}

func TestTTLFetchError(t *testing.T) {
	require := require.New(t)

	cache := NewTTL[string, int](time.Minute)
	boom := errors.New("boom")

	_, err := cache.Get("key", func(string) (int, error) { return 0, boom }, false)
	require.ErrorIs(err, boom)

	// Errors are not cached; the next fetch runs.
	val, err := cache.Get("key", func(string) (int, error) { return 7, nil }, false)
	require.NoError(err)
	require.Equal(7, val)
}

func TestTTLDistinctKeys(t *testing.T) {
	require := require.New(t)

	cache := NewTTL[uint64, string](time.Minute)
	fetched := map[uint64]int{}
	fetch := func(key uint64) (string, error) {
		fetched[key]++
		return "epoch", nil
	}

	for _, key := range []uint64{1, 2, 1, 2} {
		val, err := cache.Get(key, fetch, false)
		require.NoError(err)
		require.Equal("epoch", val)
	}
	require.Equal(1, fetched[1])
	require.Equal(1, fetched[2])
}
