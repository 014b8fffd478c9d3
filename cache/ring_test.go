package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRing(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		appends  int
		expected []int
	}{
		{name: "under capacity", capacity: 4, appends: 2, expected: []int{0, 1}},
		{name: "at capacity", capacity: 4, appends: 4, expected: []int{0, 1, 2, 3}},
		{name: "evicts oldest", capacity: 4, appends: 6, expected: []int{2, 3, 4, 5}},
		{name: "single slot", capacity: 1, appends: 3, expected: []int{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			ring := NewRing[int](tt.capacity)
			for i := 0; i < tt.appends; i++ {
				ring.Append(i)
			}
			require.Equal(tt.expected, ring.Recent())
			require.Equal(len(tt.expected), ring.Len())
		})
	}
}

func TestRingZeroCapacity(t *testing.T) {
	require := require.New(t)

	// A non-positive capacity degrades to a single slot.
	ring := NewRing[string](0)
	ring.Append("a")
	ring.Append("b")
	require.Equal([]string{"b"}, ring.Recent())
}
