package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelBoundaries(t *testing.T) {
	cases := map[int]int{
		0:    1,
		99:   1,
		100:  2,
		999:  10,
		1000: 11,
		1199: 11,
		1200: 12,
		-50:  1,
	}
	for xp, want := range cases {
		require.Equal(t, want, Level(xp), "xp=%d", xp)
	}
}

func TestLevelMonotonicAndNextLevelExact(t *testing.T) {
	prev := Level(0)
	for xp := 0; xp <= 5000; xp++ {
		lvl := Level(xp)
		require.GreaterOrEqual(t, lvl, 1)
		require.GreaterOrEqual(t, lvl, prev)
		prev = lvl

		need := XPToNextLevel(xp)
		require.Positive(t, need, "xp=%d", xp)
		require.Equal(t, lvl+1, Level(xp+need), "xp=%d", xp)
		require.Equal(t, lvl, Level(xp+need-1), "xp=%d", xp)
	}
}

func TestNextLevelThreshold(t *testing.T) {
	require.Equal(t, 100, NextLevelThreshold(1))
	require.Equal(t, 1000, NextLevelThreshold(10))
	require.Equal(t, 1200, NextLevelThreshold(11))
	require.Equal(t, 50, XPToNextLevel(150))
	require.Equal(t, 200, XPToNextLevel(1000))
}
