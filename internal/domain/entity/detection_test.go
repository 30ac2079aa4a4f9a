package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectionCenter(t *testing.T) {
	d := Detection{X: 10, Y: 20, Width: 8, Height: 6}
	x, y := d.Center()
	require.Equal(t, 14, x)
	require.Equal(t, 23, y)
}

func TestDetectionArea(t *testing.T) {
	require.Equal(t, 48, Detection{Width: 8, Height: 6}.Area())
	require.Equal(t, 0, Detection{Width: -1, Height: 6}.Area())
}
