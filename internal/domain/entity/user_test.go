package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_DefaultState(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, StateMainMenu, u.State)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, int64(10), u.ChatID)
	require.Zero(t, u.Checks)
}

func TestUser_RecordCheck(t *testing.T) {
	u := NewUser(1, 10)
	u.RecordCheck("a")
	u.RecordCheck("b")
	require.Equal(t, 2, u.Checks)
	require.Equal(t, "b", u.LastRequestID)
}
