package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"caries-demo/internal/domain/entity"
	"caries-demo/internal/infrastructure/storage"
)

func TestUserService_BeginCheckAndCancel(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.BeginCheck(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, user.State)

	user, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestUserService_BeginProcessing(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.BeginProcessing(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, user.State)

	stored, err := repo.Get(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, stored.State)
}

func TestUserService_RecordCheck(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	_, err := svc.RecordCheck(ctx, 3, 30, "req-1")
	require.NoError(t, err)
	user, err := svc.RecordCheck(ctx, 3, 30, "req-2")
	require.NoError(t, err)
	require.Equal(t, 2, user.Checks)

	stored, err := svc.Get(ctx, 3, 30)
	require.NoError(t, err)
	require.Equal(t, "req-2", stored.LastRequestID)
}
