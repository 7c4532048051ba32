package accountrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/user-accounts/internal/domain/account"
)

func TestMemoryRepository_EmailUnique(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, err := repo.Create(ctx, account.NewAccount{Name: "Alice", Email: "a@x.com", PasswordHash: "h1"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, account.NewAccount{Name: "Mallory", Email: "a@x.com", PasswordHash: "h2"})
	require.ErrorIs(t, err, account.ErrEmailExists)

	got, found, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, "Alice", got.Name)
	require.Equal(t, "h1", got.PasswordHash)
}

func TestMemoryRepository_UpdateMovesEmailIndex(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a, err := repo.Create(ctx, account.NewAccount{Name: "A", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	b, err := repo.Create(ctx, account.NewAccount{Name: "B", Email: "b@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	b.Email = "a@x.com"
	_, err = repo.Update(ctx, b)
	require.ErrorIs(t, err, account.ErrEmailExists)

	a.Email = "new@x.com"
	_, err = repo.Update(ctx, a)
	require.NoError(t, err)

	_, found, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.False(t, found)

	b.Email = "a@x.com"
	_, err = repo.Update(ctx, b)
	require.NoError(t, err)
}

func TestMemoryRepository_Tokens(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	acc, err := repo.Create(ctx, account.NewAccount{Name: "A", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.Empty(t, acc.Tokens)

	_, err = repo.AppendToken(ctx, acc.ID, "t1")
	require.NoError(t, err)
	acc, err = repo.AppendToken(ctx, acc.ID, "t2")
	require.NoError(t, err)
	require.Equal(t, account.TokenList{"t1", "t2"}, acc.Tokens)

	acc, err = repo.RemoveToken(ctx, acc.ID, "t1")
	require.NoError(t, err)
	require.Equal(t, account.TokenList{"t2"}, acc.Tokens)

	acc, err = repo.ClearTokens(ctx, acc.ID)
	require.NoError(t, err)
	require.Empty(t, acc.Tokens)

	_, err = repo.AppendToken(ctx, 999, "t3")
	require.ErrorIs(t, err, account.ErrNotFound)
}

func TestMemoryRepository_DeleteDropsAvatar(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	acc, err := repo.Create(ctx, account.NewAccount{Name: "A", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, repo.PutAvatar(ctx, acc.ID, []byte{1, 2, 3}))

	image, found, err := repo.GetAvatar(ctx, acc.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{1, 2, 3}, image)

	deleted, err := repo.Delete(ctx, acc.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, found, err = repo.GetAvatar(ctx, acc.ID)
	require.NoError(t, err)
	require.False(t, found)

	deleted, err = repo.Delete(ctx, acc.ID)
	require.NoError(t, err)
	require.False(t, deleted)

	require.ErrorIs(t, repo.PutAvatar(ctx, acc.ID, []byte{1}), account.ErrNotFound)
}

func TestMemoryRepository_ListOrdered(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		_, err := repo.Create(ctx, account.NewAccount{Name: "N", Email: email, PasswordHash: "h"})
		require.NoError(t, err)
	}
	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := range list {
		require.Equal(t, int64(i+1), list[i].ID)
	}
}
