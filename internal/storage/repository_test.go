package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gastos/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "gastos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteExpenseCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.AddRecord(ctx, store.Record{Fecha: "2025-01-05", Descripcion: "pan", Cantidad: 3.5, Persona: "Ana"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	recs, err := repo.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "3.5", recs[0].Cantidad)
	require.Equal(t, "Ana", recs[0].Persona)
	require.False(t, recs[0].PartidaEspecial)

	err = repo.UpdateRecord(ctx, id, store.Record{Fecha: "2025-01-06", Descripcion: "regalo", Cantidad: 10.0, PartidaEspecial: true, CategoriaEspecial: "Regalos"})
	require.NoError(t, err)

	recs, err = repo.ListRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, "2025-01-06", recs[0].Fecha)
	require.Equal(t, "", recs[0].Persona)
	require.True(t, recs[0].PartidaEspecial)
	require.Equal(t, "Regalos", recs[0].CategoriaEspecial)

	require.NoError(t, repo.DeleteRecord(ctx, id))
	require.True(t, errors.Is(repo.DeleteRecord(ctx, id), store.ErrNotFound))
	require.True(t, errors.Is(repo.UpdateRecord(ctx, id, store.Record{}), store.ErrNotFound))
}

func TestSQLiteKeepsLegacyAmountText(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.AddRecord(ctx, store.Record{Fecha: "2025-01-05", Descripcion: "viejo", Cantidad: "abc"})
	require.NoError(t, err)
	_, err = repo.AddRecord(ctx, store.Record{Fecha: "2025-01-05", Descripcion: "sin importe"})
	require.NoError(t, err)

	recs, err := repo.ListRecords(ctx)
	require.NoError(t, err)
	amounts := []any{recs[0].Cantidad, recs[1].Cantidad}
	require.ElementsMatch(t, []any{"abc", nil}, amounts)
}

func TestSQLiteAllowListAndUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	ok, err := repo.IsAllowed(ctx, "ana@example.com")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Allow(ctx, "Ana@Example.com"))
	require.NoError(t, repo.Allow(ctx, "ana@example.com"))
	ok, err = repo.IsAllowed(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = repo.db.ExecContext(ctx, `INSERT INTO usuarios_permitidos (email) VALUES (?)`, "Bea@Example.COM")
	require.NoError(t, err)
	ok, err = repo.IsAllowed(ctx, "bea@example.com")
	require.NoError(t, err)
	require.True(t, ok)

	u := store.NewUser("ana@example.com", "Ana", "hash")
	require.NoError(t, repo.CreateUser(ctx, u))
	require.ErrorIs(t, repo.CreateUser(ctx, store.NewUser("ana@example.com", "Other", "x")), store.ErrUserExists)

	got, err := repo.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = repo.GetUserByEmail(ctx, "bob@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gastos.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}
