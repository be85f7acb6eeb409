package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"gastos/internal/store"
)

// Runs against a disposable database named by POSTGRES_TEST_DSN.
func TestPostgresRepo(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	repo, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer repo.Close()

	id, err := repo.AddRecord(ctx, store.Record{Fecha: "2025-01-05", Descripcion: "pan", Cantidad: 2.5, Persona: "Ana"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.DeleteRecord(context.Background(), id) })

	recs, err := repo.ListRecords(ctx)
	require.NoError(t, err)
	found := false
	for _, r := range recs {
		if r.ID == id {
			found = true
			require.Equal(t, "2.5", r.Cantidad)
		}
	}
	require.True(t, found)

	require.NoError(t, repo.UpdateRecord(ctx, id, store.Record{Fecha: "2025-01-06", Descripcion: "pan", Cantidad: 3.0}))
	require.ErrorIs(t, repo.UpdateRecord(ctx, "missing-id", store.Record{}), store.ErrNotFound)

	require.NoError(t, repo.Allow(ctx, "pg-test@example.com"))
	ok, err := repo.IsAllowed(ctx, "PG-TEST@example.com")
	require.NoError(t, err)
	require.True(t, ok)
}
