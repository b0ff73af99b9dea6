package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/recettes/pkg/recettes/store"
	"github.com/cognicore/recettes/pkg/recettes/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return st
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTemp(t) })
}

// TestSchemaCreationIdempotent tests that running initSchema multiple times is safe
func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, initSchema(ctx, db), "iteration %d", i)
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := OpenSQLite(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Write(ctx, store.PreferencesPath("u1"), map[string]int64{"tomates": 3}))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(ctx, dbPath)
	require.NoError(t, err)
	defer st.Close()

	var h map[string]int64
	found, err := st.Read(ctx, store.PreferencesPath("u1"), &h)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), h["tomates"])
}

func TestDeleteDoesNotMatchLikeWildcards(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)
	defer st.Close()

	require.NoError(t, st.Write(ctx, "users/a_b/preferences", map[string]int64{"sel": 1}))
	require.NoError(t, st.Write(ctx, "users/axb/preferences", map[string]int64{"sel": 1}))

	require.NoError(t, st.Delete(ctx, "users/a_b"))

	found, err := st.Read(ctx, "users/axb/preferences", nil)
	require.NoError(t, err)
	assert.True(t, found)
}
