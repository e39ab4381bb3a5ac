package repository

import (
	"testing"

	"polished/internal/config"
	"polished/internal/store"

	"github.com/stretchr/testify/require"
)

// newTestStore opens a fresh in-memory store for a single test.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(&config.Config{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}
