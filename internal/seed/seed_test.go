package seed

import (
	"context"
	"testing"

	"polished/internal/config"
	"polished/internal/repository"
	"polished/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoCreatesRequestedCounts(t *testing.T) {
	st, err := store.Open(&config.Config{DBPath: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	posts := repository.NewPostRepository(st)
	ctx := context.Background()

	require.NoError(t, Demo(ctx, posts, Options{NumPublished: 2, NumDrafts: 3}))

	published, err := posts.ListPublished(ctx)
	require.NoError(t, err)
	assert.Len(t, published, 2)

	drafts, err := posts.ListDrafts(ctx)
	require.NoError(t, err)
	assert.Len(t, drafts, 3)

	for _, p := range published {
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Body)
	}
}
