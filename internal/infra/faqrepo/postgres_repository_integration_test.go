//go:build integration

package faqrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/persian-faqbot/internal/testutil"
)

func TestPostgresRepositoryContract(t *testing.T) {
	ctx := context.Background()
	container := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewMigratedPool(ctx, t, container)
	require.NoError(t, testutil.TruncateAll(ctx, pool))

	exerciseRepository(t, NewPostgresRepository(pool))
	require.NoError(t, testutil.TruncateAll(ctx, pool))
	exerciseCategories(t, NewPostgresRepository(pool))
}
