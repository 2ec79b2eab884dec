package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/social-listener/models"
)

// statusStore is satisfied by both implementations
type statusStore interface {
	Create(ctx context.Context, status *models.CollectionStatus) error
	Update(ctx context.Context, collectionID string, upd models.StatusUpdate) error
	Get(ctx context.Context, collectionID string) (*models.CollectionStatus, error)
}

func exerciseStatusStore(t *testing.T, store statusStore) {
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, store.Create(ctx, &models.CollectionStatus{
		CollectionID: id,
		UserID:       "u1",
		Config:       models.CollectionConfig{Platforms: []string{models.PlatformReddit}},
	}))

	status, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, status.Status)
	assert.False(t, status.CreatedAt.IsZero())
	assert.Equal(t, []string{models.PlatformReddit}, status.Config.Platforms)

	collected := int64(12)
	require.NoError(t, store.Update(ctx, id, models.StatusUpdate{PostsCollected: &collected}))
	require.NoError(t, store.Update(ctx, id, models.Failed("boom")))

	status, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, status.Status)
	assert.Equal(t, "boom", status.ErrorMessage)
	assert.Equal(t, int64(12), status.PostsCollected)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, "missing", models.SetState(models.StateCancelled)), ErrNotFound)
}

func TestMemoryStatusStore(t *testing.T) {
	store := NewMemoryStatusStore()
	exerciseStatusStore(t, store)

	err := store.Create(context.Background(), &models.CollectionStatus{CollectionID: "dup"})
	require.NoError(t, err)
	assert.Error(t, store.Create(context.Background(), &models.CollectionStatus{CollectionID: "dup"}))
}

func TestMongoStatusStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	client, err := ConnectMongo(ctx, uri, testLogger())
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	database := client.Database("social_listener_test_" + uuid.NewString()[:8])
	defer database.Drop(ctx)

	exerciseStatusStore(t, NewStatusStore(database, testLogger()))
}
