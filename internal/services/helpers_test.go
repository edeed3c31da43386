package services

import (
	"context"
	"testing"

	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/testutil"
	"github.com/localnerve/memebase/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testStack struct {
	db          *gorm.DB
	collections *CollectionService
	documents   *DocumentService
}

// newTestStack returns services over an in-memory database seeded with the
// default collections
func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := testutil.SetupTestDB(t)
	collections := &CollectionService{DB: db}
	require.NoError(t, collections.EnsureCollections(context.Background(), DefaultCollections()))

	return &testStack{
		db:          db,
		collections: collections,
		documents:   &DocumentService{DB: db, Collections: collections, ChunkSize: 2},
	}
}

func (s *testStack) collection(t *testing.T, slug string) *models.CollectionSchema {
	t.Helper()
	coll, err := s.collections.Get(context.Background(), slug)
	require.NoError(t, err)
	return coll
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	se, ok := types.AsStatusError(err)
	require.Truef(t, ok, "expected a status error, got %T: %v", err, err)
	require.Equal(t, status, se.HTTPStatus(), se.Error())
}
