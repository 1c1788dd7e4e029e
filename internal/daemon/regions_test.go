package daemon

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/dbaasd/dbaasd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegionService(t *testing.T) *RegionService {
	t.Helper()
	return NewRegionService(newTestStore(t), log.New(io.Discard, "", 0))
}

func TestRegionService(t *testing.T) {
	ctx := context.Background()

	t.Run("create and retrieve", func(t *testing.T) {
		svc := newTestRegionService(t)
		created, err := svc.Create(ctx, models.Region{ID: " eu-west ", Name: " Europe West "})
		require.NoError(t, err)
		assert.Equal(t, models.Region{ID: "eu-west", Name: "Europe West"}, created)

		got, err := svc.Retrieve(ctx, "eu-west")
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("duplicate id", func(t *testing.T) {
		svc := newTestRegionService(t)
		_, err := svc.Create(ctx, models.Region{ID: "eu-west", Name: "Europe West"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, models.Region{ID: "eu-west", Name: "Europe West 2"})
		assert.ErrorIs(t, err, ErrRegionExists)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := newTestRegionService(t)
		_, err := svc.Create(ctx, models.Region{Name: "Europe West"})
		assert.EqualError(t, err, "region id is required")
		_, err = svc.Create(ctx, models.Region{ID: "eu-west"})
		assert.EqualError(t, err, "region name is required")
	})

	t.Run("retrieve unknown", func(t *testing.T) {
		svc := newTestRegionService(t)
		_, err := svc.Retrieve(ctx, "mars-1")
		assert.ErrorIs(t, err, ErrRegionNotFound)
	})

	t.Run("list is sorted and never nil", func(t *testing.T) {
		svc := newTestRegionService(t)
		regions, err := svc.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, regions)
		assert.Empty(t, regions)

		_, err = svc.Create(ctx, models.Region{ID: "us-east", Name: "US East"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, models.Region{ID: "eu-west", Name: "Europe West"})
		require.NoError(t, err)

		regions, err = svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, regions, 2)
		assert.Equal(t, "eu-west", regions[0].ID)
	})
}
