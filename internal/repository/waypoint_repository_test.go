package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmark/service-telemetry/internal/domain"
	waypointDomain "github.com/trailmark/service-telemetry/internal/domain/waypoint"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
)

func TestWaypointRepository_UpsertAndFind(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormWaypointRepository(db)
	userID := uuid.New()

	wp, err := waypointDomain.New(userID, "Clearing A", 46.8139, -71.2080)
	require.NoError(t, err)
	wp.Type = "stand"
	wp.SetPriority(8)

	require.NoError(t, repo.Upsert(context.Background(), wp))

	found, err := repo.FindByID(context.Background(), userID, wp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clearing A", found.Name)
	assert.Equal(t, "stand", found.Type)
	assert.Equal(t, 8, found.Priority)
	assert.InDelta(t, 46.8139, found.Lat, 1e-9)

	// Upsert with the same id replaces.
	found.Name = "Clearing A (north)"
	require.NoError(t, repo.Upsert(context.Background(), found))

	again, err := repo.FindByID(context.Background(), userID, wp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clearing A (north)", again.Name)

	all, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWaypointRepository_CrossUserReadIsNotFound(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormWaypointRepository(db)
	owner := uuid.New()
	stranger := uuid.New()

	wp, err := waypointDomain.New(owner, "Secret spot", 46.0, -71.0)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(context.Background(), wp))

	_, err = repo.FindByID(context.Background(), stranger, wp.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	err = repo.Delete(context.Background(), stranger, wp.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	// Still there for the owner.
	_, err = repo.FindByID(context.Background(), owner, wp.ID)
	assert.NoError(t, err)
}

func TestWaypointRepository_Delete(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormWaypointRepository(db)
	userID := uuid.New()

	wp, err := waypointDomain.New(userID, "Temp marker", 45.5, -73.5)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(context.Background(), wp))

	require.NoError(t, repo.Delete(context.Background(), userID, wp.ID))

	_, err = repo.FindByID(context.Background(), userID, wp.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
