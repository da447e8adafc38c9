package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmark/service-telemetry/internal/domain"
	telemetryDomain "github.com/trailmark/service-telemetry/internal/domain/telemetry"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
)

func TestSessionRepository_SingleActivePerUser(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormSessionRepository(db)
	userID := uuid.New()
	ctx := context.Background()

	first := telemetryDomain.NewTrackingSession(userID, time.Now())
	require.NoError(t, repo.Save(ctx, first))

	// Starting again closes everything active, then opens a new session.
	require.NoError(t, repo.DeactivateAllForUser(ctx, userID, time.Now()))
	second := telemetryDomain.NewTrackingSession(userID, time.Now())
	require.NoError(t, repo.Save(ctx, second))

	active, err := repo.FindActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.ID(), active.ID())

	closed, err := repo.FindByID(ctx, userID, first.ID())
	require.NoError(t, err)
	assert.False(t, closed.Active())
	assert.NotNil(t, closed.EndedAt())
}

func TestSessionRepository_IncrementLocations(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormSessionRepository(db)
	userID := uuid.New()
	ctx := context.Background()

	session := telemetryDomain.NewTrackingSession(userID, time.Now())
	require.NoError(t, repo.Save(ctx, session))

	require.NoError(t, repo.IncrementLocations(ctx, session.ID()))
	require.NoError(t, repo.IncrementLocations(ctx, session.ID()))

	found, err := repo.FindByID(ctx, userID, session.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, found.LocationsCount())
}

func TestSessionRepository_CrossUserIsNotFound(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormSessionRepository(db)
	ctx := context.Background()

	session := telemetryDomain.NewTrackingSession(uuid.New(), time.Now())
	require.NoError(t, repo.Save(ctx, session))

	_, err := repo.FindByID(ctx, uuid.New(), session.ID())
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestSampleRepository_Ordering(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewGormSampleRepository(db)
	userID := uuid.New()
	sessionID := uuid.New()
	ctx := context.Background()

	base := time.Date(2025, 10, 12, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		sample, err := telemetryDomain.NewLocationSample(userID, 46.8+float64(i)*0.001, -71.2, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		sample.SessionID = &sessionID
		require.NoError(t, repo.Save(ctx, sample))
	}

	bySession, err := repo.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, bySession, 3)
	// Ascending time for session walks.
	assert.True(t, bySession[0].Timestamp.Before(bySession[1].Timestamp))
	assert.True(t, bySession[1].Timestamp.Before(bySession[2].Timestamp))

	byUser, err := repo.ListByUser(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	// Newest first for history reads.
	assert.True(t, byUser[0].Timestamp.After(byUser[1].Timestamp))
}
