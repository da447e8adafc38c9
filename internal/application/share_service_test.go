package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/auth"
	"github.com/trailmark/service-telemetry/internal/domain"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/repository/repotest"
	"github.com/trailmark/service-telemetry/internal/ws"
)

func newShareFixture(t *testing.T, membership auth.MembershipChecker) *GroupShareService {
	db := repotest.Open(t)
	return NewGroupShareService(
		repository.NewGormGroupShareRepository(db),
		membership,
		ws.NewHub(zap.NewNop()),
		zap.NewNop(),
	)
}

func TestGroupShareService_ShareAndList(t *testing.T) {
	svc := newShareFixture(t, auth.AllowAllMemberships{})
	groupID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	ctx := context.Background()

	heading := 45.0
	_, err := svc.SharePosition(ctx, groupID, alice, 46.81, -71.20, &heading, "moving")
	require.NoError(t, err)
	_, err = svc.SharePosition(ctx, groupID, bob, 46.82, -71.21, nil, "in_stand")
	require.NoError(t, err)

	positions, err := svc.GroupPositions(ctx, groupID, alice)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestGroupShareService_LastWriterWins(t *testing.T) {
	svc := newShareFixture(t, auth.AllowAllMemberships{})
	groupID := uuid.New()
	userID := uuid.New()
	ctx := context.Background()

	_, err := svc.SharePosition(ctx, groupID, userID, 46.81, -71.20, nil, "moving")
	require.NoError(t, err)
	_, err = svc.SharePosition(ctx, groupID, userID, 46.83, -71.22, nil, "in_stand")
	require.NoError(t, err)

	positions, err := svc.GroupPositions(ctx, groupID, userID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 46.83, positions[0].Lat, 1e-9)
	assert.Equal(t, "in_stand", positions[0].Status)
}

func TestGroupShareService_StaleRowsFallOutOfView(t *testing.T) {
	svc := newShareFixture(t, auth.AllowAllMemberships{})
	groupID := uuid.New()
	userID := uuid.New()
	ctx := context.Background()

	_, err := svc.SharePosition(ctx, groupID, userID, 46.81, -71.20, nil, "")
	require.NoError(t, err)

	// Reads an hour later see nothing.
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	positions, err := svc.GroupPositions(ctx, groupID, userID)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestGroupShareService_StopSharing(t *testing.T) {
	svc := newShareFixture(t, auth.AllowAllMemberships{})
	groupID := uuid.New()
	userID := uuid.New()
	ctx := context.Background()

	_, err := svc.SharePosition(ctx, groupID, userID, 46.81, -71.20, nil, "")
	require.NoError(t, err)
	require.NoError(t, svc.StopSharing(ctx, groupID, userID))

	positions, err := svc.GroupPositions(ctx, groupID, userID)
	require.NoError(t, err)
	assert.Empty(t, positions)

	// Stopping with no shared row is a not-found.
	err = svc.StopSharing(ctx, groupID, uuid.New())
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestGroupShareService_MembershipIsEnforced(t *testing.T) {
	groupID := uuid.New()
	member := uuid.New()
	outsider := uuid.New()
	svc := newShareFixture(t, auth.StaticMemberships{groupID: {member}})
	ctx := context.Background()

	_, err := svc.SharePosition(ctx, groupID, outsider, 46.81, -71.20, nil, "")
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))

	_, err = svc.GroupPositions(ctx, groupID, outsider)
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))
}

func TestGroupShareService_RejectsBadCoordinates(t *testing.T) {
	svc := newShareFixture(t, auth.AllowAllMemberships{})

	_, err := svc.SharePosition(context.Background(), uuid.New(), uuid.New(), 91, 0, nil, "")
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}
