package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/trailmark/service-telemetry/internal/domain"
)

// MembershipChecker verifies that a user belongs to a group before group-scoped
// operations run. The real check lives in the groups service; this interface
// is the contract the telemetry core consumes.
type MembershipChecker interface {
	RequireMembership(ctx context.Context, userID, groupID uuid.UUID) error
}

// AllowAllMemberships accepts every membership check. Used when the groups
// service is not deployed alongside the core.
type AllowAllMemberships struct{}

func (AllowAllMemberships) RequireMembership(ctx context.Context, userID, groupID uuid.UUID) error {
	return nil
}

// StaticMemberships checks against a fixed member list. Used in tests.
type StaticMemberships map[uuid.UUID][]uuid.UUID // groupID -> members

func (s StaticMemberships) RequireMembership(ctx context.Context, userID, groupID uuid.UUID) error {
	for _, id := range s[groupID] {
		if id == userID {
			return nil
		}
	}
	return domain.NewPermissionDeniedError("user is not a member of this group")
}
