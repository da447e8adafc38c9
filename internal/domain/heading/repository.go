package heading

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the write-through persistence behind the in-process session
// cache. The cache is authoritative while a session is live; rows exist so
// ended sessions survive for history and a restarted process can observe
// them.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	Update(ctx context.Context, s *Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*Session, error)
}
