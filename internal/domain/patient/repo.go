package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ayurclinic/clinic/internal/domain/dietplan"
)

// Repository persists patient profiles. Implementations return ErrNotFound
// for unknown ids and ErrDuplicateLoginID when a login id is already taken.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByLoginID(ctx context.Context, loginID string) (*Patient, error)
	LoginIDExists(ctx context.Context, loginID string) (bool, error)
	// Update writes the editable profile attributes only.
	Update(ctx context.Context, p *Patient) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// Delete removes the profile and its whole diet chart history.
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByOwner returns profiles newest first. An empty addedBy lists all.
	ListByOwner(ctx context.Context, addedBy string, limit, offset int) ([]*Patient, int, error)

	ChartRepository
}

// ChartRepository stores the ordered diet chart history of a profile.
// Every write names the version it was based on; a mismatch yields
// ErrConcurrentModification.
type ChartRepository interface {
	Charts(ctx context.Context, id uuid.UUID) ([]dietplan.Chart, int64, error)
	SaveCharts(ctx context.Context, id uuid.UUID, charts []dietplan.Chart, expectedVersion int64) (int64, error)
}
