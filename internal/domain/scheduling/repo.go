package scheduling

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AvailabilityRepository stores weekly templates and date exceptions.
type AvailabilityRepository interface {
	ListWeeklyBlocks(ctx context.Context, professionalID uuid.UUID) ([]WeeklyBlock, error)
	ActiveBlocksForDay(ctx context.Context, professionalID uuid.UUID, dayOfWeek int) ([]WeeklyBlock, error)
	// ReplaceWeeklyBlocks deletes the professional's template and inserts
	// blocks. Callers run it inside a transaction.
	ReplaceWeeklyBlocks(ctx context.Context, professionalID uuid.UUID, blocks []WeeklyBlock) ([]WeeklyBlock, error)

	// ListExceptions returns rows with from <= date <= to, ordered by date,
	// closed rows first, then start time.
	ListExceptions(ctx context.Context, professionalID uuid.UUID, from, to Date) ([]ExceptionRow, error)
	// ReplaceExceptions deletes every row in [from, to] and inserts rows.
	ReplaceExceptions(ctx context.Context, professionalID uuid.UUID, from, to Date, rows []ExceptionRow) ([]ExceptionRow, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update writes only the fields present in patch and returns the stored row.
	Update(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f AppointmentFilter) ([]Appointment, error)
	// HasOverlap reports whether a non-cancelled appointment matching q's
	// dimension overlaps q's interval on q's date.
	HasOverlap(ctx context.Context, q OverlapQuery) (bool, error)
}

// Transactor runs fn inside a database transaction at the given isolation
// level; *db.TxManager satisfies it.
type Transactor interface {
	WithinTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(ctx context.Context) error) error
}
