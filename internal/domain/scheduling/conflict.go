package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperror"
)

type ConflictKind string

const (
	ConflictProfessional ConflictKind = "PROFESSIONAL"
	ConflictRoom         ConflictKind = "ROOM"
	ConflictPatient      ConflictKind = "PATIENT"
)

// OverlapQuery asks whether another appointment sharing one dimension
// (professional, room or patient) overlaps [Start, End) on Date.
type OverlapQuery struct {
	Kind           ConflictKind
	Date           Date
	Start          Clock
	End            Clock
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
	Room           string
	ExcludeID      *uuid.UUID
}

// FindConflicts checks the candidate against stored appointments in the
// order professional, room, patient and returns every kind that clashes.
// The room is only checked when one is set. A cancelled candidate holds no
// time and never conflicts.
func (s *Service) FindConflicts(ctx context.Context, candidate *Appointment, excludeID *uuid.UUID) ([]ConflictKind, error) {
	if candidate.Status == StatusCancelled {
		return nil, nil
	}
	base := OverlapQuery{
		Date:      candidate.Date,
		Start:     candidate.Start,
		End:       candidate.End,
		ExcludeID: excludeID,
	}

	queries := []OverlapQuery{}
	q := base
	q.Kind, q.ProfessionalID = ConflictProfessional, candidate.ProfessionalID
	queries = append(queries, q)
	if candidate.Room != nil && *candidate.Room != "" {
		q = base
		q.Kind, q.Room = ConflictRoom, *candidate.Room
		queries = append(queries, q)
	}
	q = base
	q.Kind, q.PatientID = ConflictPatient, candidate.PatientID
	queries = append(queries, q)

	var kinds []ConflictKind
	for _, q := range queries {
		hit, err := s.appointments.HasOverlap(ctx, q)
		if err != nil {
			return nil, err
		}
		if hit {
			kinds = append(kinds, q.Kind)
		}
	}
	return kinds, nil
}

func conflictError(kind ConflictKind) error {
	switch kind {
	case ConflictProfessional:
		return apperror.Conflict("PROFESSIONAL conflict: the professional already has an appointment overlapping this time")
	case ConflictRoom:
		return apperror.Conflict("ROOM conflict: the room is already booked for an overlapping time")
	default:
		return apperror.Conflict("PATIENT conflict: the patient already has an appointment overlapping this time")
	}
}
