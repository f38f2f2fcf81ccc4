package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperror"
)

const (
	DefaultSlotMinutes = 30
	minSlotMinutes     = 5
	maxSlotMinutes     = 8 * 60
)

// FreeSlots is the answer to a slot search for one professional and date.
type FreeSlots struct {
	Date            Date       `json:"date"`
	DurationMinutes int        `json:"durationMinutes"`
	Slots           []Interval `json:"slots"`
}

// FindFreeSlots walks each resolved block in steps of duration and keeps the
// slots that no active appointment of the professional overlaps. Rooms and
// patients are not considered; a booking can still be refused on those.
func (s *Service) FindFreeSlots(ctx context.Context, professionalID uuid.UUID, date Date, durationMinutes int) (*FreeSlots, error) {
	if date.IsZero() {
		return nil, apperror.Validation("date is required")
	}
	if durationMinutes == 0 {
		durationMinutes = DefaultSlotMinutes
	}
	if durationMinutes < minSlotMinutes || durationMinutes > maxSlotMinutes {
		return nil, apperror.Validation("duration must be between %d and %d minutes", minSlotMinutes, maxSlotMinutes)
	}

	day, err := s.ResolveDay(ctx, professionalID, date)
	if err != nil {
		return nil, err
	}
	booked, err := s.appointments.List(ctx, AppointmentFilter{From: date, To: date, ProfessionalID: &professionalID})
	if err != nil {
		return nil, err
	}

	step := Clock(durationMinutes)
	out := &FreeSlots{Date: date, DurationMinutes: durationMinutes, Slots: []Interval{}}
	for _, b := range day.Blocks {
		for start := b.Start; start+step <= b.End; start += step {
			slot := Interval{Start: start, End: start + step}
			if !overlapsAny(slot, booked) {
				out.Slots = append(out.Slots, slot)
			}
		}
	}
	return out, nil
}

func overlapsAny(slot Interval, booked []Appointment) bool {
	for i := range booked {
		if booked[i].Status != StatusCancelled && booked[i].Interval().Overlaps(slot) {
			return true
		}
	}
	return false
}
