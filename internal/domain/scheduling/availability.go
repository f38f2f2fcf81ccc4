package scheduling

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// Interval is the half-open span [Start, End) within one day.
type Interval struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && i.End >= o.End
}

// Overlaps reports whether i and o share any minute. Touching intervals
// such as [09:00,10:00) and [10:00,11:00) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && i.End > o.Start
}

type DayMode string

const (
	ModeTemplate DayMode = "template"
	ModeSpecial  DayMode = "special"
	ModeClosed   DayMode = "closed"
)

// ResolvedDay is the authoritative set of open intervals for a professional
// on one date.
type ResolvedDay struct {
	Date      Date       `json:"date"`
	DayOfWeek int        `json:"dayOfWeek"`
	Mode      DayMode    `json:"mode"`
	Blocks    []Interval `json:"blocks"`
}

// Admits reports whether some single block contains iv. Adjacent blocks are
// not merged, so a request spanning two touching blocks is refused.
func (d ResolvedDay) Admits(iv Interval) bool {
	for _, b := range d.Blocks {
		if b.Contains(iv) {
			return true
		}
	}
	return false
}

// ResolveDay applies the override rules: any closed exception closes the day;
// otherwise exception rows replace the template entirely; otherwise the
// active template blocks for the date's weekday apply. exceptions must hold
// only rows for date.
func ResolveDay(date Date, template []WeeklyBlock, exceptions []ExceptionRow) ResolvedDay {
	day := ResolvedDay{Date: date, DayOfWeek: date.ISOWeekday(), Blocks: []Interval{}}

	if len(exceptions) > 0 {
		for _, e := range exceptions {
			if e.Closed {
				day.Mode = ModeClosed
				day.Blocks = []Interval{}
				return day
			}
			if e.Start != nil && e.End != nil {
				day.Blocks = append(day.Blocks, Interval{Start: *e.Start, End: *e.End})
			}
		}
		day.Mode = ModeSpecial
		sortIntervals(day.Blocks)
		return day
	}

	day.Mode = ModeTemplate
	for _, b := range template {
		if b.Active && b.DayOfWeek == day.DayOfWeek {
			day.Blocks = append(day.Blocks, Interval{Start: b.Start, End: b.End})
		}
	}
	sortIntervals(day.Blocks)
	return day
}

func sortIntervals(ivs []Interval) {
	sort.Slice(ivs, func(i, j int) bool {
		if ivs[i].Start != ivs[j].Start {
			return ivs[i].Start < ivs[j].Start
		}
		return ivs[i].End < ivs[j].End
	})
}

// ResolveDay loads the exception rows for the date and, only when there are
// none, the weekly template for its weekday.
func (s *Service) ResolveDay(ctx context.Context, professionalID uuid.UUID, date Date) (ResolvedDay, error) {
	exceptions, err := s.availability.ListExceptions(ctx, professionalID, date, date)
	if err != nil {
		return ResolvedDay{}, err
	}
	if len(exceptions) > 0 {
		return ResolveDay(date, nil, exceptions), nil
	}
	template, err := s.availability.ActiveBlocksForDay(ctx, professionalID, date.ISOWeekday())
	if err != nil {
		return ResolvedDay{}, err
	}
	return ResolveDay(date, template, nil), nil
}

// IsAvailable reports whether [start, end) on date falls inside one of the
// professional's resolved blocks.
func (s *Service) IsAvailable(ctx context.Context, professionalID uuid.UUID, date Date, start, end Clock) (bool, error) {
	day, err := s.ResolveDay(ctx, professionalID, date)
	if err != nil {
		return false, err
	}
	return day.Admits(Interval{Start: start, End: end}), nil
}
