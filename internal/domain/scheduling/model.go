package scheduling

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// TypeSession is the only clinical appointment type. Any other type,
// including other spellings such as "Session", is non-clinical.
const TypeSession = "session"

func isClinical(apptType string) bool {
	return strings.TrimSpace(apptType) == TypeSession
}

// WeeklyBlock is one interval of a professional's recurring weekly template.
type WeeklyBlock struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	DayOfWeek      int       `json:"dayOfWeek"`
	Start          Clock     `json:"start"`
	End            Clock     `json:"end"`
	Active         bool      `json:"active"`
}

// ExceptionRow overrides the template on one date. A closed row carries no
// times; a special row carries one open interval.
type ExceptionRow struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	Date           Date      `json:"date"`
	Closed         bool      `json:"closed"`
	Start          *Clock    `json:"start"`
	End            *Clock    `json:"end"`
}

type Appointment struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	PatientID      uuid.UUID `json:"patientId"`
	Date           Date      `json:"date"`
	Start          Clock     `json:"start"`
	End            Clock     `json:"end"`
	Type           string    `json:"type"`
	Status         Status    `json:"status"`
	Room           *string   `json:"room"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

// Nullable distinguishes an absent JSON field (Set false) from an explicit
// null (Set true, Value nil).
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// CreateAppointmentRequest is the body of POST /appointments. Type defaults to
// "session" and status to "scheduled".
type CreateAppointmentRequest struct {
	ProfessionalID uuid.UUID `json:"professionalId"`
	PatientID      uuid.UUID `json:"patientId"`
	Date           Date      `json:"date"`
	Start          *Clock    `json:"start"`
	End            *Clock    `json:"end"`
	Type           *string   `json:"type"`
	Status         *Status   `json:"status"`
	Room           *string   `json:"room"`
	Notes          *string   `json:"notes"`
}

// AppointmentPatch is the body of PUT /appointments/:id. Only the fields
// present in the request are written.
type AppointmentPatch struct {
	ProfessionalID *uuid.UUID       `json:"professionalId"`
	PatientID      *uuid.UUID       `json:"patientId"`
	Date           *Date            `json:"date"`
	Start          *Clock           `json:"start"`
	End            *Clock           `json:"end"`
	Type           *string          `json:"type"`
	Status         *Status          `json:"status"`
	Room           Nullable[string] `json:"room"`
	Notes          Nullable[string] `json:"notes"`
}

func (p AppointmentPatch) IsEmpty() bool {
	return p.ProfessionalID == nil && p.PatientID == nil && p.Date == nil &&
		p.Start == nil && p.End == nil && p.Type == nil && p.Status == nil &&
		!p.Room.Set && !p.Notes.Set
}

// Apply returns a copy of a with the patch's fields laid over it.
func (p AppointmentPatch) Apply(a Appointment) Appointment {
	if p.ProfessionalID != nil {
		a.ProfessionalID = *p.ProfessionalID
	}
	if p.PatientID != nil {
		a.PatientID = *p.PatientID
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Start != nil {
		a.Start = *p.Start
	}
	if p.End != nil {
		a.End = *p.End
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Room.Set {
		a.Room = p.Room.Value
	}
	if p.Notes.Set {
		a.Notes = p.Notes.Value
	}
	return a
}

type AppointmentFilter struct {
	From           Date
	To             Date
	ProfessionalID *uuid.UUID
	PatientID      *uuid.UUID
	Status         *Status
}

// IntervalInput is a start/end pair as submitted by clients. Both fields are
// required; pointers let the boundary tell 00:00 from a missing value.
type IntervalInput struct {
	Start *Clock `json:"start"`
	End   *Clock `json:"end"`
}

type WeeklyBlockInput struct {
	DayOfWeek int    `json:"dayOfWeek"`
	Start     *Clock `json:"start"`
	End       *Clock `json:"end"`
}

type ReplaceWeeklyRequest struct {
	Blocks []WeeklyBlockInput `json:"blocks"`
}

type ExceptionDayInput struct {
	Date   Date            `json:"date"`
	Closed bool            `json:"closed"`
	Blocks []IntervalInput `json:"blocks"`
}

type ReplaceExceptionsRequest struct {
	From       Date                `json:"from"`
	To         Date                `json:"to"`
	Exceptions []ExceptionDayInput `json:"exceptions"`
}
