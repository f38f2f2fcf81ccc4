package scheduling

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperror"
	"github.com/clinic/clinic/internal/platform/cache"
)

var (
	defaultListFrom = NewDate(2000, time.January, 1)
	defaultListTo   = NewDate(2100, time.January, 1)
)

type Config struct {
	Policy RoomPolicy
	// Cache and CacheTTL enable the weekly-template read cache. A nil Cache
	// or zero TTL disables it.
	Cache    cache.Store
	CacheTTL time.Duration
	Logger   zerolog.Logger
	// Metrics, when set, counts appointment write outcomes under
	// DecisionsMetric.
	Metrics Recorder
}

// DecisionsMetric counts appointment writes by operation and outcome
// ("accepted" or the error kind).
const DecisionsMetric = "scheduling_appointment_decisions_total"

// Recorder is the counter sink the service reports to.
type Recorder interface {
	Inc(name string, values ...string)
}

type Service struct {
	availability AvailabilityRepository
	appointments AppointmentRepository
	tx           Transactor
	policy       RoomPolicy
	templates    templateCache
	metrics      Recorder
}

func NewService(avail AvailabilityRepository, appts AppointmentRepository, tx Transactor, cfg Config) *Service {
	return &Service{
		availability: avail,
		appointments: appts,
		tx:           tx,
		policy:       cfg.Policy,
		templates:    templateCache{store: cfg.Cache, ttl: cfg.CacheTTL, logger: cfg.Logger},
		metrics:      cfg.Metrics,
	}
}

func (s *Service) record(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "accepted"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	s.metrics.Inc(DecisionsMetric, op, outcome)
}

// -- Appointment --

func validateAppointment(a *Appointment) error {
	switch {
	case a.ProfessionalID == uuid.Nil:
		return apperror.Validation("professionalId is required")
	case a.PatientID == uuid.Nil:
		return apperror.Validation("patientId is required")
	case a.Date.IsZero():
		return apperror.Validation("date is required")
	case a.Start >= a.End:
		return apperror.Validation("start must be before end")
	case strings.TrimSpace(a.Type) == "":
		return apperror.Validation("type must not be empty")
	case !a.Status.Valid():
		return apperror.Validation("status must be one of scheduled, completed, cancelled, no-show")
	}
	return nil
}

// admit runs the write-time checks on a fully-populated candidate: room/type
// policy, availability containment, then overlap. It rewrites a.Room to the
// configured spelling. Every candidate must fit the professional's
// availability; cancelled ones are exempt from overlap only.
func (s *Service) admit(ctx context.Context, a *Appointment, excludeID *uuid.UUID) error {
	room, err := s.policy.Check(a.Type, a.Room)
	if err != nil {
		return err
	}
	a.Room = room

	ok, err := s.IsAvailable(ctx, a.ProfessionalID, a.Date, a.Start, a.End)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Availability("%s %s-%s is outside the professional's availability", a.Date, a.Start, a.End)
	}

	kinds, err := s.FindConflicts(ctx, a, excludeID)
	if err != nil {
		return err
	}
	if len(kinds) > 0 {
		return conflictError(kinds[0])
	}
	return nil
}

func (s *Service) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (out *Appointment, err error) {
	defer func() { s.record("create", err) }()

	if req.Start == nil || req.End == nil {
		return nil, apperror.Validation("start and end are required")
	}
	a := &Appointment{
		ProfessionalID: req.ProfessionalID,
		PatientID:      req.PatientID,
		Date:           req.Date,
		Start:          *req.Start,
		End:            *req.End,
		Type:           TypeSession,
		Status:         StatusScheduled,
		Room:           req.Room,
		Notes:          req.Notes,
	}
	if req.Type != nil {
		a.Type = strings.TrimSpace(*req.Type)
	}
	if req.Status != nil {
		a.Status = *req.Status
	}
	if err := validateAppointment(a); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, pgx.Serializable, func(ctx context.Context) error {
		if err := s.admit(ctx, a, nil); err != nil {
			return err
		}
		return s.appointments.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// UpdateAppointment merges patch over the stored appointment, re-runs every
// write-time check on the merged result (excluding the appointment itself
// from overlap checks) and writes only the supplied fields.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (out *Appointment, err error) {
	defer func() { s.record("update", err) }()

	if patch.IsEmpty() {
		return nil, apperror.Validation("no changes supplied")
	}
	if patch.Type != nil {
		t := strings.TrimSpace(*patch.Type)
		patch.Type = &t
	}

	err = s.tx.WithinTx(ctx, pgx.Serializable, func(ctx context.Context) error {
		current, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		merged := patch.Apply(*current)
		if err := validateAppointment(&merged); err != nil {
			return err
		}
		if err := s.admit(ctx, &merged, &id); err != nil {
			return err
		}
		if patch.Room.Set {
			patch.Room.Value = merged.Room
		}
		out, err = s.appointments.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Delete(ctx, id)
}

// ListAppointments returns appointments ordered by date then start. A missing
// from or to falls back to 2000-01-01 or 2100-01-01.
func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	if f.From.IsZero() {
		f.From = defaultListFrom
	}
	if f.To.IsZero() {
		f.To = defaultListTo
	}
	if f.From.After(f.To) {
		return nil, apperror.Validation("from must not be after to")
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperror.Validation("unknown status %q", *f.Status)
	}
	return s.appointments.List(ctx, f)
}

// -- Weekly template --

func (s *Service) GetWeeklyTemplate(ctx context.Context, professionalID uuid.UUID) ([]WeeklyBlock, error) {
	cached, hit, gen, usable := s.templates.lookup(ctx, professionalID)
	if hit {
		return cached, nil
	}
	blocks, err := s.availability.ListWeeklyBlocks(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []WeeklyBlock{}
	}
	if usable {
		s.templates.put(ctx, professionalID, gen, blocks)
	}
	return blocks, nil
}

// ReplaceWeeklyTemplate atomically swaps the professional's whole template
// for req.Blocks. An empty list clears it.
func (s *Service) ReplaceWeeklyTemplate(ctx context.Context, professionalID uuid.UUID, req ReplaceWeeklyRequest) ([]WeeklyBlock, error) {
	blocks := make([]WeeklyBlock, 0, len(req.Blocks))
	for i, in := range req.Blocks {
		if in.DayOfWeek < 1 || in.DayOfWeek > 7 {
			return nil, apperror.Validation("blocks[%d]: dayOfWeek must be between 1 (Monday) and 7 (Sunday)", i)
		}
		iv, err := intervalFrom(in.Start, in.End)
		if err != nil {
			return nil, apperror.Validation("blocks[%d]: %s", i, err.Error())
		}
		blocks = append(blocks, WeeklyBlock{
			ProfessionalID: professionalID,
			DayOfWeek:      in.DayOfWeek,
			Start:          iv.Start,
			End:            iv.End,
			Active:         true,
		})
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].DayOfWeek != blocks[j].DayOfWeek {
			return blocks[i].DayOfWeek < blocks[j].DayOfWeek
		}
		return blocks[i].Start < blocks[j].Start
	})
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if prev.DayOfWeek == cur.DayOfWeek && cur.Start < prev.End {
			return nil, apperror.Validation("blocks on day %d overlap: %s-%s and %s-%s",
				cur.DayOfWeek, prev.Start, prev.End, cur.Start, cur.End)
		}
	}

	var stored []WeeklyBlock
	err := s.tx.WithinTx(ctx, pgx.Serializable, func(ctx context.Context) error {
		var err error
		stored, err = s.availability.ReplaceWeeklyBlocks(ctx, professionalID, blocks)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.templates.invalidate(ctx, professionalID)
	if stored == nil {
		stored = []WeeklyBlock{}
	}
	return stored, nil
}

// -- Exceptions --

func checkRange(from, to Date) error {
	if from.IsZero() || to.IsZero() {
		return apperror.Validation("from and to are required")
	}
	if from.After(to) {
		return apperror.Validation("from must not be after to")
	}
	return nil
}

func (s *Service) ListExceptions(ctx context.Context, professionalID uuid.UUID, from, to Date) ([]ExceptionRow, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	rows, err := s.availability.ListExceptions(ctx, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []ExceptionRow{}
	}
	return rows, nil
}

// ReplaceExceptions swaps every exception in [req.From, req.To] for the
// submitted days. Each day is either closed with no blocks or special with
// at least one non-overlapping block.
func (s *Service) ReplaceExceptions(ctx context.Context, professionalID uuid.UUID, req ReplaceExceptionsRequest) ([]ExceptionRow, error) {
	if err := checkRange(req.From, req.To); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(req.Exceptions))
	var rows []ExceptionRow
	for i, day := range req.Exceptions {
		if day.Date.IsZero() {
			return nil, apperror.Validation("exceptions[%d]: date is required", i)
		}
		if day.Date.Before(req.From) || day.Date.After(req.To) {
			return nil, apperror.Validation("exceptions[%d]: %s is outside %s..%s", i, day.Date, req.From, req.To)
		}
		if seen[day.Date.String()] {
			return nil, apperror.Validation("exceptions[%d]: %s is listed more than once", i, day.Date)
		}
		seen[day.Date.String()] = true

		if day.Closed {
			if len(day.Blocks) > 0 {
				return nil, apperror.Validation("exceptions[%d]: a closed day cannot also have blocks", i)
			}
			rows = append(rows, ExceptionRow{ProfessionalID: professionalID, Date: day.Date, Closed: true})
			continue
		}
		if len(day.Blocks) == 0 {
			return nil, apperror.Validation("exceptions[%d]: a day that is not closed needs at least one block", i)
		}

		ivs := make([]Interval, 0, len(day.Blocks))
		for j, b := range day.Blocks {
			iv, err := intervalFrom(b.Start, b.End)
			if err != nil {
				return nil, apperror.Validation("exceptions[%d].blocks[%d]: %s", i, j, err.Error())
			}
			ivs = append(ivs, iv)
		}
		sortIntervals(ivs)
		for j := 1; j < len(ivs); j++ {
			if ivs[j].Overlaps(ivs[j-1]) {
				return nil, apperror.Validation("exceptions[%d]: blocks overlap on %s", i, day.Date)
			}
		}
		for _, iv := range ivs {
			start, end := iv.Start, iv.End
			rows = append(rows, ExceptionRow{ProfessionalID: professionalID, Date: day.Date, Start: &start, End: &end})
		}
	}

	var stored []ExceptionRow
	err := s.tx.WithinTx(ctx, pgx.Serializable, func(ctx context.Context) error {
		var err error
		stored, err = s.availability.ReplaceExceptions(ctx, professionalID, req.From, req.To, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = []ExceptionRow{}
	}
	return stored, nil
}

type intervalError string

func (e intervalError) Error() string { return string(e) }

func intervalFrom(start, end *Clock) (Interval, error) {
	if start == nil || end == nil {
		return Interval{}, intervalError("start and end are required")
	}
	if *start >= *end {
		return Interval{}, intervalError("start must be before end")
	}
	return Interval{Start: *start, End: *end}, nil
}
