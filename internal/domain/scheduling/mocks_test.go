package scheduling

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/apperror"
)

// -- Mock Availability Repository --

type mockAvailabilityRepo struct {
	weekly      map[uuid.UUID][]WeeklyBlock
	exceptions  map[uuid.UUID][]ExceptionRow
	weeklyReads int
	// afterWeeklyRead runs once ListWeeklyBlocks has taken its snapshot.
	afterWeeklyRead func()
}

func newMockAvailabilityRepo() *mockAvailabilityRepo {
	return &mockAvailabilityRepo{
		weekly:     make(map[uuid.UUID][]WeeklyBlock),
		exceptions: make(map[uuid.UUID][]ExceptionRow),
	}
}

func (m *mockAvailabilityRepo) ListWeeklyBlocks(_ context.Context, professionalID uuid.UUID) ([]WeeklyBlock, error) {
	m.weeklyReads++
	out := append([]WeeklyBlock{}, m.weekly[professionalID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].Start < out[j].Start
	})
	if hook := m.afterWeeklyRead; hook != nil {
		m.afterWeeklyRead = nil
		hook()
	}
	return out, nil
}

func (m *mockAvailabilityRepo) ActiveBlocksForDay(_ context.Context, professionalID uuid.UUID, dayOfWeek int) ([]WeeklyBlock, error) {
	var out []WeeklyBlock
	for _, b := range m.weekly[professionalID] {
		if b.Active && b.DayOfWeek == dayOfWeek {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockAvailabilityRepo) ReplaceWeeklyBlocks(_ context.Context, professionalID uuid.UUID, blocks []WeeklyBlock) ([]WeeklyBlock, error) {
	stored := make([]WeeklyBlock, len(blocks))
	for i, b := range blocks {
		b.ID = uuid.New()
		b.ProfessionalID = professionalID
		stored[i] = b
	}
	m.weekly[professionalID] = stored
	return append([]WeeklyBlock{}, stored...), nil
}

func (m *mockAvailabilityRepo) ListExceptions(_ context.Context, professionalID uuid.UUID, from, to Date) ([]ExceptionRow, error) {
	var out []ExceptionRow
	for _, e := range m.exceptions[professionalID] {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Closed && !out[j].Closed
	})
	return out, nil
}

func (m *mockAvailabilityRepo) ReplaceExceptions(_ context.Context, professionalID uuid.UUID, from, to Date, rows []ExceptionRow) ([]ExceptionRow, error) {
	var kept []ExceptionRow
	for _, e := range m.exceptions[professionalID] {
		if e.Date.Before(from) || e.Date.After(to) {
			kept = append(kept, e)
		}
	}
	stored := make([]ExceptionRow, len(rows))
	for i, r := range rows {
		r.ID = uuid.New()
		r.ProfessionalID = professionalID
		stored[i] = r
	}
	m.exceptions[professionalID] = append(kept, stored...)
	return stored, nil
}

// -- Mock Appointment Repository --

type mockAppointmentRepo struct {
	items map[uuid.UUID]Appointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{items: make(map[uuid.UUID]Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.items[a.ID] = *a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, apperror.NotFound("appointment not found")
	}
	return &a, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, apperror.NotFound("appointment not found")
	}
	a = patch.Apply(a)
	a.UpdatedAt = time.Now()
	m.items[id] = a
	return &a, nil
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return apperror.NotFound("appointment not found")
	}
	delete(m.items, id)
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, f AppointmentFilter) ([]Appointment, error) {
	out := []Appointment{}
	for _, a := range m.items {
		if a.Date.Before(f.From) || a.Date.After(f.To) {
			continue
		}
		if f.ProfessionalID != nil && a.ProfessionalID != *f.ProfessionalID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (m *mockAppointmentRepo) HasOverlap(_ context.Context, q OverlapQuery) (bool, error) {
	want := Interval{Start: q.Start, End: q.End}
	for _, a := range m.items {
		if a.Status == StatusCancelled || !a.Date.Equal(q.Date) {
			continue
		}
		if q.ExcludeID != nil && a.ID == *q.ExcludeID {
			continue
		}
		var same bool
		switch q.Kind {
		case ConflictProfessional:
			same = a.ProfessionalID == q.ProfessionalID
		case ConflictRoom:
			same = a.Room != nil && *a.Room == q.Room
		case ConflictPatient:
			same = a.PatientID == q.PatientID
		}
		if same && a.Interval().Overlaps(want) {
			return true, nil
		}
	}
	return false, nil
}

// -- Fakes --

// fakeTx runs fn inline and records the isolation level of each call.
type fakeTx struct {
	levels []pgx.TxIsoLevel
}

func (f *fakeTx) WithinTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(ctx context.Context) error) error {
	f.levels = append(f.levels, iso)
	return fn(ctx)
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := strconv.ParseInt(string(s.data[key]), 10, 64)
	n++
	s.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}
