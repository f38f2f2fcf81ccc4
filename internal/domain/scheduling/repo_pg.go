package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperror"
	"github.com/clinic/clinic/internal/platform/db"
)

var dialect = goqu.Dialect("postgres")

// -- Availability Repository --

type availabilityRepoPG struct {
	pool *pgxpool.Pool
}

func NewAvailabilityRepo(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

func (r *availabilityRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const weeklyCols = `id, professional_id, day_of_week, start_time, end_time, active`

func (r *availabilityRepoPG) ListWeeklyBlocks(ctx context.Context, professionalID uuid.UUID) ([]WeeklyBlock, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+weeklyCols+` FROM weekly_availability
		WHERE professional_id = $1
		ORDER BY day_of_week, start_time`, professionalID)
	if err != nil {
		return nil, db.TranslateError(err, "weekly availability")
	}
	return collectWeekly(rows)
}

func (r *availabilityRepoPG) ActiveBlocksForDay(ctx context.Context, professionalID uuid.UUID, dayOfWeek int) ([]WeeklyBlock, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+weeklyCols+` FROM weekly_availability
		WHERE professional_id = $1 AND day_of_week = $2 AND active
		ORDER BY start_time`, professionalID, dayOfWeek)
	if err != nil {
		return nil, db.TranslateError(err, "weekly availability")
	}
	return collectWeekly(rows)
}

func (r *availabilityRepoPG) ReplaceWeeklyBlocks(ctx context.Context, professionalID uuid.UUID, blocks []WeeklyBlock) ([]WeeklyBlock, error) {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM weekly_availability WHERE professional_id = $1`, professionalID); err != nil {
		return nil, db.TranslateError(err, "weekly availability")
	}
	if len(blocks) == 0 {
		return []WeeklyBlock{}, nil
	}

	records := make([]interface{}, 0, len(blocks))
	for i := range blocks {
		blocks[i].ID = uuid.New()
		blocks[i].ProfessionalID = professionalID
		records = append(records, goqu.Record{
			"id":              blocks[i].ID.String(),
			"professional_id": professionalID.String(),
			"day_of_week":     blocks[i].DayOfWeek,
			"start_time":      goqu.Cast(goqu.V(blocks[i].Start.String()), "TIME"),
			"end_time":        goqu.Cast(goqu.V(blocks[i].End.String()), "TIME"),
			"active":          blocks[i].Active,
		})
	}
	sql, args, err := dialect.Insert("weekly_availability").Prepared(true).Rows(records...).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build weekly availability insert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return nil, translateAvailabilityWrite(err, "weekly availability")
	}
	return blocks, nil
}

func collectWeekly(rows pgx.Rows) ([]WeeklyBlock, error) {
	defer rows.Close()
	out := []WeeklyBlock{}
	for rows.Next() {
		var b WeeklyBlock
		if err := rows.Scan(&b.ID, &b.ProfessionalID, &b.DayOfWeek, &b.Start, &b.End, &b.Active); err != nil {
			return nil, apperror.Internal("scan weekly availability", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, db.TranslateError(err, "weekly availability")
	}
	return out, nil
}

func (r *availabilityRepoPG) ListExceptions(ctx context.Context, professionalID uuid.UUID, from, to Date) ([]ExceptionRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, professional_id, exception_date, closed, start_time, end_time
		FROM availability_exception
		WHERE professional_id = $1 AND exception_date BETWEEN $2::date AND $3::date
		ORDER BY exception_date, closed DESC, start_time`,
		professionalID, from.String(), to.String())
	if err != nil {
		return nil, db.TranslateError(err, "availability exception")
	}
	defer rows.Close()

	out := []ExceptionRow{}
	for rows.Next() {
		var (
			e          ExceptionRow
			start, end pgtype.Time
		)
		if err := rows.Scan(&e.ID, &e.ProfessionalID, &e.Date, &e.Closed, &start, &end); err != nil {
			return nil, apperror.Internal("scan availability exception", err)
		}
		e.Start = clockOrNil(start)
		e.End = clockOrNil(end)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, db.TranslateError(err, "availability exception")
	}
	return out, nil
}

func (r *availabilityRepoPG) ReplaceExceptions(ctx context.Context, professionalID uuid.UUID, from, to Date, rows []ExceptionRow) ([]ExceptionRow, error) {
	q := r.conn(ctx)
	_, err := q.Exec(ctx, `
		DELETE FROM availability_exception
		WHERE professional_id = $1 AND exception_date BETWEEN $2::date AND $3::date`,
		professionalID, from.String(), to.String())
	if err != nil {
		return nil, db.TranslateError(err, "availability exception")
	}
	if len(rows) == 0 {
		return []ExceptionRow{}, nil
	}

	records := make([]interface{}, 0, len(rows))
	for i := range rows {
		rows[i].ID = uuid.New()
		rows[i].ProfessionalID = professionalID
		rec := goqu.Record{
			"id":              rows[i].ID.String(),
			"professional_id": professionalID.String(),
			"exception_date":  goqu.Cast(goqu.V(rows[i].Date.String()), "DATE"),
			"closed":          rows[i].Closed,
			"start_time":      nil,
			"end_time":        nil,
		}
		if rows[i].Start != nil && rows[i].End != nil {
			rec["start_time"] = goqu.Cast(goqu.V(rows[i].Start.String()), "TIME")
			rec["end_time"] = goqu.Cast(goqu.V(rows[i].End.String()), "TIME")
		}
		records = append(records, rec)
	}
	sql, args, err := dialect.Insert("availability_exception").Prepared(true).Rows(records...).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build availability exception insert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return nil, translateAvailabilityWrite(err, "availability exception")
	}
	return rows, nil
}

func clockOrNil(t pgtype.Time) *Clock {
	if !t.Valid {
		return nil
	}
	c := Clock(t.Microseconds / microsPerMinute)
	return &c
}

func translateAvailabilityWrite(err error, entity string) error {
	if db.PgCode(err) == db.CodeForeignKeyViolation {
		return apperror.NotFound("professional not found")
	}
	return db.TranslateError(err, entity)
}

// -- Appointment Repository --

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const appointmentCols = `id, professional_id, patient_id, appointment_date, start_time, end_time,
	type, status, room, notes, created_at, updated_at`

var appointmentColList = []interface{}{
	"id", "professional_id", "patient_id", "appointment_date", "start_time", "end_time",
	"type", "status", "room", "notes", "created_at", "updated_at",
}

// translateAppointmentWrite maps driver errors on appointment writes. The
// exclusion constraints back up the in-transaction overlap checks.
func translateAppointmentWrite(err error) error {
	switch db.PgCode(err) {
	case db.CodeForeignKeyViolation:
		return apperror.Validation("unknown professional or patient")
	case db.CodeExclusionViolation:
		return apperror.Conflict("the appointment overlaps an existing booking")
	}
	return db.TranslateError(err, "appointment")
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, professional_id, patient_id, appointment_date, start_time, end_time,
			type, status, room, notes)
		VALUES ($1, $2, $3, $4::date, $5::time, $6::time, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		a.ID, a.ProfessionalID, a.PatientID, a.Date.String(), a.Start.String(), a.End.String(),
		a.Type, string(a.Status), a.Room, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return translateAppointmentWrite(err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err, "appointment")
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	rec := goqu.Record{"updated_at": goqu.L("NOW()")}
	if patch.ProfessionalID != nil {
		rec["professional_id"] = patch.ProfessionalID.String()
	}
	if patch.PatientID != nil {
		rec["patient_id"] = patch.PatientID.String()
	}
	if patch.Date != nil {
		rec["appointment_date"] = goqu.Cast(goqu.V(patch.Date.String()), "DATE")
	}
	if patch.Start != nil {
		rec["start_time"] = goqu.Cast(goqu.V(patch.Start.String()), "TIME")
	}
	if patch.End != nil {
		rec["end_time"] = goqu.Cast(goqu.V(patch.End.String()), "TIME")
	}
	if patch.Type != nil {
		rec["type"] = *patch.Type
	}
	if patch.Status != nil {
		rec["status"] = string(*patch.Status)
	}
	if patch.Room.Set {
		rec["room"] = nullableValue(patch.Room.Value)
	}
	if patch.Notes.Set {
		rec["notes"] = nullableValue(patch.Notes.Value)
	}

	sql, args, err := dialect.Update("appointment").Prepared(true).
		Set(rec).Where(goqu.C("id").Eq(id.String())).
		Returning(appointmentColList...).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build appointment update: %w", err)
	}
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, translateAppointmentWrite(err)
	}
	return a, nil
}

func nullableValue(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "appointment")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("appointment not found")
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	where := []exp.Expression{
		goqu.C("appointment_date").Gte(goqu.Cast(goqu.V(f.From.String()), "DATE")),
		goqu.C("appointment_date").Lte(goqu.Cast(goqu.V(f.To.String()), "DATE")),
	}
	if f.ProfessionalID != nil {
		where = append(where, goqu.C("professional_id").Eq(f.ProfessionalID.String()))
	}
	if f.PatientID != nil {
		where = append(where, goqu.C("patient_id").Eq(f.PatientID.String()))
	}
	if f.Status != nil {
		where = append(where, goqu.C("status").Eq(string(*f.Status)))
	}

	sql, args, err := dialect.From("appointment").Prepared(true).
		Select(appointmentColList...).Where(where...).
		Order(goqu.I("appointment_date").Asc(), goqu.I("start_time").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build appointment list: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.TranslateError(err, "appointment")
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, apperror.Internal("scan appointment", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, db.TranslateError(err, "appointment")
	}
	return out, nil
}

// HasOverlap runs one overlap query. Two intervals overlap when each starts
// before the other ends; touching endpoints do not count.
func (r *appointmentRepoPG) HasOverlap(ctx context.Context, q OverlapQuery) (bool, error) {
	where := []exp.Expression{
		goqu.C("appointment_date").Eq(goqu.Cast(goqu.V(q.Date.String()), "DATE")),
		goqu.C("status").Neq(string(StatusCancelled)),
		goqu.C("start_time").Lt(goqu.Cast(goqu.V(q.End.String()), "TIME")),
		goqu.C("end_time").Gt(goqu.Cast(goqu.V(q.Start.String()), "TIME")),
	}
	switch q.Kind {
	case ConflictProfessional:
		where = append(where, goqu.C("professional_id").Eq(q.ProfessionalID.String()))
	case ConflictRoom:
		where = append(where, goqu.C("room").Eq(q.Room))
	case ConflictPatient:
		where = append(where, goqu.C("patient_id").Eq(q.PatientID.String()))
	default:
		return false, fmt.Errorf("unknown overlap dimension %q", q.Kind)
	}
	if q.ExcludeID != nil {
		where = append(where, goqu.C("id").Neq(q.ExcludeID.String()))
	}

	sql, args, err := dialect.From("appointment").Prepared(true).
		Select(goqu.L("1")).Where(where...).Limit(1).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build overlap query: %w", err)
	}
	var one int
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, db.TranslateError(err, "appointment")
	}
	return true, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.ProfessionalID, &a.PatientID, &a.Date, &a.Start, &a.End,
		&a.Type, &status, &a.Room, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}
