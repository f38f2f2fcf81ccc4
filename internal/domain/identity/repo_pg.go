package identity

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperror"
	"github.com/clinic/clinic/internal/platform/db"
)

var dialect = goqu.Dialect("postgres")

func searchPattern(s string) string {
	return "%" + s + "%"
}

// listPage runs a COUNT(*) and a paged SELECT over the same WHERE clause and
// hands each result row to scan.
func listPage(ctx context.Context, q db.Querier, table string, cols []interface{}, where []exp.Expression, order []exp.OrderedExpression, limit, offset int, scan func(pgx.Rows) error) (int, error) {
	countSQL, countArgs, err := dialect.From(table).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).Where(where...).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build %s count: %w", table, err)
	}
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return 0, apperror.Internal("count "+table, err)
	}

	dataSQL, dataArgs, err := dialect.From(table).Prepared(true).
		Select(cols...).Where(where...).Order(order...).
		Limit(uint(limit)).Offset(uint(offset)).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build %s list: %w", table, err)
	}
	rows, err := q.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return 0, apperror.Internal("list "+table, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return 0, apperror.Internal("scan "+table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, apperror.Internal("list "+table, err)
	}
	return total, nil
}

// deleteRow removes one row by id. A foreign-key violation means appointments
// still reference it.
func deleteRow(ctx context.Context, q db.Querier, table, entity string, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		if db.PgCode(err) == db.CodeForeignKeyViolation {
			return apperror.Conflict("%s is still referenced by appointments", entity)
		}
		return db.TranslateError(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("%s not found", entity)
	}
	return nil
}

func translateWrite(err error, entity string) error {
	if db.PgCode(err) == db.CodeUniqueViolation {
		return apperror.Duplicate("%s with this national id or email already exists", entity)
	}
	return db.TranslateError(err, entity)
}

// -- Professional Repository --

type professionalRepoPG struct {
	pool *pgxpool.Pool
}

func NewProfessionalRepo(pool *pgxpool.Pool) ProfessionalRepository {
	return &professionalRepoPG{pool: pool}
}

func (r *professionalRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const professionalCols = `id, first_name, last_name, national_id, email, phone, role, active, created_at, updated_at`

var professionalColList = []interface{}{"id", "first_name", "last_name", "national_id", "email", "phone", "role", "active", "created_at", "updated_at"}

func (r *professionalRepoPG) Create(ctx context.Context, p *Professional) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO professional (id, first_name, last_name, national_id, email, phone, role, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.NationalID, p.Email, p.Phone, p.Role, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translateWrite(err, "professional")
	}
	return nil
}

func (r *professionalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	p, err := scanProfessional(r.conn(ctx).QueryRow(ctx, `SELECT `+professionalCols+` FROM professional WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err, "professional")
	}
	return p, nil
}

func (r *professionalRepoPG) Update(ctx context.Context, p *Professional) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE professional SET
			first_name = $2, last_name = $3, national_id = $4, email = $5,
			phone = $6, role = $7, active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.NationalID, p.Email, p.Phone, p.Role, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translateWrite(err, "professional")
	}
	return nil
}

func (r *professionalRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteRow(ctx, r.conn(ctx), "professional", "professional", id)
}

func (r *professionalRepoPG) List(ctx context.Context, f ProfessionalFilter, limit, offset int) ([]*Professional, int, error) {
	var where []exp.Expression
	if f.Search != "" {
		pat := searchPattern(f.Search)
		where = append(where, goqu.Or(
			goqu.C("first_name").ILike(pat),
			goqu.C("last_name").ILike(pat),
			goqu.C("national_id").ILike(pat),
		))
	}
	if f.Role != "" {
		where = append(where, goqu.C("role").Eq(string(f.Role)))
	}
	if f.Active != nil {
		where = append(where, goqu.C("active").Eq(*f.Active))
	}

	var out []*Professional
	total, err := listPage(ctx, r.conn(ctx), "professional", professionalColList, where,
		[]exp.OrderedExpression{goqu.I("last_name").Asc(), goqu.I("first_name").Asc()},
		limit, offset, func(rows pgx.Rows) error {
			p, err := scanProfessional(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.NationalID, &p.Email, &p.Phone, &p.Role, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, first_name, last_name, national_id, email, phone, sex, conditions,
	to_char(birth_date, 'YYYY-MM-DD'), active, created_at, updated_at`

var patientColList = []interface{}{
	"id", "first_name", "last_name", "national_id", "email", "phone", "sex", "conditions",
	goqu.L("to_char(birth_date, 'YYYY-MM-DD')"), "active", "created_at", "updated_at",
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, first_name, last_name, national_id, email, phone, sex, conditions, birth_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date, $10)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.NationalID, p.Email, p.Phone, p.Sex, p.Conditions, p.BirthDate, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translateWrite(err, "patient")
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err, "patient")
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			first_name = $2, last_name = $3, national_id = $4, email = $5, phone = $6,
			sex = $7, conditions = $8, birth_date = $9::date, active = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.NationalID, p.Email, p.Phone, p.Sex, p.Conditions, p.BirthDate, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translateWrite(err, "patient")
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteRow(ctx, r.conn(ctx), "patient", "patient", id)
}

func (r *patientRepoPG) List(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	var where []exp.Expression
	if f.Search != "" {
		pat := searchPattern(f.Search)
		where = append(where, goqu.Or(
			goqu.C("first_name").ILike(pat),
			goqu.C("last_name").ILike(pat),
			goqu.C("national_id").ILike(pat),
			goqu.C("email").ILike(pat),
		))
	}
	if f.Active != nil {
		where = append(where, goqu.C("active").Eq(*f.Active))
	}

	var out []*Patient
	total, err := listPage(ctx, r.conn(ctx), "patient", patientColList, where,
		[]exp.OrderedExpression{goqu.I("last_name").Asc(), goqu.I("first_name").Asc()},
		limit, offset, func(rows pgx.Rows) error {
			p, err := scanPatient(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.NationalID, &p.Email, &p.Phone,
		&p.Sex, &p.Conditions, &p.BirthDate, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
