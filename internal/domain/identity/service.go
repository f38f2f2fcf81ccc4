package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperror"
)

type Service struct {
	professionals ProfessionalRepository
	patients      PatientRepository
}

func NewService(professionals ProfessionalRepository, patients PatientRepository) *Service {
	return &Service{professionals: professionals, patients: patients}
}

// person holds the fields professionals and patients share.
type person struct {
	firstName, lastName, nationalID, email string
}

func (p *person) normalize() {
	p.firstName = strings.TrimSpace(p.firstName)
	p.lastName = strings.TrimSpace(p.lastName)
	p.nationalID = strings.TrimSpace(p.nationalID)
	p.email = strings.ToLower(strings.TrimSpace(p.email))
}

func (p person) validate() error {
	if p.firstName == "" || p.lastName == "" || p.nationalID == "" || p.email == "" {
		return apperror.Validation("firstName, lastName, nationalId and email are required")
	}
	if addr, err := mail.ParseAddress(p.email); err != nil || addr.Address != p.email {
		return apperror.Validation("email %q is not a valid address", p.email)
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// -- Professional --

func (s *Service) buildProfessional(in ProfessionalInput) (*Professional, error) {
	pp := person{in.FirstName, in.LastName, in.NationalID, in.Email}
	pp.normalize()
	if err := pp.validate(); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, apperror.Validation("role must be one of manager, secretary, physiotherapist")
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return &Professional{
		FirstName:  pp.firstName,
		LastName:   pp.lastName,
		NationalID: pp.nationalID,
		Email:      pp.email,
		Phone:      trimOptional(in.Phone),
		Role:       in.Role,
		Active:     active,
	}, nil
}

func (s *Service) CreateProfessional(ctx context.Context, in ProfessionalInput) (*Professional, error) {
	p, err := s.buildProfessional(in)
	if err != nil {
		return nil, err
	}
	if err := s.professionals.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error) {
	return s.professionals.GetByID(ctx, id)
}

// UpdateProfessional replaces every editable field of the professional.
func (s *Service) UpdateProfessional(ctx context.Context, id uuid.UUID, in ProfessionalInput) (*Professional, error) {
	p, err := s.buildProfessional(in)
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.professionals.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeleteProfessional(ctx context.Context, id uuid.UUID) error {
	return s.professionals.Delete(ctx, id)
}

func (s *Service) ListProfessionals(ctx context.Context, f ProfessionalFilter, limit, offset int) ([]*Professional, int, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, 0, apperror.Validation("unknown role %q", f.Role)
	}
	return s.professionals.List(ctx, f, limit, offset)
}

// -- Patient --

func (s *Service) buildPatient(in PatientInput) (*Patient, error) {
	pp := person{in.FirstName, in.LastName, in.NationalID, in.Email}
	pp.normalize()
	if err := pp.validate(); err != nil {
		return nil, err
	}
	birth := trimOptional(in.BirthDate)
	if birth != nil {
		d, err := time.Parse("2006-01-02", *birth)
		if err != nil {
			return nil, apperror.Validation("birthDate must be YYYY-MM-DD")
		}
		if d.After(time.Now()) {
			return nil, apperror.Validation("birthDate must not be in the future")
		}
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return &Patient{
		FirstName:  pp.firstName,
		LastName:   pp.lastName,
		NationalID: pp.nationalID,
		Email:      pp.email,
		Phone:      trimOptional(in.Phone),
		Sex:        trimOptional(in.Sex),
		Conditions: trimOptional(in.Conditions),
		BirthDate:  birth,
		Active:     active,
	}, nil
}

func (s *Service) CreatePatient(ctx context.Context, in PatientInput) (*Patient, error) {
	p, err := s.buildPatient(in)
	if err != nil {
		return nil, err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, in PatientInput) (*Patient, error) {
	p, err := s.buildPatient(in)
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, f, limit, offset)
}
