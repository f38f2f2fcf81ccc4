package identity

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleManager         Role = "manager"
	RoleSecretary       Role = "secretary"
	RolePhysiotherapist Role = "physiotherapist"
)

func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleSecretary, RolePhysiotherapist:
		return true
	}
	return false
}

// Professional is a staff member who can be booked for appointments.
type Professional struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	NationalID string    `json:"nationalId"`
	Email      string    `json:"email"`
	Phone      *string   `json:"phone,omitempty"`
	Role       Role      `json:"role"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Patient struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	NationalID string    `json:"nationalId"`
	Email      string    `json:"email"`
	Phone      *string   `json:"phone,omitempty"`
	Sex        *string   `json:"sex,omitempty"`
	Conditions *string   `json:"conditions,omitempty"`
	// BirthDate is YYYY-MM-DD.
	BirthDate *string   `json:"birthDate,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfessionalInput is the body accepted by POST and PUT /professionals.
type ProfessionalInput struct {
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	NationalID string  `json:"nationalId"`
	Email      string  `json:"email"`
	Phone      *string `json:"phone"`
	Role       Role    `json:"role"`
	Active     *bool   `json:"active"`
}

// PatientInput is the body accepted by POST and PUT /patients.
type PatientInput struct {
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	NationalID string  `json:"nationalId"`
	Email      string  `json:"email"`
	Phone      *string `json:"phone"`
	Sex        *string `json:"sex"`
	Conditions *string `json:"conditions"`
	BirthDate  *string `json:"birthDate"`
	Active     *bool   `json:"active"`
}

type ProfessionalFilter struct {
	Search string
	Role   Role
	Active *bool
}

type PatientFilter struct {
	Search string
	Active *bool
}
