package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, ward string, limit, offset int) ([]*Patient, int, error)
}

type AllergyRepository interface {
	Add(ctx context.Context, a *Allergy) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type VitalsRepository interface {
	Record(ctx context.Context, v *VitalsSnapshot) error
	Latest(ctx context.Context, patientID uuid.UUID) (*VitalsSnapshot, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalsSnapshot, int, error)
}
