package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var validSeverities = map[string]bool{
	"mild":             true,
	"moderate":         true,
	"severe":           true,
	"life-threatening": true,
}

type Service struct {
	patients  Repository
	allergies AllergyRepository
	vitals    VitalsRepository
}

func NewService(patients Repository, allergies AllergyRepository, vitals VitalsRepository) *Service {
	return &Service{patients: patients, allergies: allergies, vitals: vitals}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.MRN = strings.TrimSpace(p.MRN)
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	mrn = strings.TrimSpace(mrn)
	if mrn == "" {
		return nil, fmt.Errorf("mrn is required")
	}
	return s.patients.GetByMRN(ctx, mrn)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, ward string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, ward, limit, offset)
}

// -- Allergies --

func (s *Service) AddAllergy(ctx context.Context, a *Allergy) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	a.Substance = strings.TrimSpace(a.Substance)
	if a.Substance == "" {
		return fmt.Errorf("substance is required")
	}
	if a.Severity != nil && !validSeverities[*a.Severity] {
		return fmt.Errorf("invalid severity: %s", *a.Severity)
	}
	return s.allergies.Add(ctx, a)
}

func (s *Service) ListAllergies(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	return s.allergies.ListByPatient(ctx, patientID)
}

func (s *Service) RemoveAllergy(ctx context.Context, id uuid.UUID) error {
	return s.allergies.Remove(ctx, id)
}

// -- Vitals --

func (s *Service) RecordVitals(ctx context.Context, v *VitalsSnapshot) error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if v.PainLevel != nil && (*v.PainLevel < 0 || *v.PainLevel > 10) {
		return fmt.Errorf("pain_level must be between 0 and 10")
	}
	if v.OxygenSaturation != nil && (*v.OxygenSaturation < 0 || *v.OxygenSaturation > 100) {
		return fmt.Errorf("oxygen_saturation must be between 0 and 100")
	}
	return s.vitals.Record(ctx, v)
}

func (s *Service) LatestVitals(ctx context.Context, patientID uuid.UUID) (*VitalsSnapshot, error) {
	return s.vitals.Latest(ctx, patientID)
}

func (s *Service) ListVitals(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalsSnapshot, int, error) {
	return s.vitals.ListByPatient(ctx, patientID, limit, offset)
}
