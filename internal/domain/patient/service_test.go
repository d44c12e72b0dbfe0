package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	records map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{records: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.records[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockPatientRepo) GetByMRN(_ context.Context, mrn string) (*Patient, error) {
	for _, p := range m.records {
		if strings.EqualFold(p.MRN, mrn) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.records[p.ID] = p
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, ward string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.records {
		if ward == "" || (p.Ward != nil && *p.Ward == ward) {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

type mockAllergyRepo struct {
	records []*Allergy
}

func (m *mockAllergyRepo) Add(_ context.Context, a *Allergy) error {
	a.ID = uuid.New()
	a.RecordedAt = time.Now()
	m.records = append(m.records, a)
	return nil
}

func (m *mockAllergyRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	var result []*Allergy
	for _, a := range m.records {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAllergyRepo) Remove(_ context.Context, id uuid.UUID) error {
	for i, a := range m.records {
		if a.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return nil
}

type mockVitalsRepo struct {
	records []*VitalsSnapshot
}

func (m *mockVitalsRepo) Record(_ context.Context, v *VitalsSnapshot) error {
	v.ID = uuid.New()
	v.RecordedAt = time.Now()
	m.records = append(m.records, v)
	return nil
}

func (m *mockVitalsRepo) Latest(_ context.Context, patientID uuid.UUID) (*VitalsSnapshot, error) {
	var matched []*VitalsSnapshot
	for _, v := range m.records {
		if v.PatientID == patientID {
			matched = append(matched, v)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("not found")
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RecordedAt.After(matched[j].RecordedAt) })
	return matched[0], nil
}

func (m *mockVitalsRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalsSnapshot, int, error) {
	var result []*VitalsSnapshot
	for _, v := range m.records {
		if v.PatientID == patientID {
			result = append(result, v)
		}
	}
	return result, len(result), nil
}

func newTestService() (*Service, *mockPatientRepo, *mockAllergyRepo, *mockVitalsRepo) {
	patients := newMockPatientRepo()
	allergies := &mockAllergyRepo{}
	vitals := &mockVitalsRepo{}
	return NewService(patients, allergies, vitals), patients, allergies, vitals
}

// -- Tests --

func TestCreatePatient(t *testing.T) {
	svc, _, _, _ := newTestService()

	p := &Patient{MRN: "MRN-1001", FirstName: "John", LastName: "Doe"}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected ID assigned")
	}
}

func TestCreatePatient_TrimsMRN(t *testing.T) {
	svc, _, _, _ := newTestService()

	p := &Patient{MRN: "  MRN-1001  ", FirstName: "John", LastName: "Doe"}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MRN != "MRN-1001" {
		t.Errorf("expected trimmed MRN, got %q", p.MRN)
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()

	cases := []struct {
		name    string
		patient Patient
	}{
		{"missing mrn", Patient{FirstName: "John", LastName: "Doe"}},
		{"blank mrn", Patient{MRN: "   ", FirstName: "John", LastName: "Doe"}},
		{"missing first name", Patient{MRN: "MRN-1", LastName: "Doe"}},
		{"missing last name", Patient{MRN: "MRN-1", FirstName: "John"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Create(context.Background(), &tc.patient); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetByMRN_CaseInsensitive(t *testing.T) {
	svc, _, _, _ := newTestService()

	p := &Patient{MRN: "MRN-1001", FirstName: "John", LastName: "Doe"}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.GetByMRN(context.Background(), "mrn-1001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != p.ID {
		t.Error("expected case-insensitive MRN lookup")
	}
}

func TestAddAllergy(t *testing.T) {
	svc, _, allergies, _ := newTestService()
	patientID := uuid.New()

	sev := "severe"
	a := &Allergy{PatientID: patientID, Substance: "Penicillin", Severity: &sev}
	if err := svc.AddAllergy(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(allergies.records) != 1 {
		t.Fatalf("expected 1 allergy, got %d", len(allergies.records))
	}
}

func TestAddAllergy_SeverityScale(t *testing.T) {
	svc, _, _, _ := newTestService()

	for _, sev := range []string{"mild", "moderate", "severe", "life-threatening"} {
		s := sev
		a := &Allergy{PatientID: uuid.New(), Substance: "Latex", Severity: &s}
		if err := svc.AddAllergy(context.Background(), a); err != nil {
			t.Errorf("severity %q: unexpected error: %v", sev, err)
		}
	}
}

func TestAddAllergy_InvalidSeverity(t *testing.T) {
	svc, _, _, _ := newTestService()

	sev := "catastrophic"
	a := &Allergy{PatientID: uuid.New(), Substance: "Sulfa", Severity: &sev}
	if err := svc.AddAllergy(context.Background(), a); err == nil {
		t.Error("expected error for invalid severity")
	}
}

func TestAddAllergy_RequiresSubstance(t *testing.T) {
	svc, _, _, _ := newTestService()

	a := &Allergy{PatientID: uuid.New(), Substance: "   "}
	if err := svc.AddAllergy(context.Background(), a); err == nil {
		t.Error("expected error for blank substance")
	}
}

func TestRecordVitals_Bounds(t *testing.T) {
	svc, _, _, _ := newTestService()
	patientID := uuid.New()

	bad := 11
	if err := svc.RecordVitals(context.Background(), &VitalsSnapshot{PatientID: patientID, PainLevel: &bad}); err == nil {
		t.Error("expected error for pain_level out of range")
	}

	badSat := 101
	if err := svc.RecordVitals(context.Background(), &VitalsSnapshot{PatientID: patientID, OxygenSaturation: &badSat}); err == nil {
		t.Error("expected error for oxygen_saturation out of range")
	}

	ok := 7
	if err := svc.RecordVitals(context.Background(), &VitalsSnapshot{PatientID: patientID, PainLevel: &ok}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLatestVitals(t *testing.T) {
	svc, _, _, vitals := newTestService()
	patientID := uuid.New()

	for i := 0; i < 3; i++ {
		pulse := 60 + i
		if err := svc.RecordVitals(context.Background(), &VitalsSnapshot{PatientID: patientID, Pulse: &pulse}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Force distinct timestamps for ordering.
	for i, v := range vitals.records {
		v.RecordedAt = time.Now().Add(time.Duration(i) * time.Second)
	}

	latest, err := svc.LatestVitals(context.Background(), patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *latest.Pulse != 62 {
		t.Errorf("expected most recent snapshot, got pulse %d", *latest.Pulse)
	}
}
