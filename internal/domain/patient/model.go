package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is an admitted inpatient with a ward/bed assignment. The MRN is
// the identifier printed on the wristband and used for bedside scanning.
type Patient struct {
	ID          uuid.UUID  `json:"id"`
	MRN         string     `json:"mrn"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Ward        *string    `json:"ward,omitempty"`
	Bed         *string    `json:"bed,omitempty"`
	IsNPO       bool       `json:"is_npo"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FullName returns "First Last".
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Allergy is a recorded substance allergy. The substance is free text as
// entered at intake; matching against drug names is the caller's concern.
type Allergy struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	Substance  string    `json:"substance"`
	Severity   *string   `json:"severity,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// VitalsSnapshot is one set of bedside observations.
type VitalsSnapshot struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patient_id"`
	Temperature      *float64  `json:"temperature,omitempty"`
	Pulse            *int      `json:"pulse,omitempty"`
	BPSystolic       *int      `json:"bp_systolic,omitempty"`
	BPDiastolic      *int      `json:"bp_diastolic,omitempty"`
	RespiratoryRate  *int      `json:"respiratory_rate,omitempty"`
	OxygenSaturation *int      `json:"oxygen_saturation,omitempty"`
	PainLevel        *int      `json:"pain_level,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
}
