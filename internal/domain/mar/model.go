// Package mar implements the medication administration record workflow:
// the "5 Rights" verification checklist, allergy cross-referencing,
// disposition validation, and the assembly of immutable administration
// records for scheduled medication orders.
package mar

import (
	"time"

	"github.com/google/uuid"
)

// Route is the administration route of a medication order.
type Route string

const (
	RouteOral       Route = "oral"
	RouteIV         Route = "iv"
	RouteIM         Route = "im"
	RouteSC         Route = "sc"
	RouteTopical    Route = "topical"
	RouteInhalation Route = "inhalation"
	RouteRectal     Route = "rectal"
	RouteSublingual Route = "sublingual"
)

var validRoutes = map[Route]bool{
	RouteOral:       true,
	RouteIV:         true,
	RouteIM:         true,
	RouteSC:         true,
	RouteTopical:    true,
	RouteInhalation: true,
	RouteRectal:     true,
	RouteSublingual: true,
}

// RequiresInjectionSite reports whether administrations by this route
// must record where the injection was given.
func (r Route) RequiresInjectionSite() bool {
	return r == RouteIM || r == RouteSC || r == RouteIV
}

// OrderStatus tracks the lifecycle of a scheduled order. It starts as
// "scheduled" and moves to the record status of its administration.
type OrderStatus string

const (
	OrderScheduled OrderStatus = "scheduled"
)

// MedicationOrder is a prescribed instruction for one scheduled dose.
// IsControlled is fixed for the lifetime of an administration attempt.
type MedicationOrder struct {
	ID                  uuid.UUID   `json:"id"`
	PatientID           uuid.UUID   `json:"patient_id"`
	DrugName            string      `json:"drug_name"`
	GenericName         *string     `json:"generic_name,omitempty"`
	BrandName           *string     `json:"brand_name,omitempty"`
	Dose                string      `json:"dose"`
	Route               Route       `json:"route"`
	Frequency           string      `json:"frequency"`
	ScheduledTime       time.Time   `json:"scheduled_time"`
	IsControlled        bool        `json:"is_controlled"`
	SpecialInstructions *string     `json:"special_instructions,omitempty"`
	LastGivenAt         *time.Time  `json:"last_given_at,omitempty"`
	Status              OrderStatus `json:"status"`
	OrderedBy           *string     `json:"ordered_by,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// Vitals is the most recent bedside observation set, if any.
type Vitals struct {
	Temperature      *float64  `json:"temperature,omitempty"`
	Pulse            *int      `json:"pulse,omitempty"`
	BPSystolic       *int      `json:"bp_systolic,omitempty"`
	BPDiastolic      *int      `json:"bp_diastolic,omitempty"`
	RespiratoryRate  *int      `json:"respiratory_rate,omitempty"`
	OxygenSaturation *int      `json:"oxygen_saturation,omitempty"`
	PainLevel        *int      `json:"pain_level,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// PatientContext is the read-only patient snapshot bound to one
// administration attempt. Allergies keep their recorded order.
type PatientContext struct {
	PatientID uuid.UUID `json:"patient_id"`
	MRN       string    `json:"mrn"`
	Name      string    `json:"name"`
	Allergies []string  `json:"allergies"`
	Vitals    *Vitals   `json:"vitals,omitempty"`
	IsNPO     bool      `json:"is_npo"`
}

// VerificationState holds the five independent checks. Each flag is set
// at most once per attempt; nothing in this package clears one.
type VerificationState struct {
	PatientVerified bool `json:"patient_verified"`
	DrugVerified    bool `json:"drug_verified"`
	DoseVerified    bool `json:"dose_verified"`
	RouteVerified   bool `json:"route_verified"`
	TimeVerified    bool `json:"time_verified"`
}

// Complete reports whether all five rights have been verified.
func (v VerificationState) Complete() bool {
	return v.PatientVerified && v.DrugVerified && v.DoseVerified && v.RouteVerified && v.TimeVerified
}

// Remaining names the checks not yet verified, in checklist order.
func (v VerificationState) Remaining() []string {
	var out []string
	if !v.PatientVerified {
		out = append(out, "patient")
	}
	if !v.DrugVerified {
		out = append(out, "drug")
	}
	if !v.DoseVerified {
		out = append(out, "dose")
	}
	if !v.RouteVerified {
		out = append(out, "route")
	}
	if !v.TimeVerified {
		out = append(out, "time")
	}
	return out
}

// RecordStatus is the persisted outcome of an administration attempt.
type RecordStatus string

const (
	StatusGiven   RecordStatus = "given"
	StatusHeld    RecordStatus = "held"
	StatusRefused RecordStatus = "refused"
	StatusMissed  RecordStatus = "missed"
)

// DispositionKind tags the outcome chosen for one attempt.
type DispositionKind string

const (
	KindGive        DispositionKind = "give"
	KindHold        DispositionKind = "hold"
	KindRefuse      DispositionKind = "refuse"
	KindUnavailable DispositionKind = "unavailable"
)

// Disposition is the outcome chosen for one attempt. Each variant
// carries only its own fields, so a Hold can never smuggle an
// injection site into the record.
type Disposition interface {
	Kind() DispositionKind
	Status() RecordStatus
}

// ReactionToleratedWell is the default patient reaction; it is omitted
// from composed notes.
const ReactionToleratedWell = "tolerated well"

// Give records an administered dose.
type Give struct {
	ActualDose    string
	InjectionSite string
	Reaction      string
	WitnessedBy   string
	Notes         string
}

func (Give) Kind() DispositionKind { return KindGive }
func (Give) Status() RecordStatus  { return StatusGiven }

// Hold records a dose deliberately withheld.
type Hold struct {
	Reason string
	Notes  string
}

func (Hold) Kind() DispositionKind { return KindHold }
func (Hold) Status() RecordStatus  { return StatusHeld }

// Refuse records a dose the patient declined.
type Refuse struct {
	Reason string
	Notes  string
}

func (Refuse) Kind() DispositionKind { return KindRefuse }
func (Refuse) Status() RecordStatus  { return StatusRefused }

// Unavailable records a dose that could not be obtained.
type Unavailable struct {
	Notes string
}

func (Unavailable) Kind() DispositionKind { return KindUnavailable }
func (Unavailable) Status() RecordStatus  { return StatusMissed }

var validHoldReasons = map[string]bool{
	"npo":       true,
	"vitals":    true,
	"labs":      true,
	"procedure": true,
	"sleeping":  true,
	"doctor":    true,
	"other":     true,
}

var validRefuseReasons = map[string]bool{
	"no_reason":      true,
	"side_effects":   true,
	"feeling_better": true,
	"taste":          true,
	"religious":      true,
	"swallowing":     true,
	"other":          true,
}

// AdministrationRecord is the immutable output of a completed attempt.
// Rows are insert-only; a failed submission produces no record.
type AdministrationRecord struct {
	ID             uuid.UUID    `json:"id"`
	OrderID        uuid.UUID    `json:"order_id"`
	Status         RecordStatus `json:"status"`
	Notes          *string      `json:"notes,omitempty"`
	Reason         *string      `json:"reason,omitempty"`
	ActualDose     *string      `json:"actual_dose,omitempty"`
	WitnessedBy    *string      `json:"witnessed_by,omitempty"`
	AdministeredBy string       `json:"administered_by"`
	RecordedAt     time.Time    `json:"recorded_at"`
	CreatedAt      time.Time    `json:"created_at"`
}
