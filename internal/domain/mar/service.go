package mar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultCredentialMinLength is the local gate applied before any
// external credential check.
const DefaultCredentialMinLength = 4

type Service struct {
	orders      OrderRepository
	records     AdministrationRepository
	patients    PatientDirectory
	credentials CredentialVerifier
	notifier    Notifier

	credentialMinLength int
}

func NewService(orders OrderRepository, records AdministrationRepository,
	patients PatientDirectory, credentials CredentialVerifier, notifier Notifier) *Service {
	return &Service{
		orders:              orders,
		records:             records,
		patients:            patients,
		credentials:         credentials,
		notifier:            notifier,
		credentialMinLength: DefaultCredentialMinLength,
	}
}

// SetCredentialMinLength overrides the local credential length gate.
func (s *Service) SetCredentialMinLength(n int) {
	if n > 0 {
		s.credentialMinLength = n
	}
}

// -- Orders --

func (s *Service) CreateOrder(ctx context.Context, o *MedicationOrder) error {
	if o.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(o.DrugName) == "" {
		return fmt.Errorf("drug_name is required")
	}
	if strings.TrimSpace(o.Dose) == "" {
		return fmt.Errorf("dose is required")
	}
	if !validRoutes[o.Route] {
		return fmt.Errorf("invalid route: %s", o.Route)
	}
	if strings.TrimSpace(o.Frequency) == "" {
		return fmt.Errorf("frequency is required")
	}
	if o.ScheduledTime.IsZero() {
		return fmt.Errorf("scheduled_time is required")
	}
	if _, err := s.patients.Lookup(ctx, o.PatientID); err != nil {
		return fmt.Errorf("patient lookup: %w", err)
	}
	return s.orders.Create(ctx, o)
}

func (s *Service) UpdateOrder(ctx context.Context, o *MedicationOrder) error {
	current, err := s.orders.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	if current.Status != OrderScheduled {
		return fmt.Errorf("order already %s, cannot be rescheduled", current.Status)
	}
	if !validRoutes[o.Route] {
		return fmt.Errorf("invalid route: %s", o.Route)
	}
	return s.orders.Update(ctx, o)
}

func (s *Service) ListOrders(ctx context.Context, filter OrderFilter, limit, offset int) ([]*MedicationOrder, int, error) {
	return s.orders.List(ctx, filter, limit, offset)
}

// OrderDetail bundles an order with the patient snapshot and the
// advisory allergy warnings the operator must see before verifying.
type OrderDetail struct {
	Order           *MedicationOrder `json:"order"`
	Patient         *PatientContext  `json:"patient"`
	AllergyWarnings []string         `json:"allergy_warnings"`
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.Lookup(ctx, order.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient lookup: %w", err)
	}
	return &OrderDetail{
		Order:           order,
		Patient:         patient,
		AllergyWarnings: AllergyWarnings(order.DrugName, patient.Allergies),
	}, nil
}

// -- Verification --

// VerificationResult reports the outcome of a bedside identity check.
type VerificationResult struct {
	Verified bool `json:"verified"`
	Skipped  bool `json:"skipped"`
}

// VerifyPatient runs the identity check for an order without creating
// any record. Mismatches are audit-logged with the attempted identifier
// redacted to its last four characters.
func (s *Service) VerifyPatient(ctx context.Context, orderID uuid.UUID, identifier string) (*VerificationResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.Lookup(ctx, order.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient lookup: %w", err)
	}

	attempt := NewAttempt(order, patient)
	if err := attempt.VerifyPatient(identifier); err != nil {
		log.Warn().
			Str("order_id", orderID.String()).
			Str("identifier", redactIdentifier(identifier)).
			Msg("patient identity mismatch")
		return nil, err
	}
	return &VerificationResult{
		Verified: true,
		Skipped:  strings.TrimSpace(identifier) == "",
	}, nil
}

func redactIdentifier(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 4 {
		return id
	}
	return "..." + id[len(id)-4:]
}

// -- Administration --

// AdministerRequest is the full attempt payload: the identity check
// input, the four attestation flags, and the chosen disposition with
// its fields.
type AdministerRequest struct {
	PatientIdentifier string `json:"patient_identifier"`
	DrugVerified      bool   `json:"drug_verified"`
	DoseVerified      bool   `json:"dose_verified"`
	RouteVerified     bool   `json:"route_verified"`
	TimeVerified      bool   `json:"time_verified"`

	Disposition string `json:"disposition"`

	ActualDose        string `json:"actual_dose,omitempty"`
	InjectionSite     string `json:"injection_site,omitempty"`
	Reaction          string `json:"reaction,omitempty"`
	WitnessedBy       string `json:"witnessed_by,omitempty"`
	WitnessCredential string `json:"witness_credential,omitempty"`
	HoldReason        string `json:"hold_reason,omitempty"`
	RefuseReason      string `json:"refuse_reason,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// AdministerResult is returned from a successful submission.
type AdministerResult struct {
	Record          *AdministrationRecord `json:"record"`
	AllergyWarnings []string              `json:"allergy_warnings,omitempty"`
}

var outcomeTemplates = map[RecordStatus]string{
	StatusGiven:   "medication-given",
	StatusHeld:    "medication-held",
	StatusRefused: "medication-refused",
	StatusMissed:  "medication-missed",
}

// Administer runs one complete attempt: identity check, attestations,
// disposition validation, the controlled-substance credential gate, and
// the atomic submission. A failed submission leaves no record and the
// caller retries manually with the same payload.
func (s *Service) Administer(ctx context.Context, orderID uuid.UUID, req AdministerRequest, administeredBy string) (*AdministerResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.Lookup(ctx, order.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient lookup: %w", err)
	}

	attempt := NewAttempt(order, patient)
	if err := attempt.VerifyPatient(req.PatientIdentifier); err != nil {
		return nil, err
	}
	if req.DrugVerified {
		attempt.VerifyDrug()
	}
	if req.DoseVerified {
		attempt.VerifyDose()
	}
	if req.RouteVerified {
		attempt.VerifyRoute()
	}
	if req.TimeVerified {
		attempt.VerifyTime()
	}

	disposition, err := buildDisposition(order, req)
	if err != nil {
		return nil, err
	}

	if order.IsControlled && disposition.Kind() == KindGive {
		// Checklist and field gaps surface before the credential gate;
		// the only failure allowed through here is the not-yet-confirmed
		// credential, which ConfirmCredential resolves next.
		if err := attempt.Validate(disposition); err != nil {
			var credErr *CredentialError
			if !errors.As(err, &credErr) {
				return nil, err
			}
		}
		if err := attempt.ConfirmCredential(ctx, req.WitnessedBy, req.WitnessCredential,
			s.credentialMinLength, s.credentials); err != nil {
			return nil, err
		}
	}

	rec, err := attempt.BuildRecord(disposition, administeredBy)
	if err != nil {
		return nil, err
	}

	if err := s.records.Create(ctx, rec); err != nil {
		if err == ErrAlreadyRecorded {
			return nil, err
		}
		return nil, &SubmissionError{Err: err}
	}

	s.publishOutcome(ctx, order, patient, rec, administeredBy)

	return &AdministerResult{
		Record:          rec,
		AllergyWarnings: attempt.AllergyWarnings(),
	}, nil
}

func (s *Service) publishOutcome(ctx context.Context, order *MedicationOrder, patient *PatientContext, rec *AdministrationRecord, nurse string) {
	if s.notifier == nil {
		return
	}
	vars := map[string]string{
		"drug":    order.DrugName,
		"dose":    order.Dose,
		"patient": patient.Name,
		"nurse":   nurse,
	}
	if rec.Reason != nil {
		vars["reason"] = *rec.Reason
	}
	s.notifier.Publish(ctx, outcomeTemplates[rec.Status], "charge-nurse", vars)
}

func buildDisposition(order *MedicationOrder, req AdministerRequest) (Disposition, error) {
	switch DispositionKind(req.Disposition) {
	case KindGive:
		dose := req.ActualDose
		if strings.TrimSpace(dose) == "" {
			dose = order.Dose
		}
		return Give{
			ActualDose:    dose,
			InjectionSite: req.InjectionSite,
			Reaction:      req.Reaction,
			WitnessedBy:   req.WitnessedBy,
			Notes:         req.Notes,
		}, nil
	case KindHold:
		return Hold{Reason: req.HoldReason, Notes: req.Notes}, nil
	case KindRefuse:
		return Refuse{Reason: req.RefuseReason, Notes: req.Notes}, nil
	case KindUnavailable:
		return Unavailable{Notes: req.Notes}, nil
	default:
		return nil, &MissingFieldError{Field: "disposition", Value: req.Disposition}
	}
}

// -- History --

func (s *Service) GetAdministration(ctx context.Context, id uuid.UUID) (*AdministrationRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListAdministrations(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*AdministrationRecord, int, error) {
	return s.records.List(ctx, patientID, limit, offset)
}

// DueOrders lists scheduled orders due by the given time.
func (s *Service) DueOrders(ctx context.Context, due time.Time, limit, offset int) ([]*MedicationOrder, int, error) {
	status := string(OrderScheduled)
	return s.orders.List(ctx, OrderFilter{Status: status, DueBefore: &due}, limit, offset)
}
