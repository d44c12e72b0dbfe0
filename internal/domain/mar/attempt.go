package mar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CredentialVerifier is the external check for witness credentials on
// controlled substances. The engine only enforces the local minimum
// length; credential policy lives behind this interface.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, practitioner, code string) (bool, error)
}

// Attempt owns all state for one administration attempt: the five
// verification flags and the credential confirmation. It is built fresh
// per order and is not safe for concurrent use; one nurse, one order,
// one sitting.
type Attempt struct {
	Order   *MedicationOrder
	Patient *PatientContext

	verification        VerificationState
	credentialConfirmed bool
}

func NewAttempt(order *MedicationOrder, patient *PatientContext) *Attempt {
	return &Attempt{Order: order, Patient: patient}
}

// Verification returns a copy of the current checklist state.
func (a *Attempt) Verification() VerificationState { return a.verification }

// Complete reports whether all five rights have been verified.
func (a *Attempt) Complete() bool { return a.verification.Complete() }

// VerifyPatient checks a scanned or typed identifier against the
// patient's MRN, case-insensitively after trimming. An empty identifier
// means the scan was skipped and the current context is trusted. On
// mismatch the flag stays false and the operator retries; there is no
// lockout.
func (a *Attempt) VerifyPatient(identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier != "" && !strings.EqualFold(identifier, a.Patient.MRN) {
		return &IdentityMismatchError{Entered: identifier}
	}
	a.verification.PatientVerified = true
	return nil
}

// The remaining four rights are operator attestations: the software
// displays the order and trusts the human to confirm it. Only patient
// identity is machine-checked.

func (a *Attempt) VerifyDrug()  { a.verification.DrugVerified = true }
func (a *Attempt) VerifyDose()  { a.verification.DoseVerified = true }
func (a *Attempt) VerifyRoute() { a.verification.RouteVerified = true }
func (a *Attempt) VerifyTime()  { a.verification.TimeVerified = true }

// AllergyWarnings cross-references the order's drug against the
// patient's recorded allergies.
func (a *Attempt) AllergyWarnings() []string {
	return AllergyWarnings(a.Order.DrugName, a.Patient.Allergies)
}

// ConfirmCredential runs the controlled-substance witness gate: a local
// minimum-length check first, then the external verifier. A code
// shorter than minLength is rejected without contacting the verifier.
func (a *Attempt) ConfirmCredential(ctx context.Context, witness, code string, minLength int, verifier CredentialVerifier) error {
	if len(code) < minLength {
		return &CredentialError{Reason: fmt.Sprintf("credential must be at least %d characters", minLength)}
	}
	ok, err := verifier.VerifyCredential(ctx, witness, code)
	if err != nil {
		return &CredentialError{Reason: err.Error()}
	}
	if !ok {
		return &CredentialError{Reason: "credential declined by verifier"}
	}
	a.credentialConfirmed = true
	return nil
}

// CredentialConfirmed reports whether the witness gate has passed.
func (a *Attempt) CredentialConfirmed() bool { return a.credentialConfirmed }

// Validate checks the chosen disposition against its required-field
// contract. Give additionally requires the full checklist and, for
// controlled substances, a witness plus a confirmed credential; the
// credential gate and the 5 Rights are independent and both must pass.
func (a *Attempt) Validate(d Disposition) error {
	switch v := d.(type) {
	case Give:
		if !a.Complete() {
			return &IncompleteVerificationError{Remaining: a.verification.Remaining()}
		}
		if strings.TrimSpace(v.ActualDose) == "" {
			return &MissingFieldError{Field: "actual_dose"}
		}
		if a.Order.Route.RequiresInjectionSite() && strings.TrimSpace(v.InjectionSite) == "" {
			return &MissingFieldError{Field: "injection_site"}
		}
		if a.Order.IsControlled {
			if strings.TrimSpace(v.WitnessedBy) == "" {
				return &MissingFieldError{Field: "witnessed_by"}
			}
			if !a.credentialConfirmed {
				return &CredentialError{Reason: "witness credential not confirmed"}
			}
		}
		return nil
	case Hold:
		if v.Reason == "" {
			return &MissingFieldError{Field: "hold_reason"}
		}
		if !validHoldReasons[v.Reason] {
			return &MissingFieldError{Field: "hold_reason", Value: v.Reason}
		}
		return nil
	case Refuse:
		if v.Reason == "" {
			return &MissingFieldError{Field: "refuse_reason"}
		}
		if !validRefuseReasons[v.Reason] {
			return &MissingFieldError{Field: "refuse_reason", Value: v.Reason}
		}
		return nil
	case Unavailable:
		return nil
	default:
		return fmt.Errorf("unknown disposition %T", d)
	}
}

// BuildRecord validates the disposition and assembles the immutable
// administration record. Notes segments are composed in fixed order and
// joined with ". "; when every segment is empty, notes is nil.
func (a *Attempt) BuildRecord(d Disposition, administeredBy string) (*AdministrationRecord, error) {
	if err := a.Validate(d); err != nil {
		return nil, err
	}

	rec := &AdministrationRecord{
		ID:             uuid.New(),
		OrderID:        a.Order.ID,
		Status:         d.Status(),
		AdministeredBy: administeredBy,
		RecordedAt:     time.Now().UTC(),
	}

	var segments []string
	appendSegment := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}

	switch v := d.(type) {
	case Give:
		appendSegment(v.Notes)
		if v.ActualDose != a.Order.Dose {
			appendSegment("Actual dose: " + v.ActualDose)
		}
		if v.InjectionSite != "" {
			appendSegment("Site: " + v.InjectionSite)
		}
		if v.Reaction != "" && !strings.EqualFold(v.Reaction, ReactionToleratedWell) {
			appendSegment("Reaction: " + v.Reaction)
		}
		if v.WitnessedBy != "" {
			appendSegment("Witnessed by: " + v.WitnessedBy)
			witness := v.WitnessedBy
			rec.WitnessedBy = &witness
		}
		dose := v.ActualDose
		rec.ActualDose = &dose
	case Hold:
		appendSegment(v.Notes)
		reason := v.Reason
		rec.Reason = &reason
	case Refuse:
		appendSegment(v.Notes)
		reason := v.Reason
		rec.Reason = &reason
	case Unavailable:
		appendSegment(v.Notes)
	}

	if len(segments) > 0 {
		notes := strings.Join(segments, ". ")
		rec.Notes = &notes
	}
	return rec, nil
}
