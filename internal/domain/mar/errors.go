package mar

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadyRecorded is returned when an order already has an
// administration record. One record per order, enforced by the store.
var ErrAlreadyRecorded = errors.New("an administration record already exists for this order")

// IdentityMismatchError reports a scanned or typed identifier that does
// not match the patient's MRN. Recoverable: the operator rescans.
type IdentityMismatchError struct {
	Entered string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("identifier %q does not match the patient's medical record number", e.Entered)
}

// IncompleteVerificationError blocks a Give submission until every
// right has been verified. It names the checks still outstanding.
type IncompleteVerificationError struct {
	Remaining []string
}

func (e *IncompleteVerificationError) Error() string {
	return fmt.Sprintf("verification incomplete: %s not yet verified", strings.Join(e.Remaining, ", "))
}

// MissingFieldError reports a required disposition field that was not
// supplied, or one supplied with an invalid value.
type MissingFieldError struct {
	Field string
	Value string
}

func (e *MissingFieldError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid value for %s: %q", e.Field, e.Value)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// CredentialError reports a witness credential that failed either the
// local length gate or the external verification check.
type CredentialError struct {
	Reason string
}

func (e *CredentialError) Error() string {
	return "credential rejected: " + e.Reason
}

// SubmissionError wraps a persistence failure. The attempt's state is
// untouched; the operator may retry the same assembled record.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "submission failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }
