package mar

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderFilter narrows the due list.
type OrderFilter struct {
	PatientID  *uuid.UUID
	Status     string
	Controlled *bool
	DueBefore  *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, o *MedicationOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicationOrder, error)
	Update(ctx context.Context, o *MedicationOrder) error
	List(ctx context.Context, filter OrderFilter, limit, offset int) ([]*MedicationOrder, int, error)
}

// AdministrationRepository persists completed attempts. Create is
// atomic: it inserts the record and advances the order's status in one
// transaction, and returns ErrAlreadyRecorded when the order already
// has a record.
type AdministrationRepository interface {
	Create(ctx context.Context, rec *AdministrationRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*AdministrationRecord, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*AdministrationRecord, error)
	List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*AdministrationRecord, int, error)
}

// PatientDirectory supplies the read-only patient snapshot for an
// attempt. Implemented over the patient domain service.
type PatientDirectory interface {
	Lookup(ctx context.Context, patientID uuid.UUID) (*PatientContext, error)
}

// Notifier publishes fire-and-forget outcome messages. Delivery
// failures never affect the submission result.
type Notifier interface {
	Publish(ctx context.Context, template, recipient string, vars map[string]string)
}
