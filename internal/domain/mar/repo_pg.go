package mar

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== MedicationOrder Repository ===========

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pool: pool}
}

const orderCols = `id, patient_id, drug_name, generic_name, brand_name, dose, route, frequency,
	scheduled_time, is_controlled, special_instructions, last_given_at, status, ordered_by,
	created_at, updated_at`

func (r *orderRepoPG) scan(row pgx.Row) (*MedicationOrder, error) {
	var o MedicationOrder
	err := row.Scan(&o.ID, &o.PatientID, &o.DrugName, &o.GenericName, &o.BrandName, &o.Dose,
		&o.Route, &o.Frequency, &o.ScheduledTime, &o.IsControlled, &o.SpecialInstructions,
		&o.LastGivenAt, &o.Status, &o.OrderedBy, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *orderRepoPG) Create(ctx context.Context, o *MedicationOrder) error {
	o.ID = uuid.New()
	if o.Status == "" {
		o.Status = OrderScheduled
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO medication_order (id, patient_id, drug_name, generic_name, brand_name,
			dose, route, frequency, scheduled_time, is_controlled, special_instructions,
			status, ordered_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, o.PatientID, o.DrugName, o.GenericName, o.BrandName,
		o.Dose, o.Route, o.Frequency, o.ScheduledTime, o.IsControlled, o.SpecialInstructions,
		o.Status, o.OrderedBy)
	return err
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicationOrder, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM medication_order WHERE id = $1`, id))
}

func (r *orderRepoPG) Update(ctx context.Context, o *MedicationOrder) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE medication_order SET drug_name=$2, generic_name=$3, brand_name=$4, dose=$5,
			route=$6, frequency=$7, scheduled_time=$8, is_controlled=$9,
			special_instructions=$10, ordered_by=$11, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.DrugName, o.GenericName, o.BrandName, o.Dose,
		o.Route, o.Frequency, o.ScheduledTime, o.IsControlled,
		o.SpecialInstructions, o.OrderedBy)
	return err
}

func (r *orderRepoPG) List(ctx context.Context, filter OrderFilter, limit, offset int) ([]*MedicationOrder, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0
	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if filter.PatientID != nil {
		where += " AND patient_id = " + arg(*filter.PatientID)
	}
	if filter.Status != "" {
		where += " AND status = " + arg(filter.Status)
	}
	if filter.Controlled != nil {
		where += " AND is_controlled = " + arg(*filter.Controlled)
	}
	if filter.DueBefore != nil {
		where += " AND scheduled_time <= " + arg(*filter.DueBefore)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM medication_order `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderCols + ` FROM medication_order ` + where +
		fmt.Sprintf(` ORDER BY scheduled_time LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicationOrder
	for rows.Next() {
		o, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, nil
}

// =========== AdministrationRecord Repository ===========

type administrationRepoPG struct{ pool *pgxpool.Pool }

func NewAdministrationRepoPG(pool *pgxpool.Pool) AdministrationRepository {
	return &administrationRepoPG{pool: pool}
}

const recordCols = `id, order_id, status, notes, reason, actual_dose, witnessed_by,
	administered_by, recorded_at, created_at`

func (r *administrationRepoPG) scan(row pgx.Row) (*AdministrationRecord, error) {
	var rec AdministrationRecord
	err := row.Scan(&rec.ID, &rec.OrderID, &rec.Status, &rec.Notes, &rec.Reason,
		&rec.ActualDose, &rec.WitnessedBy, &rec.AdministeredBy, &rec.RecordedAt, &rec.CreatedAt)
	return &rec, err
}

// Create inserts the record and advances the order in one transaction.
// The unique constraint on order_id enforces at-most-once
// administration per order.
func (r *administrationRepoPG) Create(ctx context.Context, rec *AdministrationRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO administration_record (id, order_id, status, notes, reason,
			actual_dose, witnessed_by, administered_by, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.ID, rec.OrderID, rec.Status, rec.Notes, rec.Reason,
		rec.ActualDose, rec.WitnessedBy, rec.AdministeredBy, rec.RecordedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyRecorded
		}
		return err
	}

	if rec.Status == StatusGiven {
		_, err = tx.Exec(ctx, `
			UPDATE medication_order SET status=$2, last_given_at=$3, updated_at=NOW()
			WHERE id = $1`, rec.OrderID, rec.Status, rec.RecordedAt)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE medication_order SET status=$2, updated_at=NOW()
			WHERE id = $1`, rec.OrderID, rec.Status)
	}
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *administrationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AdministrationRecord, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+recordCols+` FROM administration_record WHERE id = $1`, id))
}

func (r *administrationRepoPG) GetByOrder(ctx context.Context, orderID uuid.UUID) (*AdministrationRecord, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+recordCols+` FROM administration_record WHERE order_id = $1`, orderID))
}

func (r *administrationRepoPG) List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*AdministrationRecord, int, error) {
	where := ""
	args := []interface{}{}
	if patientID != nil {
		where = `WHERE order_id IN (SELECT id FROM medication_order WHERE patient_id = $1)`
		args = append(args, *patientID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM administration_record `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+recordCols+` FROM administration_record %s ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AdministrationRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, nil
}
