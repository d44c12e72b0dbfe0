package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Patient Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const patientCols = `id, mrn, first_name, last_name, date_of_birth, ward, bed, is_npo, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.DateOfBirth,
		&p.Ward, &p.Bed, &p.IsNPO, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient (id, mrn, first_name, last_name, date_of_birth, ward, bed, is_npo)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.MRN, p.FirstName, p.LastName, p.DateOfBirth, p.Ward, p.Bed, p.IsNPO)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE LOWER(mrn) = LOWER($1)`, mrn))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE patient SET first_name=$2, last_name=$3, date_of_birth=$4,
			ward=$5, bed=$6, is_npo=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Ward, p.Bed, p.IsNPO)
	return err
}

func (r *repoPG) List(ctx context.Context, ward string, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE ($1 = '' OR ward = $1)`, ward).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE ($1 = '' OR ward = $1)
		ORDER BY last_name, first_name LIMIT $2 OFFSET $3`, ward, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

// =========== Allergy Repository ===========

type allergyRepoPG struct{ pool *pgxpool.Pool }

func NewAllergyRepoPG(pool *pgxpool.Pool) AllergyRepository {
	return &allergyRepoPG{pool: pool}
}

func (r *allergyRepoPG) Add(ctx context.Context, a *Allergy) error {
	a.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient_allergy (id, patient_id, substance, severity)
		VALUES ($1,$2,$3,$4)`,
		a.ID, a.PatientID, a.Substance, a.Severity)
	return err
}

// ListByPatient returns allergies in recorded order, oldest first. The
// ordering is part of the contract: downstream warning lists preserve it.
func (r *allergyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, substance, severity, recorded_at
		FROM patient_allergy WHERE patient_id = $1 ORDER BY recorded_at, id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Allergy
	for rows.Next() {
		var a Allergy
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Substance, &a.Severity, &a.RecordedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, nil
}

func (r *allergyRepoPG) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM patient_allergy WHERE id = $1`, id)
	return err
}

// =========== Vitals Repository ===========

type vitalsRepoPG struct{ pool *pgxpool.Pool }

func NewVitalsRepoPG(pool *pgxpool.Pool) VitalsRepository {
	return &vitalsRepoPG{pool: pool}
}

const vitalsCols = `id, patient_id, temperature, pulse, bp_systolic, bp_diastolic,
	respiratory_rate, oxygen_saturation, pain_level, recorded_at`

func (r *vitalsRepoPG) scan(row pgx.Row) (*VitalsSnapshot, error) {
	var v VitalsSnapshot
	err := row.Scan(&v.ID, &v.PatientID, &v.Temperature, &v.Pulse, &v.BPSystolic, &v.BPDiastolic,
		&v.RespiratoryRate, &v.OxygenSaturation, &v.PainLevel, &v.RecordedAt)
	return &v, err
}

func (r *vitalsRepoPG) Record(ctx context.Context, v *VitalsSnapshot) error {
	v.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient_vitals (id, patient_id, temperature, pulse, bp_systolic, bp_diastolic,
			respiratory_rate, oxygen_saturation, pain_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		v.ID, v.PatientID, v.Temperature, v.Pulse, v.BPSystolic, v.BPDiastolic,
		v.RespiratoryRate, v.OxygenSaturation, v.PainLevel)
	return err
}

func (r *vitalsRepoPG) Latest(ctx context.Context, patientID uuid.UUID) (*VitalsSnapshot, error) {
	return r.scan(r.pool.QueryRow(ctx, `
		SELECT `+vitalsCols+` FROM patient_vitals
		WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT 1`, patientID))
}

func (r *vitalsRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalsSnapshot, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_vitals WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+vitalsCols+` FROM patient_vitals
		WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*VitalsSnapshot
	for rows.Next() {
		v, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, nil
}
