package analytics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/analytics/internal/platform/db"
)

// =========== Snapshot reader ===========

type ledgerReaderPG struct{ pool *pgxpool.Pool }

// NewLedgerReaderPG returns a LedgerReader over the clinic's PostgreSQL
// schema. Each Snapshot runs in one read-only repeatable-read transaction.
func NewLedgerReaderPG(pool *pgxpool.Pool) LedgerReader { return &ledgerReaderPG{pool: pool} }

func (r *ledgerReaderPG) Snapshot(ctx context.Context, fn func(ctx context.Context, l Ledger) error) error {
	return db.WithSnapshot(ctx, r.pool, func(ctx context.Context) error {
		return fn(ctx, &ledgerPG{pool: r.pool})
	})
}

// =========== Ledger ===========

type ledgerPG struct{ pool *pgxpool.Pool }

func (l *ledgerPG) conn(ctx context.Context) (db.Querier, error) {
	return db.Conn(ctx, l.pool)
}

const visitCols = `id, patient_id, doctor_id, office_id, appointment_time, status`

func scanVisit(row pgx.Row) (Visit, error) {
	var v Visit
	var status string
	if err := row.Scan(&v.ID, &v.PatientID, &v.DoctorID, &v.OfficeID, &v.Timestamp, &status); err != nil {
		return v, err
	}
	st, ok := ParseStatus(status)
	if !ok {
		return v, fmt.Errorf("appointment %d: unknown status %q", v.ID, status)
	}
	v.Status = st
	return v, nil
}

func (l *ledgerPG) FetchVisits(ctx context.Context, f VisitFilter) ([]Visit, error) {
	q, err := l.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + visitCols + ` FROM appointments WHERE appointment_time >= $1 AND appointment_time < $2`
	args := []interface{}{f.Window.Start, f.Window.EndExclusive()}
	idx := 3

	if f.OfficeID != nil {
		query += fmt.Sprintf(` AND office_id = $%d`, idx)
		args = append(args, *f.OfficeID)
		idx++
	}
	if f.DoctorID != nil {
		query += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
	}
	query += ` ORDER BY appointment_time, id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		// Stored status spellings vary, so the status filter is applied to
		// the normalized value.
		if f.Status != nil && v.Status != *f.Status {
			continue
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (l *ledgerPG) FetchFullHistory(ctx context.Context, patientIDs []int64) (map[int64][]Visit, error) {
	out := make(map[int64][]Visit, len(patientIDs))
	if len(patientIDs) == 0 {
		return out, nil
	}
	q, err := l.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx,
		`SELECT `+visitCols+` FROM appointments WHERE patient_id = ANY($1) ORDER BY patient_id, appointment_time, id`,
		patientIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out[v.PatientID] = append(out[v.PatientID], v)
	}
	return out, rows.Err()
}

func (l *ledgerPG) FetchPatients(ctx context.Context, ids []int64) (map[int64]Patient, error) {
	out := make(map[int64]Patient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q, err := l.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, date_of_birth, gender, ethnicity, race, insurance_type, blood_type
		FROM patients WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.DateOfBirth, &p.Gender, &p.Ethnicity, &p.Race, &p.InsuranceType, &p.BloodType); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (l *ledgerPG) FetchDoctors(ctx context.Context) (map[int64]Doctor, error) {
	q, err := l.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(specialty, ''), office_id
		FROM doctors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Doctor)
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialty, &d.OfficeID); err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

func (l *ledgerPG) FetchOffices(ctx context.Context) (map[int64]Office, error) {
	q, err := l.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT id, COALESCE(name, ''), COALESCE(location, '') FROM offices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Office)
	for rows.Next() {
		var o Office
		if err := rows.Scan(&o.ID, &o.Name, &o.Location); err != nil {
			return nil, err
		}
		out[o.ID] = o
	}
	return out, rows.Err()
}

func (l *ledgerPG) FetchReferrals(ctx context.Context, f ReferralFilter) ([]Referral, error) {
	q, err := l.conn(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, patient_id, referring_doctor_id, specialist_doctor_id, status,
			created_at, approved_at, linked_visit_id
		FROM referrals WHERE created_at >= $1 AND created_at < $2`
	args := []interface{}{f.Window.Start, f.Window.EndExclusive()}
	if f.DoctorID != nil {
		query += ` AND (referring_doctor_id = $3 OR specialist_doctor_id = $3)`
		args = append(args, *f.DoctorID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Referral, 0)
	for rows.Next() {
		var r Referral
		var status string
		if err := rows.Scan(&r.ID, &r.PatientID, &r.ReferringDoctorID, &r.SpecialistDoctorID, &status,
			&r.CreatedAt, &r.ApprovedAt, &r.LinkedVisitID); err != nil {
			return nil, err
		}
		st, ok := ParseReferralStatus(status)
		if !ok {
			return nil, fmt.Errorf("referral %d: unknown status %q", r.ID, status)
		}
		r.Status = st
		items = append(items, r)
	}
	return items, rows.Err()
}
