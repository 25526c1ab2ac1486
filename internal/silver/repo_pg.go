package silver

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// batchInsert queues one statement per row in a pgx batch and runs the whole
// batch inside a single transaction. The summed RowsAffected is the number of
// rows actually inserted; conflict-ignored duplicates contribute zero.
func batchInsert(ctx context.Context, pool *pgxpool.Pool, sql string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(sql, args...)
	}

	results := tx.SendBatch(ctx, batch)
	var inserted int64
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("bulk insert: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert transaction: %w", err)
	}
	return inserted, nil
}

func loadKeys(ctx context.Context, pool *pgxpool.Pool, sql string) (KeySet, error) {
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("load key snapshot: %w", err)
	}
	defer rows.Close()

	keys := make(KeySet)
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys.Add(k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// =========== Patients ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

const insertPatientSQL = `INSERT INTO silver.patients (patient_id, name, gender, dob, city, contact_no)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (patient_id) DO NOTHING`

func (r *patientRepoPG) InsertPatients(ctx context.Context, patients []Patient) (int64, error) {
	rows := make([][]any, 0, len(patients))
	for _, p := range patients {
		rows = append(rows, []any{p.PatientID, p.Name, p.Gender, p.DOB, p.City, p.ContactNo})
	}
	return batchInsert(ctx, r.pool, insertPatientSQL, rows)
}

func (r *patientRepoPG) Keys(ctx context.Context) (KeySet, error) {
	return loadKeys(ctx, r.pool, `SELECT patient_id FROM silver.patients`)
}

// =========== Doctors ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

const insertDoctorSQL = `INSERT INTO silver.doctors (doctor_id, name, specialization)
VALUES ($1, $2, $3)
ON CONFLICT (doctor_id) DO NOTHING`

func (r *doctorRepoPG) InsertDoctors(ctx context.Context, doctors []Doctor) (int64, error) {
	rows := make([][]any, 0, len(doctors))
	for _, d := range doctors {
		rows = append(rows, []any{d.DoctorID, d.Name, d.Specialization})
	}
	return batchInsert(ctx, r.pool, insertDoctorSQL, rows)
}

func (r *doctorRepoPG) Keys(ctx context.Context) (KeySet, error) {
	return loadKeys(ctx, r.pool, `SELECT doctor_id FROM silver.doctors`)
}

// =========== Appointments ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const insertAppointmentSQL = `INSERT INTO silver.appointments (appointment_id, patient_id, doctor_id, appointment_date, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (appointment_id) DO NOTHING`

func (r *appointmentRepoPG) InsertAppointments(ctx context.Context, appointments []Appointment) (int64, error) {
	rows := make([][]any, 0, len(appointments))
	for _, a := range appointments {
		rows = append(rows, []any{a.AppointmentID, a.PatientID, a.DoctorID, a.AppointmentDate, a.Status})
	}
	return batchInsert(ctx, r.pool, insertAppointmentSQL, rows)
}

func (r *appointmentRepoPG) Keys(ctx context.Context) (KeySet, error) {
	return loadKeys(ctx, r.pool, `SELECT appointment_id FROM silver.appointments`)
}

// =========== Prescriptions ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const insertPrescriptionSQL = `INSERT INTO silver.prescriptions (prescription_id, appointment_id, medicine, dosage, duration_days)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (prescription_id) DO NOTHING`

func (r *prescriptionRepoPG) InsertPrescriptions(ctx context.Context, prescriptions []Prescription) (int64, error) {
	rows := make([][]any, 0, len(prescriptions))
	for _, p := range prescriptions {
		rows = append(rows, []any{p.PrescriptionID, p.AppointmentID, p.Medicine, p.Dosage, p.DurationDays})
	}
	return batchInsert(ctx, r.pool, insertPrescriptionSQL, rows)
}

// =========== Billing ===========

type billingRepoPG struct{ pool *pgxpool.Pool }

func NewBillingRepoPG(pool *pgxpool.Pool) BillingRepository { return &billingRepoPG{pool: pool} }

const insertBillingSQL = `INSERT INTO silver.billing (bill_id, patient_id, appointment_id, amount, payment_status, payment_method)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (bill_id) DO NOTHING`

func (r *billingRepoPG) InsertBillings(ctx context.Context, billings []Billing) (int64, error) {
	rows := make([][]any, 0, len(billings))
	for _, b := range billings {
		rows = append(rows, []any{b.BillID, b.PatientID, b.AppointmentID, b.Amount, b.PaymentStatus, b.PaymentMethod})
	}
	return batchInsert(ctx, r.pool, insertBillingSQL, rows)
}
