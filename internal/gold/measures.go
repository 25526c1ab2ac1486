package gold

import (
	"context"
	"fmt"

	"github.com/carelake/carelake/internal/platform/db"
)

// Measure defines one gold rollup: the table it materializes and the
// insert-select that fills it. Measures read silver only; none depends on
// another gold table, so registry order is just the build order.
type Measure struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Table       string `json:"table"`
	SQL         string `json:"sql"`
}

// Measures is the registry of gold rollups, in build order.
var Measures = []Measure{
	{
		ID:          "revenue-by-department",
		Name:        "Revenue by Department",
		Description: "Paid billing totals grouped by the treating doctor's specialization",
		Table:       "revenue_by_department",
		SQL: `
		INSERT INTO gold.revenue_by_department (department, total_revenue)
		SELECT
			d.specialization,
			SUM(b.amount) AS total_revenue
		FROM silver.billing b
		JOIN silver.appointments a ON b.appointment_id = a.appointment_id
		JOIN silver.doctors d ON a.doctor_id = d.doctor_id
		WHERE b.payment_status = 'Paid'
		GROUP BY d.specialization`,
	},
	{
		ID:          "revenue-by-payment-method",
		Name:        "Revenue by Payment Method",
		Description: "Paid billing totals grouped by payment method",
		Table:       "revenue_by_payment_method",
		SQL: `
		INSERT INTO gold.revenue_by_payment_method (payment_method, total_revenue)
		SELECT
			b.payment_method,
			SUM(b.amount)::NUMERIC(12,2) AS total_revenue
		FROM silver.billing b
		WHERE b.payment_status = 'Paid'
		GROUP BY b.payment_method
		ORDER BY total_revenue DESC`,
	},
	{
		ID:          "total-revenue",
		Name:        "Total Revenue",
		Description: "Single-row total of all paid billing",
		Table:       "total_revenue",
		SQL: `
		INSERT INTO gold.total_revenue (total_revenue)
		SELECT
			SUM(b.amount)::NUMERIC(12,2) AS total_revenue
		FROM silver.billing b
		WHERE b.payment_status = 'Paid'`,
	},
	{
		ID:          "revenue-monthly",
		Name:        "Monthly Revenue",
		Description: "Paid billing totals per appointment month",
		Table:       "revenue_monthly",
		SQL: `
		INSERT INTO gold.revenue_monthly (month_year, total_revenue)
		SELECT
			DATE_TRUNC('month', a.appointment_date)::DATE AS month_year,
			SUM(b.amount)::NUMERIC(12,2) AS total_revenue
		FROM silver.billing b
		JOIN silver.appointments a
			ON b.appointment_id = a.appointment_id
		WHERE b.payment_status = 'Paid'
		GROUP BY DATE_TRUNC('month', a.appointment_date)
		ORDER BY month_year`,
	},
	{
		ID:          "appointment-utilization-doctor",
		Name:        "Appointment Utilization per Doctor",
		Description: "Total and completed appointments with completion rate, per doctor",
		Table:       "appointment_utilization_doctor",
		SQL: `
		INSERT INTO gold.appointment_utilization_doctor
		(doctor_id, doctor_name, total_appointments, completed_appointments, completion_rate)
		SELECT
			d.doctor_id,
			d.name AS doctor_name,
			COUNT(a.appointment_id) AS total_appointments,
			SUM(CASE WHEN a.status = 'Completed' THEN 1 ELSE 0 END) AS completed_appointments,
			ROUND(
				(SUM(CASE WHEN a.status = 'Completed' THEN 1 ELSE 0 END)::NUMERIC / NULLIF(COUNT(a.appointment_id),0)) * 100,
				2
			) AS completion_rate
		FROM silver.appointments a
		JOIN silver.doctors d ON a.doctor_id = d.doctor_id
		GROUP BY d.doctor_id, d.name
		ORDER BY completion_rate DESC`,
	},
	{
		ID:          "appointment-utilization-patient",
		Name:        "Appointment Utilization per Patient",
		Description: "Total and completed appointments with completion rate, per patient",
		Table:       "appointment_utilization_patient",
		SQL: `
		INSERT INTO gold.appointment_utilization_patient
		(patient_id, patient_name, total_appointments, completed_appointments, completion_rate)
		SELECT
			p.patient_id,
			p.name AS patient_name,
			COUNT(a.appointment_id) AS total_appointments,
			SUM(CASE WHEN a.status = 'Completed' THEN 1 ELSE 0 END) AS completed_appointments,
			ROUND(
				(SUM(CASE WHEN a.status = 'Completed' THEN 1 ELSE 0 END)::NUMERIC / NULLIF(COUNT(a.appointment_id),0)) * 100,
				2
			) AS completion_rate
		FROM silver.appointments a
		JOIN silver.patients p ON a.patient_id = p.patient_id
		GROUP BY p.patient_id, p.name
		ORDER BY completion_rate DESC`,
	},
	{
		ID:          "doctor-performance",
		Name:        "Doctor Performance",
		Description: "Top two doctors per department by distinct patients seen",
		Table:       "doctor_performance",
		SQL: `
		INSERT INTO gold.doctor_performance (doctor_id, department, doctor_name, patient_count)
		WITH ranked_doctors AS (
			SELECT
				d.doctor_id,
				d.specialization AS department,
				d.name AS doctor_name,
				COUNT(DISTINCT a.patient_id) AS patient_count,
				ROW_NUMBER() OVER (PARTITION BY d.specialization ORDER BY COUNT(DISTINCT a.patient_id) DESC) AS rn
			FROM silver.doctors d
			LEFT JOIN silver.appointments a ON d.doctor_id = a.doctor_id
			GROUP BY d.doctor_id, d.name, d.specialization
		)
		SELECT doctor_id, department, doctor_name, patient_count
		FROM ranked_doctors
		WHERE rn <= 2`,
	},
	{
		ID:          "patient-insights",
		Name:        "Patient Insights",
		Description: "Patient counts by age group and gender",
		Table:       "patient_insights",
		SQL: `
		INSERT INTO gold.patient_insights (age_group, gender, patient_count)
		SELECT
			CASE
				WHEN EXTRACT(YEAR FROM AGE(CURRENT_DATE, dob)) < 18 THEN '0-17'
				WHEN EXTRACT(YEAR FROM AGE(CURRENT_DATE, dob)) BETWEEN 18 AND 35 THEN '18-35'
				WHEN EXTRACT(YEAR FROM AGE(CURRENT_DATE, dob)) BETWEEN 36 AND 50 THEN '36-50'
				WHEN EXTRACT(YEAR FROM AGE(CURRENT_DATE, dob)) BETWEEN 51 AND 65 THEN '51-65'
				ELSE '65+'
			END AS age_group,
			gender,
			COUNT(*) AS patient_count
		FROM silver.patients
		GROUP BY age_group, gender
		ORDER BY age_group, gender`,
	},
	{
		ID:          "medicine-utilization",
		Name:        "Medicine Utilization",
		Description: "Prescription counts per medicine",
		Table:       "medicine_utilization",
		SQL: `
		INSERT INTO gold.medicine_utilization (medicine_name, prescription_count)
		SELECT
			medicine AS medicine_name,
			COUNT(*) AS prescription_count
		FROM silver.prescriptions
		GROUP BY medicine
		ORDER BY prescription_count DESC`,
	},
	{
		ID:          "outstanding-revenue",
		Name:        "Outstanding Revenue",
		Description: "Pending billing totals per patient",
		Table:       "outstanding_revenue",
		SQL: `
		INSERT INTO gold.outstanding_revenue (patient_id, patient_name, pending_amount)
		SELECT
			b.patient_id,
			p.name AS patient_name,
			SUM(b.amount) AS pending_amount
		FROM silver.billing b
		JOIN silver.patients p
			ON b.patient_id = p.patient_id
		WHERE b.payment_status = 'Pending'
		GROUP BY b.patient_id, p.name
		ORDER BY pending_amount DESC`,
	},
	{
		ID:          "appointments-summary",
		Name:        "Appointments Summary",
		Description: "Single-row appointment totals with completion rate",
		Table:       "appointments_summary",
		SQL: `
		INSERT INTO gold.appointments_summary (total_appointments, completed_appointments, completion_rate)
		SELECT
			COUNT(*) AS total_appointments,
			SUM(CASE WHEN status = 'Completed' THEN 1 ELSE 0 END) AS completed_appointments,
			ROUND(
				(SUM(CASE WHEN status = 'Completed' THEN 1 ELSE 0 END)::NUMERIC
				 / NULLIF(COUNT(*),0)) * 100,
				2
			) AS completion_rate
		FROM silver.appointments`,
	},
	{
		ID:          "total-patients",
		Name:        "Total Patients",
		Description: "Single-row patient headcount",
		Table:       "total_patients",
		SQL: `
		INSERT INTO gold.total_patients (total_patients)
		SELECT COUNT(*) AS total_patients
		FROM silver.patients`,
	},
	{
		ID:          "dashboard-summary",
		Name:        "Dashboard Summary",
		Description: "Single-row headline figures for the dashboard",
		Table:       "dashboard_summary",
		SQL: `
		INSERT INTO gold.dashboard_summary (
			total_patients, total_doctors, total_appointments,
			completed_appointments, completion_rate, total_revenue, pending_revenue
		)
		SELECT
			(SELECT COUNT(*) FROM silver.patients) AS total_patients,
			(SELECT COUNT(*) FROM silver.doctors) AS total_doctors,
			(SELECT COUNT(*) FROM silver.appointments) AS total_appointments,
			(SELECT COUNT(*) FROM silver.appointments WHERE status = 'Completed') AS completed_appointments,
			ROUND(
				(COUNT(*) FILTER (WHERE status = 'Completed')::NUMERIC / NULLIF(COUNT(*),0)) * 100, 2
			) AS completion_rate,
			(SELECT COALESCE(SUM(amount),0) FROM silver.billing WHERE payment_status='Paid') AS total_revenue,
			(SELECT COALESCE(SUM(amount),0) FROM silver.billing WHERE payment_status='Pending') AS pending_revenue
		FROM silver.appointments`,
	},
}

// FindMeasure looks a measure up by id. Returns nil when unknown.
func FindMeasure(id string) *Measure {
	for i := range Measures {
		if Measures[i].ID == id {
			return &Measures[i]
		}
	}
	return nil
}

// Reader serves the current rows of gold tables.
type Reader struct {
	q db.Querier
}

func NewReader(q db.Querier) *Reader { return &Reader{q: q} }

// Results returns the current rows of a measure's gold table.
func (r *Reader) Results(ctx context.Context, m Measure) ([]map[string]any, error) {
	_, rows, err := db.QueryMaps(ctx, r.q, `SELECT * FROM gold.`+m.Table)
	if err != nil {
		return nil, fmt.Errorf("read gold.%s: %w", m.Table, err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}
