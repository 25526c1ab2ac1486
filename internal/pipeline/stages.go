package pipeline

import (
	"context"
	"fmt"

	"github.com/carelake/carelake/internal/bronze"
	"github.com/carelake/carelake/internal/silver"
)

// DefaultStages binds the five silver stages in dependency order: patients
// and doctors first, then appointments, then prescriptions and billing.
// Stage names double as silver table names and reject sink table names.
func DefaultStages(
	patients silver.PatientRepository,
	doctors silver.DoctorRepository,
	appointments silver.AppointmentRepository,
	prescriptions silver.PrescriptionRepository,
	billing silver.BillingRepository,
) []StageSpec {
	return []StageSpec{
		patientStage(patients),
		doctorStage(doctors),
		appointmentStage(appointments, patients, doctors),
		prescriptionStage(prescriptions, appointments),
		billingStage(billing, patients, appointments),
	}
}

func patientStage(repo silver.PatientRepository) StageSpec {
	return StageSpec{
		Name:   silver.TablePatients,
		Source: silver.TablePatients,
		Validate: func(row bronze.Row) (any, *Violation) {
			p, v := ValidatePatient(row)
			if v != nil {
				return nil, v
			}
			return p, nil
		},
		Insert: func(ctx context.Context, recs []any) (int64, error) {
			batch := make([]silver.Patient, 0, len(recs))
			for _, r := range recs {
				batch = append(batch, r.(silver.Patient))
			}
			return repo.InsertPatients(ctx, batch)
		},
	}
}

func doctorStage(repo silver.DoctorRepository) StageSpec {
	return StageSpec{
		Name:   silver.TableDoctors,
		Source: silver.TableDoctors,
		Validate: func(row bronze.Row) (any, *Violation) {
			d, v := ValidateDoctor(row)
			if v != nil {
				return nil, v
			}
			return d, nil
		},
		Insert: func(ctx context.Context, recs []any) (int64, error) {
			batch := make([]silver.Doctor, 0, len(recs))
			for _, r := range recs {
				batch = append(batch, r.(silver.Doctor))
			}
			return repo.InsertDoctors(ctx, batch)
		},
	}
}

func appointmentStage(repo silver.AppointmentRepository, patients silver.PatientRepository, doctors silver.DoctorRepository) StageSpec {
	return StageSpec{
		Name:      silver.TableAppointments,
		Source:    silver.TableAppointments,
		DependsOn: []string{silver.TablePatients, silver.TableDoctors},
		Validate: func(row bronze.Row) (any, *Violation) {
			a, v := ValidateAppointment(row)
			if v != nil {
				return nil, v
			}
			return a, nil
		},
		Snapshot: func(ctx context.Context) (map[string]silver.KeySet, error) {
			patientKeys, err := patients.Keys(ctx)
			if err != nil {
				return nil, fmt.Errorf("snapshot silver.patients keys: %w", err)
			}
			doctorKeys, err := doctors.Keys(ctx)
			if err != nil {
				return nil, fmt.Errorf("snapshot silver.doctors keys: %w", err)
			}
			return map[string]silver.KeySet{
				silver.TablePatients: patientKeys,
				silver.TableDoctors:  doctorKeys,
			}, nil
		},
		Resolve: func(row bronze.Row, rec any, keys map[string]silver.KeySet) *Violation {
			a := rec.(silver.Appointment)
			if !keys[silver.TablePatients].Has(a.PatientID) {
				return integrityViolation("patient_id", fmt.Sprintf("Patient %d not found in silver.patients", a.PatientID))
			}
			if !keys[silver.TableDoctors].Has(a.DoctorID) {
				return integrityViolation("doctor_id", fmt.Sprintf("Doctor %d not found in silver.doctors", a.DoctorID))
			}
			return nil
		},
		Insert: func(ctx context.Context, recs []any) (int64, error) {
			batch := make([]silver.Appointment, 0, len(recs))
			for _, r := range recs {
				batch = append(batch, r.(silver.Appointment))
			}
			return repo.InsertAppointments(ctx, batch)
		},
	}
}

func prescriptionStage(repo silver.PrescriptionRepository, appointments silver.AppointmentRepository) StageSpec {
	return StageSpec{
		Name:      silver.TablePrescriptions,
		Source:    silver.TablePrescriptions,
		DependsOn: []string{silver.TableAppointments},
		Validate: func(row bronze.Row) (any, *Violation) {
			p, v := ValidatePrescription(row)
			if v != nil {
				return nil, v
			}
			return p, nil
		},
		Snapshot: func(ctx context.Context) (map[string]silver.KeySet, error) {
			apptKeys, err := appointments.Keys(ctx)
			if err != nil {
				return nil, fmt.Errorf("snapshot silver.appointments keys: %w", err)
			}
			return map[string]silver.KeySet{silver.TableAppointments: apptKeys}, nil
		},
		// The reason echoes the raw bronze value, not the coerced id, and is
		// identical to the coercion reason for this field.
		Resolve: func(row bronze.Row, rec any, keys map[string]silver.KeySet) *Violation {
			p := rec.(silver.Prescription)
			if !keys[silver.TableAppointments].Has(p.AppointmentID) {
				return integrityViolation("appointment_id", fmt.Sprintf("Invalid or missing appointment_id: %s", formatRaw(row.Get("appointment_id"))))
			}
			return nil
		},
		Insert: func(ctx context.Context, recs []any) (int64, error) {
			batch := make([]silver.Prescription, 0, len(recs))
			for _, r := range recs {
				batch = append(batch, r.(silver.Prescription))
			}
			return repo.InsertPrescriptions(ctx, batch)
		},
	}
}

func billingStage(repo silver.BillingRepository, patients silver.PatientRepository, appointments silver.AppointmentRepository) StageSpec {
	return StageSpec{
		Name:      silver.TableBilling,
		Source:    silver.TableBilling,
		DependsOn: []string{silver.TablePatients, silver.TableAppointments},
		Validate: func(row bronze.Row) (any, *Violation) {
			b, v := ValidateBilling(row)
			if v != nil {
				return nil, v
			}
			return b, nil
		},
		Snapshot: func(ctx context.Context) (map[string]silver.KeySet, error) {
			patientKeys, err := patients.Keys(ctx)
			if err != nil {
				return nil, fmt.Errorf("snapshot silver.patients keys: %w", err)
			}
			apptKeys, err := appointments.Keys(ctx)
			if err != nil {
				return nil, fmt.Errorf("snapshot silver.appointments keys: %w", err)
			}
			return map[string]silver.KeySet{
				silver.TablePatients:     patientKeys,
				silver.TableAppointments: apptKeys,
			}, nil
		},
		Resolve: func(row bronze.Row, rec any, keys map[string]silver.KeySet) *Violation {
			b := rec.(silver.Billing)
			if !keys[silver.TablePatients].Has(b.PatientID) {
				return integrityViolation("patient_id", fmt.Sprintf("Patient %d not found in silver.patients", b.PatientID))
			}
			if !keys[silver.TableAppointments].Has(b.AppointmentID) {
				return integrityViolation("appointment_id", fmt.Sprintf("Appointment %d not found in silver.appointments", b.AppointmentID))
			}
			return nil
		},
		Insert: func(ctx context.Context, recs []any) (int64, error) {
			batch := make([]silver.Billing, 0, len(recs))
			for _, r := range recs {
				batch = append(batch, r.(silver.Billing))
			}
			return repo.InsertBillings(ctx, batch)
		},
	}
}
