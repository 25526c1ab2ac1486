package silver

import "context"

// Insert methods perform one bulk conflict-ignore insert per call and return
// the number of rows actually inserted; rows whose primary key already exists
// are skipped silently. Keys methods return a snapshot of the table's
// committed primary keys.

type PatientRepository interface {
	InsertPatients(ctx context.Context, patients []Patient) (int64, error)
	Keys(ctx context.Context) (KeySet, error)
}

type DoctorRepository interface {
	InsertDoctors(ctx context.Context, doctors []Doctor) (int64, error)
	Keys(ctx context.Context) (KeySet, error)
}

type AppointmentRepository interface {
	InsertAppointments(ctx context.Context, appointments []Appointment) (int64, error)
	Keys(ctx context.Context) (KeySet, error)
}

type PrescriptionRepository interface {
	InsertPrescriptions(ctx context.Context, prescriptions []Prescription) (int64, error)
}

type BillingRepository interface {
	InsertBillings(ctx context.Context, billings []Billing) (int64, error)
}
