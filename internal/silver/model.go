package silver

import "time"

// Table names of the canonical layer. Stage names, reject records, and
// referential-integrity reasons all use these.
const (
	TablePatients      = "patients"
	TableDoctors       = "doctors"
	TableAppointments  = "appointments"
	TablePrescriptions = "prescriptions"
	TableBilling       = "billing"
)

// Gender values after normalization. Unrecognized input maps to GenderOther,
// it is never a rejection.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "Other"
)

// AppointmentStatuses is the closed status enum for appointments.
var AppointmentStatuses = map[string]bool{
	"Scheduled": true,
	"Completed": true,
	"Cancelled": true,
}

// PaymentStatuses is the closed payment_status enum for billing.
var PaymentStatuses = map[string]bool{
	"Paid":    true,
	"Pending": true,
}

// Patient maps to silver.patients. Validated fields are plain types;
// passthrough fields stay nullable like the raw layer.
type Patient struct {
	PatientID int64     `db:"patient_id" json:"patient_id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	Gender    string    `db:"gender" json:"gender"`
	DOB       time.Time `db:"dob" json:"dob"`
	City      *string   `db:"city" json:"city,omitempty"`
	ContactNo *string   `db:"contact_no" json:"contact_no,omitempty"`
}

// Doctor maps to silver.doctors. years_experience is validated upstream but
// not persisted, so it has no field here.
type Doctor struct {
	DoctorID       int64   `db:"doctor_id" json:"doctor_id"`
	Name           *string `db:"name" json:"name,omitempty"`
	Specialization *string `db:"specialization" json:"specialization,omitempty"`
}

// Appointment maps to silver.appointments.
type Appointment struct {
	AppointmentID   int64     `db:"appointment_id" json:"appointment_id"`
	PatientID       int64     `db:"patient_id" json:"patient_id"`
	DoctorID        int64     `db:"doctor_id" json:"doctor_id"`
	AppointmentDate time.Time `db:"appointment_date" json:"appointment_date"`
	Status          string    `db:"status" json:"status"`
}

// Prescription maps to silver.prescriptions. DurationDays is NULL when the
// raw value did not parse; that is a permitted outcome, not a rejection.
type Prescription struct {
	PrescriptionID int64   `db:"prescription_id" json:"prescription_id"`
	AppointmentID  int64   `db:"appointment_id" json:"appointment_id"`
	Medicine       string  `db:"medicine" json:"medicine"`
	Dosage         *string `db:"dosage" json:"dosage,omitempty"`
	DurationDays   *int64  `db:"duration_days" json:"duration_days,omitempty"`
}

// Billing maps to silver.billing.
type Billing struct {
	BillID        int64   `db:"bill_id" json:"bill_id"`
	PatientID     int64   `db:"patient_id" json:"patient_id"`
	AppointmentID int64   `db:"appointment_id" json:"appointment_id"`
	Amount        float64 `db:"amount" json:"amount"`
	PaymentStatus string  `db:"payment_status" json:"payment_status"`
	PaymentMethod *string `db:"payment_method" json:"payment_method,omitempty"`
}
