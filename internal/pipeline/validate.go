package pipeline

import (
	"fmt"
	"time"

	"github.com/carelake/carelake/internal/bronze"
	"github.com/carelake/carelake/internal/silver"
)

// Per-entity validators. Each takes one raw bronze row and returns either the
// typed silver record or the violation that keeps it out. Validators are pure:
// no I/O, no shared state, safe to run from concurrent workers. Referential
// checks live in the resolve step, not here.

// ValidatePatient coerces ids and dates and folds gender onto M/F/Other.
// A date of birth in the future rejects the row; gender never does.
func ValidatePatient(row bronze.Row) (silver.Patient, *Violation) {
	var p silver.Patient

	id, ok := parseInt(row.Get("patient_id"))
	if !ok {
		return p, coercionViolation("patient_id", fmt.Sprintf("Invalid patient_id: %s", formatRaw(row.Get("patient_id"))))
	}

	dob, ok := parseDate(row.Get("dob"))
	if !ok {
		return p, coercionViolation("dob", "Invalid DOB")
	}
	if dob.After(time.Now()) {
		return p, rangeViolation("dob", "Invalid DOB")
	}

	p.PatientID = id
	p.Name = stringOrNil(row.Get("name"))
	p.Gender = normalizeGender(row.Get("gender"))
	p.DOB = dob
	p.City = stringOrNil(row.Get("city"))
	p.ContactNo = stringOrNil(row.Get("contact_no"))
	return p, nil
}

// ValidateDoctor checks years_experience for range but does not persist it;
// the silver schema drops the column.
func ValidateDoctor(row bronze.Row) (silver.Doctor, *Violation) {
	var d silver.Doctor

	id, ok := parseInt(row.Get("doctor_id"))
	if !ok {
		return d, coercionViolation("doctor_id", fmt.Sprintf("Invalid doctor_id: %s", formatRaw(row.Get("doctor_id"))))
	}

	years, ok := parseInt(row.Get("years_experience"))
	if !ok {
		return d, coercionViolation("years_experience", fmt.Sprintf("Invalid years_experience: %s", formatRaw(row.Get("years_experience"))))
	}
	if years < 0 {
		return d, rangeViolation("years_experience", "Negative experience not allowed")
	}

	d.DoctorID = id
	d.Name = stringOrNil(row.Get("name"))
	d.Specialization = stringOrNil(row.Get("specialization"))
	return d, nil
}

// ValidateAppointment coerces the three ids and the visit date, then matches
// status against the known set after capitalizing it.
func ValidateAppointment(row bronze.Row) (silver.Appointment, *Violation) {
	var a silver.Appointment

	id, ok := parseInt(row.Get("appointment_id"))
	if !ok {
		return a, coercionViolation("appointment_id", fmt.Sprintf("Invalid appointment_id: %s", formatRaw(row.Get("appointment_id"))))
	}
	patientID, ok := parseInt(row.Get("patient_id"))
	if !ok {
		return a, coercionViolation("patient_id", fmt.Sprintf("Invalid patient_id: %s", formatRaw(row.Get("patient_id"))))
	}
	doctorID, ok := parseInt(row.Get("doctor_id"))
	if !ok {
		return a, coercionViolation("doctor_id", fmt.Sprintf("Invalid doctor_id: %s", formatRaw(row.Get("doctor_id"))))
	}

	date, ok := parseDate(row.Get("appointment_date"))
	if !ok {
		return a, coercionViolation("appointment_date", "Invalid appointment_date")
	}

	status := capitalize(formatRaw(row.Get("status")))
	if !silver.AppointmentStatuses[status] {
		return a, categoryViolation("status", "Invalid status")
	}

	a.AppointmentID = id
	a.PatientID = patientID
	a.DoctorID = doctorID
	a.AppointmentDate = date
	a.Status = status
	return a, nil
}

// ValidatePrescription requires a medicine name and coercible ids.
// duration_days is best-effort: an uncoercible value becomes NULL, never a
// reject.
func ValidatePrescription(row bronze.Row) (silver.Prescription, *Violation) {
	var p silver.Prescription

	id, ok := parseInt(row.Get("prescription_id"))
	if !ok {
		return p, coercionViolation("prescription_id", fmt.Sprintf("Invalid prescription_id: %s", formatRaw(row.Get("prescription_id"))))
	}
	apptID, ok := parseInt(row.Get("appointment_id"))
	if !ok {
		return p, coercionViolation("appointment_id", fmt.Sprintf("Invalid or missing appointment_id: %s", formatRaw(row.Get("appointment_id"))))
	}

	medicine := trimmedString(row.Get("medicine"))
	if medicine == "" {
		return p, coercionViolation("medicine", "Medicine cannot be NULL or empty")
	}

	p.PrescriptionID = id
	p.AppointmentID = apptID
	p.Medicine = medicine
	p.Dosage = stringOrNil(row.Get("dosage"))
	if days, ok := parseInt(row.Get("duration_days")); ok {
		p.DurationDays = &days
	}
	return p, nil
}

// ValidateBilling coerces ids and the amount, rejects negative amounts, and
// matches payment_status against Paid/Pending.
func ValidateBilling(row bronze.Row) (silver.Billing, *Violation) {
	var b silver.Billing

	id, ok := parseInt(row.Get("bill_id"))
	if !ok {
		return b, coercionViolation("bill_id", fmt.Sprintf("Invalid bill_id: %s", formatRaw(row.Get("bill_id"))))
	}
	patientID, ok := parseInt(row.Get("patient_id"))
	if !ok {
		return b, coercionViolation("patient_id", fmt.Sprintf("Invalid patient_id: %s", formatRaw(row.Get("patient_id"))))
	}
	apptID, ok := parseInt(row.Get("appointment_id"))
	if !ok {
		return b, coercionViolation("appointment_id", fmt.Sprintf("Invalid appointment_id: %s", formatRaw(row.Get("appointment_id"))))
	}

	amount, ok := parseFloat(row.Get("amount"))
	if !ok {
		return b, coercionViolation("amount", fmt.Sprintf("Invalid amount: %s", formatRaw(row.Get("amount"))))
	}
	if amount < 0 {
		return b, rangeViolation("amount", "Negative billing amount")
	}

	status := capitalize(formatRaw(row.Get("payment_status")))
	if !silver.PaymentStatuses[status] {
		return b, categoryViolation("payment_status", "Invalid payment_status")
	}

	b.BillID = id
	b.PatientID = patientID
	b.AppointmentID = apptID
	b.Amount = amount
	b.PaymentStatus = status
	b.PaymentMethod = stringOrNil(row.Get("payment_method"))
	return b, nil
}
