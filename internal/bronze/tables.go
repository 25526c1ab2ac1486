package bronze

// tableColumns lists every bronze table with its raw column set, in staging
// order. The loader validates CSV headers against it and the reader refuses
// table names outside it.
var tableColumns = map[string][]string{
	"patients":      {"patient_id", "name", "gender", "dob", "city", "contact_no"},
	"doctors":       {"doctor_id", "name", "specialization", "years_experience"},
	"appointments":  {"appointment_id", "patient_id", "doctor_id", "appointment_date", "status"},
	"prescriptions": {"prescription_id", "appointment_id", "medicine", "dosage", "duration_days"},
	"billing":       {"bill_id", "patient_id", "appointment_id", "amount", "payment_status", "payment_method"},
}

// loadOrder pairs each staged CSV file with its bronze table, in the order
// files are loaded.
var loadOrder = []struct {
	File  string
	Table string
}{
	{"patients.csv", "patients"},
	{"doctors.csv", "doctors"},
	{"appointments.csv", "appointments"},
	{"prescriptions.csv", "prescriptions"},
	{"billing.csv", "billing"},
}

// Columns returns the raw column set for a bronze table and whether the
// table is known.
func Columns(table string) ([]string, bool) {
	cols, ok := tableColumns[table]
	return cols, ok
}
