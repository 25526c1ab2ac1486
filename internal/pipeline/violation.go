package pipeline

// ViolationKind classifies why a row was turned away. Every kind is row-local:
// it produces a rejected record and never aborts the stage. Duplicate keys are
// not violations at all; the writer skips them silently.
type ViolationKind string

const (
	KindFieldCoercion        ViolationKind = "field_coercion"
	KindRangeViolation       ViolationKind = "range_violation"
	KindUnknownCategory      ViolationKind = "unknown_category"
	KindReferentialIntegrity ViolationKind = "referential_integrity"
)

// Violation is the rejected half of a validation outcome: the offending field
// and a human-readable reason. It is a value, not an error; only
// infrastructure failures travel the error path.
type Violation struct {
	Kind   ViolationKind
	Field  string
	Reason string
}

func coercionViolation(field, reason string) *Violation {
	return &Violation{Kind: KindFieldCoercion, Field: field, Reason: reason}
}

func rangeViolation(field, reason string) *Violation {
	return &Violation{Kind: KindRangeViolation, Field: field, Reason: reason}
}

func categoryViolation(field, reason string) *Violation {
	return &Violation{Kind: KindUnknownCategory, Field: field, Reason: reason}
}

func integrityViolation(field, reason string) *Violation {
	return &Violation{Kind: KindReferentialIntegrity, Field: field, Reason: reason}
}
