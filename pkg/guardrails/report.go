package guardrails

// Severity classifies how serious a violation is
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Violation records a single policy violation found in a model response.
// A Violation is never modified after construction.
type Violation struct {
	Severity Severity
	Code     string
	Message  string
	Context  map[string]interface{}
}

// ValidationReport is the structured verdict produced by validating a
// response against one or more guardrails.
type ValidationReport struct {
	IsValid    bool
	Violations []Violation
	Metadata   map[string]interface{}
}

// NewValidReport returns a valid report with no violations
func NewValidReport() *ValidationReport {
	return &ValidationReport{IsValid: true, Metadata: map[string]interface{}{}}
}

// NewInvalidReport returns an invalid report carrying the given violations
func NewInvalidReport(violations ...Violation) *ValidationReport {
	return &ValidationReport{
		IsValid:    false,
		Violations: violations,
		Metadata:   map[string]interface{}{},
	}
}

// Merge combines two reports into a new one without mutating either operand.
// Validity is ANDed, violations are concatenated with the receiver's first,
// and metadata is a shallow union where the other report's keys win on
// collision. Composites rely on Merge being pure when folding many child
// reports.
func (r *ValidationReport) Merge(other *ValidationReport) *ValidationReport {
	merged := &ValidationReport{
		IsValid:  r.IsValid,
		Metadata: make(map[string]interface{}, len(r.Metadata)),
	}

	merged.Violations = make([]Violation, 0, len(r.Violations))
	merged.Violations = append(merged.Violations, r.Violations...)
	for k, v := range r.Metadata {
		merged.Metadata[k] = v
	}

	if other != nil {
		merged.IsValid = merged.IsValid && other.IsValid
		merged.Violations = append(merged.Violations, other.Violations...)
		for k, v := range other.Metadata {
			merged.Metadata[k] = v
		}
	}

	return merged
}
