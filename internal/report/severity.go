package report

import "encoding/json"

// Severity grades an audit finding. The order is strict: once a report is
// CRITICAL no later finding can soften it.
type Severity int

const (
	SeverityPass Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityPass:
		return "PASS"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// escalate raises the severity, never lowers it.
func (s *Severity) escalate(to Severity) {
	if to > *s {
		*s = to
	}
}
