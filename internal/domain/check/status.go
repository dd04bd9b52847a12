package check

// Status is the computed health of one check result.
type Status int

const (
	StatusUnknown Status = iota
	StatusOK
	StatusWarning
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusCritical:
		return "critical"
	default:
		return "invalid"
	}
}

// Failed reports whether the status requires operator attention.
func (s Status) Failed() bool {
	return s == StatusWarning || s == StatusCritical
}
