package contract

// Status reports what a mutating entry point did.
type Status string

const (
	// StatusApplied means the operation ran to completion.
	StatusApplied Status = "applied"
	// StatusSkipped means a guard failed and nothing was mutated.
	StatusSkipped Status = "skipped"
)

// Outcome is reported alongside every entry point output.
type Outcome struct {
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Wrapped bool   `json:"wrapped,omitempty"`
}

// Applied returns an applied outcome.
func Applied() Outcome {
	return Outcome{Status: StatusApplied}
}

// Skipped returns a no-op outcome carrying reason.
func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

// Wrap marks the outcome as having wrapped when w is true.
func (o Outcome) Wrap(w bool) Outcome {
	o.Wrapped = o.Wrapped || w
	return o
}

// IsApplied reports whether the operation ran.
func (o Outcome) IsApplied() bool {
	return o.Status == StatusApplied
}

// IsSkipped reports whether the operation was a no-op.
func (o Outcome) IsSkipped() bool {
	return o.Status == StatusSkipped
}
