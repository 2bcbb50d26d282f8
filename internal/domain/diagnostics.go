package domain

import "time"

// DiagnosticStatus is the result of one readiness check.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem reports whether one prerequisite of a run is in place.
// Fixable items can be repaired in place from the desktop app.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
	Fixable bool             `json:"fixable,omitempty"`
}

// DiagnosticReport lists the checks that apply to the configured provider.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Provider    string           `json:"provider"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// Failed returns the ids of failing checks in report order.
func (r DiagnosticReport) Failed() []string {
	var ids []string
	for _, item := range r.Items {
		if item.Status == DiagnosticStatusFail {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
