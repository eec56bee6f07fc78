package roster

type ProvisioningState string

const (
	StatePending   ProvisioningState = "pending"
	StateCreating  ProvisioningState = "creating"
	StateCompleted ProvisioningState = "completed"
	StateError     ProvisioningState = "error"
)

// Terminal reports whether the state ends a per-record attempt sequence.
func (s ProvisioningState) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// ProvisioningStatus is the per-record view of account creation.
type ProvisioningStatus struct {
	RecordID string            `json:"record_id"`
	State    ProvisioningState `json:"state"`
	Reason   string            `json:"reason,omitempty"`
	Attempts int               `json:"attempts"`
}

type ProvisioningSummary struct {
	CompletedCount int `json:"completed_count"`
	ErrorCount     int `json:"error_count"`
}

// ProvisioningSnapshot is a consistent point-in-time copy of a batch.
type ProvisioningSnapshot struct {
	// Batch is pending until the run starts and completed once every record was attempted,
	// regardless of how many succeeded.
	Batch    ProvisioningState    `json:"batch"`
	Records  []Record             `json:"records"`
	Statuses []ProvisioningStatus `json:"statuses"`
	Summary  ProvisioningSummary  `json:"summary"`
	Total    int                  `json:"total"`
}

// Completed returns the records whose accounts were created.
func (s ProvisioningSnapshot) Completed() []Record {
	out := make([]Record, 0, s.Summary.CompletedCount)
	for i, st := range s.Statuses {
		if st.State == StateCompleted {
			out = append(out, s.Records[i])
		}
	}
	return out
}

// Summarize counts terminal states in statuses.
func Summarize(statuses []ProvisioningStatus) ProvisioningSummary {
	var summary ProvisioningSummary
	for _, st := range statuses {
		switch st.State {
		case StateCompleted:
			summary.CompletedCount++
		case StateError:
			summary.ErrorCount++
		}
	}
	return summary
}
