package types

// AccessLogEvent is the enriched access-log broadcast sent on the
// access-logs channel, one per decision.
type AccessLogEvent struct {
	EventID      int64  `json:"event_id"`
	TagID        string `json:"tag_id"`
	Reader       string `json:"reader"`
	Timestamp    string `json:"timestamp"`
	Granted      bool   `json:"granted"`
	Reason       string `json:"reason"`
	EmployeeID   *int64 `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	JobTitle     string `json:"job_title,omitempty"`
	Department   string `json:"department,omitempty"`
}

// StatusUpdateEvent is broadcast on the employees-status channel for
// every work-session transition.
type StatusUpdateEvent struct {
	EmployeeID int64  `json:"employee_id"`
	Action     string `json:"action"` // "started_work" | "ended_work"
	Timestamp  string `json:"timestamp"`
}

const (
	ActionStartedWork = "started_work"
	ActionEndedWork   = "ended_work"
)
