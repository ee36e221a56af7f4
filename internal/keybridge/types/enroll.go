package types

// EnrollRequest starts the operator-initiated enrollment workflow.
type EnrollRequest struct {
	EmployeeID int64  `json:"employeeId"`
	Reader     string `json:"reader,omitempty"`
}

type EnrollResponse struct {
	Success      bool   `json:"success"`
	Reader       string `json:"reader"`
	SessionID    string `json:"sessionId"`
	Instructions string `json:"instructions"`
}

// SaveTagRequest is the persistence call the bridge issues after a
// controller reports rfid/enrolled. Authenticated by the bridge key
// header, not a user session.
type SaveTagRequest struct {
	Reader        string `json:"reader"`
	TagID         string `json:"tagId"`
	SessionID     string `json:"sessionId,omitempty"`
	TagSecret     string `json:"tagSecret,omitempty"`
	SecretWritten bool   `json:"secretWritten,omitempty"`
}

type SaveTagResponse struct {
	Success    bool   `json:"success"`
	TagID      string `json:"tagId"`
	EmployeeID int64  `json:"employeeId"`
}

// CardEnrolledEvent is broadcast to real-time subscribers once an
// enrollment attempt resolves, successfully or not.
type CardEnrolledEvent struct {
	Success       bool   `json:"success"`
	TagID         string `json:"tagId"`
	Reader        string `json:"reader"`
	HasSecret     bool   `json:"hasSecret,omitempty"`
	SecretWritten bool   `json:"secretWritten,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}
