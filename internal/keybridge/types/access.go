package types

// AccessCheckRequest carries one scanned tag plus the optional shared
// secret read from the card.
type AccessCheckRequest struct {
	TagID  string `json:"tag_id"`
	Reader string `json:"reader,omitempty"`
	Secret string `json:"-"` // supplied via the X-Tag-Secret header, never logged
}

type AccessCheckResponse struct {
	Granted    bool   `json:"granted"`
	Reason     string `json:"reason"`
	TagID      string `json:"tag_id"`
	EmployeeID *int64 `json:"employee_id,omitempty"`
	ServerTime string `json:"server_time"`
}

// Deny reasons. DENY is a valid outcome, not a system failure; these are
// surfaced verbatim to callers and recorded on the audit event.
const (
	ReasonAllowed          = "allowed"
	ReasonTagNotRegistered = "tag not registered"
	ReasonSecretRequired   = "secret required"
	ReasonInvalidSecret    = "invalid secret"
	ReasonEmployeeNotFound = "employee not found"
	ReasonLookupFailed     = "lookup failed" // store error, not a decision about the tag
)
