package types

// Broker payloads. All controller traffic is JSON; unknown fields are
// ignored so firmware can evolve ahead of the server.

// CardScanMessage arrives on controller/keyCard/add and rfid/scan.
type CardScanMessage struct {
	UID      string `json:"uid"`
	DeviceID string `json:"deviceId"`
}

// ControllerStatusMessage arrives on controller/status.
type ControllerStatusMessage struct {
	DeviceID        string `json:"deviceId"`
	Status          string `json:"status,omitempty"`
	IP              string `json:"ip,omitempty"`
	FirmwareVersion string `json:"fw_version,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_s,omitempty"`
}

// EnrolledMessage arrives on rfid/enrolled when a controller finishes
// writing a card during enrollment.
type EnrolledMessage struct {
	Reader        string `json:"reader"`
	TagID         string `json:"tagId"`
	SessionID     string `json:"sessionId"`
	NewSecret     string `json:"newSecret,omitempty"`
	SecretWritten bool   `json:"secretWritten,omitempty"`
}

// ReaderInfo is one entry of a readers/list_update full refresh.
type ReaderInfo struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
	Online   bool   `json:"online"`
}

type ReadersListMessage struct {
	Readers []ReaderInfo `json:"readers"`
}

// ReaderStatusChange is one entry of a readers/status_changed batch.
type ReaderStatusChange struct {
	DeviceID string `json:"deviceId"`
	Online   bool   `json:"online"`
}

type ReaderStatusBatch struct {
	Changes []ReaderStatusChange `json:"changes"`
}

// EnrollCommand is published on rfid/command to start or cancel an
// enrollment attempt on a reader.
type EnrollCommand struct {
	Action    string `json:"action"` // "start_enrollment" | "cancel_enrollment"
	Reader    string `json:"reader"`
	SessionID string `json:"sessionId"`
}

// ControllerCommand is a generic per-device command, delivered over the
// controller websocket channel or controller/<deviceId>/command.
type ControllerCommand struct {
	Action   string `json:"action"`
	DeviceID string `json:"deviceId,omitempty"`
}

const (
	ActionStartEnrollment  = "start_enrollment"
	ActionCancelEnrollment = "cancel_enrollment"
	ActionScanCard         = "scan_card"
)
