package model

import "time"

// OrderMode selects how an order's vehicle set is determined.
type OrderMode string

const (
	// ModeCAO computes the order by diffing current inventory against history.
	ModeCAO OrderMode = "cao"
	// ModeList builds the order from an explicit VIN list.
	ModeList OrderMode = "list"
)

// OrderJob is one order request for a single dealership.
type OrderJob struct {
	ID           string    `json:"id"`
	DealershipID int64     `json:"dealership_id"`
	Mode         OrderMode `json:"mode"`
	VINList      []string  `json:"vin_list,omitempty"`
	Template     string    `json:"template,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

// OrderResult is the immutable outcome of a finalized order job.
type OrderResult struct {
	JobID          string            `json:"job_id"`
	DealershipID   int64             `json:"dealership_id"`
	Mode           OrderMode         `json:"mode"`
	Included       []VehicleRecord   `json:"included_vehicles"`
	ExcludedCount  int               `json:"excluded_count"`
	AlreadySeen    int               `json:"already_seen"`
	ErrorCount     int               `json:"error_count"`
	QRArtifacts    map[string]string `json:"qr_artifacts"`
	QRFailures     []string          `json:"qr_failures,omitempty"`
	NotInInventory []string          `json:"not_in_inventory,omitempty"`
	ExportPath     string            `json:"export_path"`
	CreatedAt      time.Time         `json:"created_at"`
}

// JobState labels where a job is in its lifecycle.
type JobState string

const (
	JobStateRunning JobState = "running"
	JobStateSuccess JobState = "success"
	// JobStatePartial means the export was produced but some QR artifacts failed.
	JobStatePartial JobState = "partial_qr_failure"
	JobStateFailed  JobState = "failed"
)

// JobStatus is the structured outcome returned to every caller (CLI and
// dashboard are both just callers of this contract).
type JobStatus struct {
	JobID               string    `json:"job_id"`
	DealershipID        int64     `json:"dealership_id"`
	State               JobState  `json:"state"`
	Success             bool      `json:"success"`
	VehiclesIncluded    int       `json:"vehicles_included"`
	VehiclesFiltered    int       `json:"vehicles_filtered"`
	VehiclesAlreadySeen int       `json:"vehicles_already_seen"`
	QRFailures          int       `json:"qr_failures"`
	ExportPath          string    `json:"export_path,omitempty"`
	Error               string    `json:"error,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}
