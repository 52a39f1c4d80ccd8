package model

import "time"

// Envelope is the payload published for every record a pull run created or changed.
type Envelope struct {
	RunID     string    `json:"run_id"` // pull run ULID
	ChangedAt time.Time `json:"changed_at"`
	Record    Record    `json:"record"`
}
