package models

import "time"

// StandupLine is one buffered standup contribution.
type StandupLine struct {
	Handle string
	Text   string
}

// StandupState is the per-conversation standup window. The zero value is
// inert.
type StandupState struct {
	Active    bool
	StarterID int64
	Deadline  time.Time
	Buffer    []StandupLine
}

// StandupStatus is what callers see of a standup.
type StandupStatus struct {
	IsActive   bool   `json:"is_active"`
	TimeFinish *int64 `json:"time_finish"`
}
