package domain

import "time"

// Run identifies one batch execution. It is created once at process start
// and shared, read-only, by every component of the run.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}
