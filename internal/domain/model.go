package domain

import "time"

// Core domain models shared by the stores, the worker and the HTTP layer.

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []JobStatus{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one scrape task for a keyword+location pair.
type Job struct {
	ID         string     `json:"id"`
	Keyword    string     `json:"keyword"`
	Location   string     `json:"location"`
	Status     JobStatus  `json:"status"`
	TotalFound *int       `json:"total_found"`
	Error      *string    `json:"error"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// Listing is one record produced by the extraction pipeline. Category, Lat
// and Lng are reserved and currently never populated by extraction.
type Listing struct {
	Name         *string
	Category     *string
	Address      *string
	Phone        *string
	Website      *string
	Rating       *float64
	ReviewsCount *int
	Lat          *float64
	Lng          *float64
}

// Result is a persisted Listing owned by a job.
type Result struct {
	ID        string
	JobID     string
	Position  int
	Listing
	CreatedAt time.Time
}
