package models

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the outcome of a single job invocation.
type ResultStatus string

const (
	ResultSucceeded ResultStatus = "SUCCEEDED"
	ResultFailed    ResultStatus = "FAILED"
)

// JobResult is the accounting recorded for one job in one run.
// A failed result carries an error message and zero counts.
type JobResult struct {
	Name           string        `json:"name"`
	Status         ResultStatus  `json:"status"`
	FoundCount     int           `json:"found_count"`
	PersistedCount int           `json:"persisted_count"`
	Elapsed        time.Duration `json:"elapsed"`
	CompletedAt    time.Time     `json:"completed_at"`
	Target         string        `json:"target,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// Succeeded reports whether the job returned without error.
func (r JobResult) Succeeded() bool {
	return r.Status == ResultSucceeded
}

// ElapsedSeconds returns the elapsed time rounded to two decimals.
func (r JobResult) ElapsedSeconds() float64 {
	return float64(r.Elapsed.Round(10*time.Millisecond)) / float64(time.Second)
}

// Results keeps job results in registration order. Names may repeat.
type Results []JobResult

// Names returns the job names in order, duplicates included.
func (rs Results) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

// Lookup returns every result recorded under name, in order.
func (rs Results) Lookup(name string) []JobResult {
	var out []JobResult
	for _, r := range rs {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// RunReport is the canonical record of one pass over the registry.
type RunReport struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Results    Results   `json:"results"`
	Transcript string    `json:"transcript"`
}

// Summary holds the aggregates derived from a run's results.
type Summary struct {
	Total          int
	Succeeded      int
	Failed         int
	TotalFound     int
	TotalPersisted int
	Duration       time.Duration
}

// HasFailures reports whether at least one job failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Summarize computes the aggregates every report encoding is built from.
func Summarize(report *RunReport) Summary {
	var s Summary
	if report == nil {
		return s
	}
	for _, r := range report.Results {
		s.Total++
		if r.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.TotalFound += r.FoundCount
		s.TotalPersisted += r.PersistedCount
	}
	if report.EndedAt.After(report.StartedAt) {
		s.Duration = report.EndedAt.Sub(report.StartedAt)
	}
	return s
}
