package models

import (
	"time"

	"github.com/google/uuid"
)

// RunRecord is the archived form of a RunReport.
type RunRecord struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	StartedAt      time.Time         `gorm:"index" json:"started_at"`
	EndedAt        time.Time         `json:"ended_at"`
	Total          int               `json:"total"`
	Succeeded      int               `json:"succeeded"`
	Failed         int               `json:"failed"`
	TotalFound     int               `json:"total_found"`
	TotalPersisted int               `json:"total_persisted"`
	TranscriptRef  string            `json:"transcript_ref,omitempty"`
	Results        []JobResultRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// JobResultRecord is one archived job outcome. Position keeps registration
// order, since names may repeat within a run.
type JobResultRecord struct {
	ID             uint         `gorm:"primaryKey" json:"-"`
	RunID          uuid.UUID    `gorm:"type:uuid;index" json:"-"`
	Position       int          `json:"position"`
	Name           string       `gorm:"size:255" json:"name"`
	Status         ResultStatus `gorm:"size:20" json:"status"`
	FoundCount     int          `json:"found_count"`
	PersistedCount int          `json:"persisted_count"`
	ElapsedMillis  int64        `json:"elapsed_ms"`
	CompletedAt    time.Time    `json:"completed_at"`
	Target         string       `json:"target,omitempty"`
	ErrorMessage   string       `gorm:"type:text" json:"error_message,omitempty"`
}

// NewRunRecord flattens a report for storage. The transcript itself is
// stored elsewhere and referenced by ref.
func NewRunRecord(report *RunReport, ref string) *RunRecord {
	s := Summarize(report)
	rec := &RunRecord{
		ID:             report.ID,
		StartedAt:      report.StartedAt,
		EndedAt:        report.EndedAt,
		Total:          s.Total,
		Succeeded:      s.Succeeded,
		Failed:         s.Failed,
		TotalFound:     s.TotalFound,
		TotalPersisted: s.TotalPersisted,
		TranscriptRef:  ref,
		Results:        make([]JobResultRecord, 0, len(report.Results)),
	}
	for i, r := range report.Results {
		rec.Results = append(rec.Results, JobResultRecord{
			RunID:          report.ID,
			Position:       i,
			Name:           r.Name,
			Status:         r.Status,
			FoundCount:     r.FoundCount,
			PersistedCount: r.PersistedCount,
			ElapsedMillis:  r.Elapsed.Milliseconds(),
			CompletedAt:    r.CompletedAt,
			Target:         r.Target,
			ErrorMessage:   r.ErrorMessage,
		})
	}
	return rec
}

// Report rebuilds the in-memory report, without its transcript.
func (rec *RunRecord) Report() *RunReport {
	report := &RunReport{
		ID:        rec.ID,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
		Results:   make(Results, 0, len(rec.Results)),
	}
	for _, r := range rec.Results {
		report.Results = append(report.Results, JobResult{
			Name:           r.Name,
			Status:         r.Status,
			FoundCount:     r.FoundCount,
			PersistedCount: r.PersistedCount,
			Elapsed:        time.Duration(r.ElapsedMillis) * time.Millisecond,
			CompletedAt:    r.CompletedAt,
			Target:         r.Target,
			ErrorMessage:   r.ErrorMessage,
		})
	}
	return report
}

// Policy is one collected document. Title is the dedupe key.
type Policy struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Title     string     `gorm:"uniqueIndex;size:512;not null" json:"title"`
	URL       string     `gorm:"size:1024" json:"url"`
	PubAt     *time.Time `gorm:"type:date" json:"pub_at,omitempty"`
	Content   string     `gorm:"type:text" json:"content,omitempty"`
	Selected  bool       `gorm:"default:false" json:"selected"`
	Category  string     `gorm:"size:64" json:"category"`
	Source    string     `gorm:"size:128;index" json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName pins the table name.
func (Policy) TableName() string {
	return "policy"
}
