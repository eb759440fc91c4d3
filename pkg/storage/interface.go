package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"harvester/pkg/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// RunStore archives finished runs.
type RunStore interface {
	// SaveRun persists a run and its ordered job results.
	SaveRun(ctx context.Context, run *models.RunRecord) error

	// GetRun retrieves a run with its results.
	GetRun(ctx context.Context, id uuid.UUID) (*models.RunRecord, error)

	// ListRuns returns the most recent runs, newest first, without results.
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)
}

// ItemStore persists collected documents.
type ItemStore interface {
	// SavePolicies upserts by title and returns the ones written.
	SavePolicies(ctx context.Context, source string, items []models.Policy) ([]models.Policy, error)
}

// TranscriptStore keeps run transcripts out of the relational archive.
type TranscriptStore interface {
	// Store saves a transcript and returns a reference to it.
	Store(ctx context.Context, runID string, transcript []byte) (string, error)
	// Retrieve fetches a transcript by reference.
	Retrieve(ctx context.Context, reference string) ([]byte, error)
}

// ReportStream fans out run summaries to other consumers.
type ReportStream interface {
	Publish(ctx context.Context, run *models.RunRecord) (string, error)
}
