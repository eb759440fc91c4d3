package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"harvester/pkg/models"
	"harvester/pkg/report"
	"harvester/pkg/storage"
)

// --- Response DTOs ---

// RunSummaryResponse is one row of the run listing.
type RunSummaryResponse struct {
	ID             uuid.UUID `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	Total          int       `json:"total"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	TotalFound     int       `json:"total_found"`
	TotalPersisted int       `json:"total_persisted"`
	HasTranscript  bool      `json:"has_transcript"`
}

// RunResponse is a run with its ordered results.
type RunResponse struct {
	RunSummaryResponse
	Results []models.JobResultRecord `json:"results"`
	Digest  string                   `json:"digest"`
}

func toSummary(r *models.RunRecord) RunSummaryResponse {
	return RunSummaryResponse{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		Total:          r.Total,
		Succeeded:      r.Succeeded,
		Failed:         r.Failed,
		TotalFound:     r.TotalFound,
		TotalPersisted: r.TotalPersisted,
		HasTranscript:  r.TranscriptRef != "",
	}
}

// listRuns handles GET /api/v1/runs
func (s *Server) listRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, "failed to list runs", err)
		return
	}

	out := make([]RunSummaryResponse, 0, len(runs))
	for i := range runs {
		out = append(out, toSummary(&runs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out, "count": len(out)})
}

// getRun handles GET /api/v1/runs/:id
func (s *Server) getRun(c *gin.Context) {
	run, ok := s.loadRun(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, RunResponse{
		RunSummaryResponse: toSummary(run),
		Results:            run.Results,
		Digest:             report.Digest(run.Report().Results, report.DefaultOptions().TextErrorLimit),
	})
}

// getTranscript handles GET /api/v1/runs/:id/transcript
func (s *Server) getTranscript(c *gin.Context) {
	run, ok := s.loadRun(c)
	if !ok {
		return
	}
	if s.transcripts == nil || run.TranscriptRef == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "transcript not available"})
		return
	}

	data, err := s.transcripts.Retrieve(c.Request.Context(), run.TranscriptRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transcript not found"})
			return
		}
		s.internalError(c, "failed to load transcript", err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

func (s *Server) loadRun(c *gin.Context) (*models.RunRecord, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return nil, false
	}

	run, err := s.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return nil, false
		}
		s.internalError(c, "failed to load run", err)
		return nil, false
	}
	return run, true
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	_ = c.Error(err)
	s.log.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
