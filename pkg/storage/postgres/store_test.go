package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"harvester/pkg/models"
	"harvester/pkg/storage"
)

func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	store, err := NewStore(sqlite.Open(dsn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(start time.Time) *models.RunReport {
	return &models.RunReport{
		ID:        uuid.New(),
		StartedAt: start,
		EndedAt:   start.Add(3 * time.Second),
		Results: models.Results{
			{Name: "gov", Status: models.ResultSucceeded, FoundCount: 4, PersistedCount: 3, Elapsed: 1500 * time.Millisecond, Target: "https://www.gov.cn/zhengce/zuixin/"},
			{Name: "gov", Status: models.ResultFailed, ErrorMessage: "connection reset"},
			{Name: "ndrc", Status: models.ResultSucceeded},
		},
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	report := sampleRun(time.Date(2025, 3, 1, 1, 0, 0, 0, time.UTC))

	require.NoError(t, store.SaveRun(ctx, models.NewRunRecord(report, "s3://bucket/run.log")))

	got, err := store.GetRun(ctx, report.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 4, got.TotalFound)
	assert.Equal(t, 3, got.TotalPersisted)
	assert.Equal(t, "s3://bucket/run.log", got.TranscriptRef)

	rebuilt := got.Report()
	assert.Equal(t, []string{"gov", "gov", "ndrc"}, rebuilt.Results.Names())
	assert.Equal(t, "connection reset", rebuilt.Results[1].ErrorMessage)
	assert.Equal(t, 1500*time.Millisecond, rebuilt.Results[0].Elapsed)
}

func TestRunStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_RejectsNilID(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveRun(context.Background(), &models.RunRecord{})
	assert.Error(t, err)
}

func TestMapPgError(t *testing.T) {
	dup := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "run_records_pkey"}
	err := mapPgError(fmt.Errorf("insert: %w", dup))
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	assert.Contains(t, err.Error(), "run_records_pkey")

	fk := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}
	assert.Same(t, fk, mapPgError(fk))

	plain := fmt.Errorf("connection reset")
	assert.Same(t, plain, mapPgError(plain))
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		report := sampleRun(base.Add(time.Duration(i) * time.Hour))
		ids = append(ids, report.ID)
		require.NoError(t, store.SaveRun(ctx, models.NewRunRecord(report, "")))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestItemStore_UpsertsByTitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)

	first, err := store.SavePolicies(ctx, "gov", []models.Policy{
		{Title: "Policy A", URL: "https://example.org/a", PubAt: &day},
		{Title: "  ", URL: "https://example.org/blank"},
		{Title: "Policy B", URL: "https://example.org/b"},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "gov", first[0].Source)

	second, err := store.SavePolicies(ctx, "gov", []models.Policy{
		{Title: "Policy A", URL: "https://example.org/a-v2", Content: "updated"},
	})
	require.NoError(t, err)
	require.Len(t, second, 1)

	var count int64
	require.NoError(t, store.db.Model(&models.Policy{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var a models.Policy
	require.NoError(t, store.db.First(&a, "title = ?", "Policy A").Error)
	assert.Equal(t, "https://example.org/a-v2", a.URL)
	assert.Equal(t, "updated", a.Content)
}

func TestItemStore_EmptyInput(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.SavePolicies(context.Background(), "gov", nil)
	require.NoError(t, err)
	assert.Empty(t, saved)
}
