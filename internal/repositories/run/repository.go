// Package run handles persistence of linkage run summaries and their matched
// pairs. Raw input records are never stored.
package run

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/database"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Repository handles linkage run persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new linkage run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new run in running state
func (r *Repository) Create(ctx context.Context, run *models.LinkageRun) (*models.LinkageRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.Create")
	defer span.End()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.Status = models.RunStatusRunning
	run.CreatedAt = time.Now().UTC()
	run.UpdatedAt = run.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("linkage_runs")
	sb.Cols("id", "tenant_id", "request_fingerprint", "status", "source_count", "target_count", "created_at", "updated_at")
	sb.Values(run.ID, run.TenantID, run.RequestFingerprint, run.Status, run.SourceCount, run.TargetCount, run.CreatedAt, run.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": run.ID}).Error("Failed to create linkage run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create linkage run")
	}

	return run, nil
}

// Get retrieves a run by ID
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.LinkageRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(runColumns...)
	sb.From("linkage_runs")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var run models.LinkageRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("linkage run %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get linkage run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get linkage run")
	}

	return &run, nil
}

// GetByFingerprint finds the most recent run for a request fingerprint.
// Returns nil without error when no run exists.
func (r *Repository) GetByFingerprint(ctx context.Context, tenantID string, fingerprint string) (*models.LinkageRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.GetByFingerprint")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(runColumns...)
	sb.From("linkage_runs")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("request_fingerprint", fingerprint),
	)
	sb.OrderBy("created_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var run models.LinkageRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get linkage run by fingerprint")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get linkage run")
	}

	return &run, nil
}

// List retrieves runs for a tenant, newest first
func (r *Repository) List(ctx context.Context, tenantID string, limit int) ([]models.LinkageRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(runColumns...)
	sb.From("linkage_runs")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var runs []models.LinkageRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list linkage runs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list linkage runs")
	}

	return runs, nil
}

// MarkCompleted finalizes a run with the report counters
func (r *Repository) MarkCompleted(ctx context.Context, tenantID string, id string, report *models.Report) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.MarkCompleted")
	defer span.End()

	now := time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("linkage_runs")
	ub.Set(
		ub.Assign("status", models.RunStatusCompleted),
		ub.Assign("source_count", report.SourceCount),
		ub.Assign("target_count", report.TargetCount),
		ub.Assign("match_count", len(report.Matches)),
		ub.Assign("unmatched_source_count", len(report.UnmatchedSource)),
		ub.Assign("unmatched_target_count", len(report.UnmatchedTarget)),
		ub.Assign("warning_count", len(report.Warnings)),
		ub.Assign("updated_at", now),
		ub.Assign("completed_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": id}).Error("Failed to mark linkage run completed")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update linkage run")
	}

	return nil
}

// MarkFailed records a run failure
func (r *Repository) MarkFailed(ctx context.Context, tenantID string, id string, runErr error) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.MarkFailed")
	defer span.End()

	now := time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("linkage_runs")
	ub.Set(
		ub.Assign("status", models.RunStatusFailed),
		ub.Assign("error", runErr.Error()),
		ub.Assign("updated_at", now),
		ub.Assign("completed_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": id}).Error("Failed to mark linkage run failed")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update linkage run")
	}

	return nil
}

// CreateMatchesBatch persists the matched pairs of a run
func (r *Repository) CreateMatchesBatch(ctx context.Context, tenantID string, runID string, matches []models.MatchedPair) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.CreateMatchesBatch")
	defer span.End()

	if len(matches) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("linkage_matches")
	sb.Cols("id", "tenant_id", "run_id", "source_record_id", "target_record_id", "match_score", "name_score", "email_score", "dob_score", "phone_score", "created_at")

	for _, m := range matches {
		sb.Values(uuid.New().String(), tenantID, runID, m.SourceID, m.TargetID, m.Score, m.Fields.Name, m.Fields.Email, m.Fields.DOB, m.Fields.Phone, now)
	}

	query, args := sb.Build()
	// Redeliveries re-run the insert; the pair is unique per run
	query += " ON CONFLICT (run_id, source_record_id, target_record_id) DO NOTHING"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runID}).Error("Failed to create linkage matches batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create linkage matches")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"run_id": runID, "count": len(matches)}).Debug("Created linkage matches batch")
	return nil
}

// ListMatches retrieves the persisted matches of a run
func (r *Repository) ListMatches(ctx context.Context, tenantID string, runID string, limit int) ([]models.LinkageMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.ListMatches")
	defer span.End()

	if limit < 1 || limit > 1000 {
		limit = 500
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "run_id", "source_record_id", "target_record_id", "match_score", "name_score", "email_score", "dob_score", "phone_score", "created_at")
	sb.From("linkage_matches")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("run_id", runID),
	)
	sb.OrderBy("match_score DESC", "source_record_id ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var matches []models.LinkageMatch
	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list linkage matches")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list linkage matches")
	}

	return matches, nil
}

var runColumns = []string{
	"id", "tenant_id", "request_fingerprint", "status",
	"source_count", "target_count", "match_count",
	"unmatched_source_count", "unmatched_target_count", "warning_count",
	"error", "created_at", "updated_at", "completed_at",
}
