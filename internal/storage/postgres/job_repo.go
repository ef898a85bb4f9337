// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// JobRepositoryConfig controls the Postgres connection pool used for job rows.
type JobRepositoryConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobRepository persists audit jobs in Postgres.
type JobRepository struct {
	pool pgxPool
}

// NewJobRepository creates a Postgres-backed JobRepository using the provided config.
func NewJobRepository(ctx context.Context, cfg JobRepositoryConfig) (*JobRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobRepository{pool: pool}, nil
}

// NewJobRepositoryWithPool constructs a repository from an existing pool
// (primarily for testing).
func NewJobRepositoryWithPool(pool pgxPool) (*JobRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobRepository{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (r *JobRepository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

const jobColumns = `
	id, owner_id, url, domain, device_type, location, is_public, status,
	performance, seo, accessibility, images,
	overall_score, recommendations, error_text, processing_time_ms,
	report_uri, tags, notes, created_at, updated_at`

// Create inserts a new job row.
func (r *JobRepository) Create(ctx context.Context, job audit.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	args, err := encodeJob(job)
	if err != nil {
		return err
	}
	query := `
INSERT INTO audit_jobs (` + jobColumns + `
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
)`
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit job: %w", err)
	}
	return nil
}

// Get fetches a job by id.
func (r *JobRepository) Get(ctx context.Context, id string) (audit.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM audit_jobs WHERE id = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return audit.Job{}, audit.ErrNotFound
		}
		return audit.Job{}, fmt.Errorf("select audit job: %w", err)
	}
	return job, nil
}

// Update replaces the mutable columns of an existing job row.
func (r *JobRepository) Update(ctx context.Context, job audit.Job) error {
	args, err := encodeJob(job)
	if err != nil {
		return err
	}
	query := `
UPDATE audit_jobs SET
	owner_id = $2, url = $3, domain = $4, device_type = $5, location = $6,
	is_public = $7, status = $8, performance = $9, seo = $10,
	accessibility = $11, images = $12, overall_score = $13,
	recommendations = $14, error_text = $15, processing_time_ms = $16,
	report_uri = $17, tags = $18, notes = $19, created_at = $20, updated_at = $21
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update audit job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrNotFound
	}
	return nil
}

// List returns jobs matching the filter, newest first, plus the total match
// count before pagination.
func (r *JobRepository) List(ctx context.Context, filter audit.ListFilter) ([]audit.Job, int, error) {
	filter = filter.Normalize()
	where, args := buildWhere(filter)

	countQuery := "SELECT count(*) FROM audit_jobs" + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit jobs: %w", err)
	}

	pageArgs := append(append([]any{}, args...),
		filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf("SELECT %s FROM audit_jobs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		jobColumns, where, len(args)+1, len(args)+2)

	rows, err := r.pool.Query(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("select audit jobs: %w", err)
	}
	defer rows.Close()

	jobs := []audit.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit jobs: %w", err)
	}
	return jobs, total, nil
}

// Delete removes a job row by id.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete audit job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrNotFound
	}
	return nil
}

func buildWhere(filter audit.ListFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.OwnerID != "" {
		add("owner_id = $%d", filter.OwnerID)
	}
	if filter.PublicOnly {
		clauses = append(clauses, "is_public = true")
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.DeviceType != "" {
		add("device_type = $%d", string(filter.DeviceType))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		clauses = append(clauses, fmt.Sprintf("(lower(url) LIKE $%d OR lower(domain) LIKE $%d)", len(args), len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func encodeJob(job audit.Job) ([]any, error) {
	performance, err := marshalNullable(job.Performance)
	if err != nil {
		return nil, fmt.Errorf("marshal performance: %w", err)
	}
	seo, err := marshalNullable(job.Seo)
	if err != nil {
		return nil, fmt.Errorf("marshal seo: %w", err)
	}
	accessibility, err := marshalNullable(job.Accessibility)
	if err != nil {
		return nil, fmt.Errorf("marshal accessibility: %w", err)
	}
	images, err := marshalNullable(job.Images)
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	var recommendations []byte
	if job.Recommendations != nil {
		recommendations, err = json.Marshal(job.Recommendations)
		if err != nil {
			return nil, fmt.Errorf("marshal recommendations: %w", err)
		}
	}

	return []any{
		job.ID,
		nullString(job.OwnerID),
		job.URL,
		job.Domain,
		string(job.DeviceType),
		job.Location,
		job.IsPublic,
		string(job.Status),
		performance,
		seo,
		accessibility,
		images,
		job.OverallScore,
		recommendations,
		nullString(job.ErrorText),
		job.ProcessingTimeMs,
		job.ReportURI,
		job.Tags,
		job.Notes,
		job.CreatedAt,
		job.UpdatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (audit.Job, error) {
	var (
		job             audit.Job
		ownerID         *string
		deviceType      string
		status          string
		performance     []byte
		seo             []byte
		accessibility   []byte
		images          []byte
		recommendations []byte
		errText         *string
	)
	err := row.Scan(
		&job.ID,
		&ownerID,
		&job.URL,
		&job.Domain,
		&deviceType,
		&job.Location,
		&job.IsPublic,
		&status,
		&performance,
		&seo,
		&accessibility,
		&images,
		&job.OverallScore,
		&recommendations,
		&errText,
		&job.ProcessingTimeMs,
		&job.ReportURI,
		&job.Tags,
		&job.Notes,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return audit.Job{}, err
	}
	if ownerID != nil {
		job.OwnerID = *ownerID
	}
	if errText != nil {
		job.ErrorText = *errText
	}
	job.DeviceType = audit.DeviceType(deviceType)
	job.Status = audit.Status(status)

	if err := unmarshalNullable(performance, &job.Performance); err != nil {
		return audit.Job{}, fmt.Errorf("unmarshal performance: %w", err)
	}
	if err := unmarshalNullable(seo, &job.Seo); err != nil {
		return audit.Job{}, fmt.Errorf("unmarshal seo: %w", err)
	}
	if err := unmarshalNullable(accessibility, &job.Accessibility); err != nil {
		return audit.Job{}, fmt.Errorf("unmarshal accessibility: %w", err)
	}
	if err := unmarshalNullable(images, &job.Images); err != nil {
		return audit.Job{}, fmt.Errorf("unmarshal images: %w", err)
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &job.Recommendations); err != nil {
			return audit.Job{}, fmt.Errorf("unmarshal recommendations: %w", err)
		}
	}
	return job, nil
}

func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalNullable[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
