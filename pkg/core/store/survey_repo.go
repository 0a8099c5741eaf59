package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property_appraisal/pkg/core/survey"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no dataset is stored for an appraisal.
var ErrNotFound = errors.New("survey dataset not found")

// Schema creates the dataset table.
const Schema = `
CREATE TABLE IF NOT EXISTS appraisal_surveys (
	appraisal_id TEXT PRIMARY KEY,
	collateral_type TEXT NOT NULL,
	dataset_json JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SurveyRepo loads the surveys and subject property of an appraisal. The
// dataset is stored as one JSONB document per appraisal.
type SurveyRepo struct {
	db DB
}

// NewSurveyRepo creates a repository on db. A nil db uses the shared pool.
func NewSurveyRepo(db DB) *SurveyRepo {
	return &SurveyRepo{db: db}
}

func (r *SurveyRepo) conn() (DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	if p := GetPool(); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("database pool not initialized")
}

// EnsureSchema creates the dataset table if it does not exist.
func (r *SurveyRepo) EnsureSchema(ctx context.Context) error {
	db, err := r.conn()
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load retrieves and validates the dataset of an appraisal.
func (r *SurveyRepo) Load(ctx context.Context, appraisalID string) (*survey.Dataset, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = db.QueryRow(ctx,
		`SELECT dataset_json FROM appraisal_surveys WHERE appraisal_id = $1`,
		appraisalID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, appraisalID)
		}
		return nil, fmt.Errorf("failed to load surveys for %s: %w", appraisalID, err)
	}

	d, err := survey.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("appraisal %s: %w", appraisalID, err)
	}
	return d, nil
}

// Import upserts a dataset. It is used to seed the table from fixture files.
func (r *SurveyRepo) Import(ctx context.Context, appraisalID string, d *survey.Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	db, err := r.conn()
	if err != nil {
		return err
	}

	jsonData, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	query := `
		INSERT INTO appraisal_surveys (appraisal_id, collateral_type, dataset_json, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (appraisal_id)
		DO UPDATE SET
			collateral_type = EXCLUDED.collateral_type,
			dataset_json = EXCLUDED.dataset_json,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := db.Exec(ctx, query, appraisalID, string(d.Property.CollateralType), jsonData, time.Now()); err != nil {
		return fmt.Errorf("failed to import surveys for %s: %w", appraisalID, err)
	}
	return nil
}
