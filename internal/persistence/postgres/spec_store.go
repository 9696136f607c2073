package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	pe "github.com/sawpanic/punit/internal/errors"
	"github.com/sawpanic/punit/internal/spec"
)

// specRow mirrors the spec_registry table's columns for sqlx scanning.
type specRow struct {
	SpecID                  string    `db:"spec_id"`
	UseCaseID               string    `db:"use_case_id"`
	Version                 string    `db:"version"`
	ApprovedAt              time.Time `db:"approved_at"`
	ApprovedBy              string    `db:"approved_by"`
	ApprovalNotes           string    `db:"approval_notes"`
	MinPassRate             float64   `db:"min_pass_rate"`
	SuccessCriteria         string    `db:"success_criteria"`
	SamplesExp              int       `db:"samples_exp"`
	SuccessesExp            int       `db:"successes_exp"`
	ObservedRate            float64   `db:"observed_rate"`
	StandardError           float64   `db:"standard_error"`
}

// SpecStore implements spec.Source against a Postgres spec_registry table,
// the system-of-record layer beneath the Redis cache (internal/cache) in the
// Redis→Postgres→file chain a deployment composes via spec.ChainSource.
type SpecStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSpecStore creates a Postgres-backed spec.Source, grounded on the
// donor's regimeRepo query-timeout pattern.
func NewSpecStore(db *sqlx.DB, timeout time.Duration) *SpecStore {
	return &SpecStore{db: db, timeout: timeout}
}

// Load fetches the approved spec for (useCaseID, version).
func (s *SpecStore) Load(useCaseID, version string) (*spec.Spec, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	const query = `
		SELECT spec_id, use_case_id, version, approved_at, approved_by,
		       approval_notes, min_pass_rate, success_criteria,
		       samples_exp, successes_exp, observed_rate, standard_error
		FROM spec_registry
		WHERE use_case_id = $1 AND version = $2`

	var row specRow
	err := s.db.GetContext(ctx, &row, query, useCaseID, version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, pe.Wrap(pe.KindSpecificationNotFound, fmt.Sprintf("no spec row for %s", spec.CacheKey(useCaseID, version)), err)
		}
		return nil, pe.Wrap(pe.KindSpecificationMalformed, "failed to query spec_registry", err)
	}

	return rowToSpec(row), nil
}

// Upsert writes s to the spec_registry table, used by an approval workflow
// (outside this package's scope) to publish a newly approved spec.
func (s *SpecStore) Upsert(ctx context.Context, sp *spec.Spec) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	basis := sp.RegressionThreshold.ExperimentalBasis
	const query = `
		INSERT INTO spec_registry
		(spec_id, use_case_id, version, approved_at, approved_by, approval_notes,
		 min_pass_rate, success_criteria, samples_exp, successes_exp, observed_rate, standard_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (use_case_id, version) DO UPDATE SET
			approved_at = EXCLUDED.approved_at,
			approved_by = EXCLUDED.approved_by,
			approval_notes = EXCLUDED.approval_notes,
			min_pass_rate = EXCLUDED.min_pass_rate,
			success_criteria = EXCLUDED.success_criteria,
			samples_exp = EXCLUDED.samples_exp,
			successes_exp = EXCLUDED.successes_exp,
			observed_rate = EXCLUDED.observed_rate,
			standard_error = EXCLUDED.standard_error`

	_, err := s.db.ExecContext(ctx, query,
		sp.SpecID, sp.UseCaseID, sp.Version, sp.ApprovedAt, sp.ApprovedBy, sp.ApprovalNotes,
		sp.Requirements.MinPassRate, sp.Requirements.SuccessCriteria,
		basis.SamplesExp, basis.SuccessesExp, basis.ObservedRate, basis.StandardError)
	if err != nil {
		return pe.Wrap(pe.KindSpecificationMalformed, "failed to upsert spec_registry row", err)
	}
	return nil
}

func rowToSpec(r specRow) *spec.Spec {
	return &spec.Spec{
		SpecID:        r.SpecID,
		UseCaseID:     r.UseCaseID,
		Version:       r.Version,
		ApprovedAt:    r.ApprovedAt,
		ApprovedBy:    r.ApprovedBy,
		ApprovalNotes: r.ApprovalNotes,
		Requirements: spec.Requirements{
			MinPassRate:     r.MinPassRate,
			SuccessCriteria: r.SuccessCriteria,
		},
		RegressionThreshold: spec.RegressionThreshold{
			ExperimentalBasis: spec.ExperimentalBasis{
				SamplesExp:    r.SamplesExp,
				SuccessesExp:  r.SuccessesExp,
				ObservedRate:  r.ObservedRate,
				StandardError: r.StandardError,
			},
		},
	}
}
