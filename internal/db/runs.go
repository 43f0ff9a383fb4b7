package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRun records a new ranking run and returns its ID
func (db *DB) CreateRun(ctx context.Context, runID uuid.UUID, requirementID string, candidates int) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO ranking_runs (id, requirement_id, status, candidates)
		 VALUES ($1, $2, $3, $4)`,
		runID, requirementID, RunStatusRunning, candidates,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun stores the results of a run and sets its final status
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, results any) error {
	jsonBytes, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE ranking_runs SET status = $1, results = $2, completed_at = NOW() WHERE id = $3`,
		status, jsonBytes, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// GetRun retrieves a ranking run by ID. It returns nil, nil when absent.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, requirement_id, status, candidates, created_at, completed_at
		 FROM ranking_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.RequirementID, &run.Status, &run.Candidates, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// GetRunResults retrieves the raw JSON results of a run
func (db *DB) GetRunResults(ctx context.Context, runID uuid.UUID) ([]byte, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT results FROM ranking_runs WHERE id = $1`,
		runID,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run results: %w", err)
	}
	return content, nil
}
