package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/grandrounds/grandrounds/internal/models"
)

// ConsensusRepository manages consensus result storage
type ConsensusRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewConsensusRepository creates a new consensus repository
func NewConsensusRepository(pool *pgxpool.Pool, log *logrus.Logger) *ConsensusRepository {
	if log == nil {
		log = logrus.New()
	}
	return &ConsensusRepository{
		pool: pool,
		log:  log,
	}
}

// CreateTable creates the consensus_results table if it doesn't exist
func (r *ConsensusRepository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS consensus_results (
			session_id VARCHAR(255) PRIMARY KEY,
			kendall_w DECIMAL(5,4) NOT NULL DEFAULT 0,
			consensus_reached BOOLEAN NOT NULL DEFAULT FALSE,
			rounds_required INT NOT NULL DEFAULT 0,
			triage_level INT NOT NULL DEFAULT 3,
			disposition VARCHAR(50) NOT NULL,
			human_review_required BOOLEAN NOT NULL DEFAULT FALSE,
			human_review_reason TEXT,
			result JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_consensus_results_created_at ON consensus_results(created_at);
		CREATE INDEX IF NOT EXISTS idx_consensus_results_human_review ON consensus_results(human_review_required);
	`

	_, err := r.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create consensus_results table: %w", err)
	}

	r.log.Info("Consensus results table created/verified")
	return nil
}

// Upsert writes the session's result, replacing any previous write. The
// scalar columns are duplicated out of the JSONB payload so review
// queues can query them directly.
func (r *ConsensusRepository) Upsert(ctx context.Context, result models.ConsensusResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal consensus result: %w", err)
	}

	query := `
		INSERT INTO consensus_results (
			session_id, kendall_w, consensus_reached, rounds_required,
			triage_level, disposition, human_review_required,
			human_review_reason, result, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO UPDATE SET
			kendall_w = EXCLUDED.kendall_w,
			consensus_reached = EXCLUDED.consensus_reached,
			rounds_required = EXCLUDED.rounds_required,
			triage_level = EXCLUDED.triage_level,
			disposition = EXCLUDED.disposition,
			human_review_required = EXCLUDED.human_review_required,
			human_review_reason = EXCLUDED.human_review_reason,
			result = EXCLUDED.result
	`

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.pool.Exec(ctx, query,
		result.SessionID, result.KendallW, result.ConsensusReached, result.RoundsRequired,
		result.TriageLevel, string(result.Disposition), result.HumanReviewRequired,
		result.HumanReviewReason, payload, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert consensus result: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"session_id": result.SessionID,
		"kendall_w":  result.KendallW,
		"consensus":  result.ConsensusReached,
	}).Debug("Consensus result upserted")

	return nil
}

// GetBySession retrieves the stored result for a session.
func (r *ConsensusRepository) GetBySession(ctx context.Context, sessionID string) (*models.ConsensusResult, error) {
	query := `
		SELECT result
		FROM consensus_results
		WHERE session_id = $1
	`

	var payload []byte
	if err := r.pool.QueryRow(ctx, query, sessionID).Scan(&payload); err != nil {
		return nil, fmt.Errorf("failed to query consensus result: %w", err)
	}

	var result models.ConsensusResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal consensus result: %w", err)
	}
	return &result, nil
}

// PendingReview lists sessions awaiting human review, newest first.
func (r *ConsensusRepository) PendingReview(ctx context.Context, limit int) ([]models.ConsensusResult, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT result
		FROM consensus_results
		WHERE human_review_required = TRUE
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reviews: %w", err)
	}
	defer rows.Close()

	var results []models.ConsensusResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan pending review: %w", err)
		}
		var result models.ConsensusResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending review: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending reviews: %w", err)
	}

	return results, nil
}
