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

// OpinionRepository manages agent opinion storage
type OpinionRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewOpinionRepository creates a new opinion repository
func NewOpinionRepository(pool *pgxpool.Pool, log *logrus.Logger) *OpinionRepository {
	if log == nil {
		log = logrus.New()
	}
	return &OpinionRepository{
		pool: pool,
		log:  log,
	}
}

// CreateTable creates the agent_opinions table if it doesn't exist
func (r *OpinionRepository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS agent_opinions (
			session_id VARCHAR(255) NOT NULL,
			round INT NOT NULL,
			agent_id VARCHAR(255) NOT NULL,
			role VARCHAR(255) NOT NULL,
			differential JSONB NOT NULL,
			overall_confidence DECIMAL(5,4) NOT NULL DEFAULT 0,
			concerns JSONB,
			recommended_workup JSONB,
			parse_method VARCHAR(50) NOT NULL,
			processing_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (session_id, round, agent_id)
		);

		CREATE INDEX IF NOT EXISTS idx_agent_opinions_session_id ON agent_opinions(session_id);
		CREATE INDEX IF NOT EXISTS idx_agent_opinions_created_at ON agent_opinions(created_at);
	`

	_, err := r.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create agent_opinions table: %w", err)
	}

	r.log.Info("Agent opinions table created/verified")
	return nil
}

// Upsert writes one opinion, replacing any previous write for the same
// session, round, and agent.
func (r *OpinionRepository) Upsert(ctx context.Context, sessionID string, opinion models.AgentOpinion) error {
	differential, err := json.Marshal(opinion.Differential)
	if err != nil {
		return fmt.Errorf("failed to marshal differential: %w", err)
	}
	concerns, err := json.Marshal(opinion.Concerns)
	if err != nil {
		return fmt.Errorf("failed to marshal concerns: %w", err)
	}
	workup, err := json.Marshal(opinion.RecommendedWorkup)
	if err != nil {
		return fmt.Errorf("failed to marshal recommended workup: %w", err)
	}

	query := `
		INSERT INTO agent_opinions (
			session_id, round, agent_id, role, differential,
			overall_confidence, concerns, recommended_workup,
			parse_method, processing_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id, round, agent_id) DO UPDATE SET
			role = EXCLUDED.role,
			differential = EXCLUDED.differential,
			overall_confidence = EXCLUDED.overall_confidence,
			concerns = EXCLUDED.concerns,
			recommended_workup = EXCLUDED.recommended_workup,
			parse_method = EXCLUDED.parse_method,
			processing_ms = EXCLUDED.processing_ms
	`

	createdAt := opinion.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.pool.Exec(ctx, query,
		sessionID, opinion.Round, opinion.AgentID, opinion.Role, differential,
		opinion.OverallConfidence, concerns, workup,
		string(opinion.ParseMethod), opinion.ProcessingTime.Milliseconds(), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert agent opinion: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"round":      opinion.Round,
		"agent_id":   opinion.AgentID,
	}).Debug("Agent opinion upserted")

	return nil
}

// GetBySession retrieves all opinions for a session ordered by round
// then agent.
func (r *OpinionRepository) GetBySession(ctx context.Context, sessionID string) ([]models.AgentOpinion, error) {
	query := `
		SELECT round, agent_id, role, differential, overall_confidence,
			   concerns, recommended_workup, parse_method, processing_ms, created_at
		FROM agent_opinions
		WHERE session_id = $1
		ORDER BY round, agent_id
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent opinions: %w", err)
	}
	defer rows.Close()

	var opinions []models.AgentOpinion
	for rows.Next() {
		var op models.AgentOpinion
		var differential, concerns, workup []byte
		var processingMs int64

		if err := rows.Scan(
			&op.Round, &op.AgentID, &op.Role, &differential, &op.OverallConfidence,
			&concerns, &workup, &op.ParseMethod, &processingMs, &op.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan agent opinion: %w", err)
		}

		if err := json.Unmarshal(differential, &op.Differential); err != nil {
			return nil, fmt.Errorf("failed to unmarshal differential: %w", err)
		}
		if len(concerns) > 0 {
			if err := json.Unmarshal(concerns, &op.Concerns); err != nil {
				return nil, fmt.Errorf("failed to unmarshal concerns: %w", err)
			}
		}
		if len(workup) > 0 {
			if err := json.Unmarshal(workup, &op.RecommendedWorkup); err != nil {
				return nil, fmt.Errorf("failed to unmarshal recommended workup: %w", err)
			}
		}
		op.ProcessingTime = time.Duration(processingMs) * time.Millisecond

		opinions = append(opinions, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agent opinions: %w", err)
	}

	return opinions, nil
}
