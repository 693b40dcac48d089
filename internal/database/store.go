// Package database persists debate artifacts for audit: every specialist
// opinion per round and the final consensus result per session.
// Persistence is best-effort telemetry; the debate itself never depends
// on it.
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/grandrounds/grandrounds/internal/models"
)

// Store is the audit sink the orchestrator writes through.
type Store interface {
	SaveOpinion(ctx context.Context, sessionID string, opinion models.AgentOpinion) error
	SaveConsensus(ctx context.Context, result models.ConsensusResult) error
}

// PgStore implements Store on PostgreSQL.
type PgStore struct {
	opinions  *OpinionRepository
	consensus *ConsensusRepository
}

// NewPgStore creates the store with its repositories sharing one pool.
func NewPgStore(pool *pgxpool.Pool, log *logrus.Logger) *PgStore {
	return &PgStore{
		opinions:  NewOpinionRepository(pool, log),
		consensus: NewConsensusRepository(pool, log),
	}
}

// CreateTables creates both audit tables if they don't exist.
func (s *PgStore) CreateTables(ctx context.Context) error {
	if err := s.opinions.CreateTable(ctx); err != nil {
		return err
	}
	return s.consensus.CreateTable(ctx)
}

// SaveOpinion upserts one specialist opinion for a round.
func (s *PgStore) SaveOpinion(ctx context.Context, sessionID string, opinion models.AgentOpinion) error {
	return s.opinions.Upsert(ctx, sessionID, opinion)
}

// SaveConsensus upserts the session's final result.
func (s *PgStore) SaveConsensus(ctx context.Context, result models.ConsensusResult) error {
	return s.consensus.Upsert(ctx, result)
}
