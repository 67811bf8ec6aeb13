package database

import (
	"context"
	"fmt"

	"campaign-server/internal/interfaces"
	"campaign-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgGameLogRepository implements GameLogRepository
var _ interfaces.GameLogRepository = (*pgGameLogRepository)(nil)

type pgGameLogRepository struct {
	logger *zap.Logger
}

// NewPgGameLogRepository creates a new PostgreSQL-backed GameLogRepository.
func NewPgGameLogRepository(logger *zap.Logger) interfaces.GameLogRepository {
	return &pgGameLogRepository{
		logger: logger.Named("PgGameLogRepo"),
	}
}

func (r *pgGameLogRepository) Append(ctx context.Context, querier interfaces.DBTX, entry *models.GameLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	query := `INSERT INTO game_logs (id, encounter_id, message) VALUES ($1, $2, $3) RETURNING created_at`

	err := querier.QueryRow(ctx, query, entry.ID, entry.EncounterID, entry.Message).Scan(&entry.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append game log in postgres", zap.Error(err), zap.String("encounterID", entry.EncounterID.String()))
		return fmt.Errorf("failed to append game log in postgres: %w", err)
	}
	return nil
}

func (r *pgGameLogRepository) ListByEncounter(ctx context.Context, querier interfaces.DBTX, encounterID uuid.UUID, limit int) ([]*models.GameLog, error) {
	query := `SELECT id, encounter_id, message, created_at
		FROM game_logs WHERE encounter_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := querier.Query(ctx, query, encounterID, limit)
	if err != nil {
		r.logger.Error("Failed to list game logs from postgres", zap.Error(err), zap.String("encounterID", encounterID.String()))
		return nil, fmt.Errorf("failed to list game logs from postgres: %w", err)
	}
	defer rows.Close()

	var entries []*models.GameLog
	for rows.Next() {
		entry := &models.GameLog{}
		if err := rows.Scan(&entry.ID, &entry.EncounterID, &entry.Message, &entry.CreatedAt); err != nil {
			r.logger.Error("Failed to scan game log row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan game log row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate game log rows: %w", err)
	}
	return entries, nil
}
