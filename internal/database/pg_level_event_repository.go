package database

import (
	"context"
	"fmt"

	"campaign-server/internal/interfaces"
	"campaign-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgLevelEventRepository implements LevelEventRepository
var _ interfaces.LevelEventRepository = (*pgLevelEventRepository)(nil)

type pgLevelEventRepository struct {
	logger *zap.Logger
}

// NewPgLevelEventRepository creates a new PostgreSQL-backed LevelEventRepository.
func NewPgLevelEventRepository(logger *zap.Logger) interfaces.LevelEventRepository {
	return &pgLevelEventRepository{
		logger: logger.Named("PgLevelEventRepo"),
	}
}

// Create appends one audit entry. The table has no UPDATE or DELETE path.
func (r *pgLevelEventRepository) Create(ctx context.Context, querier interfaces.DBTX, event *models.LevelEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `INSERT INTO level_events (id, character_id, from_level, to_level, tokens_granted)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	err := querier.QueryRow(ctx, query, event.ID, event.CharacterID, event.FromLevel, event.ToLevel, event.TokensGranted).Scan(&event.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create level event in postgres", zap.Error(err), zap.String("characterID", event.CharacterID.String()))
		return fmt.Errorf("failed to create level event in postgres: %w", err)
	}
	return nil
}

func (r *pgLevelEventRepository) ListByCharacter(ctx context.Context, querier interfaces.DBTX, characterID uuid.UUID, limit int) ([]*models.LevelEvent, error) {
	query := `SELECT id, character_id, from_level, to_level, tokens_granted, created_at
		FROM level_events WHERE character_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := querier.Query(ctx, query, characterID, limit)
	if err != nil {
		r.logger.Error("Failed to list level events from postgres", zap.Error(err), zap.String("characterID", characterID.String()))
		return nil, fmt.Errorf("failed to list level events from postgres: %w", err)
	}
	defer rows.Close()

	var events []*models.LevelEvent
	for rows.Next() {
		event := &models.LevelEvent{}
		if err := rows.Scan(&event.ID, &event.CharacterID, &event.FromLevel, &event.ToLevel, &event.TokensGranted, &event.CreatedAt); err != nil {
			r.logger.Error("Failed to scan level event row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan level event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate level event rows: %w", err)
	}
	return events, nil
}
