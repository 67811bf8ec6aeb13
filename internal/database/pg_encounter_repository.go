package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campaign-server/internal/interfaces"
	"campaign-server/internal/models"
	"campaign-server/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgEncounterRepository implements EncounterRepository
var _ interfaces.EncounterRepository = (*pgEncounterRepository)(nil)

type pgEncounterRepository struct {
	logger *zap.Logger
}

// NewPgEncounterRepository creates a new PostgreSQL-backed EncounterRepository.
func NewPgEncounterRepository(logger *zap.Logger) interfaces.EncounterRepository {
	return &pgEncounterRepository{
		logger: logger.Named("PgEncounterRepo"),
	}
}

func (r *pgEncounterRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Encounter, error) {
	query := `SELECT id, name, turn_order, turn_index, round, started_at, updated_at FROM encounters WHERE id = $1`
	return r.scanEncounter(ctx, querier, query, id)
}

func (r *pgEncounterRepository) GetByIDForUpdate(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Encounter, error) {
	query := `SELECT id, name, turn_order, turn_index, round, started_at, updated_at FROM encounters WHERE id = $1 FOR UPDATE`
	return r.scanEncounter(ctx, querier, query, id)
}

func (r *pgEncounterRepository) scanEncounter(ctx context.Context, querier interfaces.DBTX, query string, id uuid.UUID) (*models.Encounter, error) {
	encounter := &models.Encounter{}
	var orderJSON []byte

	err := querier.QueryRow(ctx, query, id).Scan(
		&encounter.ID, &encounter.Name, &orderJSON,
		&encounter.TurnIndex, &encounter.Round,
		&encounter.StartedAt, &encounter.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Encounter not found", zap.String("encounterID", id.String()))
			return nil, models.ErrEncounterNotFound
		}
		r.logger.Error("Failed to get encounter from postgres", zap.Error(err), zap.String("encounterID", id.String()))
		return nil, fmt.Errorf("failed to get encounter from postgres: %w", err)
	}

	encounter.TurnOrder = []uuid.UUID{}
	if err := utils.UnmarshalJSONB(orderJSON, &encounter.TurnOrder); err != nil {
		r.logger.Error("Failed to unmarshal turn order", zap.Error(err), zap.String("encounterID", id.String()))
		return nil, fmt.Errorf("failed to unmarshal turn order: %w", err)
	}
	return encounter, nil
}

func (r *pgEncounterRepository) ListParticipants(ctx context.Context, querier interfaces.DBTX, encounterID uuid.UUID) ([]*models.Participant, error) {
	// Insertion order is the tie-breaker when the turn order is rebuilt.
	query := `SELECT id, encounter_id, kind, character_id, display_name, initiative, created_at
		FROM participants WHERE encounter_id = $1 ORDER BY created_at`

	rows, err := querier.Query(ctx, query, encounterID)
	if err != nil {
		r.logger.Error("Failed to list participants from postgres", zap.Error(err), zap.String("encounterID", encounterID.String()))
		return nil, fmt.Errorf("failed to list participants from postgres: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.ID, &p.EncounterID, &p.Kind, &p.CharacterID, &p.DisplayName, &p.Initiative, &p.CreatedAt); err != nil {
			r.logger.Error("Failed to scan participant row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participant rows: %w", err)
	}
	return participants, nil
}

func (r *pgEncounterRepository) UpdateTurnState(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, order []uuid.UUID, index, round int, updatedAt time.Time) error {
	orderJSON, err := utils.MarshalJSONB(order)
	if err != nil {
		return fmt.Errorf("failed to marshal turn order: %w", err)
	}

	// started_at deliberately untouched: the encounter keeps its original start.
	query := `UPDATE encounters SET turn_order = $2, turn_index = $3, round = $4, updated_at = $5 WHERE id = $1`
	tag, err := querier.Exec(ctx, query, id, orderJSON, index, round, updatedAt)
	if err != nil {
		r.logger.Error("Failed to update turn state", zap.Error(err), zap.String("encounterID", id.String()))
		return fmt.Errorf("failed to update turn state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrEncounterNotFound
	}
	return nil
}
