package database

import (
	"context"
	"errors"
	"fmt"

	"campaign-server/internal/interfaces"
	"campaign-server/internal/models"
	"campaign-server/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgCharacterRepository implements CharacterRepository
var _ interfaces.CharacterRepository = (*pgCharacterRepository)(nil)

const characterColumns = `id, owner_user_id, name, role, level,
	base_points_available, base_points_spent,
	combat_tokens_available, combat_tokens_spent,
	negative_base_stat_count,
	base_params, combat_params, active_turn_effects,
	created_at, updated_at`

type pgCharacterRepository struct {
	logger *zap.Logger
}

// NewPgCharacterRepository creates a new PostgreSQL-backed CharacterRepository.
// Every method takes the querier explicitly so it can run against the pool or
// inside a caller-owned transaction.
func NewPgCharacterRepository(logger *zap.Logger) interfaces.CharacterRepository {
	return &pgCharacterRepository{
		logger: logger.Named("PgCharacterRepo"),
	}
}

func (r *pgCharacterRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Character, error) {
	query := fmt.Sprintf(`SELECT %s FROM characters WHERE id = $1`, characterColumns)
	return r.scanCharacter(ctx, querier, query, id)
}

func (r *pgCharacterRepository) GetByIDForUpdate(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Character, error) {
	query := fmt.Sprintf(`SELECT %s FROM characters WHERE id = $1 FOR UPDATE`, characterColumns)
	return r.scanCharacter(ctx, querier, query, id)
}

func (r *pgCharacterRepository) scanCharacter(ctx context.Context, querier interfaces.DBTX, query string, id uuid.UUID) (*models.Character, error) {
	character := &models.Character{}
	var baseParamsJSON, combatParamsJSON, effectsJSON []byte

	err := querier.QueryRow(ctx, query, id).Scan(
		&character.ID, &character.OwnerUserID, &character.Name, &character.Role, &character.Level,
		&character.BasePointsAvailable, &character.BasePointsSpent,
		&character.CombatTokensAvailable, &character.CombatTokensSpent,
		&character.NegativeBaseStatCount,
		&baseParamsJSON, &combatParamsJSON, &effectsJSON,
		&character.CreatedAt, &character.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Character not found", zap.String("characterID", id.String()))
			return nil, models.ErrCharacterNotFound
		}
		r.logger.Error("Failed to get character from postgres", zap.Error(err), zap.String("characterID", id.String()))
		return nil, fmt.Errorf("failed to get character from postgres: %w", err)
	}

	if err := unmarshalCharacterJSON(character, baseParamsJSON, combatParamsJSON, effectsJSON); err != nil {
		r.logger.Error("Failed to unmarshal character JSONB fields", zap.Error(err), zap.String("characterID", id.String()))
		return nil, err
	}
	return character, nil
}

func (r *pgCharacterRepository) ListAllForUpdate(ctx context.Context, querier interfaces.DBTX) ([]*models.Character, error) {
	query := fmt.Sprintf(`SELECT %s FROM characters ORDER BY created_at FOR UPDATE`, characterColumns)
	rows, err := querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list characters from postgres", zap.Error(err))
		return nil, fmt.Errorf("failed to list characters from postgres: %w", err)
	}
	defer rows.Close()

	var characters []*models.Character
	for rows.Next() {
		character := &models.Character{}
		var baseParamsJSON, combatParamsJSON, effectsJSON []byte
		if err := rows.Scan(
			&character.ID, &character.OwnerUserID, &character.Name, &character.Role, &character.Level,
			&character.BasePointsAvailable, &character.BasePointsSpent,
			&character.CombatTokensAvailable, &character.CombatTokensSpent,
			&character.NegativeBaseStatCount,
			&baseParamsJSON, &combatParamsJSON, &effectsJSON,
			&character.CreatedAt, &character.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan character row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan character row: %w", err)
		}
		if err := unmarshalCharacterJSON(character, baseParamsJSON, combatParamsJSON, effectsJSON); err != nil {
			r.logger.Error("Failed to unmarshal character JSONB fields", zap.Error(err), zap.String("characterID", character.ID.String()))
			return nil, err
		}
		characters = append(characters, character)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate character rows: %w", err)
	}
	return characters, nil
}

func (r *pgCharacterRepository) Create(ctx context.Context, querier interfaces.DBTX, character *models.Character) error {
	baseParamsJSON, err := utils.MarshalJSONB(character.BaseParams)
	if err != nil {
		return fmt.Errorf("failed to marshal base params: %w", err)
	}
	combatParamsJSON, err := utils.MarshalJSONB(character.CombatParams)
	if err != nil {
		return fmt.Errorf("failed to marshal combat params: %w", err)
	}
	effectsJSON, err := utils.MarshalJSONB(character.ActiveTurnEffects)
	if err != nil {
		return fmt.Errorf("failed to marshal active turn effects: %w", err)
	}

	query := `INSERT INTO characters (
		id, owner_user_id, name, role, level,
		base_points_available, base_points_spent,
		combat_tokens_available, combat_tokens_spent,
		negative_base_stat_count,
		base_params, combat_params, active_turn_effects
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = querier.Exec(ctx, query,
		character.ID, character.OwnerUserID, character.Name, character.Role, character.Level,
		character.BasePointsAvailable, character.BasePointsSpent,
		character.CombatTokensAvailable, character.CombatTokensSpent,
		character.NegativeBaseStatCount,
		baseParamsJSON, combatParamsJSON, effectsJSON,
	)
	if err != nil {
		r.logger.Error("Failed to create character in postgres", zap.Error(err), zap.String("characterID", character.ID.String()))
		return fmt.Errorf("failed to create character in postgres: %w", err)
	}
	r.logger.Info("Character created", zap.String("characterID", character.ID.String()), zap.String("name", character.Name))
	return nil
}

// ApplyStatUpdate writes the stat's new base value and the counter deltas in
// one UPDATE, so either everything lands or nothing does.
func (r *pgCharacterRepository) ApplyStatUpdate(ctx context.Context, querier interfaces.DBTX, update models.StatUpdate) error {
	var query string
	var args []any

	switch update.Category {
	case models.StatCategoryBase:
		query = `UPDATE characters SET
			base_params = jsonb_set(base_params, ARRAY[$2::text, 'base'], to_jsonb($3::int)),
			base_points_available = base_points_available + $4,
			base_points_spent = base_points_spent + $5,
			negative_base_stat_count = $6,
			updated_at = now()
		WHERE id = $1`
		args = []any{update.CharacterID, update.StatName, update.NewBase, update.AvailableDelta, update.SpentDelta, *update.NewNegativeCount}
	case models.StatCategoryCombat:
		query = `UPDATE characters SET
			combat_params = jsonb_set(combat_params, ARRAY[$2::text, 'base'], to_jsonb($3::int)),
			combat_tokens_available = combat_tokens_available + $4,
			combat_tokens_spent = combat_tokens_spent + $5,
			updated_at = now()
		WHERE id = $1`
		args = []any{update.CharacterID, update.StatName, update.NewBase, update.AvailableDelta, update.SpentDelta}
	default:
		return fmt.Errorf("unknown stat category %q: %w", update.Category, models.ErrInvalidInput)
	}

	tag, err := querier.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to apply stat update", zap.Error(err),
			zap.String("characterID", update.CharacterID.String()),
			zap.String("stat", update.StatName),
			zap.String("category", string(update.Category)))
		return fmt.Errorf("failed to apply stat update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrCharacterNotFound
	}
	return nil
}

func (r *pgCharacterRepository) ApplyLevelUp(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, toLevel int, tokensGranted int) error {
	query := `UPDATE characters SET
		level = $2,
		combat_tokens_available = combat_tokens_available + $3,
		updated_at = now()
	WHERE id = $1`

	tag, err := querier.Exec(ctx, query, id, toLevel, tokensGranted)
	if err != nil {
		r.logger.Error("Failed to apply level up", zap.Error(err), zap.String("characterID", id.String()), zap.Int("toLevel", toLevel))
		return fmt.Errorf("failed to apply level up: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrCharacterNotFound
	}
	return nil
}

func (r *pgCharacterRepository) UpdateActiveEffects(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, effects map[string]models.ActiveTurnEffect) error {
	effectsJSON, err := utils.MarshalJSONB(effects)
	if err != nil {
		return fmt.Errorf("failed to marshal active turn effects: %w", err)
	}

	query := `UPDATE characters SET active_turn_effects = $2, updated_at = now() WHERE id = $1`
	tag, err := querier.Exec(ctx, query, id, effectsJSON)
	if err != nil {
		r.logger.Error("Failed to update active turn effects", zap.Error(err), zap.String("characterID", id.String()))
		return fmt.Errorf("failed to update active turn effects: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrCharacterNotFound
	}
	return nil
}

func unmarshalCharacterJSON(character *models.Character, baseParamsJSON, combatParamsJSON, effectsJSON []byte) error {
	character.BaseParams = make(map[string]models.StatBlock)
	character.CombatParams = make(map[string]models.StatBlock)
	character.ActiveTurnEffects = make(map[string]models.ActiveTurnEffect)

	if err := utils.UnmarshalJSONB(baseParamsJSON, &character.BaseParams); err != nil {
		return fmt.Errorf("failed to unmarshal base params: %w", err)
	}
	if err := utils.UnmarshalJSONB(combatParamsJSON, &character.CombatParams); err != nil {
		return fmt.Errorf("failed to unmarshal combat params: %w", err)
	}
	if err := utils.UnmarshalJSONB(effectsJSON, &character.ActiveTurnEffects); err != nil {
		return fmt.Errorf("failed to unmarshal active turn effects: %w", err)
	}
	return nil
}
