package service

import (
	"context"
	"errors"

	"campaign-server/internal/interfaces"
	"campaign-server/internal/messaging"
	"campaign-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// LevelingService defines the interface for raising character levels.
type LevelingService interface {
	// LevelUpOne raises a single character's level by exactly one tier and
	// grants the scheduled token bonus. A character at max level yields a
	// skipped result, not an error.
	LevelUpOne(ctx context.Context, auth models.AuthContext, characterID uuid.UUID) (models.LevelUpResult, error)

	// LevelUpAll applies the same transition to every eligible character in
	// one batch transaction, reporting skips per record.
	LevelUpAll(ctx context.Context, auth models.AuthContext) ([]models.LevelUpResult, error)

	// ListLevelEvents returns the character's audit trail, newest first.
	ListLevelEvents(ctx context.Context, auth models.AuthContext, characterID uuid.UUID, limit int) ([]*models.LevelEvent, error)
}

type levelingServiceImpl struct {
	characterRepo  interfaces.CharacterRepository
	levelEventRepo interfaces.LevelEventRepository
	txManager      TxManager
	db             interfaces.DBTX
	publisher      messaging.StatRecomputePublisher
	logger         *zap.Logger
}

// NewLevelingService creates a new instance of LevelingService.
func NewLevelingService(
	characterRepo interfaces.CharacterRepository,
	levelEventRepo interfaces.LevelEventRepository,
	txManager TxManager,
	db interfaces.DBTX,
	publisher messaging.StatRecomputePublisher,
	logger *zap.Logger,
) LevelingService {
	return &levelingServiceImpl{
		characterRepo:  characterRepo,
		levelEventRepo: levelEventRepo,
		txManager:      txManager,
		db:             db,
		publisher:      publisher,
		logger:         logger.Named("LevelingService"),
	}
}

// LevelUpOne повышает уровень одного персонажа ровно на единицу.
// Между предварительным чтением и транзакцией уровень может поменять
// конкурентный вызов, поэтому внутри транзакции стоит оптимистичная проверка:
// несовпадение наблюдавшегося уровня даёт ErrLevelConflict, вызывающий может
// повторить запрос целиком.
func (s *levelingServiceImpl) LevelUpOne(ctx context.Context, auth models.AuthContext, characterID uuid.UUID) (models.LevelUpResult, error) {
	logFields := []zap.Field{
		zap.String("characterID", characterID.String()),
		zap.String("callerID", auth.UserID.String()),
	}
	s.logger.Info("LevelUpOne called", logFields...)

	if !auth.IsDM() {
		return models.LevelUpResult{}, models.ErrForbidden
	}

	character, err := s.characterRepo.GetByID(ctx, s.db, characterID)
	if err != nil {
		return models.LevelUpResult{}, err
	}
	if character.Role == models.CharacterRoleDM {
		return models.LevelUpResult{}, models.ErrDMNotLevelable
	}
	if character.Level >= models.MaxLevel {
		s.logger.Info("Character already at max level, skipping", logFields...)
		return models.LevelUpResult{
			CharacterID:   characterID,
			FromLevel:     character.Level,
			SkippedReason: models.SkipReasonMaxLevel,
		}, nil
	}

	observedLevel := character.Level
	toLevel := observedLevel + 1
	tokens := models.TokenGrantForLevel(toLevel)

	err = s.txManager.WithinTx(ctx, func(tx pgx.Tx) error {
		current, err := s.characterRepo.GetByIDForUpdate(ctx, tx, characterID)
		if err != nil {
			return err
		}
		if current.Level != observedLevel {
			s.logger.Warn("Level changed concurrently, aborting",
				append(logFields, zap.Int("observed", observedLevel), zap.Int("current", current.Level))...)
			return models.ErrLevelConflict
		}
		if err := s.characterRepo.ApplyLevelUp(ctx, tx, characterID, toLevel, tokens); err != nil {
			return err
		}
		return s.levelEventRepo.Create(ctx, tx, &models.LevelEvent{
			CharacterID:   characterID,
			FromLevel:     observedLevel,
			ToLevel:       toLevel,
			TokensGranted: tokens,
		})
	})
	if err != nil {
		s.logger.Warn("LevelUpOne failed", append(logFields, zap.Error(err))...)
		return models.LevelUpResult{}, err
	}

	s.publishRecompute(ctx, characterID, "level_up")

	s.logger.Info("Character leveled up",
		append(logFields, zap.Int("toLevel", toLevel), zap.Int("tokensGranted", tokens))...)
	return models.LevelUpResult{
		CharacterID:   characterID,
		FromLevel:     observedLevel,
		ToLevel:       toLevel,
		TokensGranted: tokens,
	}, nil
}

// LevelUpAll повышает уровень всех пригодных персонажей одним батчем.
// В отличие от одиночного пути здесь нет оптимистичной проверки уровня:
// блокировки строк сериализуют конкурентные записи, но операция рассчитана
// на запуск между сессиями, когда трат в полёте нет.
func (s *levelingServiceImpl) LevelUpAll(ctx context.Context, auth models.AuthContext) ([]models.LevelUpResult, error) {
	s.logger.Info("LevelUpAll called", zap.String("callerID", auth.UserID.String()))

	if !auth.IsDM() {
		return nil, models.ErrForbidden
	}

	var results []models.LevelUpResult
	var leveledIDs []uuid.UUID

	err := s.txManager.WithinTx(ctx, func(tx pgx.Tx) error {
		characters, err := s.characterRepo.ListAllForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		for _, character := range characters {
			if character.Role == models.CharacterRoleDM {
				results = append(results, models.LevelUpResult{
					CharacterID:   character.ID,
					FromLevel:     character.Level,
					SkippedReason: models.SkipReasonDMAccount,
				})
				continue
			}
			if character.Level >= models.MaxLevel {
				results = append(results, models.LevelUpResult{
					CharacterID:   character.ID,
					FromLevel:     character.Level,
					SkippedReason: models.SkipReasonMaxLevel,
				})
				continue
			}

			toLevel := character.Level + 1
			tokens := models.TokenGrantForLevel(toLevel)
			if err := s.characterRepo.ApplyLevelUp(ctx, tx, character.ID, toLevel, tokens); err != nil {
				return err
			}
			if err := s.levelEventRepo.Create(ctx, tx, &models.LevelEvent{
				CharacterID:   character.ID,
				FromLevel:     character.Level,
				ToLevel:       toLevel,
				TokensGranted: tokens,
			}); err != nil {
				return err
			}
			results = append(results, models.LevelUpResult{
				CharacterID:   character.ID,
				FromLevel:     character.Level,
				ToLevel:       toLevel,
				TokensGranted: tokens,
			})
			leveledIDs = append(leveledIDs, character.ID)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("LevelUpAll failed, batch rolled back", zap.Error(err))
		return nil, err
	}

	for _, id := range leveledIDs {
		s.publishRecompute(ctx, id, "level_up_all")
	}

	s.logger.Info("LevelUpAll finished",
		zap.Int("total", len(results)), zap.Int("leveled", len(leveledIDs)))
	return results, nil
}

// ListLevelEvents возвращает журнал повышений персонажа (только чтение).
func (s *levelingServiceImpl) ListLevelEvents(ctx context.Context, auth models.AuthContext, characterID uuid.UUID, limit int) ([]*models.LevelEvent, error) {
	character, err := s.characterRepo.GetByID(ctx, s.db, characterID)
	if err != nil {
		return nil, err
	}
	if !auth.IsDM() && character.OwnerUserID != auth.UserID {
		return nil, models.ErrForbidden
	}

	SanitizeLimit(&limit, 20, 100)

	events, err := s.levelEventRepo.ListByCharacter(ctx, s.db, characterID, limit)
	if err != nil {
		s.logger.Error("Failed to list level events",
			zap.String("characterID", characterID.String()), zap.Error(err))
		return nil, models.ErrInternalServer
	}
	return events, nil
}

// publishRecompute отправляет внешнему пересчётчику триггер обновления
// производных значений. Ошибка публикации логируется и глотается.
func (s *levelingServiceImpl) publishRecompute(ctx context.Context, characterID uuid.UUID, reason string) {
	if s.publisher == nil {
		return
	}
	payload := messaging.StatRecomputePayload{CharacterID: characterID, Reason: reason}
	if err := s.publisher.PublishStatRecompute(ctx, payload); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Failed to publish stat recompute trigger",
			zap.String("characterID", characterID.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}
