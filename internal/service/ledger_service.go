package service

import (
	"context"
	"errors"
	"fmt"

	"campaign-server/internal/interfaces"
	"campaign-server/internal/messaging"
	"campaign-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// LedgerService defines the interface for stat-point and token spending.
type LedgerService interface {
	// SpendStatPoint applies a single ±1 change to one stat's base value,
	// adjusting the available/spent counters in the same transaction.
	SpendStatPoint(ctx context.Context, auth models.AuthContext, characterID uuid.UUID, statName string, category models.StatCategory, change int) error

	// GetCharacter returns the character record for the owner or a DM.
	GetCharacter(ctx context.Context, auth models.AuthContext, characterID uuid.UUID) (*models.Character, error)
}

type ledgerServiceImpl struct {
	characterRepo interfaces.CharacterRepository
	txManager     TxManager
	db            interfaces.DBTX
	costTable     map[string]int
	publisher     messaging.StatRecomputePublisher
	logger        *zap.Logger
}

// NewLedgerService creates a new instance of LedgerService. costTable maps
// combat stat names to their token cost per point; it comes from config, the
// service never mutates it.
func NewLedgerService(
	characterRepo interfaces.CharacterRepository,
	txManager TxManager,
	db interfaces.DBTX,
	costTable map[string]int,
	publisher messaging.StatRecomputePublisher,
	logger *zap.Logger,
) LedgerService {
	return &ledgerServiceImpl{
		characterRepo: characterRepo,
		txManager:     txManager,
		db:            db,
		costTable:     costTable,
		publisher:     publisher,
		logger:        logger.Named("LedgerService"),
	}
}

// Пол значений: базовые характеристики не опускаются ниже -1,
// боевые не опускаются ниже 0. Не более четырёх базовых характеристик
// могут одновременно стоять на -1.
const (
	baseStatFloor        = -1
	combatStatFloor      = 0
	maxNegativeBaseStats = 4
)

// SpendStatPoint применяет изменение ±1 к одной характеристике внутри одной
// транзакции: перечитывает запись под блокировкой строки, валидирует полы и
// лимиты, и пишет новое значение вместе с дельтами счётчиков одним UPDATE.
func (s *ledgerServiceImpl) SpendStatPoint(ctx context.Context, auth models.AuthContext, characterID uuid.UUID, statName string, category models.StatCategory, change int) error {
	logFields := []zap.Field{
		zap.String("characterID", characterID.String()),
		zap.String("statName", statName),
		zap.String("category", string(category)),
		zap.Int("change", change),
	}
	s.logger.Info("SpendStatPoint called", logFields...)

	// Вся валидация формы запроса - до начала транзакции.
	if statName == "" {
		return fmt.Errorf("%w: statName is required", models.ErrInvalidInput)
	}
	if !category.Valid() {
		return fmt.Errorf("%w: unknown stat category %q", models.ErrInvalidInput, category)
	}
	if change != 1 && change != -1 {
		return fmt.Errorf("%w: change must be +1 or -1, got %d", models.ErrInvalidInput, change)
	}
	var cost int
	if category == models.StatCategoryCombat {
		var ok bool
		cost, ok = s.costTable[statName]
		if !ok {
			s.logger.Warn("Combat stat missing from cost table", logFields...)
			return fmt.Errorf("%w: %s", models.ErrUnknownCombatStat, statName)
		}
	}

	err := s.txManager.WithinTx(ctx, func(tx pgx.Tx) error {
		character, err := s.characterRepo.GetByIDForUpdate(ctx, tx, characterID)
		if err != nil {
			return err
		}

		// Тратить очки может владелец записи или ДМ.
		if !auth.IsDM() && character.OwnerUserID != auth.UserID {
			return models.ErrForbidden
		}

		update := models.StatUpdate{
			CharacterID: characterID,
			Category:    category,
			StatName:    statName,
		}

		switch category {
		case models.StatCategoryBase:
			stat, ok := character.BaseParams[statName]
			if !ok {
				return fmt.Errorf("%w: %s", models.ErrUnknownStat, statName)
			}
			newBase := stat.Base + change
			if newBase < baseStatFloor {
				return fmt.Errorf("%w: %s would reach %d", models.ErrStatFloorViolated, statName, newBase)
			}

			negCount := character.NegativeBaseStatCount
			newNegCount := negCount
			if stat.Base == 0 && change == -1 {
				newNegCount++
			}
			if stat.Base == -1 && change == 1 {
				newNegCount--
			}
			if newNegCount > maxNegativeBaseStats {
				return models.ErrNegativeStatCapHit
			}

			// Шаг между неотрицательными значениями стоит ровно 1 очко.
			// Пересечение границы 0↔-1 дополнительно меняет число "кредитов":
			// каждая пара характеристик на -1 даёт один бонусный балл
			// (floor(negCount/2)), и дельта этого деления складывается с
			// обычной стоимостью шага в одной записи.
			creditDelta := newNegCount/2 - negCount/2
			availableDelta := -change + creditDelta
			spentDelta := change

			if character.BasePointsAvailable+availableDelta < 0 {
				return models.ErrInsufficientPoints
			}
			if character.BasePointsSpent+spentDelta < 0 {
				return models.ErrSpentBelowZero
			}

			update.NewBase = newBase
			update.AvailableDelta = availableDelta
			update.SpentDelta = spentDelta
			update.NewNegativeCount = &newNegCount

		case models.StatCategoryCombat:
			stat, ok := character.CombatParams[statName]
			if !ok {
				return fmt.Errorf("%w: %s", models.ErrUnknownStat, statName)
			}
			newBase := stat.Base + change
			if newBase < combatStatFloor {
				return fmt.Errorf("%w: %s would reach %d", models.ErrStatFloorViolated, statName, newBase)
			}

			// Цена шага берётся из таблицы стоимости; возврат отдаёт ту же сумму.
			availableDelta := -change * cost
			spentDelta := change * cost

			if change == 1 && character.CombatTokensAvailable < cost {
				return models.ErrInsufficientTokens
			}
			if character.CombatTokensSpent+spentDelta < 0 {
				return models.ErrSpentBelowZero
			}

			update.NewBase = newBase
			update.AvailableDelta = availableDelta
			update.SpentDelta = spentDelta
		}

		return s.characterRepo.ApplyStatUpdate(ctx, tx, update)
	})
	if err != nil {
		s.logger.Warn("SpendStatPoint failed", append(logFields, zap.Error(err))...)
		return err
	}

	// Триггер пересчёта производных значений (tot) - внешний коллаборатор.
	// Ошибка публикации не откатывает уже закоммиченную запись.
	if s.publisher != nil {
		payload := messaging.StatRecomputePayload{CharacterID: characterID, Reason: "stat_spend"}
		if pubErr := s.publisher.PublishStatRecompute(ctx, payload); pubErr != nil {
			s.logger.Error("Failed to publish stat recompute trigger", append(logFields, zap.Error(pubErr))...)
		}
	}

	s.logger.Info("Stat point applied", logFields...)
	return nil
}

// GetCharacter возвращает запись персонажа владельцу или ДМу.
func (s *ledgerServiceImpl) GetCharacter(ctx context.Context, auth models.AuthContext, characterID uuid.UUID) (*models.Character, error) {
	character, err := s.characterRepo.GetByID(ctx, s.db, characterID)
	if err != nil {
		if errors.Is(err, models.ErrCharacterNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to get character", zap.String("characterID", characterID.String()), zap.Error(err))
		return nil, models.ErrInternalServer
	}
	if !auth.IsDM() && character.OwnerUserID != auth.UserID {
		return nil, models.ErrForbidden
	}
	return character, nil
}
