package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"campaign-server/internal/interfaces"
	"campaign-server/internal/messaging"
	"campaign-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TurnService defines the interface for the encounter turn-order state machine.
type TurnService interface {
	// AdvanceTurn moves the encounter to the next participant's turn,
	// decaying the outgoing player's timed effects and rebuilding the order
	// at round boundaries. Advancing an encounter whose turn state was never
	// initialized is a silent no-op.
	AdvanceTurn(ctx context.Context, auth models.AuthContext, encounterID uuid.UUID) (models.AdvanceTurnResult, error)

	// GetTurnState returns the encounter's current turn state together with
	// its most recent log entries.
	GetTurnState(ctx context.Context, auth models.AuthContext, encounterID uuid.UUID, logLimit int) (*models.Encounter, []*models.GameLog, error)
}

type turnServiceImpl struct {
	encounterRepo interfaces.EncounterRepository
	characterRepo interfaces.CharacterRepository
	gameLogRepo   interfaces.GameLogRepository
	txManager     TxManager
	db            interfaces.DBTX
	publisher     messaging.ClientUpdatePublisher
	logger        *zap.Logger
}

// NewTurnService creates a new instance of TurnService.
func NewTurnService(
	encounterRepo interfaces.EncounterRepository,
	characterRepo interfaces.CharacterRepository,
	gameLogRepo interfaces.GameLogRepository,
	txManager TxManager,
	db interfaces.DBTX,
	publisher messaging.ClientUpdatePublisher,
	logger *zap.Logger,
) TurnService {
	return &turnServiceImpl{
		encounterRepo: encounterRepo,
		characterRepo: characterRepo,
		gameLogRepo:   gameLogRepo,
		txManager:     txManager,
		db:            db,
		publisher:     publisher,
		logger:        logger.Named("TurnService"),
	}
}

// NoopReason values for a silent non-advance.
const (
	noopReasonNoTurnState = "turn state not initialized"
)

// AdvanceTurn продвигает активный ход боя. Тройка (order, index, round)
// меняется только здесь, под блокировкой строки энкаунтера; затухание
// эффектов уходящего участника и записи в журнал - best-effort и не
// откатывают уже закоммиченное продвижение.
func (s *turnServiceImpl) AdvanceTurn(ctx context.Context, auth models.AuthContext, encounterID uuid.UUID) (models.AdvanceTurnResult, error) {
	logFields := []zap.Field{
		zap.String("encounterID", encounterID.String()),
		zap.String("callerID", auth.UserID.String()),
	}
	s.logger.Info("AdvanceTurn called", logFields...)

	if !auth.IsDM() {
		return models.AdvanceTurnResult{}, models.ErrForbidden
	}

	var result models.AdvanceTurnResult
	var outgoingCharacterID *uuid.UUID
	var rebuiltOrderLabels []string

	err := s.txManager.WithinTx(ctx, func(tx pgx.Tx) error {
		encounter, err := s.encounterRepo.GetByIDForUpdate(ctx, tx, encounterID)
		if err != nil {
			return err
		}

		// Порядок ходов инициализирует внешний коллаборатор; до этого
		// продвижение - тихий no-op, а не ошибка.
		if !encounter.HasTurnState() {
			s.logger.Info("Encounter has no turn state yet, nothing to advance", logFields...)
			result = models.AdvanceTurnResult{Advanced: false, NoopReason: noopReasonNoTurnState}
			return nil
		}

		participants, err := s.encounterRepo.ListParticipants(ctx, tx, encounterID)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*models.Participant, len(participants))
		for _, p := range participants {
			byID[p.ID] = p
		}

		// Выкидываем из порядка ключи участников, которых больше нет.
		cleanOrder := make([]uuid.UUID, 0, len(encounter.TurnOrder))
		for _, key := range encounter.TurnOrder {
			if _, ok := byID[key]; ok {
				cleanOrder = append(cleanOrder, key)
			}
		}
		if len(cleanOrder) == 0 {
			return fmt.Errorf("%w: turn order is empty after removing stale participants", models.ErrInternalServer)
		}

		index := encounter.TurnIndex
		if index >= len(cleanOrder) {
			// Чистка сместила индекс за край - прижимаем к последнему живому.
			index = len(cleanOrder) - 1
		}

		if outgoing := byID[cleanOrder[index]]; outgoing.Kind == models.ParticipantPlayer && outgoing.CharacterID != nil {
			outgoingCharacterID = outgoing.CharacterID
		}

		newOrder := cleanOrder
		newIndex := index + 1
		newRound := encounter.Round

		if newIndex == len(cleanOrder) {
			// Круг пройден: новый раунд, порядок собирается заново из
			// текущих значений инициативы. Участники, вошедшие посреди
			// раунда, попадают в порядок начиная со следующего.
			newRound++
			newIndex = 0
			newOrder = rebuildOrder(participants)
			if len(newOrder) == 0 {
				return fmt.Errorf("%w: no participants with initiative to rebuild the order", models.ErrInternalServer)
			}
			for _, key := range newOrder {
				rebuiltOrderLabels = append(rebuiltOrderLabels, byID[key].DisplayName)
			}
		}

		if err := s.encounterRepo.UpdateTurnState(ctx, tx, encounterID, newOrder, newIndex, newRound, time.Now().UTC()); err != nil {
			return err
		}

		active := byID[newOrder[newIndex]]
		activeID := active.ID
		result = models.AdvanceTurnResult{
			Advanced:          true,
			Round:             newRound,
			TurnIndex:         newIndex,
			NewRound:          newRound > encounter.Round,
			ActiveParticipant: &activeID,
			ActiveLabel:       active.DisplayName,
		}
		return nil
	})
	if err != nil {
		s.logger.Error("AdvanceTurn failed, no state change", append(logFields, zap.Error(err))...)
		return models.AdvanceTurnResult{}, err
	}
	if !result.Advanced {
		return result, nil
	}

	// Затухание эффектов уходящего игрока идёт вне транзакции: его сбой
	// логируется и не блокирует продвижение хода.
	if outgoingCharacterID != nil {
		s.decayActiveEffects(ctx, *outgoingCharacterID)
	}

	// Журнал боя пишется после коммита; его сбой сообщается вызывающему,
	// но продвижение уже зафиксировано и не откатывается.
	if logErr := s.appendTurnLogs(ctx, encounterID, result, rebuiltOrderLabels); logErr != nil {
		s.logger.Error("Turn advanced but log append failed", append(logFields, zap.Error(logErr))...)
		return result, models.ErrTurnLogFailed
	}

	if s.publisher != nil {
		payload := messaging.ClientTurnUpdatePayload{
			EncounterID:       encounterID,
			Round:             result.Round,
			TurnIndex:         result.TurnIndex,
			NewRound:          result.NewRound,
			ActiveParticipant: result.ActiveParticipant,
			ActiveLabel:       result.ActiveLabel,
		}
		if pubErr := s.publisher.PublishTurnUpdate(ctx, payload); pubErr != nil {
			s.logger.Error("Failed to publish turn update", append(logFields, zap.Error(pubErr))...)
		}
	}

	s.logger.Info("Turn advanced",
		append(logFields,
			zap.Int("round", result.Round),
			zap.Int("turnIndex", result.TurnIndex),
			zap.Bool("newRound", result.NewRound),
			zap.String("activeLabel", result.ActiveLabel),
		)...)
	return result, nil
}

// rebuildOrder собирает порядок ходов заново: все участники с брошенной
// инициативой по её убыванию. Сортировка стабильная, поэтому при равной
// инициативе сохраняется порядок добавления за стол.
func rebuildOrder(participants []*models.Participant) []uuid.UUID {
	withInitiative := make([]*models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.Initiative != nil {
			withInitiative = append(withInitiative, p)
		}
	}
	sort.SliceStable(withInitiative, func(i, j int) bool {
		return *withInitiative[i].Initiative > *withInitiative[j].Initiative
	})
	order := make([]uuid.UUID, len(withInitiative))
	for i, p := range withInitiative {
		order[i] = p.ID
	}
	return order
}

// decayActiveEffects уменьшает remainingTurns всех активных эффектов
// персонажа на единицу, не опуская ниже нуля. Запись идёт только если
// хотя бы одно значение изменилось. Любой сбой логируется и глотается.
func (s *turnServiceImpl) decayActiveEffects(ctx context.Context, characterID uuid.UUID) {
	log := s.logger.With(zap.String("characterID", characterID.String()))

	character, err := s.characterRepo.GetByID(ctx, s.db, characterID)
	if err != nil {
		log.Warn("Failed to load character for effect decay", zap.Error(err))
		return
	}
	if len(character.ActiveTurnEffects) == 0 {
		return
	}

	changed := false
	decayed := make(map[string]models.ActiveTurnEffect, len(character.ActiveTurnEffects))
	for name, effect := range character.ActiveTurnEffects {
		if effect.RemainingTurns > 0 {
			effect.RemainingTurns--
			changed = true
		}
		decayed[name] = effect
	}
	if !changed {
		return
	}

	if err := s.characterRepo.UpdateActiveEffects(ctx, s.db, characterID, decayed); err != nil {
		log.Warn("Failed to write decayed effects", zap.Error(err))
		return
	}
	log.Debug("Active effects decayed", zap.Int("count", len(decayed)))
}

// appendTurnLogs добавляет одну-две записи журнала: о новом раунде (если
// порядок пересобирался) и о начале хода нового активного участника.
func (s *turnServiceImpl) appendTurnLogs(ctx context.Context, encounterID uuid.UUID, result models.AdvanceTurnResult, orderLabels []string) error {
	if result.NewRound {
		entry := &models.GameLog{
			EncounterID: encounterID,
			Message:     fmt.Sprintf("Раунд %d начался, порядок: %s", result.Round, strings.Join(orderLabels, ", ")),
		}
		if err := s.gameLogRepo.Append(ctx, s.db, entry); err != nil {
			return err
		}
	}
	entry := &models.GameLog{
		EncounterID: encounterID,
		Message:     fmt.Sprintf("Ход переходит к: %s", result.ActiveLabel),
	}
	return s.gameLogRepo.Append(ctx, s.db, entry)
}

// GetTurnState возвращает текущее состояние хода и свежие записи журнала.
func (s *turnServiceImpl) GetTurnState(ctx context.Context, auth models.AuthContext, encounterID uuid.UUID, logLimit int) (*models.Encounter, []*models.GameLog, error) {
	encounter, err := s.encounterRepo.GetByID(ctx, s.db, encounterID)
	if err != nil {
		return nil, nil, err
	}

	SanitizeLimit(&logLimit, 20, 100)

	logs, err := s.gameLogRepo.ListByEncounter(ctx, s.db, encounterID, logLimit)
	if err != nil {
		s.logger.Error("Failed to list game logs",
			zap.String("encounterID", encounterID.String()), zap.Error(err))
		return nil, nil, models.ErrInternalServer
	}
	return encounter, logs, nil
}
