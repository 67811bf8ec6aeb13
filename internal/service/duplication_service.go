package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campaign-server/internal/interfaces"
	"campaign-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DuplicationService defines the interface for idempotent character duplication.
type DuplicationService interface {
	// DuplicateCharacter creates a copy of the source character under a new
	// name and copies its stored assets. A repeated call with the same
	// idempotency key returns the previously stored result verbatim without
	// repeating the copy work.
	DuplicateCharacter(ctx context.Context, auth models.AuthContext, sourceID uuid.UUID, newName, idempotencyKey string) (models.DuplicateResult, error)
}

type duplicationServiceImpl struct {
	characterRepo   interfaces.CharacterRepository
	idempotencyRepo interfaces.IdempotencyRepository
	assetStore      interfaces.AssetStore
	txManager       TxManager
	logger          *zap.Logger
}

// NewDuplicationService creates a new instance of DuplicationService.
func NewDuplicationService(
	characterRepo interfaces.CharacterRepository,
	idempotencyRepo interfaces.IdempotencyRepository,
	assetStore interfaces.AssetStore,
	txManager TxManager,
	logger *zap.Logger,
) DuplicationService {
	return &duplicationServiceImpl{
		characterRepo:   characterRepo,
		idempotencyRepo: idempotencyRepo,
		assetStore:      assetStore,
		txManager:       txManager,
		logger:          logger.Named("DuplicationService"),
	}
}

// DuplicateCharacter копирует запись персонажа и его файлы-ассеты.
// Запись создаётся в транзакции; копирование файлов - видимый вызывающему
// блокирующий ввод-вывод вне транзакции. Ключ идемпотентности резервируется
// через SETNX до начала работы, чтобы два конкурентных запроса с одним ключом
// не выполнили копирование дважды.
func (s *duplicationServiceImpl) DuplicateCharacter(ctx context.Context, auth models.AuthContext, sourceID uuid.UUID, newName, idempotencyKey string) (models.DuplicateResult, error) {
	logFields := []zap.Field{
		zap.String("sourceID", sourceID.String()),
		zap.String("callerID", auth.UserID.String()),
		zap.String("newName", newName),
	}
	s.logger.Info("DuplicateCharacter called", logFields...)

	if !auth.IsDM() && !auth.IsWebmaster() {
		return models.DuplicateResult{}, models.ErrForbidden
	}
	if newName == "" {
		return models.DuplicateResult{}, fmt.Errorf("%w: newName is required", models.ErrInvalidInput)
	}

	// Повтор с тем же ключом возвращает сохранённый результат байт в байт,
	// не перекопируя файлы. Незавершённый ключ отклоняется, чтобы второй
	// запрос не начал работу параллельно с первым.
	reserved := false
	if idempotencyKey != "" {
		if stored, err := s.checkStoredResult(ctx, idempotencyKey, logFields); err == nil {
			return stored, nil
		} else if !errors.Is(err, interfaces.ErrNotFound) {
			return models.DuplicateResult{}, err
		}

		ok, err := s.idempotencyRepo.Reserve(ctx, idempotencyKey)
		if err != nil {
			s.logger.Error("Failed to reserve idempotency key",
				append(logFields, zap.String("idempotencyKey", idempotencyKey), zap.Error(err))...)
			return models.DuplicateResult{}, models.ErrInternalServer
		}
		if !ok {
			// Проиграли гонку за резервацию: либо конкурент уже записал
			// результат, либо он ещё работает.
			if stored, err := s.checkStoredResult(ctx, idempotencyKey, logFields); err == nil {
				return stored, nil
			} else if !errors.Is(err, interfaces.ErrNotFound) {
				return models.DuplicateResult{}, err
			}
			return models.DuplicateResult{}, models.ErrDuplicationInProgress
		}
		reserved = true
	}

	newID := uuid.New()
	err := s.txManager.WithinTx(ctx, func(tx pgx.Tx) error {
		source, err := s.characterRepo.GetByID(ctx, tx, sourceID)
		if err != nil {
			return err
		}

		clone := *source
		clone.ID = newID
		clone.Name = newName
		clone.CreatedAt = time.Time{}
		clone.UpdatedAt = time.Time{}
		return s.characterRepo.Create(ctx, tx, &clone)
	})
	if err != nil {
		s.logger.Warn("DuplicateCharacter failed", append(logFields, zap.Error(err))...)
		s.releaseReservation(ctx, reserved, idempotencyKey, logFields)
		return models.DuplicateResult{}, err
	}

	assets, err := s.assetStore.CopyAll(ctx, sourceID, newID)
	if err != nil {
		s.logger.Error("Character record copied but asset copy failed",
			append(logFields, zap.String("newID", newID.String()), zap.Error(err))...)
		s.releaseReservation(ctx, reserved, idempotencyKey, logFields)
		return models.DuplicateResult{}, models.ErrInternalServer
	}

	result := models.DuplicateResult{NewID: newID, Name: newName, Assets: assets}

	if idempotencyKey != "" {
		payload, err := json.Marshal(result)
		if err != nil {
			s.logger.Error("Failed to marshal duplication result", append(logFields, zap.Error(err))...)
			s.releaseReservation(ctx, reserved, idempotencyKey, logFields)
		} else if err := s.idempotencyRepo.Put(ctx, idempotencyKey, payload); err != nil {
			// Результат уже получен; снимаем резервацию, чтобы повтор
			// выполнил копирование заново, а не упёрся в висящий ключ.
			s.logger.Error("Failed to store idempotency record",
				append(logFields, zap.String("idempotencyKey", idempotencyKey), zap.Error(err))...)
			s.releaseReservation(ctx, reserved, idempotencyKey, logFields)
		}
	}

	s.logger.Info("Character duplicated",
		append(logFields, zap.String("newID", newID.String()), zap.Int("assetCount", len(assets)))...)
	return result, nil
}

// checkStoredResult читает ключ идемпотентности. Возвращает сохранённый
// результат, interfaces.ErrNotFound если ключ свободен, или ошибку уровня
// модели для остальных случаев.
func (s *duplicationServiceImpl) checkStoredResult(ctx context.Context, idempotencyKey string, logFields []zap.Field) (models.DuplicateResult, error) {
	payload, err := s.idempotencyRepo.Get(ctx, idempotencyKey)
	switch {
	case err == nil:
		var stored models.DuplicateResult
		if err := json.Unmarshal(payload, &stored); err != nil {
			s.logger.Error("Corrupted idempotency payload",
				append(logFields, zap.String("idempotencyKey", idempotencyKey), zap.Error(err))...)
			return models.DuplicateResult{}, models.ErrInternalServer
		}
		s.logger.Info("Returning stored duplication result for repeated key",
			append(logFields, zap.String("idempotencyKey", idempotencyKey))...)
		return stored, nil
	case errors.Is(err, interfaces.ErrNotFound):
		return models.DuplicateResult{}, interfaces.ErrNotFound
	case errors.Is(err, interfaces.ErrPending):
		s.logger.Info("Duplication with this key is still in flight",
			append(logFields, zap.String("idempotencyKey", idempotencyKey))...)
		return models.DuplicateResult{}, models.ErrDuplicationInProgress
	default:
		s.logger.Error("Failed to check idempotency key",
			append(logFields, zap.String("idempotencyKey", idempotencyKey), zap.Error(err))...)
		return models.DuplicateResult{}, models.ErrInternalServer
	}
}

func (s *duplicationServiceImpl) releaseReservation(ctx context.Context, reserved bool, idempotencyKey string, logFields []zap.Field) {
	if !reserved {
		return
	}
	if err := s.idempotencyRepo.Release(ctx, idempotencyKey); err != nil {
		s.logger.Error("Failed to release idempotency reservation",
			append(logFields, zap.String("idempotencyKey", idempotencyKey), zap.Error(err))...)
	}
}
