package service_test

import (
	"context"
	"errors"
	"testing"

	"campaign-server/internal/interfaces/mocks"
	messagingMocks "campaign-server/internal/messaging/mocks"
	"campaign-server/internal/models"
	"campaign-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

var testCostTable = map[string]int{
	"attack":  3,
	"defense": 2,
}

func newLedgerService(charRepo *mocks.CharacterRepository, publisher *messagingMocks.MockStatRecomputePublisher) service.LedgerService {
	return service.NewLedgerService(charRepo, fakeTxManager{}, nil, testCostTable, publisher, zap.NewNop())
}

func baseCharacter(ownerID uuid.UUID) *models.Character {
	return &models.Character{
		ID:                    uuid.New(),
		OwnerUserID:           ownerID,
		Name:                  "Тестовый герой",
		Role:                  models.CharacterRolePlayer,
		Level:                 3,
		BasePointsAvailable:   5,
		BasePointsSpent:       3,
		CombatTokensAvailable: 4,
		CombatTokensSpent:     2,
		BaseParams: map[string]models.StatBlock{
			"strength": {Base: 1},
			"wisdom":   {Base: 0},
		},
		CombatParams: map[string]models.StatBlock{
			"attack":  {Base: 2},
			"defense": {Base: 0},
		},
	}
}

func TestSpendStatPoint_Validation(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("Rejects empty stat name", func(t *testing.T) {
		svc := newLedgerService(new(mocks.CharacterRepository), nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), uuid.New(), "", models.StatCategoryBase, 1)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Rejects unknown category", func(t *testing.T) {
		svc := newLedgerService(new(mocks.CharacterRepository), nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), uuid.New(), "strength", models.StatCategory("magic"), 1)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Rejects multi-step change", func(t *testing.T) {
		svc := newLedgerService(new(mocks.CharacterRepository), nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), uuid.New(), "strength", models.StatCategoryBase, 2)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Rejects combat stat missing from cost table", func(t *testing.T) {
		svc := newLedgerService(new(mocks.CharacterRepository), nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), uuid.New(), "stealth", models.StatCategoryCombat, 1)
		assert.ErrorIs(t, err, models.ErrUnknownCombatStat)
	})

	t.Run("Forbids a stranger without the DM role", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		character := baseCharacter(ownerID)
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()

		svc := newLedgerService(charRepo, nil)
		err := svc.SpendStatPoint(ctx, playerAuth(uuid.New()), character.ID, "strength", models.StatCategoryBase, 1)
		assert.ErrorIs(t, err, models.ErrForbidden)
		charRepo.AssertExpectations(t)
	})

	t.Run("Returns character not found", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		missingID := uuid.New()
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, missingID).Return(nil, models.ErrCharacterNotFound).Once()

		svc := newLedgerService(charRepo, nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), missingID, "strength", models.StatCategoryBase, 1)
		assert.ErrorIs(t, err, models.ErrCharacterNotFound)
	})
}

func TestSpendStatPoint_Base(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("Spend one point on a base stat", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		publisher := new(messagingMocks.MockStatRecomputePublisher)
		character := baseCharacter(ownerID)
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()
		charRepo.On("ApplyStatUpdate", ctx, mock.Anything, mock.MatchedBy(func(u models.StatUpdate) bool {
			assert.Equal(t, "strength", u.StatName)
			assert.Equal(t, 2, u.NewBase)
			assert.Equal(t, -1, u.AvailableDelta)
			assert.Equal(t, 1, u.SpentDelta)
			if assert.NotNil(t, u.NewNegativeCount) {
				assert.Equal(t, 0, *u.NewNegativeCount)
			}
			return true
		})).Return(nil).Once()
		publisher.On("PublishStatRecompute", ctx, mock.Anything).Return(nil).Once()

		svc := newLedgerService(charRepo, publisher)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "strength", models.StatCategoryBase, 1)
		assert.NoError(t, err)
		charRepo.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("Base stat cannot fall below -1", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		character := baseCharacter(ownerID)
		character.BaseParams["strength"] = models.StatBlock{Base: -1}
		character.NegativeBaseStatCount = 1
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()

		svc := newLedgerService(charRepo, nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "strength", models.StatCategoryBase, -1)
		assert.ErrorIs(t, err, models.ErrStatFloorViolated)
		charRepo.AssertNotCalled(t, "ApplyStatUpdate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("No more than four base stats at -1", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		character := baseCharacter(ownerID)
		character.NegativeBaseStatCount = 4
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()

		svc := newLedgerService(charRepo, nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "wisdom", models.StatCategoryBase, -1)
		assert.ErrorIs(t, err, models.ErrNegativeStatCapHit)
	})

	t.Run("Spend with no points available is rejected", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		character := baseCharacter(ownerID)
		character.BasePointsAvailable = 0
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()

		svc := newLedgerService(charRepo, nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "strength", models.StatCategoryBase, 1)
		assert.ErrorIs(t, err, models.ErrInsufficientPoints)
	})

	t.Run("Unknown base stat is rejected", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		character := baseCharacter(ownerID)
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()

		svc := newLedgerService(charRepo, nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "luck", models.StatCategoryBase, 1)
		assert.ErrorIs(t, err, models.ErrUnknownStat)
	})

	t.Run("Round trip through -1 is point-neutral", func(t *testing.T) {
		// Опускаем wisdom с 0 до -1 и возвращаем обратно: доступные очки
		// и счётчик отрицательных характеристик возвращаются к исходным.
		charRepo := new(mocks.CharacterRepository)
		publisher := new(messagingMocks.MockStatRecomputePublisher)
		publisher.On("PublishStatRecompute", ctx, mock.Anything).Return(nil).Twice()

		character := baseCharacter(ownerID)
		startAvailable := character.BasePointsAvailable
		startSpent := character.BasePointsSpent
		startNeg := character.NegativeBaseStatCount

		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil)
		charRepo.On("ApplyStatUpdate", ctx, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			// Применяем запись к локальному состоянию, как это сделала бы БД.
			u := args.Get(2).(models.StatUpdate)
			stat := character.BaseParams[u.StatName]
			stat.Base = u.NewBase
			character.BaseParams[u.StatName] = stat
			character.BasePointsAvailable += u.AvailableDelta
			character.BasePointsSpent += u.SpentDelta
			character.NegativeBaseStatCount = *u.NewNegativeCount
		}).Return(nil).Twice()

		svc := newLedgerService(charRepo, publisher)
		assert.NoError(t, svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "wisdom", models.StatCategoryBase, -1))
		assert.NoError(t, svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "wisdom", models.StatCategoryBase, 1))

		assert.Equal(t, startAvailable, character.BasePointsAvailable)
		assert.Equal(t, startSpent, character.BasePointsSpent)
		assert.Equal(t, startNeg, character.NegativeBaseStatCount)
		assert.Equal(t, 0, character.BaseParams["wisdom"].Base)
	})

	t.Run("Second stat parked at -1 grants a credit point", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		publisher := new(messagingMocks.MockStatRecomputePublisher)
		publisher.On("PublishStatRecompute", ctx, mock.Anything).Return(nil).Once()

		character := baseCharacter(ownerID)
		character.NegativeBaseStatCount = 1 // strength уже на -1 в этом сценарии
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()
		charRepo.On("ApplyStatUpdate", ctx, mock.Anything, mock.MatchedBy(func(u models.StatUpdate) bool {
			// Возврат 1 очка за шаг вниз плюс 1 кредит за вторую пару: floor(2/2)-floor(1/2) = 1.
			assert.Equal(t, -1, u.NewBase)
			assert.Equal(t, 2, u.AvailableDelta)
			assert.Equal(t, -1, u.SpentDelta)
			if assert.NotNil(t, u.NewNegativeCount) {
				assert.Equal(t, 2, *u.NewNegativeCount)
			}
			return true
		})).Return(nil).Once()

		svc := newLedgerService(charRepo, publisher)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "wisdom", models.StatCategoryBase, -1)
		assert.NoError(t, err)
		charRepo.AssertExpectations(t)
	})
}

func TestSpendStatPoint_Combat(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("Spend tokens per the cost table", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		publisher := new(messagingMocks.MockStatRecomputePublisher)
		character := baseCharacter(ownerID)
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()
		charRepo.On("ApplyStatUpdate", ctx, mock.Anything, mock.MatchedBy(func(u models.StatUpdate) bool {
			assert.Equal(t, models.StatCategoryCombat, u.Category)
			assert.Equal(t, 3, u.NewBase)
			assert.Equal(t, -3, u.AvailableDelta)
			assert.Equal(t, 3, u.SpentDelta)
			assert.Nil(t, u.NewNegativeCount)
			return true
		})).Return(nil).Once()
		publisher.On("PublishStatRecompute", ctx, mock.Anything).Return(nil).Once()

		svc := newLedgerService(charRepo, publisher)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "attack", models.StatCategoryCombat, 1)
		assert.NoError(t, err)
		charRepo.AssertExpectations(t)
	})

	t.Run("Refund returns the same token amount", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		publisher := new(messagingMocks.MockStatRecomputePublisher)
		character := baseCharacter(ownerID)
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()
		charRepo.On("ApplyStatUpdate", ctx, mock.Anything, mock.MatchedBy(func(u models.StatUpdate) bool {
			assert.Equal(t, 1, u.NewBase)
			assert.Equal(t, 3, u.AvailableDelta)
			assert.Equal(t, -3, u.SpentDelta)
			return true
		})).Return(nil).Once()
		publisher.On("PublishStatRecompute", ctx, mock.Anything).Return(nil).Once()

		svc := newLedgerService(charRepo, publisher)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "attack", models.StatCategoryCombat, -1)
		assert.NoError(t, err)
	})

	t.Run("Combat stat cannot fall below zero", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		character := baseCharacter(ownerID)
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()

		svc := newLedgerService(charRepo, nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "defense", models.StatCategoryCombat, -1)
		assert.ErrorIs(t, err, models.ErrStatFloorViolated)
		charRepo.AssertNotCalled(t, "ApplyStatUpdate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Spend beyond available tokens is rejected", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		character := baseCharacter(ownerID)
		character.CombatTokensAvailable = 2 // attack стоит 3
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()

		svc := newLedgerService(charRepo, nil)
		err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "attack", models.StatCategoryCombat, 1)
		assert.ErrorIs(t, err, models.ErrInsufficientTokens)
	})

	t.Run("DM may spend on someone else's character", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		publisher := new(messagingMocks.MockStatRecomputePublisher)
		character := baseCharacter(ownerID)
		charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()
		charRepo.On("ApplyStatUpdate", ctx, mock.Anything, mock.Anything).Return(nil).Once()
		publisher.On("PublishStatRecompute", ctx, mock.Anything).Return(nil).Once()

		svc := newLedgerService(charRepo, publisher)
		err := svc.SpendStatPoint(ctx, dmAuth(), character.ID, "attack", models.StatCategoryCombat, 1)
		assert.NoError(t, err)
	})
}

func TestSpendStatPoint_PublishFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	charRepo := new(mocks.CharacterRepository)
	publisher := new(messagingMocks.MockStatRecomputePublisher)
	character := baseCharacter(ownerID)
	charRepo.On("GetByIDForUpdate", ctx, mock.Anything, character.ID).Return(character, nil).Once()
	charRepo.On("ApplyStatUpdate", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	publisher.On("PublishStatRecompute", ctx, mock.Anything).Return(errors.New("broker down")).Once()

	svc := newLedgerService(charRepo, publisher)
	err := svc.SpendStatPoint(ctx, playerAuth(ownerID), character.ID, "strength", models.StatCategoryBase, 1)
	assert.NoError(t, err)
}

func TestGetCharacter(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("Owner reads own character", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		character := baseCharacter(ownerID)
		charRepo.On("GetByID", ctx, mock.Anything, character.ID).Return(character, nil).Once()

		svc := newLedgerService(charRepo, nil)
		got, err := svc.GetCharacter(ctx, playerAuth(ownerID), character.ID)
		assert.NoError(t, err)
		assert.Equal(t, character, got)
	})

	t.Run("Stranger is forbidden", func(t *testing.T) {
		charRepo := new(mocks.CharacterRepository)
		character := baseCharacter(ownerID)
		charRepo.On("GetByID", ctx, mock.Anything, character.ID).Return(character, nil).Once()

		svc := newLedgerService(charRepo, nil)
		_, err := svc.GetCharacter(ctx, playerAuth(uuid.New()), character.ID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}
