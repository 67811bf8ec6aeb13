package mocks

import (
	"context"
	"time"

	"campaign-server/internal/interfaces"
	"campaign-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock CharacterRepository
type CharacterRepository struct {
	mock.Mock
}

func (m *CharacterRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Character, error) {
	args := m.Called(ctx, querier, id)
	c, _ := args.Get(0).(*models.Character)
	return c, args.Error(1)
}

func (m *CharacterRepository) GetByIDForUpdate(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Character, error) {
	args := m.Called(ctx, querier, id)
	c, _ := args.Get(0).(*models.Character)
	return c, args.Error(1)
}

func (m *CharacterRepository) ListAllForUpdate(ctx context.Context, querier interfaces.DBTX) ([]*models.Character, error) {
	args := m.Called(ctx, querier)
	list, _ := args.Get(0).([]*models.Character)
	return list, args.Error(1)
}

func (m *CharacterRepository) Create(ctx context.Context, querier interfaces.DBTX, character *models.Character) error {
	args := m.Called(ctx, querier, character)
	return args.Error(0)
}

func (m *CharacterRepository) ApplyStatUpdate(ctx context.Context, querier interfaces.DBTX, update models.StatUpdate) error {
	args := m.Called(ctx, querier, update)
	return args.Error(0)
}

func (m *CharacterRepository) ApplyLevelUp(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, toLevel int, tokensGranted int) error {
	args := m.Called(ctx, querier, id, toLevel, tokensGranted)
	return args.Error(0)
}

func (m *CharacterRepository) UpdateActiveEffects(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, effects map[string]models.ActiveTurnEffect) error {
	args := m.Called(ctx, querier, id, effects)
	return args.Error(0)
}

// Mock EncounterRepository
type EncounterRepository struct {
	mock.Mock
}

func (m *EncounterRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Encounter, error) {
	args := m.Called(ctx, querier, id)
	e, _ := args.Get(0).(*models.Encounter)
	return e, args.Error(1)
}

func (m *EncounterRepository) GetByIDForUpdate(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Encounter, error) {
	args := m.Called(ctx, querier, id)
	e, _ := args.Get(0).(*models.Encounter)
	return e, args.Error(1)
}

func (m *EncounterRepository) ListParticipants(ctx context.Context, querier interfaces.DBTX, encounterID uuid.UUID) ([]*models.Participant, error) {
	args := m.Called(ctx, querier, encounterID)
	list, _ := args.Get(0).([]*models.Participant)
	return list, args.Error(1)
}

func (m *EncounterRepository) UpdateTurnState(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, order []uuid.UUID, index, round int, updatedAt time.Time) error {
	args := m.Called(ctx, querier, id, order, index, round, updatedAt)
	return args.Error(0)
}

// Mock LevelEventRepository
type LevelEventRepository struct {
	mock.Mock
}

func (m *LevelEventRepository) Create(ctx context.Context, querier interfaces.DBTX, event *models.LevelEvent) error {
	args := m.Called(ctx, querier, event)
	return args.Error(0)
}

func (m *LevelEventRepository) ListByCharacter(ctx context.Context, querier interfaces.DBTX, characterID uuid.UUID, limit int) ([]*models.LevelEvent, error) {
	args := m.Called(ctx, querier, characterID, limit)
	list, _ := args.Get(0).([]*models.LevelEvent)
	return list, args.Error(1)
}

// Mock GameLogRepository
type GameLogRepository struct {
	mock.Mock
}

func (m *GameLogRepository) Append(ctx context.Context, querier interfaces.DBTX, entry *models.GameLog) error {
	args := m.Called(ctx, querier, entry)
	return args.Error(0)
}

func (m *GameLogRepository) ListByEncounter(ctx context.Context, querier interfaces.DBTX, encounterID uuid.UUID, limit int) ([]*models.GameLog, error) {
	args := m.Called(ctx, querier, encounterID, limit)
	list, _ := args.Get(0).([]*models.GameLog)
	return list, args.Error(1)
}

// Mock IdempotencyRepository
type IdempotencyRepository struct {
	mock.Mock
}

func (m *IdempotencyRepository) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	payload, _ := args.Get(0).([]byte)
	return payload, args.Error(1)
}

func (m *IdempotencyRepository) Reserve(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *IdempotencyRepository) Put(ctx context.Context, key string, payload []byte) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

func (m *IdempotencyRepository) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Mock AssetStore
type AssetStore struct {
	mock.Mock
}

func (m *AssetStore) CopyAll(ctx context.Context, sourceCharacterID, destCharacterID uuid.UUID) (map[string]string, error) {
	args := m.Called(ctx, sourceCharacterID, destCharacterID)
	assets, _ := args.Get(0).(map[string]string)
	return assets, args.Error(1)
}
