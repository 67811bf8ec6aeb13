package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"campaign-server/internal/database"
	"campaign-server/internal/database/migrations"
	"campaign-server/internal/handler"
	"campaign-server/internal/interfaces"
	"campaign-server/internal/messaging"
	"campaign-server/internal/models"
	"campaign-server/internal/service"
	"campaign-server/pkg/migration"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const jwtTestSecret = "test-secret-for-integration" // Тестовый JWT секрет

// --- Локальные фейки паблишеров: пишут сообщения в канал вместо RabbitMQ --- //

type recordingStatPublisher struct {
	messages chan messaging.StatRecomputePayload
}

func (p *recordingStatPublisher) PublishStatRecompute(_ context.Context, payload messaging.StatRecomputePayload) error {
	p.messages <- payload
	return nil
}

type recordingClientPublisher struct {
	messages chan messaging.ClientTurnUpdatePayload
}

func (p *recordingClientPublisher) PublishTurnUpdate(_ context.Context, payload messaging.ClientTurnUpdatePayload) error {
	p.messages <- payload
	return nil
}

// --- Локальный in-memory репозиторий идемпотентности вместо Redis --- //

type memoryIdempotencyRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	pending map[string]bool
}

func newMemoryIdempotencyRepo() *memoryIdempotencyRepo {
	return &memoryIdempotencyRepo{
		entries: make(map[string][]byte),
		pending: make(map[string]bool),
	}
}

func (r *memoryIdempotencyRepo) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[key] {
		return nil, interfaces.ErrPending
	}
	payload, ok := r.entries[key]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return payload, nil
}

// Reserve повторяет семантику SETNX: ровно один вызов получает true.
func (r *memoryIdempotencyRepo) Reserve(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[key] {
		return false, nil
	}
	if _, ok := r.entries[key]; ok {
		return false, nil
	}
	r.pending[key] = true
	return true, nil
}

func (r *memoryIdempotencyRepo) Put(_ context.Context, key string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, key)
	r.entries[key] = payload
	return nil
}

func (r *memoryIdempotencyRepo) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, key)
	delete(r.entries, key)
	return nil
}

// IntegrationTestSuite определяет набор интеграционных тестов
type IntegrationTestSuite struct {
	suite.Suite
	pgContainer   *postgres.PostgresContainer
	dbPool        *pgxpool.Pool
	serviceURL    string
	testServer    *httptest.Server
	characterRepo interfaces.CharacterRepository
	assetBasePath string
	statMessages  chan messaging.StatRecomputePayload
	turnMessages  chan messaging.ClientTurnUpdatePayload
}

// SetupSuite запускается один раз перед всеми тестами в наборе
func (s *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()
	s.statMessages = make(chan messaging.StatRecomputePayload, 20)
	s.turnMessages = make(chan messaging.ClientTurnUpdatePayload, 20)

	// --- Запуск Postgres ---
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err)
	s.pgContainer = pgContainer
	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	// --- Подключение к БД и миграции ---
	dbPool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(s.T(), err)
	s.dbPool = dbPool

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, dbPool)
	err = migrator.Up()
	require.NoError(s.T(), err, "Failed to apply migrations")
	log.Println("Migrations applied successfully.")

	// --- Репозитории и сервисы ---
	nopLogger := zap.NewNop()
	s.characterRepo = database.NewPgCharacterRepository(nopLogger)
	encounterRepo := database.NewPgEncounterRepository(nopLogger)
	levelEventRepo := database.NewPgLevelEventRepository(nopLogger)
	gameLogRepo := database.NewPgGameLogRepository(nopLogger)
	idempotencyRepo := newMemoryIdempotencyRepo()

	s.assetBasePath = s.T().TempDir()
	assetStore := database.NewFsAssetStore(s.assetBasePath, "/assets/characters", nopLogger)

	txManager := service.NewTxManager(dbPool)
	statPublisher := &recordingStatPublisher{messages: s.statMessages}
	turnPublisher := &recordingClientPublisher{messages: s.turnMessages}

	costTable := map[string]int{"attack": 3, "defense": 2}

	ledgerService := service.NewLedgerService(s.characterRepo, txManager, dbPool, costTable, statPublisher, nopLogger)
	levelingService := service.NewLevelingService(s.characterRepo, levelEventRepo, txManager, dbPool, statPublisher, nopLogger)
	turnService := service.NewTurnService(encounterRepo, s.characterRepo, gameLogRepo, txManager, dbPool, turnPublisher, nopLogger)
	duplicationService := service.NewDuplicationService(s.characterRepo, idempotencyRepo, assetStore, txManager, nopLogger)

	campaignHandler := handler.NewCampaignHandler(
		ledgerService,
		levelingService,
		turnService,
		duplicationService,
		nopLogger,
		jwtTestSecret,
	)

	gin.SetMode(gin.TestMode)
	app := gin.New()
	campaignHandler.RegisterRoutes(app, nil)

	s.testServer = httptest.NewServer(app)
	s.serviceURL = s.testServer.URL
	log.Printf("Test server running at: %s", s.serviceURL)
}

// TearDownSuite запускается один раз после всех тестов
func (s *IntegrationTestSuite) TearDownSuite() {
	ctx := context.Background()
	if s.testServer != nil {
		s.testServer.Close()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		err := s.pgContainer.Terminate(ctx)
		require.NoError(s.T(), err)
	}
	log.Println("Integration test suite torn down.")
}

// TestIntegrationSuite запускает набор тестов
func TestIntegrationSuite(t *testing.T) {
	// Пропускаем тесты, если запущены с флагом -short
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode.")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

// --- Вспомогательные функции ---

// createTestJWT создает JWT токен для тестов с нужными ролями.
func createTestJWT(userID uuid.UUID, roles ...string) string {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"roles":   roles,
		"sub":     userID.String(),
		"exp":     time.Now().Add(5 * time.Minute).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(jwtTestSecret))
	if err != nil {
		log.Fatalf("Failed to generate test JWT: %v", err)
	}
	return tokenString
}

func (s *IntegrationTestSuite) doJSON(method, path, token string, body any) *http.Response {
	var reader *bytes.Reader
	if body != nil {
		bodyJSON, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(bodyJSON)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.serviceURL+path, reader)
	require.NoError(s.T(), err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.T(), err)
	return resp
}

// seedCharacter создает персонажа напрямую через репозиторий.
func (s *IntegrationTestSuite) seedCharacter(ownerID uuid.UUID, mutate func(*models.Character)) *models.Character {
	character := &models.Character{
		ID:                    uuid.New(),
		OwnerUserID:           ownerID,
		Name:                  fmt.Sprintf("test-hero-%s", uuid.NewString()[:8]),
		Role:                  models.CharacterRolePlayer,
		Level:                 3,
		BasePointsAvailable:   5,
		BasePointsSpent:       3,
		CombatTokensAvailable: 6,
		CombatTokensSpent:     2,
		BaseParams: map[string]models.StatBlock{
			"strength": {Base: 1, Tot: 1},
			"wisdom":   {Base: 0, Tot: 0},
		},
		CombatParams: map[string]models.StatBlock{
			"attack":  {Base: 2, Tot: 2},
			"defense": {Base: 0, Tot: 0},
		},
		ActiveTurnEffects: map[string]models.ActiveTurnEffect{},
	}
	if mutate != nil {
		mutate(character)
	}
	err := s.characterRepo.Create(context.Background(), s.dbPool, character)
	require.NoError(s.T(), err)
	return character
}

// seedEncounter создает энкаунтер и участников напрямую в БД.
func (s *IntegrationTestSuite) seedEncounter(order []uuid.UUID, turnIndex, round int, participants []*models.Participant) uuid.UUID {
	ctx := context.Background()
	encounterID := uuid.New()
	orderJSON, err := json.Marshal(order)
	require.NoError(s.T(), err)

	_, err = s.dbPool.Exec(ctx,
		`INSERT INTO encounters (id, name, turn_order, turn_index, round, started_at) VALUES ($1, $2, $3, $4, $5, now())`,
		encounterID, "test-encounter", orderJSON, turnIndex, round,
	)
	require.NoError(s.T(), err)

	for _, p := range participants {
		_, err = s.dbPool.Exec(ctx,
			`INSERT INTO participants (id, encounter_id, kind, character_id, display_name, initiative) VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, encounterID, p.Kind, p.CharacterID, p.DisplayName, p.Initiative,
		)
		require.NoError(s.T(), err)
		// Чтобы created_at различался и порядок вставки был устойчив
		time.Sleep(2 * time.Millisecond)
	}
	return encounterID
}

func intPtr(v int) *int { return &v }

// --- Тесты API ---

func (s *IntegrationTestSuite) TestSpendStatPoint_Integration() {
	ctx := context.Background()
	ownerID := uuid.New()
	character := s.seedCharacter(ownerID, nil)
	token := createTestJWT(ownerID, models.RolePlayer)

	// Повышаем базовую характеристику на +1
	resp := s.doJSON(http.MethodPost, "/api/characters/"+character.ID.String()+"/stats/spend", token, handler.SpendStatPointRequest{
		StatName: "strength",
		Category: "base",
		Change:   1,
	})
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var spendResp handler.SpendStatPointResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&spendResp))
	assert.True(s.T(), spendResp.Success)

	// Проверяем запись в БД: base 1 -> 2, available 5 -> 4, spent 3 -> 4
	updated, err := s.characterRepo.GetByID(ctx, s.dbPool, character.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, updated.BaseParams["strength"].Base)
	assert.Equal(s.T(), 4, updated.BasePointsAvailable)
	assert.Equal(s.T(), 4, updated.BasePointsSpent)

	// Проверяем сообщение пересчета
	select {
	case payload := <-s.statMessages:
		assert.Equal(s.T(), character.ID, payload.CharacterID)
		assert.Equal(s.T(), "stat_spend", payload.Reason)
	case <-time.After(5 * time.Second):
		s.T().Fatal("Timeout waiting for stat recompute message")
	}
}

func (s *IntegrationTestSuite) TestSpendStatPoint_Concurrent_Integration() {
	ctx := context.Background()
	ownerID := uuid.New()
	character := s.seedCharacter(ownerID, nil)
	token := createTestJWT(ownerID, models.RolePlayer)

	// Два одновременных запроса на +1 к одной характеристике: блокировка
	// строки сериализует их, и оба изменения попадают в запись.
	var wg sync.WaitGroup
	responses := make(chan *http.Response, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses <- s.doJSON(http.MethodPost, "/api/characters/"+character.ID.String()+"/stats/spend", token, handler.SpendStatPointRequest{
				StatName: "strength",
				Category: "base",
				Change:   1,
			})
		}()
	}
	wg.Wait()
	close(responses)

	for resp := range responses {
		assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	// base 1 -> 3, available 5 -> 3, spent 3 -> 5: ни одно списание не потеряно
	updated, err := s.characterRepo.GetByID(ctx, s.dbPool, character.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 3, updated.BaseParams["strength"].Base)
	assert.Equal(s.T(), 3, updated.BasePointsAvailable)
	assert.Equal(s.T(), 5, updated.BasePointsSpent)

	// Каждое списание публикует своё сообщение пересчета
	for i := 0; i < 2; i++ {
		select {
		case payload := <-s.statMessages:
			assert.Equal(s.T(), character.ID, payload.CharacterID)
		case <-time.After(5 * time.Second):
			s.T().Fatal("Timeout waiting for stat recompute message")
		}
	}
}

func (s *IntegrationTestSuite) TestSpendStatPoint_Forbidden_Integration() {
	character := s.seedCharacter(uuid.New(), nil)
	strangerToken := createTestJWT(uuid.New(), models.RolePlayer)

	resp := s.doJSON(http.MethodPost, "/api/characters/"+character.ID.String()+"/stats/spend", strangerToken, handler.SpendStatPointRequest{
		StatName: "strength",
		Category: "base",
		Change:   1,
	})
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusForbidden, resp.StatusCode)

	var errResp models.ErrorResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(s.T(), models.ErrCodePermissionDenied, errResp.Code)
}

func (s *IntegrationTestSuite) TestSpendStatPoint_Unauthenticated_Integration() {
	resp := s.doJSON(http.MethodPost, "/api/characters/"+uuid.NewString()+"/stats/spend", "", handler.SpendStatPointRequest{
		StatName: "strength",
		Category: "base",
		Change:   1,
	})
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestSpendStatPoint_CombatFloor_Integration() {
	ownerID := uuid.New()
	character := s.seedCharacter(ownerID, nil)
	token := createTestJWT(ownerID, models.RolePlayer)

	// defense уже на нуле, снижение должно упереться в пол
	resp := s.doJSON(http.MethodPost, "/api/characters/"+character.ID.String()+"/stats/spend", token, handler.SpendStatPointRequest{
		StatName: "defense",
		Category: "combat",
		Change:   -1,
	})
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusConflict, resp.StatusCode)

	var errResp models.ErrorResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(s.T(), models.ErrCodeFailedPrecondition, errResp.Code)
}

func (s *IntegrationTestSuite) TestLevelUpOne_Integration() {
	ctx := context.Background()
	character := s.seedCharacter(uuid.New(), func(c *models.Character) {
		c.Level = 3
	})
	dmToken := createTestJWT(uuid.New(), models.RoleDM)

	resp := s.doJSON(http.MethodPost, "/api/characters/"+character.ID.String()+"/level-up", dmToken, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var levelResp handler.LevelUpResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&levelResp))
	assert.True(s.T(), levelResp.OK)
	assert.Equal(s.T(), 3, levelResp.FromLevel)
	assert.Equal(s.T(), 4, levelResp.ToLevel)
	assert.Equal(s.T(), 4, levelResp.TokensGranted)
	assert.Empty(s.T(), levelResp.SkippedReason)

	// Проверяем запись и жетоны в БД
	updated, err := s.characterRepo.GetByID(ctx, s.dbPool, character.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 4, updated.Level)
	assert.Equal(s.T(), character.CombatTokensAvailable+4, updated.CombatTokensAvailable)

	// Проверяем запись аудита
	var eventCount int
	err = s.dbPool.QueryRow(ctx, `SELECT count(*) FROM level_events WHERE character_id = $1 AND from_level = 3 AND to_level = 4 AND tokens_granted = 4`, character.ID).Scan(&eventCount)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, eventCount)

	// Сообщение пересчета после коммита
	select {
	case payload := <-s.statMessages:
		assert.Equal(s.T(), character.ID, payload.CharacterID)
		assert.Equal(s.T(), "level_up", payload.Reason)
	case <-time.After(5 * time.Second):
		s.T().Fatal("Timeout waiting for stat recompute message")
	}
}

func (s *IntegrationTestSuite) TestLevelUpOne_MaxLevel_Integration() {
	character := s.seedCharacter(uuid.New(), func(c *models.Character) {
		c.Level = 10
	})
	dmToken := createTestJWT(uuid.New(), models.RoleDM)

	resp := s.doJSON(http.MethodPost, "/api/characters/"+character.ID.String()+"/level-up", dmToken, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var levelResp handler.LevelUpResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&levelResp))
	assert.True(s.T(), levelResp.OK)
	assert.Equal(s.T(), models.SkipReasonMaxLevel, levelResp.SkippedReason)

	// Запись не тронута
	updated, err := s.characterRepo.GetByID(context.Background(), s.dbPool, character.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 10, updated.Level)
}

func (s *IntegrationTestSuite) TestLevelUpOne_PlayerForbidden_Integration() {
	character := s.seedCharacter(uuid.New(), nil)
	playerToken := createTestJWT(character.OwnerUserID, models.RolePlayer)

	resp := s.doJSON(http.MethodPost, "/api/characters/"+character.ID.String()+"/level-up", playerToken, nil)
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusForbidden, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestAdvanceTurn_Integration() {
	ctx := context.Background()
	dmToken := createTestJWT(uuid.New(), models.RoleDM)

	// Уходящий участник - игрок с активными эффектами
	character := s.seedCharacter(uuid.New(), func(c *models.Character) {
		c.ActiveTurnEffects = map[string]models.ActiveTurnEffect{
			"barrier": {RemainingTurns: 2, TotalTurns: 3},
			"haste":   {RemainingTurns: 0, TotalTurns: 2},
		}
	})

	hero := &models.Participant{ID: uuid.New(), Kind: models.ParticipantPlayer, CharacterID: &character.ID, DisplayName: "Герой", Initiative: intPtr(15)}
	goblin := &models.Participant{ID: uuid.New(), Kind: models.ParticipantFoe, DisplayName: "Гоблин", Initiative: intPtr(10)}
	encounterID := s.seedEncounter([]uuid.UUID{hero.ID, goblin.ID}, 0, 1, []*models.Participant{hero, goblin})

	resp := s.doJSON(http.MethodPost, "/api/encounters/"+encounterID.String()+"/advance-turn", dmToken, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result models.AdvanceTurnResult
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&result))
	assert.True(s.T(), result.Advanced)
	assert.Equal(s.T(), 1, result.Round)
	assert.Equal(s.T(), 1, result.TurnIndex)
	assert.False(s.T(), result.NewRound)
	require.NotNil(s.T(), result.ActiveParticipant)
	assert.Equal(s.T(), goblin.ID, *result.ActiveParticipant)
	assert.Equal(s.T(), "Гоблин", result.ActiveLabel)

	// Эффекты уходящего игрока затухают: 2 -> 1, нулевой не трогаем
	updated, err := s.characterRepo.GetByID(ctx, s.dbPool, character.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, updated.ActiveTurnEffects["barrier"].RemainingTurns)
	assert.Equal(s.T(), 0, updated.ActiveTurnEffects["haste"].RemainingTurns)

	// Запись в журнале боя
	var logCount int
	err = s.dbPool.QueryRow(ctx, `SELECT count(*) FROM game_logs WHERE encounter_id = $1`, encounterID).Scan(&logCount)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, logCount)

	// Уведомление клиентам
	select {
	case payload := <-s.turnMessages:
		assert.Equal(s.T(), encounterID, payload.EncounterID)
		assert.Equal(s.T(), 1, payload.TurnIndex)
	case <-time.After(5 * time.Second):
		s.T().Fatal("Timeout waiting for turn update message")
	}
}

func (s *IntegrationTestSuite) TestAdvanceTurn_WrapsRound_Integration() {
	ctx := context.Background()
	dmToken := createTestJWT(uuid.New(), models.RoleDM)

	slow := &models.Participant{ID: uuid.New(), Kind: models.ParticipantFoe, DisplayName: "Медленный", Initiative: intPtr(5)}
	fast := &models.Participant{ID: uuid.New(), Kind: models.ParticipantFoe, DisplayName: "Быстрый", Initiative: intPtr(20)}
	// Индекс на последнем участнике: следующий advance начинает новый раунд
	encounterID := s.seedEncounter([]uuid.UUID{fast.ID, slow.ID}, 1, 2, []*models.Participant{slow, fast})

	resp := s.doJSON(http.MethodPost, "/api/encounters/"+encounterID.String()+"/advance-turn", dmToken, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result models.AdvanceTurnResult
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&result))
	assert.True(s.T(), result.Advanced)
	assert.True(s.T(), result.NewRound)
	assert.Equal(s.T(), 3, result.Round)
	assert.Equal(s.T(), 0, result.TurnIndex)
	require.NotNil(s.T(), result.ActiveParticipant)
	assert.Equal(s.T(), fast.ID, *result.ActiveParticipant)

	// Порядок пересобран по убыванию инициативы
	var orderJSON []byte
	err := s.dbPool.QueryRow(ctx, `SELECT turn_order FROM encounters WHERE id = $1`, encounterID).Scan(&orderJSON)
	require.NoError(s.T(), err)
	var order []uuid.UUID
	require.NoError(s.T(), json.Unmarshal(orderJSON, &order))
	assert.Equal(s.T(), []uuid.UUID{fast.ID, slow.ID}, order)

	// Две записи журнала: начало раунда и переход хода
	var logCount int
	err = s.dbPool.QueryRow(ctx, `SELECT count(*) FROM game_logs WHERE encounter_id = $1`, encounterID).Scan(&logCount)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, logCount)

	// Сливаем уведомление, чтобы не мешать другим тестам
	select {
	case <-s.turnMessages:
	case <-time.After(5 * time.Second):
		s.T().Fatal("Timeout waiting for turn update message")
	}
}

func (s *IntegrationTestSuite) TestAdvanceTurn_Uninitialized_Integration() {
	dmToken := createTestJWT(uuid.New(), models.RoleDM)
	encounterID := s.seedEncounter(nil, 0, 0, nil)

	resp := s.doJSON(http.MethodPost, "/api/encounters/"+encounterID.String()+"/advance-turn", dmToken, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result models.AdvanceTurnResult
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&result))
	assert.False(s.T(), result.Advanced)
	assert.NotEmpty(s.T(), result.NoopReason)
}

func (s *IntegrationTestSuite) TestGetTurnState_Integration() {
	foe := &models.Participant{ID: uuid.New(), Kind: models.ParticipantFoe, DisplayName: "Волк", Initiative: intPtr(12)}
	encounterID := s.seedEncounter([]uuid.UUID{foe.ID}, 0, 1, []*models.Participant{foe})
	token := createTestJWT(uuid.New(), models.RolePlayer)

	resp := s.doJSON(http.MethodGet, "/api/encounters/"+encounterID.String()+"/turn", token, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var stateResp handler.TurnStateResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&stateResp))
	require.NotNil(s.T(), stateResp.Encounter)
	assert.Equal(s.T(), encounterID, stateResp.Encounter.ID)
	assert.Equal(s.T(), 1, stateResp.Encounter.Round)
	assert.NotNil(s.T(), stateResp.Logs)
}

func (s *IntegrationTestSuite) TestDuplicateCharacter_Idempotent_Integration() {
	ctx := context.Background()
	source := s.seedCharacter(uuid.New(), func(c *models.Character) {
		c.Level = 5
	})
	dmToken := createTestJWT(uuid.New(), models.RoleDM)

	// Кладем файл-ассет исходного персонажа
	sourceDir := filepath.Join(s.assetBasePath, source.ID.String())
	require.NoError(s.T(), os.MkdirAll(sourceDir, 0o755))
	require.NoError(s.T(), os.WriteFile(filepath.Join(sourceDir, "portrait.png"), []byte("fake-png"), 0o644))

	idempotencyKey := uuid.NewString()
	reqBody := handler.DuplicateCharacterRequest{NewName: "Копия героя", IdempotencyKey: idempotencyKey}

	resp := s.doJSON(http.MethodPost, "/api/characters/"+source.ID.String()+"/duplicate", dmToken, reqBody)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var first models.DuplicateResult
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&first))
	assert.NotEqual(s.T(), uuid.Nil, first.NewID)
	assert.NotEqual(s.T(), source.ID, first.NewID)
	assert.Equal(s.T(), "Копия героя", first.Name)
	assert.Contains(s.T(), first.Assets, "portrait.png")

	// Копия в БД повторяет исходные значения
	clone, err := s.characterRepo.GetByID(ctx, s.dbPool, first.NewID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), source.Level, clone.Level)
	assert.Equal(s.T(), source.BasePointsAvailable, clone.BasePointsAvailable)
	assert.Equal(s.T(), source.BaseParams, clone.BaseParams)

	// Скопированный файл лежит в каталоге копии
	copiedAsset := filepath.Join(s.assetBasePath, first.NewID.String(), "portrait.png")
	content, err := os.ReadFile(copiedAsset)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []byte("fake-png"), content)

	// Повтор с тем же ключом возвращает тот же результат без новой копии
	resp2 := s.doJSON(http.MethodPost, "/api/characters/"+source.ID.String()+"/duplicate", dmToken, reqBody)
	defer resp2.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp2.StatusCode)

	var second models.DuplicateResult
	require.NoError(s.T(), json.NewDecoder(resp2.Body).Decode(&second))
	assert.Equal(s.T(), first, second)

	var cloneCount int
	err = s.dbPool.QueryRow(ctx, `SELECT count(*) FROM characters WHERE name = $1`, "Копия героя").Scan(&cloneCount)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, cloneCount)
}

func (s *IntegrationTestSuite) TestDuplicateCharacter_ConcurrentSameKey_Integration() {
	ctx := context.Background()
	source := s.seedCharacter(uuid.New(), nil)
	dmToken := createTestJWT(uuid.New(), models.RoleDM)

	reqBody := handler.DuplicateCharacterRequest{
		NewName:        "Гонка за копией",
		IdempotencyKey: uuid.NewString(),
	}

	// Два одновременных запроса с одним ключом: резервация через SETNX
	// пропускает к работе ровно один из них.
	var wg sync.WaitGroup
	responses := make(chan *http.Response, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses <- s.doJSON(http.MethodPost, "/api/characters/"+source.ID.String()+"/duplicate", dmToken, reqBody)
		}()
	}
	wg.Wait()
	close(responses)

	var succeeded []models.DuplicateResult
	for resp := range responses {
		switch resp.StatusCode {
		case http.StatusOK:
			var result models.DuplicateResult
			require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&result))
			succeeded = append(succeeded, result)
		case http.StatusConflict:
			// Проигравший получает ретраябельный отказ
			var errResp models.ErrorResponse
			require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(s.T(), models.ErrCodeAborted, errResp.Code)
		default:
			s.T().Fatalf("unexpected status %d for concurrent duplicate", resp.StatusCode)
		}
		resp.Body.Close()
	}
	require.NotEmpty(s.T(), succeeded)
	for _, result := range succeeded {
		assert.Equal(s.T(), succeeded[0], result)
	}

	// Копирование выполнилось ровно один раз
	var cloneCount int
	err := s.dbPool.QueryRow(ctx, `SELECT count(*) FROM characters WHERE name = $1`, "Гонка за копией").Scan(&cloneCount)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, cloneCount)
}

func (s *IntegrationTestSuite) TestDuplicateCharacter_PlayerForbidden_Integration() {
	source := s.seedCharacter(uuid.New(), nil)
	playerToken := createTestJWT(source.OwnerUserID, models.RolePlayer)

	resp := s.doJSON(http.MethodPost, "/api/characters/"+source.ID.String()+"/duplicate", playerToken, handler.DuplicateCharacterRequest{NewName: "Копия"})
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusForbidden, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestGetCharacter_Integration() {
	ownerID := uuid.New()
	character := s.seedCharacter(ownerID, nil)
	token := createTestJWT(ownerID, models.RolePlayer)

	resp := s.doJSON(http.MethodGet, "/api/characters/"+character.ID.String(), token, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var got models.Character
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(s.T(), character.ID, got.ID)
	assert.Equal(s.T(), character.Name, got.Name)
}

func (s *IntegrationTestSuite) TestGetCharacter_BadID_Integration() {
	token := createTestJWT(uuid.New(), models.RolePlayer)

	resp := s.doJSON(http.MethodGet, "/api/characters/not-a-uuid", token, nil)
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}
