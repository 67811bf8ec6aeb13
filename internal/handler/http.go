package handler

import (
	"net/http"
	"strconv"

	"campaign-server/internal/authutils"
	"campaign-server/internal/middleware"
	"campaign-server/internal/models"
	"campaign-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CampaignHandler обрабатывает HTTP запросы campaign-server.
type CampaignHandler struct {
	ledgerService      service.LedgerService
	levelingService    service.LevelingService
	turnService        service.TurnService
	duplicationService service.DuplicationService
	logger             *zap.Logger
	userTokenVerifier  *authutils.JWTVerifier
}

// NewCampaignHandler создает новый CampaignHandler.
func NewCampaignHandler(
	ledgerService service.LedgerService,
	levelingService service.LevelingService,
	turnService service.TurnService,
	duplicationService service.DuplicationService,
	logger *zap.Logger,
	jwtSecret string,
) *CampaignHandler {
	userVerifier, err := authutils.NewJWTVerifier(jwtSecret, logger)
	if err != nil {
		logger.Fatal("Failed to create User JWT Verifier", zap.Error(err))
	}

	return &CampaignHandler{
		ledgerService:      ledgerService,
		levelingService:    levelingService,
		turnService:        turnService,
		duplicationService: duplicationService,
		logger:             logger.Named("CampaignHandler"),
		userTokenVerifier:  userVerifier,
	}
}

// RegisterRoutes регистрирует маршруты сервиса. rateLimiter (если не nil)
// вешается на мутирующие маршруты.
func (h *CampaignHandler) RegisterRoutes(router *gin.Engine, rateLimiter gin.HandlerFunc) {
	authMW := middleware.AuthMiddleware(h.userTokenVerifier.VerifyToken, h.logger)

	api := router.Group("/api", authMW)

	reads := api.Group("")
	{
		reads.GET("/characters/:id", h.getCharacter)
		reads.GET("/characters/:id/level-events", h.listLevelEvents)
		reads.GET("/encounters/:id/turn", h.getTurnState)
	}

	mutations := api.Group("")
	if rateLimiter != nil {
		mutations.Use(rateLimiter)
	}
	{
		mutations.POST("/characters/:id/stats/spend", h.spendStatPoint)
		mutations.POST("/characters/:id/level-up", h.levelUpOne)
		mutations.POST("/characters/level-up-all", h.levelUpAll)
		mutations.POST("/characters/:id/duplicate", h.duplicateCharacter)
		mutations.POST("/encounters/:id/advance-turn", h.advanceTurn)
	}
}

// parseIDParam извлекает и парсит UUID из параметра пути :id.
func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    models.ErrCodeInvalidArgument,
			Message: "invalid id: must be a UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// authContext достаёт личность вызывающего, положенную AuthMiddleware.
func (h *CampaignHandler) authContext(c *gin.Context) (models.AuthContext, bool) {
	auth, err := middleware.GetAuthContext(c)
	if err != nil {
		handleServiceError(c, err)
		return models.AuthContext{}, false
	}
	return auth, true
}

// spendStatPoint обрабатывает POST /api/characters/:id/stats/spend.
func (h *CampaignHandler) spendStatPoint(c *gin.Context) {
	characterID, ok := parseIDParam(c)
	if !ok {
		return
	}
	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	var req SpendStatPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    models.ErrCodeInvalidArgument,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	err := h.ledgerService.SpendStatPoint(c.Request.Context(), auth, characterID, req.StatName, models.StatCategory(req.Category), req.Change)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SpendStatPointResponse{Success: true})
}

// levelUpOne обрабатывает POST /api/characters/:id/level-up.
func (h *CampaignHandler) levelUpOne(c *gin.Context) {
	characterID, ok := parseIDParam(c)
	if !ok {
		return
	}
	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	result, err := h.levelingService.LevelUpOne(c.Request.Context(), auth, characterID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, LevelUpResponse{OK: true, LevelUpResult: result})
}

// levelUpAll обрабатывает POST /api/characters/level-up-all.
func (h *CampaignHandler) levelUpAll(c *gin.Context) {
	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	results, err := h.levelingService.LevelUpAll(c.Request.Context(), auth)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if results == nil {
		results = []models.LevelUpResult{}
	}
	c.JSON(http.StatusOK, LevelUpAllResponse{OK: true, Updated: results})
}

// advanceTurn обрабатывает POST /api/encounters/:id/advance-turn.
func (h *CampaignHandler) advanceTurn(c *gin.Context) {
	encounterID, ok := parseIDParam(c)
	if !ok {
		return
	}
	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	result, err := h.turnService.AdvanceTurn(c.Request.Context(), auth, encounterID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// duplicateCharacter обрабатывает POST /api/characters/:id/duplicate.
func (h *CampaignHandler) duplicateCharacter(c *gin.Context) {
	sourceID, ok := parseIDParam(c)
	if !ok {
		return
	}
	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	var req DuplicateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    models.ErrCodeInvalidArgument,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.duplicationService.DuplicateCharacter(c.Request.Context(), auth, sourceID, req.NewName, req.IdempotencyKey)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getCharacter обрабатывает GET /api/characters/:id.
func (h *CampaignHandler) getCharacter(c *gin.Context) {
	characterID, ok := parseIDParam(c)
	if !ok {
		return
	}
	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	character, err := h.ledgerService.GetCharacter(c.Request.Context(), auth, characterID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, character)
}

// listLevelEvents обрабатывает GET /api/characters/:id/level-events.
func (h *CampaignHandler) listLevelEvents(c *gin.Context) {
	characterID, ok := parseIDParam(c)
	if !ok {
		return
	}
	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	events, err := h.levelingService.ListLevelEvents(c.Request.Context(), auth, characterID, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if events == nil {
		events = []*models.LevelEvent{}
	}
	c.JSON(http.StatusOK, events)
}

// getTurnState обрабатывает GET /api/encounters/:id/turn.
func (h *CampaignHandler) getTurnState(c *gin.Context) {
	encounterID, ok := parseIDParam(c)
	if !ok {
		return
	}
	auth, ok := h.authContext(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	encounter, logs, err := h.turnService.GetTurnState(c.Request.Context(), auth, encounterID, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if logs == nil {
		logs = []*models.GameLog{}
	}
	c.JSON(http.StatusOK, TurnStateResponse{Encounter: encounter, Logs: logs})
}
