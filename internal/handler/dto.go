package handler

import (
	"campaign-server/internal/models"
)

// SpendStatPointRequest - тело запроса POST /characters/:id/stats/spend.
type SpendStatPointRequest struct {
	StatName string `json:"stat_name" binding:"required"`
	Category string `json:"category" binding:"required"` // base или combat
	Change   int    `json:"change" binding:"required"`   // +1 или -1
}

// SpendStatPointResponse подтверждает применённую запись леджера.
type SpendStatPointResponse struct {
	Success bool `json:"success"`
}

// DuplicateCharacterRequest - тело запроса POST /characters/:id/duplicate.
type DuplicateCharacterRequest struct {
	NewName        string `json:"new_name" binding:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// LevelUpResponse оборачивает результат одиночного повышения уровня.
type LevelUpResponse struct {
	OK bool `json:"ok"`
	models.LevelUpResult
}

// LevelUpAllResponse оборачивает результаты массового повышения.
type LevelUpAllResponse struct {
	OK      bool                   `json:"ok"`
	Updated []models.LevelUpResult `json:"updated"`
}

// TurnStateResponse - ответ GET /encounters/:id/turn: текущее состояние хода
// и свежие записи журнала боя.
type TurnStateResponse struct {
	Encounter *models.Encounter `json:"encounter"`
	Logs      []*models.GameLog `json:"logs"`
}
