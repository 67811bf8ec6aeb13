package handler

import (
	"errors"
	"net/http"

	"campaign-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleServiceError переводит типизированную ошибку сервиса в HTTP-ответ
// с машиночитаемым кодом вида ошибки.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrBadRequest),
		errors.Is(err, models.ErrUnknownCombatStat):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeInvalidArgument, Message: err.Error()}
	case errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrTokenInvalid),
		errors.Is(err, models.ErrTokenMalformed),
		errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeUnauthenticated, Message: "Authentication required"}
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
		errResp = models.ErrorResponse{Code: models.ErrCodePermissionDenied, Message: "Insufficient permissions"}
	case errors.Is(err, models.ErrCharacterNotFound),
		errors.Is(err, models.ErrEncounterNotFound),
		errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, models.ErrStatFloorViolated),
		errors.Is(err, models.ErrNegativeStatCapHit),
		errors.Is(err, models.ErrSpentBelowZero),
		errors.Is(err, models.ErrUnknownStat),
		errors.Is(err, models.ErrDMNotLevelable):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeFailedPrecondition, Message: err.Error()}
	case errors.Is(err, models.ErrInsufficientPoints),
		errors.Is(err, models.ErrInsufficientTokens):
		statusCode = http.StatusUnprocessableEntity
		errResp = models.ErrorResponse{Code: models.ErrCodeResourceExhausted, Message: err.Error()}
	case errors.Is(err, models.ErrLevelConflict),
		errors.Is(err, models.ErrDuplicationInProgress):
		// Оптимистичная проверка сработала: вызывающий может повторить запрос.
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeAborted, Message: err.Error()}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
