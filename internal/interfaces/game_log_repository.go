package interfaces

import (
	"context"

	"campaign-server/internal/models"

	"github.com/google/uuid"
)

// GameLogRepository defines the interface for the append-only encounter log.
//
//go:generate mockery --name GameLogRepository --output ./mocks --outpkg mocks --case=underscore
type GameLogRepository interface {
	// Append adds one log entry for an encounter.
	Append(ctx context.Context, querier DBTX, entry *models.GameLog) error

	// ListByEncounter retrieves the encounter's log entries, newest first.
	ListByEncounter(ctx context.Context, querier DBTX, encounterID uuid.UUID, limit int) ([]*models.GameLog, error)
}
