package interfaces

import (
	"context"

	"campaign-server/internal/models"

	"github.com/google/uuid"
)

// LevelEventRepository defines the interface for the append-only leveling audit trail.
//
//go:generate mockery --name LevelEventRepository --output ./mocks --outpkg mocks --case=underscore
type LevelEventRepository interface {
	// Create appends one audit entry. There is deliberately no update or
	// delete: the trail is the durable record of every leveling transition.
	Create(ctx context.Context, querier DBTX, event *models.LevelEvent) error

	// ListByCharacter retrieves the character's audit entries, newest first.
	ListByCharacter(ctx context.Context, querier DBTX, characterID uuid.UUID, limit int) ([]*models.LevelEvent, error)
}
