package interfaces

import (
	"context"
	"time"

	"campaign-server/internal/models"

	"github.com/google/uuid"
)

// EncounterRepository defines the interface for interacting with encounter records.
//
//go:generate mockery --name EncounterRepository --output ./mocks --outpkg mocks --case=underscore
type EncounterRepository interface {
	// GetByID retrieves an encounter by its unique ID.
	// Returns models.ErrEncounterNotFound if no encounter with the given ID exists.
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Encounter, error)

	// GetByIDForUpdate retrieves an encounter and takes a row lock on it, so
	// that concurrent turn advances on the same encounter serialize.
	GetByIDForUpdate(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Encounter, error)

	// ListParticipants retrieves the encounter's participants in insertion
	// order. Rebuilding the turn order relies on this ordering for ties.
	ListParticipants(ctx context.Context, querier DBTX, encounterID uuid.UUID) ([]*models.Participant, error)

	// UpdateTurnState writes the (order, index, round) tuple and updated_at.
	// started_at is never touched by this method.
	UpdateTurnState(ctx context.Context, querier DBTX, id uuid.UUID, order []uuid.UUID, index, round int, updatedAt time.Time) error
}
