package interfaces

import (
	"context"

	"campaign-server/internal/models"

	"github.com/google/uuid"
)

// CharacterRepository defines the interface for interacting with character records.
//
//go:generate mockery --name CharacterRepository --output ./mocks --outpkg mocks --case=underscore
type CharacterRepository interface {
	// GetByID retrieves a character by its unique ID.
	// Returns models.ErrCharacterNotFound if no character with the given ID exists.
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Character, error)

	// GetByIDForUpdate retrieves a character and takes a row lock on it.
	// Must run inside a transaction; concurrent callers on the same row
	// serialize behind the lock, which is what keeps the ledger invariants
	// intact under concurrent spends.
	GetByIDForUpdate(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Character, error)

	// ListAllForUpdate retrieves every character record, locking the rows.
	// Used by the bulk leveling pass, which updates all eligible records in
	// one transaction.
	ListAllForUpdate(ctx context.Context, querier DBTX) ([]*models.Character, error)

	// Create inserts a new character record. The ID must already be set.
	Create(ctx context.Context, querier DBTX, character *models.Character) error

	// ApplyStatUpdate writes a single ledger change: the stat's new base
	// value, the available/spent counter deltas and, for base stats, the new
	// negative-stat count, all in one UPDATE.
	ApplyStatUpdate(ctx context.Context, querier DBTX, update models.StatUpdate) error

	// ApplyLevelUp sets the character's level and adds the granted combat
	// tokens in one UPDATE.
	ApplyLevelUp(ctx context.Context, querier DBTX, id uuid.UUID, toLevel int, tokensGranted int) error

	// UpdateActiveEffects replaces the character's active turn effect map.
	UpdateActiveEffects(ctx context.Context, querier DBTX, id uuid.UUID, effects map[string]models.ActiveTurnEffect) error
}
