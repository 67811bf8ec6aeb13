package interfaces

import (
	"context"

	"github.com/google/uuid"
)

// AssetStore copies stored character assets (portraits, token art) during
// duplication. The copy is caller-visible blocking I/O and runs outside any
// database transaction.
//
//go:generate mockery --name AssetStore --output ./mocks --outpkg mocks --case=underscore
type AssetStore interface {
	// CopyAll copies every asset of the source character to the destination
	// and returns a map of asset name to its new storage path. A source with
	// no assets returns an empty map, not an error.
	CopyAll(ctx context.Context, sourceCharacterID, destCharacterID uuid.UUID) (map[string]string, error)
}
