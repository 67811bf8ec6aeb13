package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"campaign-server/internal/interfaces"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check to ensure fsAssetStore implements AssetStore
var _ interfaces.AssetStore = (*fsAssetStore)(nil)

// fsAssetStore copies character asset files (portraits, token images) between
// per-character directories under a mounted volume. Предполагаем, что volume
// смонтирован и базовая директория доступна на запись.
type fsAssetStore struct {
	basePath string
	baseURL  string
	logger   *zap.Logger
}

// NewFsAssetStore creates a filesystem-backed AssetStore rooted at basePath.
// baseURL is prepended to copied file names to build public references.
func NewFsAssetStore(basePath, baseURL string, logger *zap.Logger) interfaces.AssetStore {
	return &fsAssetStore{
		basePath: basePath,
		baseURL:  baseURL,
		logger:   logger.Named("FsAssetStore"),
	}
}

// CopyAll copies every asset file from the source character's directory into a
// fresh directory for the destination character. Returns a map of asset file
// name to its new public reference. A missing source directory is not an
// error: the character simply has no assets yet.
func (s *fsAssetStore) CopyAll(ctx context.Context, sourceCharacterID, destCharacterID uuid.UUID) (map[string]string, error) {
	log := s.logger.With(
		zap.String("sourceCharacterID", sourceCharacterID.String()),
		zap.String("destCharacterID", destCharacterID.String()),
	)

	sourceDir := filepath.Join(s.basePath, sourceCharacterID.String())
	destDir := filepath.Join(s.basePath, destCharacterID.String())

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Source character has no asset directory, nothing to copy")
			return map[string]string{}, nil
		}
		log.Error("Failed to read source asset directory", zap.String("path", sourceDir), zap.Error(err))
		return nil, fmt.Errorf("failed to read asset directory %s: %w", sourceDir, err)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		log.Error("Failed to create destination asset directory", zap.String("path", destDir), zap.Error(err))
		return nil, fmt.Errorf("failed to create asset directory %s: %w", destDir, err)
	}

	references := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		data, err := os.ReadFile(filepath.Join(sourceDir, name))
		if err != nil {
			log.Error("Failed to read asset file", zap.String("file", name), zap.Error(err))
			return nil, fmt.Errorf("failed to read asset file %s: %w", name, err)
		}

		destPath := filepath.Join(destDir, name)
		// Права доступа rw-r--r--
		if err := os.WriteFile(destPath, data, 0644); err != nil {
			log.Error("Failed to write asset file", zap.String("path", destPath), zap.Error(err))
			return nil, fmt.Errorf("failed to write asset file %s: %w", destPath, err)
		}

		references[name] = fmt.Sprintf("%s/%s/%s", s.baseURL, destCharacterID.String(), name)
	}

	log.Info("Character assets copied", zap.Int("count", len(references)))
	return references, nil
}
