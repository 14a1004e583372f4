package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Warm hydrates the historical cache directory from cold storage before the
// cache scan runs. Only .json candle and manifest files are pulled, and files
// already present locally are never overwritten (the local cache wins).
// Returns the number of files hydrated.
func Warm(ctx context.Context, store Storage, cacheDir string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return 0, err
	}

	paths, err := store.List(ctx, "")
	if err != nil {
		return 0, err
	}

	hydrated := 0
	for _, path := range paths {
		if !strings.HasSuffix(path, ".json") {
			continue
		}
		name := filepath.Base(path)
		local := filepath.Join(cacheDir, name)

		if _, err := os.Stat(local); err == nil {
			continue
		}

		data, err := store.Read(ctx, path)
		if err != nil {
			logger.Warn("cache warm read failed, skipping file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		if err := os.WriteFile(local, data, 0o644); err != nil {
			return hydrated, err
		}
		hydrated++
	}

	logger.Info("historical cache warmed",
		zap.String("dir", cacheDir),
		zap.Int("hydrated", hydrated),
	)
	return hydrated, nil
}
