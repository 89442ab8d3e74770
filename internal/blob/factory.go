package blob

import (
	"context"
	"fmt"

	"github.com/pokhrel-dev/simplechat-sub001/internal/config"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// New creates a Store implementation based on the configured provider.
func New(ctx context.Context, cfg config.BlobConfig, logger log.Logger) (Store, error) {
	switch cfg.Provider {
	case "memory":
		return NewMemoryStore(), nil
	case "minio":
		return NewMinioStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown blob provider: %q", cfg.Provider)
	}
}
