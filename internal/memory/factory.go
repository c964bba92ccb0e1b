package memory

import (
	"context"
	"fmt"
	"strings"
)

// SnapshotConfig selects and configures the snapshot backend.
type SnapshotConfig struct {
	Backend     string
	Key         string
	Path        string
	RedisURL    string
	DatabaseURL string
}

// NewSnapshotter creates the configured backend. An empty backend means a
// local file, falling back to in-memory when no path is configured.
func NewSnapshotter(ctx context.Context, cfg SnapshotConfig) (Snapshotter, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", "file":
		if strings.TrimSpace(cfg.Path) == "" {
			return NewInMemorySnapshot(), nil
		}
		return NewFileSnapshot(cfg.Path), nil
	case "memory":
		return NewInMemorySnapshot(), nil
	case "redis":
		return NewRedisSnapshot(ctx, cfg.RedisURL, cfg.Key)
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("postgres snapshot backend requires DATABASE_URL")
		}
		return NewPostgresSnapshot(ctx, cfg.DatabaseURL, cfg.Key)
	default:
		return nil, fmt.Errorf("unsupported snapshot backend %q", cfg.Backend)
	}
}
