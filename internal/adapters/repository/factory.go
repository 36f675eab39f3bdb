package repository

import (
	"context"
	"fmt"

	"github.com/okian/facepace/internal/config"
)

// NewFromConfig builds the leaderboard store selected by cfg.LeaderboardBackend.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (Store, error) {
	switch cfg.LeaderboardBackend {
	case config.LeaderboardMemory:
		return NewTreapStore(opts...), nil
	case config.LeaderboardSQLite:
		return OpenSQLStore(ctx, DialectSQLite, cfg.LeaderboardDSN, opts...)
	case config.LeaderboardPostgres:
		return OpenSQLStore(ctx, DialectPostgres, cfg.LeaderboardDSN, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, cfg.LeaderboardBackend)
	}
}
