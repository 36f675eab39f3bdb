// Package sessionstore keeps short-lived session records keyed by id, so a
// client can carry only the session id across navigation.
package sessionstore

import (
	"context"
	"fmt"

	"github.com/okian/facepace/internal/config"
	"github.com/okian/facepace/internal/domain/model"
)

// Store persists session records with a TTL.
type Store interface {
	// Put writes s and refreshes its expiry.
	Put(ctx context.Context, s *model.Session) error

	// Get returns a copy of the record. Returns model.ErrSessionNotFound when
	// unknown or expired.
	Get(ctx context.Context, id string) (*model.Session, error)

	Delete(ctx context.Context, id string) error

	Close() error
}

// NewFromConfig builds the store selected by cfg.SessionBackend.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SessionBackend {
	case config.SessionMemory:
		return NewMemoryStore(WithTTL(cfg.SessionTTL())), nil
	case config.SessionRedis:
		return NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL(),
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.SessionBackend)
	}
}

func clone(s *model.Session) *model.Session {
	c := *s
	c.Report = s.Report.Clone()
	c.Video.Asset = cloneAsset(s.Video.Asset)
	c.Image.Asset = cloneAsset(s.Image.Asset)
	return &c
}

func cloneAsset(a *model.UploadedAsset) *model.UploadedAsset {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
