package cache

import (
	"context"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
)

// SettingsCache caches document numbering settings, which are read on every
// PDF render but change rarely. Invalidate is called whenever settings are
// written so the next read goes back to the datastore.
type SettingsCache interface {
	Get(ctx context.Context, typ domain.DocumentType) (*domain.DocumentSettings, bool, error)
	Set(ctx context.Context, typ domain.DocumentType, value *domain.DocumentSettings, ttl time.Duration) error
	Invalidate(ctx context.Context, typ domain.DocumentType) error
}

type NoopSettingsCache struct{}

func (NoopSettingsCache) Get(_ context.Context, _ domain.DocumentType) (*domain.DocumentSettings, bool, error) {
	return nil, false, nil
}

func (NoopSettingsCache) Set(_ context.Context, _ domain.DocumentType, _ *domain.DocumentSettings, _ time.Duration) error {
	return nil
}

func (NoopSettingsCache) Invalidate(_ context.Context, _ domain.DocumentType) error {
	return nil
}
