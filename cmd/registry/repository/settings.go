package repository

import (
	"context"
	"fmt"

	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/common/durable"
)

// Settings keys
const (
	OwnerKey  = "owner"
	LastIDKey = "last_id"
)

// SettingsRepository holds the small string-keyed settings table
type SettingsRepository struct {
	settings *durable.Map[string]
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(tx durable.Tx) *SettingsRepository {
	return &SettingsRepository{
		settings: durable.NewMap[string](tx.Table(SettingsTable), durable.StringCodec{}),
	}
}

// GetOwner returns the persisted service owner, or "" when unset
func (r *SettingsRepository) GetOwner(ctx context.Context) (models.Principal, error) {
	owner, _, err := r.settings.Get(ctx, OwnerKey)
	if err != nil {
		return "", fmt.Errorf("failed to get owner: %w", err)
	}
	return models.Principal(owner), nil
}

// SetOwner persists the service owner
func (r *SettingsRepository) SetOwner(ctx context.Context, owner models.Principal) error {
	if _, _, err := r.settings.Insert(ctx, OwnerKey, owner.String()); err != nil {
		return fmt.Errorf("failed to set owner: %w", err)
	}
	return nil
}

// GetLastID returns the raw counter value and whether it exists
func (r *SettingsRepository) GetLastID(ctx context.Context) (string, bool, error) {
	v, found, err := r.settings.Get(ctx, LastIDKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to get last id: %w", err)
	}
	return v, found, nil
}

// SetLastID stores the raw counter value
func (r *SettingsRepository) SetLastID(ctx context.Context, v string) error {
	if _, _, err := r.settings.Insert(ctx, LastIDKey, v); err != nil {
		return fmt.Errorf("failed to set last id: %w", err)
	}
	return nil
}

// ClearLastID removes the counter
func (r *SettingsRepository) ClearLastID(ctx context.Context) error {
	if _, _, err := r.settings.Remove(ctx, LastIDKey); err != nil {
		return fmt.Errorf("failed to clear last id: %w", err)
	}
	return nil
}
