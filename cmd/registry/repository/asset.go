package repository

import (
	"context"
	"fmt"

	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/common/durable"
)

// Durable table names
const (
	AssetsTable   = "assets"
	SettingsTable = "settings"
)

// Tables lists every table the registry declares at open time
func Tables() []string {
	return []string{AssetsTable, SettingsTable}
}

// Repositories groups the registry's repositories over one Tx
type Repositories struct {
	Assets   *AssetRepository
	Settings *SettingsRepository
}

// Bind returns repositories that read and write through tx. Pass the store
// for auto-committed calls, or the Tx handed to Atomic.
func Bind(tx durable.Tx) Repositories {
	return Repositories{
		Assets:   NewAssetRepository(tx),
		Settings: NewSettingsRepository(tx),
	}
}

// AssetRepository maps asset ids to assets
type AssetRepository struct {
	assets *durable.Map[models.Asset]
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(tx durable.Tx) *AssetRepository {
	return &AssetRepository{
		assets: durable.NewMap[models.Asset](tx.Table(AssetsTable), AssetCodec{}),
	}
}

// Get retrieves an asset by id; nil when absent
func (r *AssetRepository) Get(ctx context.Context, id string) (*models.Asset, error) {
	asset, found, err := r.assets.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &asset, nil
}

// Insert stores an asset and reports whether an existing id was overwritten
func (r *AssetRepository) Insert(ctx context.Context, id string, asset *models.Asset) (bool, error) {
	_, replaced, err := r.assets.Insert(ctx, id, *asset)
	if err != nil {
		return false, fmt.Errorf("failed to insert asset: %w", err)
	}
	return replaced, nil
}

// Remove deletes an asset and returns it; nil when it was already gone
func (r *AssetRepository) Remove(ctx context.Context, id string) (*models.Asset, error) {
	asset, found, err := r.assets.Remove(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to remove asset: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &asset, nil
}

// Count returns the number of stored assets
func (r *AssetRepository) Count(ctx context.Context) (uint64, error) {
	n, err := r.assets.Len(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return n, nil
}

// Each calls fn for every asset in id order until fn returns false
func (r *AssetRepository) Each(ctx context.Context, fn func(id string, asset *models.Asset) bool) error {
	err := r.assets.Range(ctx, func(id string, asset models.Asset) bool {
		return fn(id, &asset)
	})
	if err != nil {
		return fmt.Errorf("failed to list assets: %w", err)
	}
	return nil
}
