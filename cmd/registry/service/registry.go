package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/cmd/registry/repository"
	"github.com/lyzr/registry/common/cache"
	"github.com/lyzr/registry/common/durable"
	"github.com/lyzr/registry/common/logger"
)

// DurationRecorder receives operation timings
type DurationRecorder interface {
	RecordDuration(operation string, start time.Time)
}

// RegistryConfig holds registry policy
type RegistryConfig struct {
	// AllowServiceOwnerDelete lets the service owner delete any asset
	AllowServiceOwnerDelete bool

	// CacheTTL bounds how long GetAsset results are cached; 0 never expires
	CacheTTL time.Duration

	// CacheMaxAssetBytes skips caching assets with more content bytes; 0 caches all
	CacheMaxAssetBytes int64

	// Recorder is optional
	Recorder DurationRecorder
}

// RegistryService is the asset registry. Mutations hold mu across the whole
// check-then-act sequence and run in one store transaction, so a failed call
// leaves durable state unchanged.
type RegistryService struct {
	store   durable.Store
	gate    *AccessGate
	alloc   Allocator
	cache   cache.Cache
	filters *FilterEvaluator
	cfg     RegistryConfig
	log     *logger.Logger

	mu sync.Mutex
}

// NewRegistryService creates a new registry service. c may be nil.
func NewRegistryService(
	store durable.Store,
	gate *AccessGate,
	alloc Allocator,
	c cache.Cache,
	filters *FilterEvaluator,
	cfg RegistryConfig,
	log *logger.Logger,
) *RegistryService {
	return &RegistryService{
		store:   store,
		gate:    gate,
		alloc:   alloc,
		cache:   c,
		filters: filters,
		cfg:     cfg,
		log:     log,
	}
}

// Init persists the service owner on first start. Restarting with the same
// owner is a no-op; a different owner fails with ErrOwnerImmutable.
func (s *RegistryService) Init(ctx context.Context, owner models.Principal) error {
	if owner.IsAnonymous() {
		return fmt.Errorf("service owner identity is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created bool
	err := s.store.Atomic(ctx, func(tx durable.Tx) error {
		repos := repository.Bind(tx)

		existing, err := repos.Settings.GetOwner(ctx)
		if err != nil {
			return err
		}

		switch {
		case existing.IsAnonymous():
			if err := repos.Settings.SetOwner(ctx, owner); err != nil {
				return err
			}
			created = true
			return s.alloc.Seed(ctx, repos)
		case existing.String() != owner.String():
			return fmt.Errorf("%w: persisted owner %s", models.ErrOwnerImmutable, existing)
		default:
			return nil
		}
	})
	if err != nil {
		return err
	}

	s.gate.SetOwner(owner)
	s.log.Info("registry initialized",
		"owner", owner.String(),
		"created", created,
		"id_strategy", s.alloc.Name(),
	)
	return nil
}

// GetOwner returns the service owner
func (s *RegistryService) GetOwner(ctx context.Context) (models.Principal, error) {
	if owner := s.gate.Owner(); !owner.IsAnonymous() {
		return owner, nil
	}
	return repository.Bind(s.store).Settings.GetOwner(ctx)
}

// GetAsset returns the asset stored under id, or nil when absent
func (s *RegistryService) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	defer s.record("get_asset", time.Now())

	if asset, ok := s.cachedAsset(ctx, id); ok {
		return asset, nil
	}

	// fill under mu so a concurrent delete cannot be overwritten by a stale read
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := repository.Bind(s.store).Assets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset != nil {
		s.cacheAsset(ctx, id, asset)
	}
	return asset, nil
}

// GetAllAssets lists every asset in id order. A non-empty filter is a CEL
// expression (see FilterEvaluator); only matching assets are returned.
func (s *RegistryService) GetAllAssets(ctx context.Context, caller models.Principal, filter string) ([]models.AssetEntry, error) {
	defer s.record("get_all_assets", time.Now())

	if err := s.gate.AuthorizeOwner(caller); err != nil {
		s.log.WithCaller(caller.String()).Warn("list rejected", "error", err)
		return nil, err
	}

	var match *Filter
	if filter != "" {
		var err error
		if match, err = s.filters.Compile(filter); err != nil {
			return nil, err
		}
	}

	entries := make([]models.AssetEntry, 0)
	var matchErr error
	err := repository.Bind(s.store).Assets.Each(ctx, func(id string, asset *models.Asset) bool {
		if match != nil {
			ok, err := match.Match(id, asset)
			if err != nil {
				matchErr = err
				return false
			}
			if !ok {
				return true
			}
		}
		entries = append(entries, models.AssetEntry{ID: id, Asset: *asset})
		return true
	})
	if err != nil {
		return nil, err
	}
	if matchErr != nil {
		return nil, matchErr
	}
	return entries, nil
}

// GetAssetsLength returns the number of stored assets
func (s *RegistryService) GetAssetsLength(ctx context.Context, caller models.Principal) (uint64, error) {
	if err := s.gate.AuthorizeOwner(caller); err != nil {
		s.log.WithCaller(caller.String()).Warn("count rejected", "error", err)
		return 0, err
	}
	return repository.Bind(s.store).Assets.Count(ctx)
}

// AddAsset stores an asset uploaded by its own owner and returns the new id
func (s *RegistryService) AddAsset(ctx context.Context, caller models.Principal, asset *models.Asset, prefix string) (string, error) {
	defer s.record("add_asset", time.Now())

	log := s.log.WithCaller(caller.String())

	if asset == nil {
		return "", fmt.Errorf("asset is required")
	}
	if caller.IsAnonymous() || caller.String() != asset.Owner.String() {
		log.Warn("uploader mismatch", "asset_owner", asset.Owner.String())
		return "", models.ErrUploaderMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.store.Atomic(ctx, func(tx durable.Tx) error {
		repos := repository.Bind(tx)

		var err error
		if id, err = s.nextFreeID(ctx, repos, prefix); err != nil {
			return err
		}

		_, err = repos.Assets.Insert(ctx, id, asset)
		return err
	})
	if err != nil {
		log.Warn("add asset failed", "error", err)
		return "", err
	}

	log.WithAssetID(id).Info("asset added",
		"file_name", asset.FileName,
		"size", asset.Size(),
	)
	return id, nil
}

// nextFreeID draws ids until one is not stored. Prefixes are caller chosen,
// so prefix "1" with suffix 1 and no prefix with suffix 11 both give "11";
// occupied ids are skipped, and their consumed suffixes commit with the
// insert. An allocator that repeats an occupied id fails with ErrIDConflict.
func (s *RegistryService) nextFreeID(ctx context.Context, repos repository.Repositories, prefix string) (string, error) {
	var prev string
	for {
		id, err := s.alloc.Next(ctx, repos, prefix)
		if err != nil {
			return "", err
		}

		existing, err := repos.Assets.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return id, nil
		}
		if id == prev {
			return "", fmt.Errorf("%w: %s", models.ErrIDConflict, id)
		}

		s.log.Debug("skipping occupied asset id", "asset_id", id)
		prev = id
	}
}

// DeleteAsset removes an asset and returns a confirmation naming its file.
// The asset owner may delete it; so may the service owner when
// AllowServiceOwnerDelete is set.
func (s *RegistryService) DeleteAsset(ctx context.Context, caller models.Principal, id string) (string, error) {
	defer s.record("delete_asset", time.Now())

	log := s.log.WithCaller(caller.String()).WithAssetID(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed *models.Asset
	err := s.store.Atomic(ctx, func(tx durable.Tx) error {
		repos := repository.Bind(tx)

		asset, err := repos.Assets.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizeDelete(caller, asset); err != nil {
			return err
		}

		removed, err = repos.Assets.Remove(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrUnableToDelete, err)
		}
		if removed == nil {
			return models.ErrUnableToDelete
		}
		return nil
	})
	if err != nil {
		log.Warn("delete asset failed", "error", err)
		return "", err
	}

	s.evictAsset(ctx, id)

	log.Info("asset deleted", "file_name", removed.FileName)
	return "Asset deleted:" + removed.FileName, nil
}

func (s *RegistryService) authorizeDelete(caller models.Principal, asset *models.Asset) error {
	err := s.gate.AuthorizeAssetOwner(caller, asset)
	if err == nil || !errors.Is(err, models.ErrUnauthorized) {
		return err
	}
	if s.cfg.AllowServiceOwnerDelete && s.gate.AuthorizeOwner(caller) == nil {
		return nil
	}
	return err
}

// SetLastID overrides the id counter. value must be an unsigned integer not
// below the current counter.
func (s *RegistryService) SetLastID(ctx context.Context, caller models.Principal, value string) error {
	log := s.log.WithCaller(caller.String())

	if err := s.gate.AuthorizeOwner(caller); err != nil {
		log.Warn("set last id rejected", "error", err)
		return err
	}

	last, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: last id %q is not an unsigned integer", models.ErrUnableToUpdate, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.Atomic(ctx, func(tx durable.Tx) error {
		return s.alloc.Set(ctx, repository.Bind(tx), last)
	})
	if err != nil {
		log.Warn("set last id failed", "error", err)
		return err
	}

	log.Info("last id updated", "last_id", last)
	return nil
}

// GetLastID returns the most recently issued numeric suffix
func (s *RegistryService) GetLastID(ctx context.Context, caller models.Principal) (string, error) {
	if err := s.gate.AuthorizeOwner(caller); err != nil {
		s.log.WithCaller(caller.String()).Warn("get last id rejected", "error", err)
		return "", err
	}
	return s.alloc.Last(ctx, repository.Bind(s.store))
}

// cached values use the store's lossless encoding
var assetCodec repository.AssetCodec

func assetCacheKey(id string) string {
	return "asset:" + id
}

func (s *RegistryService) cachedAsset(ctx context.Context, id string) (*models.Asset, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, found, err := s.cache.Get(ctx, assetCacheKey(id))
	if err != nil {
		s.log.Warn("asset cache read failed", "asset_id", id, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	asset, err := assetCodec.Decode(data)
	if err != nil {
		s.evictAsset(ctx, id)
		return nil, false
	}
	return &asset, true
}

func (s *RegistryService) cacheAsset(ctx context.Context, id string, asset *models.Asset) {
	if s.cache == nil {
		return
	}
	if limit := s.cfg.CacheMaxAssetBytes; limit > 0 && int64(asset.Size()) > limit {
		return
	}

	data, err := assetCodec.Encode(*asset)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, assetCacheKey(id), data, s.cfg.CacheTTL); err != nil {
		s.log.Warn("asset cache write failed", "asset_id", id, "error", err)
	}
}

func (s *RegistryService) evictAsset(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, assetCacheKey(id)); err != nil {
		s.log.Warn("asset cache evict failed", "asset_id", id, "error", err)
	}
}

func (s *RegistryService) record(operation string, start time.Time) {
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.RecordDuration(operation, start)
	}
}
