package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/cmd/registry/repository"
	"github.com/lyzr/registry/common/cache"
	"github.com/lyzr/registry/common/durable"
	"github.com/lyzr/registry/common/logger"
	"github.com/stretchr/testify/require"
)

const (
	testOwner    models.Principal = "owner-principal"
	testUploader models.Principal = "uploader-principal"
	testStranger models.Principal = "stranger-principal"
)

type testRegistry struct {
	*RegistryService
	store    durable.Store
	memCache *cache.MemoryCache
	path     string
}

type testOptions struct {
	strategy    string
	ownerDelete bool
	noCache     bool

	cacheMaxAssetBytes int64
}

func newTestRegistry(t *testing.T, opts testOptions) *testRegistry {
	t.Helper()

	path := filepath.Join(t.TempDir(), "registry.db")
	return openTestRegistry(t, path, opts)
}

func openTestRegistry(t *testing.T, path string, opts testOptions) *testRegistry {
	t.Helper()

	store, err := durable.OpenSQLite(path, repository.Tables()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	alloc, err := NewAllocator(opts.strategy)
	require.NoError(t, err)

	filters, err := NewFilterEvaluator(16)
	require.NoError(t, err)

	log := logger.Discard()

	var c cache.Cache
	var mc *cache.MemoryCache
	if !opts.noCache {
		mc, err = cache.NewMemoryCache(cache.MemoryConfig{}, log)
		require.NoError(t, err)
		t.Cleanup(func() { _ = mc.Close() })
		c = mc
	}

	svc := NewRegistryService(store, NewAccessGate(), alloc, c, filters, RegistryConfig{
		AllowServiceOwnerDelete: opts.ownerDelete,
		CacheTTL:                time.Minute,
		CacheMaxAssetBytes:      opts.cacheMaxAssetBytes,
	}, log)
	require.NoError(t, svc.Init(context.Background(), testOwner))

	return &testRegistry{RegistryService: svc, store: store, memCache: mc, path: path}
}

func newAsset(owner models.Principal, content, fileName string) *models.Asset {
	return &models.Asset{Owner: owner, Content: []byte(content), FileName: fileName}
}
