package service

import (
	"context"
	"sync"
	"testing"

	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/cmd/registry/repository"
	"github.com/lyzr/registry/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Scenario(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter, ownerDelete: true})

	owner, err := reg.GetOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, testOwner, owner)

	asset := newAsset(testOwner, "x", "f")
	id, err := reg.AddAsset(ctx, testOwner, asset, "")
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	got, err := reg.GetAsset(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *asset, *got)

	msg, err := reg.DeleteAsset(ctx, testOwner, "1")
	require.NoError(t, err)
	assert.Equal(t, "Asset deleted:f", msg)

	got, err = reg.GetAsset(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistry_Init(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter})

	// same owner again is a no-op
	require.NoError(t, reg.Init(ctx, testOwner))

	err := reg.Init(ctx, testStranger)
	assert.ErrorIs(t, err, models.ErrOwnerImmutable)

	owner, err := reg.GetOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, testOwner, owner)

	assert.Error(t, reg.Init(ctx, ""))
}

func TestRegistry_AddAssetUploaderMismatch(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter})

	_, err := reg.AddAsset(ctx, testStranger, newAsset(testUploader, "x", "f"), "")
	assert.ErrorIs(t, err, models.ErrUploaderMismatch)

	// the service owner cannot upload on someone else's behalf either
	_, err = reg.AddAsset(ctx, testOwner, newAsset(testUploader, "x", "f"), "")
	assert.ErrorIs(t, err, models.ErrUploaderMismatch)

	_, err = reg.AddAsset(ctx, "", newAsset("", "x", "f"), "")
	assert.ErrorIs(t, err, models.ErrUploaderMismatch)

	n, err := reg.GetAssetsLength(ctx, testOwner)
	require.NoError(t, err)
	assert.Zero(t, n)

	last, err := reg.GetLastID(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "0", last)
}

func TestRegistry_AddAssetWithPrefix(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter})

	id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "a", "a.png"), "img-")
	require.NoError(t, err)
	assert.Equal(t, "img-1", id)

	id, err = reg.AddAsset(ctx, testUploader, newAsset(testUploader, "b", "b.png"), "")
	require.NoError(t, err)
	assert.Equal(t, "2", id)
}

func TestRegistry_DeletePolicy(t *testing.T) {
	tests := []struct {
		name        string
		ownerDelete bool
		caller      models.Principal
		wantErr     error
	}{
		{"asset owner", false, testUploader, nil},
		{"asset owner with bypass", true, testUploader, nil},
		{"service owner with bypass", true, testOwner, nil},
		{"service owner without bypass", false, testOwner, models.ErrUnauthorized},
		{"stranger", true, testStranger, models.ErrUnauthorized},
		{"anonymous", true, "", models.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter, ownerDelete: tt.ownerDelete})

			id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "x", "doc.pdf"), "")
			require.NoError(t, err)

			msg, err := reg.DeleteAsset(ctx, tt.caller, id)

			n, lenErr := reg.GetAssetsLength(ctx, testOwner)
			require.NoError(t, lenErr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, uint64(1), n)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Asset deleted:doc.pdf", msg)
			assert.Zero(t, n)
		})
	}
}

func TestRegistry_DeleteNotFound(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter, ownerDelete: true})

	_, err := reg.DeleteAsset(ctx, testOwner, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "x", "f"), "")
	require.NoError(t, err)
	_, err = reg.DeleteAsset(ctx, testUploader, id)
	require.NoError(t, err)

	_, err = reg.DeleteAsset(ctx, testUploader, id)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegistry_ConcurrentDeleteReportsOneWinner(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter, ownerDelete: true})

	id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "x", "f"), "")
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.DeleteAsset(ctx, testUploader, id)
		}(i)
	}
	wg.Wait()

	var ok, notFound int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, models.ErrNotFound):
			notFound++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, notFound)
}

func TestRegistry_OwnerOnlyQueries(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter})

	for _, caller := range []models.Principal{testUploader, testStranger, ""} {
		_, err := reg.GetAllAssets(ctx, caller, "")
		assert.ErrorIs(t, err, models.ErrUnauthorized)

		_, err = reg.GetAssetsLength(ctx, caller)
		assert.ErrorIs(t, err, models.ErrUnauthorized)

		_, err = reg.GetLastID(ctx, caller)
		assert.ErrorIs(t, err, models.ErrUnauthorized)

		assert.ErrorIs(t, reg.SetLastID(ctx, caller, "10"), models.ErrUnauthorized)
	}
}

func TestRegistry_GetAllAssetsReflectsTable(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter})

	all, err := reg.GetAllAssets(ctx, testOwner, "")
	require.NoError(t, err)
	assert.Empty(t, all)

	for _, name := range []string{"a.png", "b.txt", "c.png"} {
		_, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, name, name), "")
		require.NoError(t, err)
	}
	_, err = reg.DeleteAsset(ctx, testUploader, "2")
	require.NoError(t, err)

	all, err = reg.GetAllAssets(ctx, testOwner, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "a.png", all[0].Asset.FileName)
	assert.Equal(t, "3", all[1].ID)
	assert.Equal(t, "c.png", all[1].Asset.FileName)

	n, err := reg.GetAssetsLength(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	filtered, err := reg.GetAllAssets(ctx, testOwner, `file_name.endsWith(".png") && id != "1"`)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "3", filtered[0].ID)

	_, err = reg.GetAllAssets(ctx, testOwner, `file_name +`)
	assert.ErrorIs(t, err, models.ErrInvalidFilter)
}

func TestRegistry_LastID(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter})

	_, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "x", "f"), "")
	require.NoError(t, err)

	last, err := reg.GetLastID(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "1", last)

	assert.ErrorIs(t, reg.SetLastID(ctx, testOwner, "abc"), models.ErrUnableToUpdate)
	assert.ErrorIs(t, reg.SetLastID(ctx, testOwner, "-3"), models.ErrUnableToUpdate)
	assert.ErrorIs(t, reg.SetLastID(ctx, testOwner, "0"), models.ErrUnableToUpdate)

	require.NoError(t, reg.SetLastID(ctx, testOwner, "100"))

	id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "y", "g"), "")
	require.NoError(t, err)
	assert.Equal(t, "101", id)
}

func TestRegistry_CounterMissingFailsAdd(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter})

	_, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "x", "f"), "")
	require.NoError(t, err)

	settings := repository.Bind(reg.store).Settings
	require.NoError(t, settings.ClearLastID(ctx))

	_, err = reg.AddAsset(ctx, testUploader, newAsset(testUploader, "y", "g"), "")
	assert.ErrorIs(t, err, models.ErrCounterMissing)

	require.NoError(t, settings.SetLastID(ctx, "garbage"))
	_, err = reg.AddAsset(ctx, testUploader, newAsset(testUploader, "y", "g"), "")
	assert.ErrorIs(t, err, models.ErrCounterInvalid)

	n, err := reg.GetAssetsLength(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	// repairing below an existing id skips it instead of overwriting it
	require.NoError(t, reg.SetLastID(ctx, testOwner, "0"))
	id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "y", "g"), "")
	require.NoError(t, err)
	assert.Equal(t, "2", id)

	got, err := reg.GetAsset(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("x"), got.Content)

	last, err := reg.GetLastID(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "2", last)
}

func TestRegistry_PrefixedIDsDoNotBlockAllocation(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		want     []string
		lastID   string
	}{
		{
			name:     "counter",
			strategy: config.StrategyCounter,
			want:     []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "12", "13", "14", "15", "16"},
			lastID:   "16",
		},
		{
			name:     "count",
			strategy: config.StrategyCount,
			want:     []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "12", "13", "14", "15", "16"},
			lastID:   "15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			reg := newTestRegistry(t, testOptions{strategy: tt.strategy})

			// "1" + suffix 1 takes the id unprefixed suffix 11 would get
			id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "p", "taken"), "1")
			require.NoError(t, err)
			require.Equal(t, "11", id)

			var got []string
			for i := 0; i < len(tt.want); i++ {
				id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "x", "f"), "")
				require.NoError(t, err)
				got = append(got, id)
			}
			assert.Equal(t, tt.want, got)

			taken, err := reg.GetAsset(ctx, "11")
			require.NoError(t, err)
			require.NotNil(t, taken)
			assert.Equal(t, "taken", taken.FileName)

			last, err := reg.GetLastID(ctx, testOwner)
			require.NoError(t, err)
			assert.Equal(t, tt.lastID, last)
		})
	}
}

func TestRegistry_CountStrategySkipsLiveIDs(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCount})

	for i := 0; i < 2; i++ {
		_, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "x", "f"), "")
		require.NoError(t, err)
	}
	_, err := reg.DeleteAsset(ctx, testUploader, "1")
	require.NoError(t, err)

	// count is 1 again, so count+1 names the live "2"
	id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "y", "g"), "")
	require.NoError(t, err)
	assert.Equal(t, "3", id)

	got, err := reg.GetAsset(ctx, "2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("x"), got.Content)

	last, err := reg.GetLastID(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "2", last)

	assert.ErrorIs(t, reg.SetLastID(ctx, testOwner, "5"), models.ErrUnableToUpdate)
}

func TestRegistry_GetAssetCacheInvalidatedOnDelete(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter})

	id, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "x", "f"), "")
	require.NoError(t, err)

	// first read fills the cache, second is served from it
	for i := 0; i < 2; i++ {
		got, err := reg.GetAsset(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
	}

	_, err = reg.DeleteAsset(ctx, testUploader, id)
	require.NoError(t, err)

	got, err := reg.GetAsset(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistry_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	opts := testOptions{strategy: config.StrategyCounter, noCache: true}
	reg := newTestRegistry(t, opts)

	for i := 0; i < 3; i++ {
		_, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "x", "f"), "")
		require.NoError(t, err)
	}
	_, err := reg.DeleteAsset(ctx, testUploader, "3")
	require.NoError(t, err)
	require.NoError(t, reg.store.Close())

	restarted := openTestRegistry(t, reg.path, opts)

	n, err := restarted.GetAssetsLength(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	// the counter survives, so "3" is never reissued
	id, err := restarted.AddAsset(ctx, testUploader, newAsset(testUploader, "y", "g"), "")
	require.NoError(t, err)
	assert.Equal(t, "4", id)
}

func TestRegistry_OpaqueBytesRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter})

	uploader := models.Principal("uploader-principal\xfe")
	asset := &models.Asset{Owner: uploader, Content: []byte{0x00, 0xff}, FileName: "a\xffb"}

	id, err := reg.AddAsset(ctx, uploader, asset, "")
	require.NoError(t, err)

	// first read fills the cache, second is served from it
	for i := 0; i < 2; i++ {
		got, err := reg.GetAsset(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *asset, *got)
	}

	entries, err := reg.GetAllAssets(ctx, testOwner, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uploader, entries[0].Asset.Owner)

	msg, err := reg.DeleteAsset(ctx, uploader, id)
	require.NoError(t, err)
	assert.Equal(t, "Asset deleted:a\xffb", msg)
}

func TestRegistry_LargeAssetsAreNotCached(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, testOptions{strategy: config.StrategyCounter, cacheMaxAssetBytes: 4})

	small, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "tiny", "s"), "")
	require.NoError(t, err)
	large, err := reg.AddAsset(ctx, testUploader, newAsset(testUploader, "too large", "l"), "")
	require.NoError(t, err)

	for _, id := range []string{small, large} {
		got, err := reg.GetAsset(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
	}

	_, found, err := reg.memCache.Get(ctx, assetCacheKey(small))
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = reg.memCache.Get(ctx, assetCacheKey(large))
	require.NoError(t, err)
	assert.False(t, found)
}
