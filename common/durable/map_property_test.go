package durable

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestMap_MatchesInMemoryModel replays random insert/remove sequences against
// the store and a plain Go map and compares contents, order and return values.
func TestMap_MatchesInMemoryModel(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("store agrees with a map after any op sequence", prop.ForAll(
		func(ops []int) bool {
			ctx := context.Background()
			store, err := OpenSQLite(filepath.Join(t.TempDir(), "model.db"), "assets")
			if err != nil {
				return false
			}
			defer store.Close()

			m := NewMap[string](store.Table("assets"), StringCodec{})
			model := map[string]string{}

			for i, op := range ops {
				key := "k" + strconv.Itoa(op/2)
				if op%2 == 0 {
					value := strconv.Itoa(i)
					prev, replaced, err := m.Insert(ctx, key, value)
					if err != nil {
						return false
					}
					want, had := model[key]
					if replaced != had || prev != want {
						return false
					}
					model[key] = value
					continue
				}

				removed, found, err := m.Remove(ctx, key)
				if err != nil {
					return false
				}
				want, had := model[key]
				if found != had || removed != want {
					return false
				}
				delete(model, key)
			}

			n, err := m.Len(ctx)
			if err != nil || n != uint64(len(model)) {
				return false
			}

			keys := make([]string, 0, len(model))
			for k := range model {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			entries, err := m.Entries(ctx)
			if err != nil || len(entries) != len(keys) {
				return false
			}
			for i, e := range entries {
				if e.Key != keys[i] || e.Value != model[e.Key] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 11)),
	))

	properties.TestingRun(t)
}
