package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/cmd/registry/repository"
	"github.com/lyzr/registry/common/config"
)

// Allocator issues asset ids. Every call receives repositories bound to the
// caller's transaction, so a counter bump commits or rolls back together
// with the insert that consumes it.
type Allocator interface {
	// Next returns prefix + the next numeric suffix
	Next(ctx context.Context, repos repository.Repositories, prefix string) (string, error)

	// Last returns the most recently issued suffix
	Last(ctx context.Context, repos repository.Repositories) (string, error)

	// Set overrides the counter
	Set(ctx context.Context, repos repository.Repositories, last uint64) error

	// Seed prepares a fresh store
	Seed(ctx context.Context, repos repository.Repositories) error

	Name() string
}

// NewAllocator returns the allocator for a configured strategy
func NewAllocator(strategy string) (Allocator, error) {
	switch strategy {
	case config.StrategyCounter, "":
		return CounterAllocator{}, nil
	case config.StrategyCount:
		return CountAllocator{}, nil
	default:
		return nil, fmt.Errorf("unknown id strategy: %s", strategy)
	}
}

// CounterAllocator keeps the last issued suffix under settings "last_id".
// Suffixes never repeat, even after deletes.
type CounterAllocator struct{}

func (CounterAllocator) Name() string { return config.StrategyCounter }

func (a CounterAllocator) Next(ctx context.Context, repos repository.Repositories, prefix string) (string, error) {
	last, err := a.current(ctx, repos)
	if err != nil {
		return "", err
	}
	if last == ^uint64(0) {
		return "", fmt.Errorf("%w: counter exhausted", models.ErrCounterInvalid)
	}

	next := last + 1
	if err := repos.Settings.SetLastID(ctx, strconv.FormatUint(next, 10)); err != nil {
		return "", err
	}
	return prefix + strconv.FormatUint(next, 10), nil
}

func (a CounterAllocator) Last(ctx context.Context, repos repository.Repositories) (string, error) {
	last, err := a.current(ctx, repos)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(last, 10), nil
}

// Set refuses to move the counter backwards. A missing or corrupt counter
// may be set to any value.
func (a CounterAllocator) Set(ctx context.Context, repos repository.Repositories, last uint64) error {
	current, err := a.current(ctx, repos)
	switch {
	case errors.Is(err, models.ErrCounterMissing), errors.Is(err, models.ErrCounterInvalid):
	case err != nil:
		return err
	case last < current:
		return fmt.Errorf("%w: last id %d is below current counter %d", models.ErrUnableToUpdate, last, current)
	}
	return repos.Settings.SetLastID(ctx, strconv.FormatUint(last, 10))
}

func (CounterAllocator) Seed(ctx context.Context, repos repository.Repositories) error {
	if _, found, err := repos.Settings.GetLastID(ctx); err != nil || found {
		return err
	}
	return repos.Settings.SetLastID(ctx, "0")
}

func (CounterAllocator) current(ctx context.Context, repos repository.Repositories) (uint64, error) {
	raw, found, err := repos.Settings.GetLastID(ctx)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, models.ErrCounterMissing
	}

	last, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", models.ErrCounterInvalid, raw)
	}
	return last, nil
}

// CountAllocator derives the suffix from the asset count (count + 1).
// Deletes can make count + 1 name a live asset, so the suffix is raised
// until prefix + suffix is free. Ids are unique but not monotonic.
type CountAllocator struct{}

func (CountAllocator) Name() string { return config.StrategyCount }

func (CountAllocator) Next(ctx context.Context, repos repository.Repositories, prefix string) (string, error) {
	n, err := repos.Assets.Count(ctx)
	if err != nil {
		return "", err
	}

	// at most n ids are taken, so one of n+1..2n+1 is free
	for suffix := n + 1; ; suffix++ {
		id := prefix + strconv.FormatUint(suffix, 10)
		existing, err := repos.Assets.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return id, nil
		}
	}
}

func (CountAllocator) Last(ctx context.Context, repos repository.Repositories) (string, error) {
	n, err := repos.Assets.Count(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(n, 10), nil
}

func (CountAllocator) Set(context.Context, repository.Repositories, uint64) error {
	return fmt.Errorf("%w: the count strategy has no counter", models.ErrUnableToUpdate)
}

func (CountAllocator) Seed(context.Context, repository.Repositories) error {
	return nil
}
