package packages

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

const (
	defaultPrefetchWorkersConstant        = 4
	commandResolverMissingMessageConstant = "command resolver not configured"
	closureResolverMissingMessageConstant = "closure resolver not configured"
)

var (
	// ErrCommandResolverNotConfigured indicates a nil CommandResolver.
	ErrCommandResolverNotConfigured = errors.New(commandResolverMissingMessageConstant)
	// ErrClosureResolverNotConfigured indicates a nil ClosureResolver.
	ErrClosureResolverNotConfigured = errors.New(closureResolverMissingMessageConstant)
)

// Prefetcher warms a ResolutionContext with a bounded pool of workers.
// Results are identical to resolving serially; only the wall-clock time changes.
type Prefetcher struct {
	commandResolver *CommandResolver
	closureResolver *ClosureResolver
	workers         int
}

// NewPrefetcher constructs a Prefetcher. Non-positive worker counts fall back to the default.
func NewPrefetcher(commandResolver *CommandResolver, closureResolver *ClosureResolver, workers int) (*Prefetcher, error) {
	if commandResolver == nil {
		return nil, ErrCommandResolverNotConfigured
	}
	if closureResolver == nil {
		return nil, ErrClosureResolverNotConfigured
	}
	if workers <= 0 {
		workers = defaultPrefetchWorkersConstant
	}
	return &Prefetcher{commandResolver: commandResolver, closureResolver: closureResolver, workers: workers}, nil
}

// Commands resolves every command concurrently.
func (prefetcher *Prefetcher) Commands(executionContext context.Context, commands []string) error {
	return prefetcher.run(executionContext, commands, func(groupContext context.Context, command string) {
		prefetcher.commandResolver.Resolve(groupContext, command)
	})
}

// Packages computes package and command closures for every package concurrently.
func (prefetcher *Prefetcher) Packages(executionContext context.Context, packageNames []string) error {
	return prefetcher.run(executionContext, packageNames, func(groupContext context.Context, packageName string) {
		prefetcher.closureResolver.CommandsProvidedBy(groupContext, packageName)
	})
}

func (prefetcher *Prefetcher) run(executionContext context.Context, keys []string, work func(context.Context, string)) error {
	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(prefetcher.workers)
	for _, key := range keys {
		if groupContext.Err() != nil {
			break
		}
		currentKey := key
		group.Go(func() error {
			if contextError := groupContext.Err(); contextError != nil {
				return contextError
			}
			work(groupContext, currentKey)
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return waitError
	}
	return executionContext.Err()
}
