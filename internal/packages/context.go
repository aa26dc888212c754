package packages

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/temirov/dockwise/internal/aptdb"
)

// memoTable remembers one computed value per key. Concurrent loads of the same key share a single computation.
type memoTable[V any] struct {
	mutex  sync.Mutex
	values map[string]V
	group  singleflight.Group
}

func (table *memoTable[V]) lookup(key string) (V, bool) {
	table.mutex.Lock()
	defer table.mutex.Unlock()
	value, found := table.values[key]
	return value, found
}

func (table *memoTable[V]) store(key string, value V) {
	table.mutex.Lock()
	defer table.mutex.Unlock()
	if table.values == nil {
		table.values = make(map[string]V)
	}
	table.values[key] = value
}

func (table *memoTable[V]) load(key string, compute func() V) V {
	if value, found := table.lookup(key); found {
		return value
	}
	sharedValue, _, _ := table.group.Do(key, func() (any, error) {
		if value, found := table.lookup(key); found {
			return value, nil
		}
		computed := compute()
		table.store(key, computed)
		return computed, nil
	})
	return sharedValue.(V)
}

func (table *memoTable[V]) size() int {
	table.mutex.Lock()
	defer table.mutex.Unlock()
	return len(table.values)
}

// ResolutionContext holds the memoized lookups of one analysis run.
// A fresh context must be created for every run; it is safe for concurrent use.
type ResolutionContext struct {
	commandResolutions memoTable[Resolution]
	packageClosures    memoTable[[]string]
	commandClosures    memoTable[[]string]

	dependencies    memoTable[[]aptdb.Dependency]
	fileOwners      memoTable[[]string]
	contentsMatches memoTable[[]string]
	packageFiles    memoTable[[]string]
}

// NewResolutionContext constructs an empty ResolutionContext.
func NewResolutionContext() *ResolutionContext {
	return &ResolutionContext{}
}

// ResolvedCommandCount reports how many distinct commands have been resolved so far.
func (resolutionContext *ResolutionContext) ResolvedCommandCount() int {
	return resolutionContext.commandResolutions.size()
}

// ExpandedPackageCount reports how many distinct package closures have been computed so far.
func (resolutionContext *ResolutionContext) ExpandedPackageCount() int {
	return resolutionContext.packageClosures.size()
}
