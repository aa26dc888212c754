package searchpath

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheSizeConstant             = 1024
	executablePermissionMaskConstant     = 0o111
	invalidCacheSizeMessageConstant      = "search path cache size must be positive"
	lookupFunctionMissingMessageConstant = "search path lookup function not configured"
)

var safeCommandNamePattern = regexp.MustCompile(`^[A-Za-z0-9\-_/.]+$`)

var (
	// ErrInvalidCacheSize indicates a non-positive cache size.
	ErrInvalidCacheSize = errors.New(invalidCacheSizeMessageConstant)
	// ErrLookupNotConfigured indicates a nil lookup function option.
	ErrLookupNotConfigured = errors.New(lookupFunctionMissingMessageConstant)
)

// LookupFunc resolves a command name the way exec.LookPath does.
type LookupFunc func(command string) (string, error)

type lookupResult struct {
	path  string
	found bool
}

// ProbeOption customizes a Probe.
type ProbeOption func(probe *Probe) error

// WithLookupFunc replaces exec.LookPath.
func WithLookupFunc(lookup LookupFunc) ProbeOption {
	return func(probe *Probe) error {
		if lookup == nil {
			return ErrLookupNotConfigured
		}
		probe.lookup = lookup
		return nil
	}
}

// WithCacheSize bounds the number of remembered lookups.
func WithCacheSize(size int) ProbeOption {
	return func(probe *Probe) error {
		if size <= 0 {
			return ErrInvalidCacheSize
		}
		probe.cacheSize = size
		return nil
	}
}

// Probe answers whether commands resolve on PATH. Only names made of safe characters are ever looked up.
type Probe struct {
	lookup    LookupFunc
	cacheSize int
	cache     *lru.Cache[string, lookupResult]
}

// NewProbe constructs a Probe backed by exec.LookPath and an LRU cache.
func NewProbe(options ...ProbeOption) (*Probe, error) {
	probe := &Probe{lookup: exec.LookPath, cacheSize: defaultCacheSizeConstant}
	for _, option := range options {
		if option == nil {
			continue
		}
		if optionError := option(probe); optionError != nil {
			return nil, optionError
		}
	}

	cache, cacheError := lru.New[string, lookupResult](probe.cacheSize)
	if cacheError != nil {
		return nil, cacheError
	}
	probe.cache = cache
	return probe, nil
}

// IsExecutableOnPath reports whether the command resolves to an executable.
func (probe *Probe) IsExecutableOnPath(command string) bool {
	_, found := probe.ResolvedPathOf(command)
	return found
}

// ResolvedPathOf returns the absolute location the command resolves to.
func (probe *Probe) ResolvedPathOf(command string) (string, bool) {
	if !IsSafeCommandName(command) {
		return "", false
	}
	if cached, hit := probe.cache.Get(command); hit {
		return cached.path, cached.found
	}

	result := lookupResult{}
	resolvedPath, lookupError := probe.lookup(command)
	if lookupError == nil && len(resolvedPath) > 0 {
		if absolutePath, absoluteError := filepath.Abs(resolvedPath); absoluteError == nil {
			result = lookupResult{path: absolutePath, found: true}
		}
	}
	probe.cache.Add(command, result)
	return result.path, result.found
}

// IsSafeCommandName reports whether the name only contains characters from [A-Za-z0-9-_/.].
func IsSafeCommandName(command string) bool {
	return safeCommandNamePattern.MatchString(command)
}

// IsExecutableFile reports whether path names a regular file with an execute bit set.
func IsExecutableFile(path string) bool {
	fileInfo, statError := os.Stat(path)
	if statError != nil || !fileInfo.Mode().IsRegular() {
		return false
	}
	return fileInfo.Mode().Perm()&executablePermissionMaskConstant != 0
}
