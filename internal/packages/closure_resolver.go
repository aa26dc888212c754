package packages

import (
	"context"
	"path"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultLibraryPrefixConstant = "lib"
)

var installedBinaryPattern = regexp.MustCompile(`^(/usr)?(/local)?/s?bin/[^/]+$`)

// ClosureResolverConfiguration tunes dependency expansion.
type ClosureResolverConfiguration struct {
	// LibraryPrefixes name runtime-library packages whose own dependencies are not walked.
	LibraryPrefixes []string
}

// ClosureResolver computes what an installed package brings along.
type ClosureResolver struct {
	resolutionContext *ResolutionContext
	metadata          cachedMetadata
	libraryPrefixes   []string
}

// NewClosureResolver constructs a ClosureResolver sharing memoized state through resolutionContext.
func NewClosureResolver(resolutionContext *ResolutionContext, provider MetadataProvider, configuration ClosureResolverConfiguration, logger *zap.Logger) (*ClosureResolver, error) {
	if resolutionContext == nil {
		return nil, ErrResolutionContextNotConfigured
	}
	if provider == nil {
		return nil, ErrMetadataProviderNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	libraryPrefixes := configuration.LibraryPrefixes
	if libraryPrefixes == nil {
		libraryPrefixes = []string{defaultLibraryPrefixConstant}
	}
	return &ClosureResolver{
		resolutionContext: resolutionContext,
		metadata:          cachedMetadata{provider: provider, resolutionContext: resolutionContext, logger: logger},
		libraryPrefixes:   libraryPrefixes,
	}, nil
}

// PackagesProvidedBy returns the sorted transitive hard dependencies of packageName, never including packageName itself.
func (resolver *ClosureResolver) PackagesProvidedBy(executionContext context.Context, packageName string) []string {
	return cloneStrings(resolver.resolutionContext.packageClosures.load(packageName, func() []string {
		return resolver.expand(executionContext, packageName)
	}))
}

// CommandsProvidedBy returns the sorted names of binaries installed by packageName or by anything in its closure.
func (resolver *ClosureResolver) CommandsProvidedBy(executionContext context.Context, packageName string) []string {
	return cloneStrings(resolver.resolutionContext.commandClosures.load(packageName, func() []string {
		commandNames := make(map[string]struct{})
		members := append([]string{packageName}, resolver.PackagesProvidedBy(executionContext, packageName)...)
		for _, member := range members {
			for _, filePath := range resolver.metadata.files(executionContext, member) {
				if installedBinaryPattern.MatchString(filePath) {
					commandNames[path.Base(filePath)] = struct{}{}
				}
			}
		}
		return sortedSet(commandNames)
	}))
}

// expand walks hard dependency edges from root with one visited set for the whole traversal.
func (resolver *ClosureResolver) expand(executionContext context.Context, root string) []string {
	visited := map[string]struct{}{root: {}}
	provided := make(map[string]struct{})
	pending := []string{root}

	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if resolver.isLibrary(current) {
			continue
		}
		for _, dependency := range resolver.metadata.dependencies(executionContext, current) {
			if !dependency.IsHard() || len(dependency.Target) == 0 {
				continue
			}
			if _, seen := visited[dependency.Target]; seen {
				continue
			}
			visited[dependency.Target] = struct{}{}
			provided[dependency.Target] = struct{}{}
			pending = append(pending, dependency.Target)
		}
	}
	return sortedSet(provided)
}

func (resolver *ClosureResolver) isLibrary(packageName string) bool {
	for _, prefix := range resolver.libraryPrefixes {
		if len(prefix) > 0 && strings.HasPrefix(packageName, prefix) {
			return true
		}
	}
	return false
}

func sortedSet(values map[string]struct{}) []string {
	ordered := make([]string, 0, len(values))
	for value := range values {
		ordered = append(ordered, value)
	}
	sort.Strings(ordered)
	return ordered
}

func cloneStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}
