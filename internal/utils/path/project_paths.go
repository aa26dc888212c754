package pathutils

import (
	"os"
	"path/filepath"
)

// EnvironmentLookup reads an environment variable.
type EnvironmentLookup func(name string) (string, bool)

// ProjectPathResolver turns user-supplied locations into absolute, cleaned paths.
type ProjectPathResolver struct {
	homeExpander      *HomeExpander
	environmentLookup EnvironmentLookup
}

// NewProjectPathResolver constructs a resolver. Nil collaborators fall back to the operating system.
func NewProjectPathResolver(homeExpander *HomeExpander, environmentLookup EnvironmentLookup) *ProjectPathResolver {
	if homeExpander == nil {
		homeExpander = NewHomeExpander()
	}
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	return &ProjectPathResolver{homeExpander: homeExpander, environmentLookup: environmentLookup}
}

// ProjectRoot expands and absolutizes the project directory.
func (resolver *ProjectPathResolver) ProjectRoot(candidatePath string) (string, error) {
	if len(candidatePath) == 0 {
		candidatePath = "."
	}
	return filepath.Abs(resolver.homeExpander.Expand(candidatePath))
}

// ArtifactPath resolves candidatePath relative to projectRoot unless it is absolute or home-relative.
func (resolver *ProjectPathResolver) ArtifactPath(projectRoot string, candidatePath string) string {
	expanded := resolver.homeExpander.Expand(candidatePath)
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded)
	}
	return filepath.Join(projectRoot, expanded)
}

// ExpandPrefixes expands environment variables and "~" in each prefix.
// Prefixes naming an unset or empty variable are dropped; the rest are cleaned and deduplicated in order.
func (resolver *ProjectPathResolver) ExpandPrefixes(prefixes []string) []string {
	expandedPrefixes := make([]string, 0, len(prefixes))
	seen := make(map[string]struct{}, len(prefixes))
	for _, prefix := range prefixes {
		unresolved := false
		expanded := os.Expand(prefix, func(name string) string {
			value, present := resolver.environmentLookup(name)
			if !present || len(value) == 0 {
				unresolved = true
			}
			return value
		})
		if unresolved {
			continue
		}
		expanded = resolver.homeExpander.Expand(expanded)
		if !filepath.IsAbs(expanded) {
			continue
		}
		expanded = filepath.Clean(expanded)
		if _, duplicate := seen[expanded]; duplicate {
			continue
		}
		seen[expanded] = struct{}{}
		expandedPrefixes = append(expandedPrefixes, expanded)
	}
	return expandedPrefixes
}
