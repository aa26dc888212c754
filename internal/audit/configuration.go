package audit

import (
	"strings"
	"time"

	"github.com/temirov/dockwise/internal/buildstage"
	"github.com/temirov/dockwise/internal/completeness"
	"github.com/temirov/dockwise/internal/dockerfile"
	"github.com/temirov/dockwise/internal/manifest"
	"github.com/temirov/dockwise/internal/packages"
	"github.com/temirov/dockwise/internal/sourcescan"
)

const (
	defaultDockerfileNameConstant = "Dockerfile"
	defaultManifestNameConstant   = "go.mod"
	defaultFormatConstant         = "text"
	defaultWorkersConstant        = 4
	defaultQueryTimeoutConstant   = 10 * time.Second
	defaultPathCacheSizeConstant  = 1024
)

// DefaultRuntimeManagedPrefixes are directories populated by the Go toolchain rather than the OS package manager.
var DefaultRuntimeManagedPrefixes = []string{"$GOBIN", "$GOPATH/bin", "~/go/bin"}

// CommandConfiguration captures persistent settings for the audit command.
type CommandConfiguration struct {
	Dockerfile             string                        `mapstructure:"dockerfile"`
	GoMod                  string                        `mapstructure:"gomod"`
	Format                 string                        `mapstructure:"format"`
	Workers                int                           `mapstructure:"workers"`
	QueryTimeout           time.Duration                 `mapstructure:"query_timeout"`
	PathCacheSize          int                           `mapstructure:"path_cache_size"`
	RuntimeManagedPrefixes []string                      `mapstructure:"runtime_managed_prefixes"`
	LibraryPrefixes        []string                      `mapstructure:"library_prefixes"`
	ProbeTemplates         []string                      `mapstructure:"probe_templates"`
	StageAliases           map[string]buildstage.Stage   `mapstructure:"stage_aliases"`
	DevelopmentPackages    []completeness.DefaultPackage `mapstructure:"development_packages"`
	ScanDirectories        []sourcescan.ScanDirectory    `mapstructure:"scan_directories"`
	SkippedDirectories     []string                      `mapstructure:"skipped_directories"`
	SpawnPrimitives        []sourcescan.SpawnPrimitive   `mapstructure:"spawn_primitives"`
	Shells                 []string                      `mapstructure:"shells"`
	Rules                  *manifest.RuleSet             `mapstructure:"rules"`
}

// DefaultCommandConfiguration returns baseline configuration values for the audit command.
func DefaultCommandConfiguration() CommandConfiguration {
	defaultRules := manifest.DefaultRuleSet()
	return CommandConfiguration{
		Dockerfile:             defaultDockerfileNameConstant,
		GoMod:                  defaultManifestNameConstant,
		Format:                 defaultFormatConstant,
		Workers:                defaultWorkersConstant,
		QueryTimeout:           defaultQueryTimeoutConstant,
		PathCacheSize:          defaultPathCacheSizeConstant,
		RuntimeManagedPrefixes: append([]string(nil), DefaultRuntimeManagedPrefixes...),
		LibraryPrefixes:        []string{"lib"},
		ProbeTemplates:         append([]string(nil), packages.DefaultProbeTemplates...),
		StageAliases:           copyAliases(dockerfile.DefaultStageAliases),
		DevelopmentPackages:    append([]completeness.DefaultPackage(nil), completeness.DefaultDevelopmentPackages...),
		ScanDirectories:        append([]sourcescan.ScanDirectory(nil), sourcescan.DefaultScanDirectories...),
		SkippedDirectories:     append([]string(nil), sourcescan.DefaultSkippedDirectories...),
		SpawnPrimitives:        append([]sourcescan.SpawnPrimitive(nil), sourcescan.DefaultSpawnPrimitives...),
		Shells:                 append([]string(nil), sourcescan.DefaultShells...),
		Rules:                  &defaultRules,
	}
}

// sanitize trims whitespace and fills unset values from the defaults.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.Dockerfile = strings.TrimSpace(configuration.Dockerfile)
	if len(sanitized.Dockerfile) == 0 {
		sanitized.Dockerfile = defaults.Dockerfile
	}
	sanitized.GoMod = strings.TrimSpace(configuration.GoMod)
	if len(sanitized.GoMod) == 0 {
		sanitized.GoMod = defaults.GoMod
	}
	sanitized.Format = strings.TrimSpace(configuration.Format)
	if len(sanitized.Format) == 0 {
		sanitized.Format = defaults.Format
	}
	if sanitized.Workers < 0 {
		sanitized.Workers = 0
	}
	if sanitized.QueryTimeout <= 0 {
		sanitized.QueryTimeout = defaults.QueryTimeout
	}
	if sanitized.PathCacheSize <= 0 {
		sanitized.PathCacheSize = defaults.PathCacheSize
	}
	if sanitized.RuntimeManagedPrefixes == nil {
		sanitized.RuntimeManagedPrefixes = defaults.RuntimeManagedPrefixes
	}
	if sanitized.LibraryPrefixes == nil {
		sanitized.LibraryPrefixes = defaults.LibraryPrefixes
	}
	if len(sanitized.ProbeTemplates) == 0 {
		sanitized.ProbeTemplates = defaults.ProbeTemplates
	}
	if len(sanitized.StageAliases) == 0 {
		sanitized.StageAliases = defaults.StageAliases
	}
	if sanitized.DevelopmentPackages == nil {
		sanitized.DevelopmentPackages = defaults.DevelopmentPackages
	}
	if sanitized.Rules == nil {
		sanitized.Rules = defaults.Rules
	}
	return sanitized
}

func copyAliases(aliases map[string]buildstage.Stage) map[string]buildstage.Stage {
	copied := make(map[string]buildstage.Stage, len(aliases))
	for alias, stage := range aliases {
		copied[alias] = stage
	}
	return copied
}
