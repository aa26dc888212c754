package packages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/dockwise/internal/searchpath"
)

const (
	commandPlaceholderConstant               = "{command}"
	wildcardCharacterConstant                = "*"
	projectBinaryDirectoryNameConstant       = "bin"
	projectMainPackagesDirectoryNameConstant = "cmd"
	resolutionContextMissingMessageConstant  = "resolution context not configured"
	metadataProviderMissingMessageConstant   = "package metadata provider not configured"
	searchPathProbeMissingMessageConstant    = "search path probe not configured"
	commandResolvedMessageConstant           = "Resolved command"
	logFieldCommandConstant                  = "command"
	logFieldResolutionConstant               = "resolution"
	logFieldCandidatesConstant               = "candidates"
)

// DefaultProbeTemplates lists the conventional install locations consulted for a command.
var DefaultProbeTemplates = []string{
	"/usr/bin/{command}",
	"/usr/sbin/{command}",
	"/bin/{command}",
	"/sbin/{command}",
	"/usr/local/bin/{command}",
	"*bin*/{command}",
	"{command}",
}

var (
	// ErrResolutionContextNotConfigured indicates a nil ResolutionContext.
	ErrResolutionContextNotConfigured = errors.New(resolutionContextMissingMessageConstant)
	// ErrMetadataProviderNotConfigured indicates a nil MetadataProvider.
	ErrMetadataProviderNotConfigured = errors.New(metadataProviderMissingMessageConstant)
	// ErrSearchPathProbeNotConfigured indicates a nil SearchPathProbe.
	ErrSearchPathProbeNotConfigured = errors.New(searchPathProbeMissingMessageConstant)
)

// CommandResolverConfiguration describes the audited project and where to look for commands.
type CommandResolverConfiguration struct {
	ProjectRoot            string
	RuntimeManagedPrefixes []string
	// ProbeTemplates use {command} as the placeholder; an asterisk makes a template a contents-index pattern only.
	ProbeTemplates []string
}

// CommandResolver maps command names to the OS package that provides them.
type CommandResolver struct {
	resolutionContext *ResolutionContext
	metadata          cachedMetadata
	probe             SearchPathProbe
	configuration     CommandResolverConfiguration
	logger            *zap.Logger
}

// NewCommandResolver constructs a CommandResolver sharing memoized state through resolutionContext.
func NewCommandResolver(resolutionContext *ResolutionContext, provider MetadataProvider, probe SearchPathProbe, configuration CommandResolverConfiguration, logger *zap.Logger) (*CommandResolver, error) {
	if resolutionContext == nil {
		return nil, ErrResolutionContextNotConfigured
	}
	if provider == nil {
		return nil, ErrMetadataProviderNotConfigured
	}
	if probe == nil {
		return nil, ErrSearchPathProbeNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(configuration.ProbeTemplates) == 0 {
		configuration.ProbeTemplates = DefaultProbeTemplates
	}

	return &CommandResolver{
		resolutionContext: resolutionContext,
		metadata:          cachedMetadata{provider: provider, resolutionContext: resolutionContext, logger: logger},
		probe:             probe,
		configuration:     configuration,
		logger:            logger,
	}, nil
}

// Resolve returns the package providing command. The first call per command does the work; later calls reuse it.
func (resolver *CommandResolver) Resolve(executionContext context.Context, command string) Resolution {
	return resolver.resolutionContext.commandResolutions.load(command, func() Resolution {
		return resolver.resolve(executionContext, command)
	})
}

func (resolver *CommandResolver) resolve(executionContext context.Context, command string) Resolution {
	if !searchpath.IsSafeCommandName(command) {
		return NotFound()
	}

	if resolver.isProjectLocal(command) {
		return NotNeeded(ReasonProjectLocal)
	}

	resolvedPath, onSearchPath := resolver.probe.ResolvedPathOf(command)
	if onSearchPath && resolver.isRuntimeManaged(resolvedPath) {
		return NotNeeded(ReasonRuntimeManaged)
	}

	candidates := make(map[string]struct{})
	if onSearchPath && filepath.IsAbs(resolvedPath) {
		for _, owner := range resolver.metadata.owners(executionContext, resolvedPath) {
			candidates[owner] = struct{}{}
		}
	}

	// Owners of the resolved binary outrank anything the conventional locations report.
	if len(candidates) == 0 {
		probePaths := resolver.probePaths(command, resolvedPath, onSearchPath)
		for _, probePath := range probePaths {
			if strings.Contains(probePath, wildcardCharacterConstant) {
				continue
			}
			for _, owner := range resolver.metadata.owners(executionContext, probePath) {
				candidates[owner] = struct{}{}
			}
		}

		if len(candidates) == 0 {
			for _, probePath := range probePaths {
				for _, match := range resolver.metadata.contents(executionContext, probePath) {
					candidates[match] = struct{}{}
				}
			}
		}
	}

	chosenPackage, chosen := selectCandidate(command, candidates)
	resolution := NotFound()
	if chosen {
		resolution = Found(chosenPackage)
	}
	resolver.logger.Debug(
		commandResolvedMessageConstant,
		zap.String(logFieldCommandConstant, command),
		zap.Stringer(logFieldResolutionConstant, resolution),
		zap.Int(logFieldCandidatesConstant, len(candidates)),
	)
	return resolution
}

func (resolver *CommandResolver) isProjectLocal(command string) bool {
	projectRoot := resolver.configuration.ProjectRoot
	if len(projectRoot) == 0 {
		return false
	}
	if searchpath.IsExecutableFile(filepath.Join(projectRoot, command)) {
		return true
	}
	if searchpath.IsExecutableFile(filepath.Join(projectRoot, projectBinaryDirectoryNameConstant, filepath.Base(command))) {
		return true
	}
	directoryInfo, statError := os.Stat(filepath.Join(projectRoot, projectMainPackagesDirectoryNameConstant, command))
	return statError == nil && directoryInfo.IsDir()
}

func (resolver *CommandResolver) isRuntimeManaged(resolvedPath string) bool {
	cleanedPath := filepath.Clean(resolvedPath)
	for _, prefix := range resolver.configuration.RuntimeManagedPrefixes {
		trimmedPrefix := strings.TrimSpace(prefix)
		if len(trimmedPrefix) == 0 {
			continue
		}
		cleanedPrefix := filepath.Clean(trimmedPrefix)
		if strings.HasPrefix(cleanedPath, cleanedPrefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (resolver *CommandResolver) probePaths(command string, resolvedPath string, onSearchPath bool) []string {
	probePaths := make([]string, 0, len(resolver.configuration.ProbeTemplates)+1)
	seen := make(map[string]struct{})
	appendProbe := func(probePath string) {
		if _, duplicate := seen[probePath]; duplicate {
			return
		}
		seen[probePath] = struct{}{}
		probePaths = append(probePaths, probePath)
	}

	if onSearchPath && filepath.IsAbs(resolvedPath) {
		appendProbe(resolvedPath)
	}
	for _, template := range resolver.configuration.ProbeTemplates {
		appendProbe(strings.ReplaceAll(template, commandPlaceholderConstant, command))
	}
	return probePaths
}

// selectCandidate prefers an exact name, then the first name containing the command, then the first name overall.
func selectCandidate(command string, candidates map[string]struct{}) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	if _, exact := candidates[command]; exact {
		return command, true
	}

	orderedCandidates := make([]string, 0, len(candidates))
	for candidate := range candidates {
		orderedCandidates = append(orderedCandidates, candidate)
	}
	sort.Strings(orderedCandidates)

	for _, candidate := range orderedCandidates {
		if strings.Contains(candidate, command) {
			return candidate, true
		}
	}
	return orderedCandidates[0], true
}
