package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/dockwise/internal/buildstage"
	"github.com/temirov/dockwise/internal/completeness"
	"github.com/temirov/dockwise/internal/dockerfile"
	"github.com/temirov/dockwise/internal/manifest"
	"github.com/temirov/dockwise/internal/packages"
)

const (
	contentsToolNameConstant           = "apt-file"
	parentDirectoryConstant            = ".."
	scanErrorTemplateConstant          = "unable to scan project sources: %w"
	manifestErrorTemplateConstant      = "unable to read module manifest: %w"
	prefetchErrorTemplateConstant      = "package metadata prefetch interrupted: %w"
	reportErrorTemplateConstant        = "unable to write report: %w"
	contentsToolMissingMessageConstant = "apt-file is not installed; commands outside installed packages cannot be resolved (install apt-file and run apt-file update)"
	sourcesScannedMessageConstant      = "Scanned project sources"
	manifestSkippedMessageConstant     = "Skipping module manifest requirements"
	auditFinishedMessageConstant       = "Audit finished"
	logFieldFilesConstant              = "files"
	logFieldCommandsConstant           = "commands"
	logFieldReasonConstant             = "reason"
	logFieldMissingConstant            = "missing_packages"
	logFieldUnsatisfiedConstant        = "unsatisfied_requirements"
	logFieldConflictsConstant          = "conflicts"
	logFieldResolvedCommandsConstant   = "resolved_commands"
	logFieldExpandedPackagesConstant   = "expanded_packages"
)

// ServiceDependencies wires the audit pipeline. Prefetcher, ManifestExtractor, ToolProbe, QuerySummarizer and Statistics are optional.
type ServiceDependencies struct {
	Scanner           SourceScanner
	Resolver          CommandResolver
	Prefetcher        MetadataPrefetcher
	ManifestExtractor ManifestExtractor
	Rules             manifest.RuleSet
	DockerfileParser  DockerfileParser
	Calculator        CompletenessCalculator
	Sink              ReportSink
	ToolProbe         ToolProbe
	QuerySummarizer   QuerySummarizer
	Statistics        ResolutionStatistics
	Logger            *zap.Logger
}

// Service runs one audit from source scan to rendered report.
type Service struct {
	dependencies ServiceDependencies
	logger       *zap.Logger
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	switch {
	case dependencies.Scanner == nil:
		return nil, ErrScannerNotConfigured
	case dependencies.Resolver == nil:
		return nil, ErrResolverNotConfigured
	case dependencies.Calculator == nil:
		return nil, ErrCalculatorNotConfigured
	case dependencies.Sink == nil:
		return nil, ErrSinkNotConfigured
	}
	if dependencies.DockerfileParser == nil {
		dependencies.DockerfileParser = dockerfile.NewParser(dockerfile.ParserConfiguration{})
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{dependencies: dependencies, logger: logger}, nil
}

// Run audits the project described by options and writes the report to the sink.
func (service *Service) Run(executionContext context.Context, options Options) (completeness.Report, error) {
	if inputError := checkProjectRoot(options.ProjectRoot); inputError != nil {
		return completeness.Report{}, inputError
	}
	dockerfileContent, readError := os.ReadFile(options.DockerfilePath)
	if readError != nil {
		return completeness.Report{}, InputMissingError{Artifact: ArtifactDockerfile, Path: options.DockerfilePath, Cause: readError}
	}

	scanResult, scanError := service.dependencies.Scanner.Scan(executionContext, options.ProjectRoot)
	if scanError != nil {
		return completeness.Report{}, fmt.Errorf(scanErrorTemplateConstant, scanError)
	}
	invocations := scanResult.Index.Invocations()
	commands := scanResult.Index.Commands()
	service.logger.Info(sourcesScannedMessageConstant,
		zap.Int(logFieldFilesConstant, scanResult.AnalyzedFiles),
		zap.Int(logFieldCommandsConstant, scanResult.Index.Len()),
	)

	if service.dependencies.ToolProbe != nil && !service.dependencies.ToolProbe.IsExecutableOnPath(contentsToolNameConstant) {
		service.logger.Warn(contentsToolMissingMessageConstant)
	}

	description := service.dependencies.DockerfileParser.Parse(string(dockerfileContent))
	if prefetcher := service.dependencies.Prefetcher; prefetcher != nil {
		if prefetchError := prefetcher.Commands(executionContext, commands); prefetchError != nil {
			return completeness.Report{}, fmt.Errorf(prefetchErrorTemplateConstant, prefetchError)
		}
		if prefetchError := prefetcher.Packages(executionContext, description.InstalledPackages()); prefetchError != nil {
			return completeness.Report{}, fmt.Errorf(prefetchErrorTemplateConstant, prefetchError)
		}
	}

	resolutions := make(map[string]packages.Resolution, len(commands))
	for _, command := range commands {
		resolutions[command] = service.dependencies.Resolver.Resolve(executionContext, command)
	}

	requirements, manifestError := service.manifestRequirements(options, scanResult.CgoFiles)
	if manifestError != nil {
		return completeness.Report{}, manifestError
	}
	requirements = append(requirements, service.dependencies.Calculator.DockerfileRequirements(
		description,
		relativeTo(options.ProjectRoot, options.DockerfilePath),
		invocations,
		resolutions,
	)...)

	auditReport := service.dependencies.Calculator.Calculate(executionContext, completeness.Input{
		Invocations:     invocations,
		Resolutions:     resolutions,
		Requirements:    requirements,
		Description:     description,
		Recommendations: dockerfile.Recommend(string(dockerfileContent)),
	})

	if writeError := service.dependencies.Sink.Write(auditReport, options.Format); writeError != nil {
		return auditReport, fmt.Errorf(reportErrorTemplateConstant, writeError)
	}

	if service.dependencies.QuerySummarizer != nil {
		service.dependencies.QuerySummarizer.LogSummary()
	}
	summaryFields := []zap.Field{
		zap.Int(logFieldMissingConstant, auditReport.MissingCount()),
		zap.Int(logFieldUnsatisfiedConstant, len(auditReport.UnsatisfiedRequirements())),
		zap.Int(logFieldConflictsConstant, len(auditReport.Conflicts)),
	}
	if statistics := service.dependencies.Statistics; statistics != nil {
		summaryFields = append(summaryFields,
			zap.Int(logFieldResolvedCommandsConstant, statistics.ResolvedCommandCount()),
			zap.Int(logFieldExpandedPackagesConstant, statistics.ExpandedPackageCount()),
		)
	}
	service.logger.Info(auditFinishedMessageConstant, summaryFields...)
	return auditReport, nil
}

// manifestRequirements derives module requirements. A missing go.mod or go.sum is logged and only cgo rules apply.
func (service *Service) manifestRequirements(options Options, cgoFiles []string) ([]buildstage.Requirement, error) {
	cgoOnlyRules := manifest.RuleSet{Native: service.dependencies.Rules.Native}
	if service.dependencies.ManifestExtractor == nil || len(options.GoModPath) == 0 {
		return cgoOnlyRules.Requirements(manifest.Manifest{}, cgoFiles), nil
	}

	moduleManifest, extractError := service.dependencies.ManifestExtractor.Extract(options.GoModPath)
	if extractError != nil {
		var missingInput InputMissingError
		switch {
		case errors.Is(extractError, manifest.ErrManifestNotFound):
			missingInput = InputMissingError{Artifact: ArtifactManifest, Path: options.GoModPath}
		case errors.Is(extractError, manifest.ErrLockFileNotFound):
			missingInput = InputMissingError{Artifact: ArtifactLockFile, Path: filepath.Join(filepath.Dir(options.GoModPath), string(ArtifactLockFile))}
		default:
			return nil, fmt.Errorf(manifestErrorTemplateConstant, extractError)
		}
		service.logger.Warn(manifestSkippedMessageConstant, zap.String(logFieldReasonConstant, missingInput.Error()))
		return cgoOnlyRules.Requirements(manifest.Manifest{}, cgoFiles), nil
	}

	moduleManifest.Path = relativeTo(options.ProjectRoot, moduleManifest.Path)
	return service.dependencies.Rules.Requirements(moduleManifest, cgoFiles), nil
}

func checkProjectRoot(projectRoot string) error {
	rootInfo, statError := os.Stat(projectRoot)
	if statError != nil {
		return InputMissingError{Artifact: ArtifactProjectDirectory, Path: projectRoot, Cause: statError}
	}
	if !rootInfo.IsDir() {
		return InputMissingError{Artifact: ArtifactProjectDirectory, Path: projectRoot}
	}
	return nil
}

func relativeTo(projectRoot string, candidatePath string) string {
	relativePath, relativeError := filepath.Rel(projectRoot, candidatePath)
	if relativeError != nil || filepath.IsAbs(relativePath) || len(relativePath) == 0 {
		return candidatePath
	}
	if relativePath == parentDirectoryConstant || strings.HasPrefix(relativePath, parentDirectoryConstant+string(filepath.Separator)) {
		return candidatePath
	}
	return filepath.ToSlash(relativePath)
}
