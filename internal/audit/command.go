package audit

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/dockwise/internal/aptdb"
	"github.com/temirov/dockwise/internal/completeness"
	"github.com/temirov/dockwise/internal/dockerfile"
	"github.com/temirov/dockwise/internal/execshell"
	"github.com/temirov/dockwise/internal/manifest"
	"github.com/temirov/dockwise/internal/packages"
	"github.com/temirov/dockwise/internal/report"
	"github.com/temirov/dockwise/internal/searchpath"
	"github.com/temirov/dockwise/internal/sourcescan"
	"github.com/temirov/dockwise/internal/ui"
	pathutils "github.com/temirov/dockwise/internal/utils/path"
)

const (
	commandUsageConstant            = "audit [PROJECT_DIRECTORY [DOCKERFILE [GO_MOD]]]"
	commandShortDescriptionConstant = "Check that a Dockerfile installs every OS package a Go project needs"
	commandLongDescriptionConstant  = "audit scans the project's Go sources for spawned commands, maps each command to the Debian package providing it, reads module requirements from go.mod, and reports per build stage which packages are installed, which are unexplained, and which are missing."
	maximumArgumentCountConstant    = 3
	flagDockerfileNameConstant      = "dockerfile"
	flagDockerfileUsageConstant     = "Dockerfile to audit, relative to the project directory"
	flagGoModNameConstant           = "gomod"
	flagGoModUsageConstant          = "go.mod to read module requirements from, relative to the project directory"
	flagFormatNameConstant          = "format"
	flagFormatUsageConstant         = "Report format: text, yaml or json"
	flagWorkersNameConstant         = "workers"
	flagWorkersUsageConstant        = "Parallel package metadata queries (0 or 1 resolves sequentially)"
	flagQueryTimeoutNameConstant    = "query-timeout"
	flagQueryTimeoutUsageConstant   = "Time limit for each package metadata query"
)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current audit configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the audit cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	// CommandRunner replaces the operating system runner for dpkg, apt-file and apt-cache.
	CommandRunner execshell.CommandRunner
	// PathLookup replaces exec.LookPath.
	PathLookup searchpath.LookupFunc
	// HomeDirectoryProvider replaces os.UserHomeDir for "~" expansion.
	HomeDirectoryProvider pathutils.HomeDirectoryProvider
}

// Build constructs the audit command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:          commandUsageConstant,
		Short:        commandShortDescriptionConstant,
		Long:         commandLongDescriptionConstant,
		Args:         cobra.MaximumNArgs(maximumArgumentCountConstant),
		SilenceUsage: true,
		RunE:         builder.run,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().String(flagDockerfileNameConstant, "", flagDockerfileUsageConstant)
	command.Flags().String(flagGoModNameConstant, "", flagGoModUsageConstant)
	command.Flags().String(flagFormatNameConstant, "", flagFormatUsageConstant)
	command.Flags().Int(flagWorkersNameConstant, defaults.Workers, flagWorkersUsageConstant)
	command.Flags().Duration(flagQueryTimeoutNameConstant, defaults.QueryTimeout, flagQueryTimeoutUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.resolveLogger()
	configuration := builder.resolveConfiguration()
	configuration = applyArguments(configuration, arguments)
	configuration = applyFlags(command, configuration)
	configuration = configuration.sanitize()

	format, formatError := report.ParseFormat(configuration.Format)
	if formatError != nil {
		return formatError
	}

	homeExpander := pathutils.NewHomeExpanderWithProvider(builder.HomeDirectoryProvider)
	pathResolver := pathutils.NewProjectPathResolver(homeExpander, nil)
	projectDirectory := ""
	if len(arguments) > 0 {
		projectDirectory = arguments[0]
	}
	projectRoot, rootError := pathResolver.ProjectRoot(projectDirectory)
	if rootError != nil {
		return rootError
	}
	options := Options{
		ProjectRoot:    projectRoot,
		DockerfilePath: pathResolver.ArtifactPath(projectRoot, configuration.Dockerfile),
		GoModPath:      pathResolver.ArtifactPath(projectRoot, configuration.GoMod),
		Format:         format,
	}

	service, wiringError := builder.wireService(command, logger, configuration, projectRoot, pathResolver)
	if wiringError != nil {
		return wiringError
	}
	_, runError := service.Run(command.Context(), options)
	return runError
}

func (builder *CommandBuilder) wireService(command *cobra.Command, logger *zap.Logger, configuration CommandConfiguration, projectRoot string, pathResolver *pathutils.ProjectPathResolver) (*Service, error) {
	queryLogger := ui.NewConsoleCommandEventLogger(logger)
	runner := builder.CommandRunner
	if runner == nil {
		runner = execshell.NewOSCommandRunner()
	}
	executor, executorError := execshell.NewShellExecutor(logger, runner,
		execshell.WithCommandTimeout(configuration.QueryTimeout),
		execshell.WithCommandEventObserver(queryLogger),
	)
	if executorError != nil {
		return nil, executorError
	}
	client, clientError := aptdb.NewClient(executor)
	if clientError != nil {
		return nil, clientError
	}

	probeOptions := []searchpath.ProbeOption{searchpath.WithCacheSize(configuration.PathCacheSize)}
	if builder.PathLookup != nil {
		probeOptions = append(probeOptions, searchpath.WithLookupFunc(builder.PathLookup))
	}
	probe, probeError := searchpath.NewProbe(probeOptions...)
	if probeError != nil {
		return nil, probeError
	}

	resolutionContext := packages.NewResolutionContext()
	commandResolver, commandResolverError := packages.NewCommandResolver(resolutionContext, client, probe, packages.CommandResolverConfiguration{
		ProjectRoot:            projectRoot,
		RuntimeManagedPrefixes: pathResolver.ExpandPrefixes(configuration.RuntimeManagedPrefixes),
		ProbeTemplates:         configuration.ProbeTemplates,
	}, logger)
	if commandResolverError != nil {
		return nil, commandResolverError
	}
	closureResolver, closureResolverError := packages.NewClosureResolver(resolutionContext, client, packages.ClosureResolverConfiguration{
		LibraryPrefixes: configuration.LibraryPrefixes,
	}, logger)
	if closureResolverError != nil {
		return nil, closureResolverError
	}

	scanner, scannerError := sourcescan.NewScanner(
		sourcescan.NewExtractor(sourcescan.ExtractorConfiguration{SpawnPrimitives: configuration.SpawnPrimitives, Shells: configuration.Shells}),
		sourcescan.ScannerConfiguration{Directories: configuration.ScanDirectories, SkippedDirectories: configuration.SkippedDirectories},
		logger,
	)
	if scannerError != nil {
		return nil, scannerError
	}

	calculator, calculatorError := completeness.NewCalculator(closureResolver, completeness.CalculatorConfiguration{
		DevelopmentPackages: configuration.DevelopmentPackages,
	})
	if calculatorError != nil {
		return nil, calculatorError
	}

	writer, writerError := report.NewWriter(command.OutOrStdout())
	if writerError != nil {
		return nil, writerError
	}

	dependencies := ServiceDependencies{
		Scanner:           scanner,
		Resolver:          commandResolver,
		ManifestExtractor: manifest.NewExtractor(*configuration.Rules),
		Rules:             *configuration.Rules,
		DockerfileParser:  dockerfile.NewParser(dockerfile.ParserConfiguration{StageAliases: configuration.StageAliases}),
		Calculator:        calculator,
		Sink:              writer,
		ToolProbe:         probe,
		QuerySummarizer:   queryLogger,
		Statistics:        resolutionContext,
		Logger:            logger,
	}
	if configuration.Workers > 1 {
		prefetcher, prefetcherError := packages.NewPrefetcher(commandResolver, closureResolver, configuration.Workers)
		if prefetcherError != nil {
			return nil, prefetcherError
		}
		dependencies.Prefetcher = prefetcher
	}
	return NewService(dependencies)
}

// applyArguments lets positional Dockerfile and go.mod paths override the configuration.
func applyArguments(configuration CommandConfiguration, arguments []string) CommandConfiguration {
	if len(arguments) > 1 {
		configuration.Dockerfile = arguments[1]
	}
	if len(arguments) > 2 {
		configuration.GoMod = arguments[2]
	}
	return configuration
}

// applyFlags lets explicitly set flags override arguments and configuration.
func applyFlags(command *cobra.Command, configuration CommandConfiguration) CommandConfiguration {
	flags := command.Flags()
	if flags.Changed(flagDockerfileNameConstant) {
		configuration.Dockerfile, _ = flags.GetString(flagDockerfileNameConstant)
	}
	if flags.Changed(flagGoModNameConstant) {
		configuration.GoMod, _ = flags.GetString(flagGoModNameConstant)
	}
	if flags.Changed(flagFormatNameConstant) {
		configuration.Format, _ = flags.GetString(flagFormatNameConstant)
	}
	if flags.Changed(flagWorkersNameConstant) {
		configuration.Workers, _ = flags.GetInt(flagWorkersNameConstant)
	}
	if flags.Changed(flagQueryTimeoutNameConstant) {
		configuration.QueryTimeout, _ = flags.GetDuration(flagQueryTimeoutNameConstant)
	}
	return configuration
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}
