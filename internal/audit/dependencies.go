package audit

import (
	"context"

	"github.com/temirov/dockwise/internal/buildstage"
	"github.com/temirov/dockwise/internal/completeness"
	"github.com/temirov/dockwise/internal/dockerfile"
	"github.com/temirov/dockwise/internal/manifest"
	"github.com/temirov/dockwise/internal/packages"
	"github.com/temirov/dockwise/internal/report"
	"github.com/temirov/dockwise/internal/sourcescan"
)

// SourceScanner finds the commands a project's sources invoke.
type SourceScanner interface {
	Scan(executionContext context.Context, projectRoot string) (sourcescan.ScanResult, error)
}

// CommandResolver maps a command to the package providing it.
type CommandResolver interface {
	Resolve(executionContext context.Context, command string) packages.Resolution
}

// MetadataPrefetcher warms resolutions and closures before the sequential passes read them.
type MetadataPrefetcher interface {
	Commands(executionContext context.Context, commands []string) error
	Packages(executionContext context.Context, packageNames []string) error
}

// ManifestExtractor reads the module manifest and its lock file.
type ManifestExtractor interface {
	Extract(goModPath string) (manifest.Manifest, error)
}

// DockerfileParser reads build stages from Dockerfile text.
type DockerfileParser interface {
	Parse(content string) dockerfile.Description
}

// CompletenessCalculator reconciles requirements with stage inventories.
type CompletenessCalculator interface {
	Calculate(executionContext context.Context, input completeness.Input) completeness.Report
	DockerfileRequirements(description dockerfile.Description, dockerfilePath string, invocations []sourcescan.CommandInvocation, resolutions map[string]packages.Resolution) []buildstage.Requirement
}

// ReportSink renders the finished report.
type ReportSink interface {
	Write(auditReport completeness.Report, format report.Format) error
}

// ToolProbe checks whether a package tool is installed.
type ToolProbe interface {
	IsExecutableOnPath(command string) bool
}

// QuerySummarizer reports metadata query totals once the audit finishes.
type QuerySummarizer interface {
	LogSummary()
}

// ResolutionStatistics exposes how much memoized resolution work a run performed.
type ResolutionStatistics interface {
	ResolvedCommandCount() int
	ExpandedPackageCount() int
}
