package audit_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/dockwise/internal/audit"
	"github.com/temirov/dockwise/internal/buildstage"
	"github.com/temirov/dockwise/internal/completeness"
	"github.com/temirov/dockwise/internal/manifest"
	"github.com/temirov/dockwise/internal/packages"
	"github.com/temirov/dockwise/internal/report"
	"github.com/temirov/dockwise/internal/sourcescan"
)

const (
	testMainSourceConstant = `package main

import "os/exec"

func main() {
	_ = exec.Command("mysql", "--version").Run()
}
`
	testCgoSourceConstant = `package native

// #include <stdlib.h>
import "C"
`
	testDockerfileConstant = `FROM debian:bookworm AS base
RUN apt-get update && apt-get install -y --no-install-recommends git ca-certificates default-mysql-client && rm -rf /var/lib/apt/lists/*
FROM base AS build-packages
RUN apt-get update && apt-get install -y --no-install-recommends build-essential && rm -rf /var/lib/apt/lists/*
`
	testGoModConstant = "module example.com/app\n\ngo 1.24\n\nrequire github.com/mattn/go-sqlite3 v1.14.22\n"
	testGoSumConstant = "github.com/mattn/go-sqlite3 v1.14.22 h1:abc=\ngithub.com/mattn/go-sqlite3 v1.14.22/go.mod h1:def=\n"
)

type stubResolver struct {
	resolutions map[string]packages.Resolution
	calls       []string
}

func (resolver *stubResolver) Resolve(_ context.Context, command string) packages.Resolution {
	resolver.calls = append(resolver.calls, command)
	return resolver.resolutions[command]
}

type stubRelation struct {
	packagesByInstaller map[string][]string
	commandsByInstaller map[string][]string
}

func (relation stubRelation) PackagesProvidedBy(_ context.Context, packageName string) []string {
	return relation.packagesByInstaller[packageName]
}

func (relation stubRelation) CommandsProvidedBy(_ context.Context, packageName string) []string {
	return relation.commandsByInstaller[packageName]
}

type recordingSink struct {
	reports []completeness.Report
	formats []report.Format
	err     error
}

func (sink *recordingSink) Write(auditReport completeness.Report, format report.Format) error {
	sink.reports = append(sink.reports, auditReport)
	sink.formats = append(sink.formats, format)
	return sink.err
}

type countingSummarizer struct {
	calls int
}

func (summarizer *countingSummarizer) LogSummary() {
	summarizer.calls++
}

type stubStatistics struct {
	resolvedCommands int
	expandedPackages int
}

func (statistics stubStatistics) ResolvedCommandCount() int {
	return statistics.resolvedCommands
}

func (statistics stubStatistics) ExpandedPackageCount() int {
	return statistics.expandedPackages
}

type stubToolProbe struct {
	available map[string]bool
}

func (probe stubToolProbe) IsExecutableOnPath(command string) bool {
	return probe.available[command]
}

type stubPrefetcher struct {
	commandBatches [][]string
	packageBatches [][]string
	err            error
}

func (prefetcher *stubPrefetcher) Commands(_ context.Context, commands []string) error {
	prefetcher.commandBatches = append(prefetcher.commandBatches, commands)
	return prefetcher.err
}

func (prefetcher *stubPrefetcher) Packages(_ context.Context, packageNames []string) error {
	prefetcher.packageBatches = append(prefetcher.packageBatches, packageNames)
	return prefetcher.err
}

type serviceFixture struct {
	projectRoot string
	resolver    *stubResolver
	sink        *recordingSink
	summarizer  *countingSummarizer
	logs        *observer.ObservedLogs
	service     *audit.Service
}

func writeProjectFile(testInstance *testing.T, projectRoot string, relativePath string, content string) {
	testInstance.Helper()
	absolutePath := filepath.Join(projectRoot, relativePath)
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(absolutePath), 0o755))
	require.NoError(testInstance, os.WriteFile(absolutePath, []byte(content), 0o644))
}

func newServiceFixture(testInstance *testing.T, prefetcher audit.MetadataPrefetcher, toolProbe audit.ToolProbe) serviceFixture {
	testInstance.Helper()
	projectRoot := testInstance.TempDir()
	writeProjectFile(testInstance, projectRoot, "cmd/app/main.go", testMainSourceConstant)
	writeProjectFile(testInstance, projectRoot, "internal/native/native.go", testCgoSourceConstant)
	writeProjectFile(testInstance, projectRoot, "Dockerfile", testDockerfileConstant)

	scanner, scannerError := sourcescan.NewScanner(sourcescan.NewExtractor(sourcescan.ExtractorConfiguration{}), sourcescan.ScannerConfiguration{}, zap.NewNop())
	require.NoError(testInstance, scannerError)

	calculator, calculatorError := completeness.NewCalculator(stubRelation{
		packagesByInstaller: map[string][]string{"build-essential": {"gcc", "make"}},
		commandsByInstaller: map[string][]string{"default-mysql-client": {"mysql"}},
	}, completeness.CalculatorConfiguration{DevelopmentPackages: []completeness.DefaultPackage{}})
	require.NoError(testInstance, calculatorError)

	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	fixture := serviceFixture{
		projectRoot: projectRoot,
		resolver:    &stubResolver{resolutions: map[string]packages.Resolution{"mysql": packages.Found("default-mysql-client")}},
		sink:        &recordingSink{},
		summarizer:  &countingSummarizer{},
		logs:        observedLogs,
	}

	dependencies := audit.ServiceDependencies{
		Scanner:           scanner,
		Resolver:          fixture.resolver,
		ManifestExtractor: manifest.NewExtractor(manifest.DefaultRuleSet()),
		Rules:             manifest.DefaultRuleSet(),
		Calculator:        calculator,
		Sink:              fixture.sink,
		ToolProbe:         toolProbe,
		QuerySummarizer:   fixture.summarizer,
		Statistics:        stubStatistics{resolvedCommands: 1, expandedPackages: 4},
		Logger:            zap.New(observedCore),
	}
	if prefetcher != nil {
		dependencies.Prefetcher = prefetcher
	}
	service, serviceError := audit.NewService(dependencies)
	require.NoError(testInstance, serviceError)
	fixture.service = service
	return fixture
}

func (fixture serviceFixture) options() audit.Options {
	return audit.Options{
		ProjectRoot:    fixture.projectRoot,
		DockerfilePath: filepath.Join(fixture.projectRoot, "Dockerfile"),
		GoModPath:      filepath.Join(fixture.projectRoot, "go.mod"),
		Format:         report.FormatYAML,
	}
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	scanner, scannerError := sourcescan.NewScanner(sourcescan.NewExtractor(sourcescan.ExtractorConfiguration{}), sourcescan.ScannerConfiguration{}, nil)
	require.NoError(testInstance, scannerError)
	calculator, calculatorError := completeness.NewCalculator(stubRelation{}, completeness.CalculatorConfiguration{})
	require.NoError(testInstance, calculatorError)

	testCases := []struct {
		name          string
		dependencies  audit.ServiceDependencies
		expectedError error
	}{
		{name: "scanner", dependencies: audit.ServiceDependencies{}, expectedError: audit.ErrScannerNotConfigured},
		{name: "resolver", dependencies: audit.ServiceDependencies{Scanner: scanner}, expectedError: audit.ErrResolverNotConfigured},
		{name: "calculator", dependencies: audit.ServiceDependencies{Scanner: scanner, Resolver: &stubResolver{}}, expectedError: audit.ErrCalculatorNotConfigured},
		{name: "sink", dependencies: audit.ServiceDependencies{Scanner: scanner, Resolver: &stubResolver{}, Calculator: calculator}, expectedError: audit.ErrSinkNotConfigured},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, serviceError := audit.NewService(testCase.dependencies)
			require.ErrorIs(testInstance, serviceError, testCase.expectedError)
		})
	}
}

func TestServiceRunReportsInputMissing(testInstance *testing.T) {
	testCases := []struct {
		name             string
		mutate           func(options *audit.Options)
		expectedArtifact audit.Artifact
	}{
		{
			name:             "project_directory",
			mutate:           func(options *audit.Options) { options.ProjectRoot = filepath.Join(options.ProjectRoot, "absent") },
			expectedArtifact: audit.ArtifactProjectDirectory,
		},
		{
			name: "dockerfile",
			mutate: func(options *audit.Options) {
				options.DockerfilePath = filepath.Join(options.ProjectRoot, "Dockerfile.missing")
			},
			expectedArtifact: audit.ArtifactDockerfile,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture(testInstance, nil, nil)
			options := fixture.options()
			testCase.mutate(&options)

			_, runError := fixture.service.Run(context.Background(), options)
			var missingError audit.InputMissingError
			require.True(testInstance, errors.As(runError, &missingError))
			require.Equal(testInstance, testCase.expectedArtifact, missingError.Artifact)
			require.Empty(testInstance, fixture.sink.reports)
		})
	}
}

func TestServiceRunWithManifest(testInstance *testing.T) {
	prefetcher := &stubPrefetcher{}
	fixture := newServiceFixture(testInstance, prefetcher, stubToolProbe{available: map[string]bool{"apt-file": true}})
	writeProjectFile(testInstance, fixture.projectRoot, "go.mod", testGoModConstant)
	writeProjectFile(testInstance, fixture.projectRoot, "go.sum", testGoSumConstant)

	auditReport, runError := fixture.service.Run(context.Background(), fixture.options())
	require.NoError(testInstance, runError)

	require.Len(testInstance, fixture.sink.reports, 1)
	require.Equal(testInstance, []report.Format{report.FormatYAML}, fixture.sink.formats)
	require.Equal(testInstance, auditReport, fixture.sink.reports[0])
	require.Equal(testInstance, 1, fixture.summarizer.calls)
	require.Equal(testInstance, []string{"mysql"}, fixture.resolver.calls)
	require.Equal(testInstance, [][]string{{"mysql"}}, prefetcher.commandBatches)
	require.Equal(testInstance, [][]string{{"build-essential", "ca-certificates", "default-mysql-client", "git"}}, prefetcher.packageBatches)

	require.Empty(testInstance, auditReport.Stage(buildstage.Base).Missing)
	require.Equal(testInstance, []string{"libsqlite3-dev", "pkg-config"}, auditReport.Stage(buildstage.Build).Missing)

	unsatisfied := make([]string, 0)
	for _, status := range auditReport.UnsatisfiedRequirements() {
		unsatisfied = append(unsatisfied, status.Package+"@"+string(status.Stage)+"@"+status.File)
	}
	require.ElementsMatch(testInstance, []string{
		"libsqlite3-0@base@go.mod",
		"pkg-config@build@go.mod",
		"libsqlite3-dev@build@go.mod",
		"pkg-config@build@internal/native/native.go",
	}, unsatisfied)

	require.Empty(testInstance, fixture.logs.FilterMessage("apt-file is not installed; commands outside installed packages cannot be resolved (install apt-file and run apt-file update)").All())
	scannedEntries := fixture.logs.FilterMessage("Scanned project sources").All()
	require.Len(testInstance, scannedEntries, 1)
	require.Equal(testInstance, int64(1), scannedEntries[0].ContextMap()["commands"])

	finishedEntries := fixture.logs.FilterMessage("Audit finished").All()
	require.Len(testInstance, finishedEntries, 1)
	finishedFields := finishedEntries[0].ContextMap()
	require.Equal(testInstance, int64(1), finishedFields["resolved_commands"])
	require.Equal(testInstance, int64(4), finishedFields["expanded_packages"])
	require.Len(testInstance, auditReport.Recommendations, 0)
}

func TestServiceRunWithoutManifestKeepsCgoRules(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, nil, stubToolProbe{})

	auditReport, runError := fixture.service.Run(context.Background(), fixture.options())
	require.NoError(testInstance, runError)

	packagesByReason := make(map[string][]string)
	for _, status := range auditReport.Requirements {
		packagesByReason[status.Reason] = append(packagesByReason[status.Reason], status.Package)
	}
	require.Equal(testInstance, map[string][]string{"Required to compile cgo sources": {"build-essential", "pkg-config"}}, packagesByReason)

	skippedEntries := fixture.logs.FilterMessage("Skipping module manifest requirements").All()
	require.Len(testInstance, skippedEntries, 1)
	require.Equal(testInstance, zapcore.WarnLevel, skippedEntries[0].Level)
	require.Equal(testInstance, 1, fixture.logs.FilterMessage("apt-file is not installed; commands outside installed packages cannot be resolved (install apt-file and run apt-file update)").Len())
}

func TestServiceRunStopsWhenPrefetchIsInterrupted(testInstance *testing.T) {
	prefetcher := &stubPrefetcher{err: context.Canceled}
	fixture := newServiceFixture(testInstance, prefetcher, nil)

	_, runError := fixture.service.Run(context.Background(), fixture.options())
	require.ErrorIs(testInstance, runError, context.Canceled)
	require.Empty(testInstance, fixture.sink.reports)
}
