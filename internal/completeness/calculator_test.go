package completeness_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dockwise/internal/buildstage"
	"github.com/temirov/dockwise/internal/completeness"
	"github.com/temirov/dockwise/internal/dockerfile"
	"github.com/temirov/dockwise/internal/packages"
	"github.com/temirov/dockwise/internal/sourcescan"
)

type stubProvidesRelation struct {
	packagesByInstaller map[string][]string
	commandsByInstaller map[string][]string
}

func (relation stubProvidesRelation) PackagesProvidedBy(_ context.Context, packageName string) []string {
	return relation.packagesByInstaller[packageName]
}

func (relation stubProvidesRelation) CommandsProvidedBy(_ context.Context, packageName string) []string {
	return relation.commandsByInstaller[packageName]
}

func parseDockerfile(content string) dockerfile.Description {
	return dockerfile.NewParser(dockerfile.ParserConfiguration{}).Parse(content)
}

func newCalculator(testInstance *testing.T, relation completeness.ProvidesRelation, developmentPackages []completeness.DefaultPackage) *completeness.Calculator {
	testInstance.Helper()
	calculator, creationError := completeness.NewCalculator(relation, completeness.CalculatorConfiguration{DevelopmentPackages: developmentPackages})
	require.NoError(testInstance, creationError)
	return calculator
}

var mysqlRelation = stubProvidesRelation{
	packagesByInstaller: map[string][]string{
		"default-mysql-client": {"mariadb-client", "mariadb-client-core"},
	},
	commandsByInstaller: map[string][]string{
		"default-mysql-client": {"mariadb", "mysql", "mysqldump"},
		"git":                  {"git", "git-shell"},
	},
}

func TestNewCalculatorRequiresRelation(testInstance *testing.T) {
	_, creationError := completeness.NewCalculator(nil, completeness.CalculatorConfiguration{})
	require.ErrorIs(testInstance, creationError, completeness.ErrProvidesRelationNotConfigured)
}

func TestCalculateBaseStage(testInstance *testing.T) {
	input := completeness.Input{
		Invocations: []sourcescan.CommandInvocation{{Command: "mysql", File: "internal/db/dump.go", Line: 12, Stage: buildstage.Base}},
		Resolutions: map[string]packages.Resolution{"mysql": packages.Found("default-mysql-client")},
	}

	testCases := []struct {
		name              string
		dockerfileContent string
		expectedMissing   []string
		expectedInstalled []completeness.InstalledPackage
	}{
		{
			name:              "installed_provider",
			dockerfileContent: "FROM debian:bookworm AS base\nRUN apt-get install -y git default-mysql-client\n",
			expectedMissing:   []string{},
			expectedInstalled: []completeness.InstalledPackage{
				{Package: "default-mysql-client", Known: true, Purposes: []string{"provides command: mysql"}},
				{Package: "git", Known: false, Purposes: []string{}},
			},
		},
		{
			name:              "nothing_installed",
			dockerfileContent: "FROM debian:bookworm AS base\n",
			expectedMissing:   []string{"default-mysql-client"},
			expectedInstalled: []completeness.InstalledPackage{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			calculator := newCalculator(testInstance, mysqlRelation, []completeness.DefaultPackage{})
			caseInput := input
			caseInput.Description = parseDockerfile(testCase.dockerfileContent)

			report := calculator.Calculate(context.Background(), caseInput)
			base := report.Stage(buildstage.Base)
			require.Equal(testInstance, testCase.expectedMissing, base.Missing)
			require.Equal(testInstance, testCase.expectedInstalled, base.Installed)
			require.Equal(testInstance, []completeness.RequiredPackage{{Package: "default-mysql-client", Reason: "Required for base command: mysql"}}, base.Required)

			require.Len(testInstance, report.BaseCommands, 1)
			require.Equal(testInstance, "default-mysql-client", report.BaseCommands[0].ProvidedBy)
			require.Empty(testInstance, report.DevelopmentCommands)
		})
	}
}

func TestCalculateHonorsInheritanceAndClosures(testInstance *testing.T) {
	relation := stubProvidesRelation{
		packagesByInstaller: map[string][]string{"build-essential": {"g++", "gcc", "make"}},
	}
	dockerfileContent := `FROM debian:bookworm AS base
RUN apt-get install -y curl
FROM base AS build-packages
RUN apt-get install -y build-essential
FROM build-packages AS development
RUN apt-get install -y wget
`
	input := completeness.Input{
		Description: parseDockerfile(dockerfileContent),
		Requirements: []buildstage.Requirement{
			{Package: "make", Reason: "Required to compile cgo sources", Stage: buildstage.Build},
			{Package: "libsqlite3-dev", Reason: "Required for module github.com/mattn/go-sqlite3", Stage: buildstage.Build},
			{Package: "curl", Reason: "Required for module example.com/fetch", Stage: buildstage.Development},
		},
	}
	calculator := newCalculator(testInstance, relation, []completeness.DefaultPackage{
		{Package: "curl", Reason: "HTTP requests"},
		{Package: "wget", Reason: "file downloads"},
		{Package: "gcc", Reason: "compiler"},
	})

	report := calculator.Calculate(context.Background(), input)

	require.Equal(testInstance, []string{"libsqlite3-dev"}, report.Stage(buildstage.Build).Missing)
	require.Equal(testInstance, []string{}, report.Stage(buildstage.Development).Missing)
	require.Equal(testInstance, []string{"build-essential", "curl"}, report.Stage(buildstage.Development).Inherited)
	require.Equal(testInstance, 1, report.MissingCount())

	satisfied := make(map[string]bool)
	for _, status := range report.Requirements {
		satisfied[status.Package] = status.Satisfied
	}
	require.Equal(testInstance, map[string]bool{"make": true, "libsqlite3-dev": false, "curl": true}, satisfied)
	require.Len(testInstance, report.UnsatisfiedRequirements(), 1)

	buildInstalled := report.Stage(buildstage.Build).Installed
	require.Equal(testInstance, []completeness.InstalledPackage{{Package: "build-essential", Known: true, Purposes: []string{"provides package: make"}}}, buildInstalled)
}

func TestCalculateReportsConflictsAndUnprovidedCommands(testInstance *testing.T) {
	relation := stubProvidesRelation{
		commandsByInstaller: map[string][]string{
			"vim":      {"vi", "vim"},
			"nvi":      {"nvi", "vi"},
			"ripgrep":  {"rg"},
			"git":      {"git"},
			"git-lfs":  {"git-lfs"},
			"postgres": {},
		},
	}
	input := completeness.Input{
		Invocations: []sourcescan.CommandInvocation{
			{Command: "vi", File: "cmd/edit/main.go", Line: 4, Stage: buildstage.Base},
			{Command: "jq", File: "scripts/release.go", Line: 9, Stage: buildstage.Development},
			{Command: "rg", File: "internal/search/search.go", Line: 20, Stage: buildstage.Base},
			{Command: "deploy", File: "cmd/ship/main.go", Line: 7, Stage: buildstage.Base},
		},
		Resolutions: map[string]packages.Resolution{
			"vi":     packages.Found("vim"),
			"jq":     packages.NotFound(),
			"rg":     packages.Found("ripgrep"),
			"deploy": packages.NotNeeded(packages.ReasonProjectLocal),
		},
		Description: parseDockerfile("FROM debian:bookworm AS base\nRUN apt-get install -y vim nvi ripgrep\n"),
	}
	calculator := newCalculator(testInstance, relation, []completeness.DefaultPackage{})

	report := calculator.Calculate(context.Background(), input)

	require.Equal(testInstance, []completeness.Conflict{{Command: "vi", Packages: []string{"nvi", "vim"}}}, report.Conflicts)
	require.Equal(testInstance, []string{"jq"}, report.UnprovidedCommands)

	providers := make(map[string]string)
	for _, finding := range append(report.BaseCommands, report.DevelopmentCommands...) {
		providers[finding.Command] = finding.ProvidedBy
	}
	require.Equal(testInstance, map[string]string{
		"vi":     "vim",
		"jq":     completeness.MissingProviderConstant,
		"rg":     "ripgrep",
		"deploy": "project-local",
	}, providers)
	require.Len(testInstance, report.DevelopmentCommands, 1)
}

func TestCalculateIsIdempotent(testInstance *testing.T) {
	input := completeness.Input{
		Invocations: []sourcescan.CommandInvocation{
			{Command: "mysql", File: "a.go", Line: 1, Stage: buildstage.Base},
			{Command: "git", File: "b.go", Line: 2, Stage: buildstage.Development},
		},
		Resolutions: map[string]packages.Resolution{
			"mysql": packages.Found("default-mysql-client"),
			"git":   packages.Found("git"),
		},
		Description:     parseDockerfile("FROM debian AS base\nRUN apt-get install -y default-mysql-client\nFROM base AS development\nRUN apt-get install -y git curl\n"),
		Recommendations: []string{"Clean up apt cache using 'rm -rf /var/lib/apt/lists'"},
	}
	calculator := newCalculator(testInstance, mysqlRelation, nil)

	first := calculator.Calculate(context.Background(), input)
	second := calculator.Calculate(context.Background(), input)
	require.Equal(testInstance, first, second)
	require.Equal(testInstance, []string{"direnv", "silversearcher-ag", "unzip", "wget", "zip"}, first.Stage(buildstage.Development).Missing)
	require.Equal(testInstance, input.Recommendations, first.Recommendations)
}

func TestDockerfileRequirements(testInstance *testing.T) {
	description := parseDockerfile("FROM debian AS base\nRUN apt-get install -y git\nFROM base AS development\nRUN apt-get install -y curl\n")
	calculator := newCalculator(testInstance, mysqlRelation, []completeness.DefaultPackage{
		{Package: "curl", Reason: "HTTP requests"},
		{Package: "wget", Reason: "file downloads"},
	})
	invocations := []sourcescan.CommandInvocation{
		{Command: "jq", File: "scripts/release.go", Line: 3, Stage: buildstage.Development},
		{Command: "git", File: "internal/vcs/git.go", Line: 10, Stage: buildstage.Base},
		{Command: "deploy", File: "cmd/ship/main.go", Line: 7, Stage: buildstage.Base},
	}
	resolutions := map[string]packages.Resolution{
		"jq":     packages.Found("jq"),
		"git":    packages.Found("git"),
		"deploy": packages.NotNeeded(packages.ReasonProjectLocal),
	}

	requirements := calculator.DockerfileRequirements(description, "Dockerfile", invocations, resolutions)

	require.Equal(testInstance, []buildstage.Requirement{
		{Package: "wget", Reason: "Default package: file downloads", Stage: buildstage.Development, File: "Dockerfile", Line: 0},
		{Package: "jq", Reason: "Required for system command: jq", Stage: buildstage.Development, File: "scripts/release.go", Line: 3},
	}, requirements)
}
