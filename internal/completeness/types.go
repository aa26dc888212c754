package completeness

import (
	"github.com/temirov/dockwise/internal/buildstage"
	"github.com/temirov/dockwise/internal/dockerfile"
	"github.com/temirov/dockwise/internal/packages"
	"github.com/temirov/dockwise/internal/sourcescan"
)

// MissingProviderConstant marks a command no package could be resolved for.
const MissingProviderConstant = "missing"

// DefaultPackage is a package every development stage is expected to carry.
type DefaultPackage struct {
	Package string `mapstructure:"package" json:"package" yaml:"package"`
	Reason  string `mapstructure:"reason" json:"reason" yaml:"reason"`
}

// DefaultDevelopmentPackages lists the conventional development tools.
var DefaultDevelopmentPackages = []DefaultPackage{
	{Package: "silversearcher-ag", Reason: "fast code search"},
	{Package: "direnv", Reason: "per-directory environment loading"},
	{Package: "unzip", Reason: "archive extraction"},
	{Package: "wget", Reason: "file downloads"},
	{Package: "curl", Reason: "HTTP requests"},
	{Package: "zip", Reason: "archive creation"},
}

// Input gathers everything the calculator reconciles.
type Input struct {
	Invocations     []sourcescan.CommandInvocation
	Resolutions     map[string]packages.Resolution
	Requirements    []buildstage.Requirement
	Description     dockerfile.Description
	Recommendations []string
}

// CommandFinding describes one scanned command and the package that provides it.
type CommandFinding struct {
	Command    string           `json:"command" yaml:"command"`
	Stage      buildstage.Stage `json:"stage" yaml:"stage"`
	File       string           `json:"file" yaml:"file"`
	Line       int              `json:"line" yaml:"line"`
	Resolution string           `json:"resolution" yaml:"resolution"`
	// ProvidedBy is the package name, the not-needed reason, or "missing".
	ProvidedBy string `json:"provided_by" yaml:"provided_by"`
}

// RequiredPackage is one entry of a stage's required set.
type RequiredPackage struct {
	Package string `json:"package" yaml:"package"`
	Reason  string `json:"reason" yaml:"reason"`
}

// InstalledPackage describes a package installed by a stage.
type InstalledPackage struct {
	Package  string   `json:"package" yaml:"package"`
	Known    bool     `json:"known" yaml:"known"`
	Purposes []string `json:"purposes" yaml:"purposes"`
}

// StageReport is the reconciliation of one build stage.
type StageReport struct {
	Stage     buildstage.Stage   `json:"stage" yaml:"stage"`
	Name      string             `json:"name,omitempty" yaml:"name,omitempty"`
	Parent    string             `json:"parent,omitempty" yaml:"parent,omitempty"`
	Required  []RequiredPackage  `json:"required" yaml:"required"`
	Installed []InstalledPackage `json:"installed" yaml:"installed"`
	Inherited []string           `json:"inherited,omitempty" yaml:"inherited,omitempty"`
	Missing   []string           `json:"missing" yaml:"missing"`
}

// RequirementStatus pairs a requirement with whether its stage satisfies it.
type RequirementStatus struct {
	buildstage.Requirement `yaml:",inline"`
	Satisfied              bool `json:"satisfied" yaml:"satisfied"`
}

// Conflict names a scanned command provided by more than one installed package.
type Conflict struct {
	Command  string   `json:"command" yaml:"command"`
	Packages []string `json:"packages" yaml:"packages"`
}

// Report is the outcome of a completeness audit.
type Report struct {
	BaseCommands        []CommandFinding    `json:"base_commands" yaml:"base_commands"`
	DevelopmentCommands []CommandFinding    `json:"development_commands" yaml:"development_commands"`
	Stages              []StageReport       `json:"stages" yaml:"stages"`
	Requirements        []RequirementStatus `json:"requirements" yaml:"requirements"`
	Conflicts           []Conflict          `json:"conflicts" yaml:"conflicts"`
	UnprovidedCommands  []string            `json:"unprovided_commands" yaml:"unprovided_commands"`
	Recommendations     []string            `json:"recommendations" yaml:"recommendations"`
}

// Stage returns the report of one stage, or an empty report when the stage is absent.
func (report Report) Stage(stage buildstage.Stage) StageReport {
	for _, stageReport := range report.Stages {
		if stageReport.Stage == stage {
			return stageReport
		}
	}
	return StageReport{Stage: stage, Required: []RequiredPackage{}, Installed: []InstalledPackage{}, Missing: []string{}}
}

// MissingCount totals missing packages across stages.
func (report Report) MissingCount() int {
	total := 0
	for _, stageReport := range report.Stages {
		total += len(stageReport.Missing)
	}
	return total
}

// UnsatisfiedRequirements returns the requirements no stage satisfies.
func (report Report) UnsatisfiedRequirements() []RequirementStatus {
	unsatisfied := make([]RequirementStatus, 0)
	for _, status := range report.Requirements {
		if !status.Satisfied {
			unsatisfied = append(unsatisfied, status)
		}
	}
	return unsatisfied
}
