package completeness

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/temirov/dockwise/internal/buildstage"
	"github.com/temirov/dockwise/internal/dockerfile"
	"github.com/temirov/dockwise/internal/packages"
	"github.com/temirov/dockwise/internal/sourcescan"
)

const (
	baseCommandReasonTemplateConstant      = "Required for base command: %s"
	developmentReasonTemplateConstant      = "Required for development command: %s"
	defaultPackageReasonTemplateConstant   = "Default package: %s"
	providesCommandPurposeTemplateConstant = "provides command: %s"
	providesPackagePurposeTemplateConstant = "provides package: %s"
)

// ErrProvidesRelationNotConfigured indicates a calculator built without closure lookups.
var ErrProvidesRelationNotConfigured = errors.New("package closure lookups not configured")

// ProvidesRelation answers what an installed package brings along.
type ProvidesRelation interface {
	PackagesProvidedBy(executionContext context.Context, packageName string) []string
	CommandsProvidedBy(executionContext context.Context, packageName string) []string
}

// CalculatorConfiguration tunes the development stage expectations.
type CalculatorConfiguration struct {
	DevelopmentPackages []DefaultPackage
}

// Calculator reconciles required packages with what each build stage installs.
type Calculator struct {
	relation            ProvidesRelation
	developmentPackages []DefaultPackage
}

// NewCalculator constructs a Calculator. A nil DevelopmentPackages uses DefaultDevelopmentPackages.
func NewCalculator(relation ProvidesRelation, configuration CalculatorConfiguration) (*Calculator, error) {
	if relation == nil {
		return nil, ErrProvidesRelationNotConfigured
	}
	developmentPackages := configuration.DevelopmentPackages
	if developmentPackages == nil {
		developmentPackages = DefaultDevelopmentPackages
	}
	return &Calculator{relation: relation, developmentPackages: developmentPackages}, nil
}

// Calculate produces the completeness report. The result depends only on the input and package metadata.
func (calculator *Calculator) Calculate(executionContext context.Context, input Input) Report {
	invocations := sortedInvocations(input.Invocations)
	scannedCommands := make(map[string]struct{}, len(invocations))
	for _, invocation := range invocations {
		scannedCommands[invocation.Command] = struct{}{}
	}

	report := Report{
		BaseCommands:        []CommandFinding{},
		DevelopmentCommands: []CommandFinding{},
		Stages:              make([]StageReport, 0, len(buildstage.All)),
		Recommendations:     append([]string{}, input.Recommendations...),
	}
	for _, invocation := range invocations {
		finding := commandFinding(invocation, input.Resolutions[invocation.Command])
		if invocation.Stage == buildstage.Development {
			report.DevelopmentCommands = append(report.DevelopmentCommands, finding)
		} else {
			report.BaseCommands = append(report.BaseCommands, finding)
		}
	}

	for _, stage := range buildstage.All {
		required := calculator.requiredPackages(stage, invocations, input)
		report.Stages = append(report.Stages, calculator.reconcileStage(executionContext, input.Description.Inventory(stage), required, scannedCommands))
	}

	report.Requirements = calculator.requirementStatuses(executionContext, input)
	report.Conflicts, report.UnprovidedCommands = calculator.conflicts(executionContext, input.Description.InstalledPackages(), invocations, input.Resolutions)
	return report
}

type requiredSet struct {
	order   []string
	reasons map[string]string
}

func newRequiredSet() *requiredSet {
	return &requiredSet{reasons: make(map[string]string)}
}

func (set *requiredSet) add(packageName string, reason string, override bool) {
	if _, exists := set.reasons[packageName]; exists {
		if override {
			set.reasons[packageName] = reason
		}
		return
	}
	set.order = append(set.order, packageName)
	set.reasons[packageName] = reason
}

func (set *requiredSet) contains(packageName string) bool {
	_, exists := set.reasons[packageName]
	return exists
}

func (calculator *Calculator) requiredPackages(stage buildstage.Stage, invocations []sourcescan.CommandInvocation, input Input) *requiredSet {
	required := newRequiredSet()
	switch stage {
	case buildstage.Base:
		for _, invocation := range invocations {
			if invocation.Stage != buildstage.Base {
				continue
			}
			if packageName, found := input.Resolutions[invocation.Command].PackageName(); found {
				required.add(packageName, fmt.Sprintf(baseCommandReasonTemplateConstant, invocation.Command), false)
			}
		}
	case buildstage.Build:
		for _, requirement := range input.Requirements {
			if requirement.Stage == buildstage.Build {
				required.add(requirement.Package, requirement.Reason, false)
			}
		}
	case buildstage.Development:
		for _, defaultPackage := range calculator.developmentPackages {
			required.add(defaultPackage.Package, fmt.Sprintf(defaultPackageReasonTemplateConstant, defaultPackage.Reason), false)
		}
		for _, invocation := range invocations {
			if invocation.Stage != buildstage.Development {
				continue
			}
			if packageName, found := input.Resolutions[invocation.Command].PackageName(); found {
				required.add(packageName, fmt.Sprintf(developmentReasonTemplateConstant, invocation.Command), true)
			}
		}
	}
	return required
}

func (calculator *Calculator) reconcileStage(executionContext context.Context, inventory dockerfile.StageInventory, required *requiredSet, scannedCommands map[string]struct{}) StageReport {
	stageReport := StageReport{
		Stage:     inventory.Stage,
		Name:      inventory.Name,
		Parent:    inventory.Parent,
		Required:  make([]RequiredPackage, 0, len(required.order)),
		Installed: make([]InstalledPackage, 0, len(inventory.Installed)),
		Inherited: append([]string(nil), inventory.Inherited...),
		Missing:   []string{},
	}
	for _, packageName := range required.order {
		stageReport.Required = append(stageReport.Required, RequiredPackage{Package: packageName, Reason: required.reasons[packageName]})
	}

	available := inventory.Available()
	packageProvider := make(map[string]string)
	for _, installer := range sortedKeys(available) {
		for _, providedPackage := range calculator.relation.PackagesProvidedBy(executionContext, installer) {
			if _, recorded := packageProvider[providedPackage]; !recorded {
				packageProvider[providedPackage] = installer
			}
		}
	}

	installed := append([]string(nil), inventory.Installed...)
	sort.Strings(installed)
	for _, packageName := range installed {
		purposes := make([]string, 0)
		for _, commandName := range calculator.relation.CommandsProvidedBy(executionContext, packageName) {
			if _, scanned := scannedCommands[commandName]; scanned {
				purposes = append(purposes, fmt.Sprintf(providesCommandPurposeTemplateConstant, commandName))
			}
		}
		for _, providedPackage := range calculator.relation.PackagesProvidedBy(executionContext, packageName) {
			if required.contains(providedPackage) {
				purposes = append(purposes, fmt.Sprintf(providesPackagePurposeTemplateConstant, providedPackage))
			}
		}
		stageReport.Installed = append(stageReport.Installed, InstalledPackage{
			Package:  packageName,
			Known:    required.contains(packageName) || len(purposes) > 0,
			Purposes: purposes,
		})
	}

	for _, packageName := range required.order {
		if _, installed := available[packageName]; installed {
			continue
		}
		if _, provided := packageProvider[packageName]; provided {
			continue
		}
		stageReport.Missing = append(stageReport.Missing, packageName)
	}
	sort.Strings(stageReport.Missing)
	return stageReport
}

func (calculator *Calculator) requirementStatuses(executionContext context.Context, input Input) []RequirementStatus {
	statuses := make([]RequirementStatus, 0, len(input.Requirements))
	for _, requirement := range input.Requirements {
		statuses = append(statuses, RequirementStatus{
			Requirement: requirement,
			Satisfied:   calculator.satisfies(executionContext, input.Description.Inventory(requirement.Stage), requirement.Package),
		})
	}
	return statuses
}

func (calculator *Calculator) satisfies(executionContext context.Context, inventory dockerfile.StageInventory, packageName string) bool {
	available := inventory.Available()
	if _, installed := available[packageName]; installed {
		return true
	}
	for _, installer := range sortedKeys(available) {
		for _, providedPackage := range calculator.relation.PackagesProvidedBy(executionContext, installer) {
			if providedPackage == packageName {
				return true
			}
		}
	}
	return false
}

// conflicts inspects commands that should come from an OS package; project-local and runtime-managed commands are skipped.
func (calculator *Calculator) conflicts(executionContext context.Context, installedPackages []string, invocations []sourcescan.CommandInvocation, resolutions map[string]packages.Resolution) ([]Conflict, []string) {
	providers := make(map[string][]string)
	for _, packageName := range installedPackages {
		for _, commandName := range calculator.relation.CommandsProvidedBy(executionContext, packageName) {
			providers[commandName] = append(providers[commandName], packageName)
		}
	}

	conflicts := make([]Conflict, 0)
	unprovided := make([]string, 0)
	seen := make(map[string]struct{}, len(invocations))
	for _, invocation := range invocations {
		if _, duplicate := seen[invocation.Command]; duplicate {
			continue
		}
		seen[invocation.Command] = struct{}{}
		if resolutions[invocation.Command].Kind == packages.ResolutionNotNeeded {
			continue
		}
		commandProviders := providers[invocation.Command]
		switch {
		case len(commandProviders) == 0:
			unprovided = append(unprovided, invocation.Command)
		case len(commandProviders) > 1:
			conflicts = append(conflicts, Conflict{Command: invocation.Command, Packages: append([]string(nil), commandProviders...)})
		}
	}
	sort.Slice(conflicts, func(left, right int) bool { return conflicts[left].Command < conflicts[right].Command })
	sort.Strings(unprovided)
	return conflicts, unprovided
}

func commandFinding(invocation sourcescan.CommandInvocation, resolution packages.Resolution) CommandFinding {
	finding := CommandFinding{
		Command:    invocation.Command,
		Stage:      invocation.Stage,
		File:       invocation.File,
		Line:       invocation.Line,
		Resolution: resolution.String(),
		ProvidedBy: MissingProviderConstant,
	}
	switch resolution.Kind {
	case packages.ResolutionFound:
		finding.ProvidedBy = resolution.Package
	case packages.ResolutionNotNeeded:
		finding.ProvidedBy = string(resolution.Reason)
	}
	return finding
}

func sortedInvocations(invocations []sourcescan.CommandInvocation) []sourcescan.CommandInvocation {
	ordered := append([]sourcescan.CommandInvocation(nil), invocations...)
	sort.SliceStable(ordered, func(left, right int) bool {
		return ordered[left].Command < ordered[right].Command
	})
	return ordered
}

func sortedKeys(values map[string]struct{}) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
