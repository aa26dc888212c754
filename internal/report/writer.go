package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/dockwise/internal/buildstage"
	"github.com/temirov/dockwise/internal/completeness"
	"github.com/temirov/dockwise/internal/utils"
)

// Format selects how a report is rendered.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

const (
	unsupportedFormatTemplateConstant = "unsupported report format %q (expected text, yaml or json)"
	jsonIndentConstant                = "  "
	yamlIndentConstant                = 2

	reportTitleConstant                = "=== Dockerfile Analysis Report ==="
	baseCommandsHeadingConstant        = "Base commands:"
	developmentCommandsHeadingConstant = "Development commands:"
	installedHeadingConstant           = "  Installed packages:"
	missingHeadingConstant             = "  Missing packages:"
	requirementsHeadingConstant        = "Unsatisfied requirements:"
	conflictsHeadingConstant           = "Conflicting providers:"
	unprovidedHeadingConstant          = "Commands no installed package provides:"
	recommendationsHeadingConstant     = "Recommendations:"

	foundCommandTemplateConstant      = "  - %s (provided by package: %s)\n"
	missingCommandTemplateConstant    = "  - %s (package not found)\n"
	notNeededCommandTemplateConstant  = "  - %s (no package needed: %s)\n"
	locationTemplateConstant          = "    Found in: %s:%d\n"
	purposefulPackageTemplateConstant = "  ✓ %s (%s)\n"
	knownPackageTemplateConstant      = "  ✓ %s\n"
	unknownPackageTemplateConstant    = "  ? %s (purpose unknown)\n"
	missingPackageTemplateConstant    = "  ! %s\n"
	inheritedTemplateConstant         = "  Inherited from %s: %s\n"
	requirementTemplateConstant       = "  ! %s [%s] %s (%s:%d)\n"
	conflictTemplateConstant          = "  - %s: %s\n"
	listItemTemplateConstant          = "  - %s\n"
	stageHeadingTemplateConstant      = "%s packages (stage %s):\n"
	purposeSeparatorConstant          = ", "
	notNeededResolutionPrefixConstant = "not-needed"
)

var stageTitles = map[buildstage.Stage]string{
	buildstage.Base:        "Base",
	buildstage.Build:       "Build",
	buildstage.Development: "Development",
}

// ErrOutputNotConfigured indicates a writer without a destination.
var ErrOutputNotConfigured = errors.New("report output not configured")

// ParseFormat converts a case-insensitive format name.
func ParseFormat(value string) (Format, error) {
	candidate := Format(strings.ToLower(strings.TrimSpace(value)))
	switch candidate {
	case FormatText, FormatYAML, FormatJSON:
		return candidate, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf(unsupportedFormatTemplateConstant, value)
	}
}

// Writer renders completeness reports.
type Writer struct {
	output io.Writer
}

// NewWriter constructs a Writer. Each report reaches output in one write.
func NewWriter(output io.Writer) (*Writer, error) {
	if output == nil {
		return nil, ErrOutputNotConfigured
	}
	return &Writer{output: output}, nil
}

// Write renders auditReport in the requested format.
func (writer *Writer) Write(auditReport completeness.Report, format Format) error {
	deferredOutput := utils.NewDeferredWriter(writer.output)
	if renderError := render(deferredOutput, auditReport, format); renderError != nil {
		return renderError
	}
	return deferredOutput.Flush()
}

func render(output io.Writer, auditReport completeness.Report, format Format) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", jsonIndentConstant)
		return encoder.Encode(auditReport)
	case FormatYAML:
		encoder := yaml.NewEncoder(output)
		encoder.SetIndent(yamlIndentConstant)
		if encodeError := encoder.Encode(auditReport); encodeError != nil {
			return encodeError
		}
		return encoder.Close()
	case FormatText, "":
		return writeText(output, auditReport)
	default:
		return fmt.Errorf(unsupportedFormatTemplateConstant, format)
	}
}

func writeText(output io.Writer, auditReport completeness.Report) error {
	var builder strings.Builder
	builder.WriteString(reportTitleConstant + "\n")

	writeCommands(&builder, baseCommandsHeadingConstant, auditReport.BaseCommands)
	writeCommands(&builder, developmentCommandsHeadingConstant, auditReport.DevelopmentCommands)

	for _, stage := range buildstage.All {
		writeStage(&builder, auditReport.Stage(stage))
	}

	if unsatisfied := auditReport.UnsatisfiedRequirements(); len(unsatisfied) > 0 {
		builder.WriteString("\n" + requirementsHeadingConstant + "\n")
		for _, status := range unsatisfied {
			fmt.Fprintf(&builder, requirementTemplateConstant, status.Package, status.Stage, status.Reason, status.File, status.Line)
		}
	}

	if len(auditReport.Conflicts) > 0 {
		builder.WriteString("\n" + conflictsHeadingConstant + "\n")
		for _, conflict := range auditReport.Conflicts {
			fmt.Fprintf(&builder, conflictTemplateConstant, conflict.Command, strings.Join(conflict.Packages, purposeSeparatorConstant))
		}
	}

	writeList(&builder, unprovidedHeadingConstant, auditReport.UnprovidedCommands)
	writeList(&builder, recommendationsHeadingConstant, auditReport.Recommendations)

	_, writeError := io.WriteString(output, builder.String())
	return writeError
}

func writeCommands(builder *strings.Builder, heading string, findings []completeness.CommandFinding) {
	if len(findings) == 0 {
		return
	}
	builder.WriteString("\n" + heading + "\n")
	for _, finding := range findings {
		switch {
		case finding.ProvidedBy == completeness.MissingProviderConstant:
			fmt.Fprintf(builder, missingCommandTemplateConstant, finding.Command)
		case strings.HasPrefix(finding.Resolution, notNeededResolutionPrefixConstant):
			fmt.Fprintf(builder, notNeededCommandTemplateConstant, finding.Command, finding.ProvidedBy)
		default:
			fmt.Fprintf(builder, foundCommandTemplateConstant, finding.Command, finding.ProvidedBy)
		}
		fmt.Fprintf(builder, locationTemplateConstant, finding.File, finding.Line)
	}
}

func writeStage(builder *strings.Builder, stageReport completeness.StageReport) {
	stageName := stageReport.Name
	if len(stageName) == 0 {
		stageName = string(stageReport.Stage)
	}
	builder.WriteString("\n")
	fmt.Fprintf(builder, stageHeadingTemplateConstant, stageTitles[stageReport.Stage], stageName)

	builder.WriteString(installedHeadingConstant + "\n")
	for _, installed := range stageReport.Installed {
		switch {
		case len(installed.Purposes) > 0:
			fmt.Fprintf(builder, purposefulPackageTemplateConstant, installed.Package, strings.Join(installed.Purposes, purposeSeparatorConstant))
		case installed.Known:
			fmt.Fprintf(builder, knownPackageTemplateConstant, installed.Package)
		default:
			fmt.Fprintf(builder, unknownPackageTemplateConstant, installed.Package)
		}
	}
	if len(stageReport.Inherited) > 0 {
		fmt.Fprintf(builder, inheritedTemplateConstant, stageReport.Parent, strings.Join(stageReport.Inherited, purposeSeparatorConstant))
	}

	if len(stageReport.Missing) > 0 {
		builder.WriteString(missingHeadingConstant + "\n")
		for _, packageName := range stageReport.Missing {
			fmt.Fprintf(builder, missingPackageTemplateConstant, packageName)
		}
	}
}

func writeList(builder *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	builder.WriteString("\n" + heading + "\n")
	for _, item := range items {
		fmt.Fprintf(builder, listItemTemplateConstant, item)
	}
}
