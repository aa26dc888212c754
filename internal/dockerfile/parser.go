package dockerfile

import (
	"regexp"
	"sort"
	"strings"

	"github.com/temirov/dockwise/internal/buildstage"
)

const (
	commentMarkerConstant         = "#"
	continuationMarkerConstant    = "\\"
	stageAliasKeywordConstant     = "as"
	optionPrefixConstant          = "-"
	versionSeparatorConstant      = "="
	architectureSeparatorConstant = ":"
	lineBreakConstant             = "\n"
	platformOptionPrefixConstant  = "--"
)

var (
	fromDirectivePattern     = regexp.MustCompile(`(?i)^FROM\s+(.*)$`)
	runDirectivePattern      = regexp.MustCompile(`(?i)^RUN\s+`)
	installCommandPattern    = regexp.MustCompile(`\bapt(?:-get)?(?:\s+-[otc]\s+\S+|\s+-\S+)*\s+install\b`)
	updateCommandPattern     = regexp.MustCompile(`\bapt(?:-get)?\s+update\b`)
	packageNamePattern       = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)
	statementSeparatorSpacer = strings.NewReplacer(";", " ; ")
	shellSeparators          = map[string]struct{}{"&&": {}, "||": {}, ";": {}, "|": {}, ")": {}, "&": {}}
	optionsWithValues        = map[string]struct{}{"-o": {}, "--option": {}, "-t": {}, "--target-release": {}, "-c": {}, "--config-file": {}}
)

// DefaultStageAliases classifies the conventional stage names.
var DefaultStageAliases = map[string]buildstage.Stage{
	"base":           buildstage.Base,
	"build-packages": buildstage.Build,
	"development":    buildstage.Development,
}

// ParserConfiguration maps stage names (lowercase) to the build stage they represent.
type ParserConfiguration struct {
	StageAliases map[string]buildstage.Stage
}

// StageDeclaration is one FROM section of the Dockerfile.
type StageDeclaration struct {
	Name      string
	Image     string
	Parent    string
	Line      int
	Installed []string
}

// StageInventory lists the packages available in one build stage.
type StageInventory struct {
	Stage     buildstage.Stage `json:"stage" yaml:"stage"`
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`
	Parent    string           `json:"parent,omitempty" yaml:"parent,omitempty"`
	Installed []string         `json:"installed" yaml:"installed"`
	// Inherited holds packages installed by the stage this one is built FROM, transitively.
	Inherited []string `json:"inherited,omitempty" yaml:"inherited,omitempty"`
}

// Available returns installed and inherited packages as one set.
func (inventory StageInventory) Available() map[string]struct{} {
	available := make(map[string]struct{}, len(inventory.Installed)+len(inventory.Inherited))
	for _, packageName := range inventory.Installed {
		available[packageName] = struct{}{}
	}
	for _, packageName := range inventory.Inherited {
		available[packageName] = struct{}{}
	}
	return available
}

// Description is a parsed Dockerfile.
type Description struct {
	Stages      []StageDeclaration
	inventories map[buildstage.Stage]StageInventory
	rawLines    []string
}

// Parser extracts build stages and their apt installs from Dockerfile text.
type Parser struct {
	stageAliases map[string]buildstage.Stage
}

// NewParser constructs a Parser. A nil alias map falls back to DefaultStageAliases.
func NewParser(configuration ParserConfiguration) *Parser {
	stageAliases := configuration.StageAliases
	if stageAliases == nil {
		stageAliases = DefaultStageAliases
	}
	normalized := make(map[string]buildstage.Stage, len(stageAliases))
	for alias, stage := range stageAliases {
		normalized[strings.ToLower(strings.TrimSpace(alias))] = stage
	}
	return &Parser{stageAliases: normalized}
}

// Parse splits content into FROM sections and collects the packages each one installs.
func (parser *Parser) Parse(content string) Description {
	description := Description{
		inventories: make(map[buildstage.Stage]StageInventory),
		rawLines:    strings.Split(content, lineBreakConstant),
	}

	var current *StageDeclaration
	for _, instruction := range logicalInstructions(content) {
		if fromMatch := fromDirectivePattern.FindStringSubmatch(instruction.text); fromMatch != nil {
			description.Stages = append(description.Stages, parseFromDirective(fromMatch[1], instruction.line))
			current = &description.Stages[len(description.Stages)-1]
			continue
		}
		if current == nil || !runDirectivePattern.MatchString(instruction.text) {
			continue
		}
		current.Installed = appendUnique(current.Installed, installedPackages(instruction.text)...)
	}

	stagesByName := make(map[string]int, len(description.Stages))
	for stageIndex, declaration := range description.Stages {
		if parentIndex, known := stagesByName[strings.ToLower(declaration.Image)]; known {
			description.Stages[stageIndex].Parent = description.Stages[parentIndex].Name
		}
		if len(declaration.Name) > 0 {
			stagesByName[declaration.Name] = stageIndex
		}
	}

	for _, declaration := range description.Stages {
		stage, recognized := parser.stageAliases[declaration.Name]
		if !recognized {
			continue
		}
		inventory, exists := description.inventories[stage]
		if !exists {
			inventory = StageInventory{Stage: stage, Name: declaration.Name, Parent: declaration.Parent}
		}
		inventory.Installed = appendUnique(inventory.Installed, declaration.Installed...)
		inventory.Inherited = appendUnique(inventory.Inherited, inheritedPackages(description.Stages, stagesByName, declaration)...)
		description.inventories[stage] = inventory
	}

	return description
}

// Inventory returns the packages of stage; absent stages yield an empty inventory.
func (description Description) Inventory(stage buildstage.Stage) StageInventory {
	inventory, exists := description.inventories[stage]
	if !exists {
		return StageInventory{Stage: stage, Installed: []string{}}
	}
	inventory.Installed = append([]string{}, inventory.Installed...)
	inventory.Inherited = append([]string(nil), inventory.Inherited...)
	return inventory
}

// Installs reports whether any recognized stage installs packageName.
func (description Description) Installs(packageName string) bool {
	for _, inventory := range description.inventories {
		for _, installed := range inventory.Installed {
			if installed == packageName {
				return true
			}
		}
	}
	return false
}

// InstalledPackages lists every package installed by a recognized stage, sorted.
func (description Description) InstalledPackages() []string {
	unique := make(map[string]struct{})
	for _, inventory := range description.inventories {
		for _, installed := range inventory.Installed {
			unique[installed] = struct{}{}
		}
	}
	packageNames := make([]string, 0, len(unique))
	for packageName := range unique {
		packageNames = append(packageNames, packageName)
	}
	sort.Strings(packageNames)
	return packageNames
}

// LineOf returns the first 1-based line naming packageName as a word, or 0.
func (description Description) LineOf(packageName string) int {
	for lineIndex, line := range description.rawLines {
		for _, field := range strings.Fields(line) {
			if normalizePackageToken(field) == packageName {
				return lineIndex + 1
			}
		}
	}
	return 0
}

type logicalInstruction struct {
	text string
	line int
}

// logicalInstructions drops comment lines and joins continuation lines, keeping the starting line number.
func logicalInstructions(content string) []logicalInstruction {
	instructions := make([]logicalInstruction, 0)
	var builder strings.Builder
	startLine := 0
	for lineIndex, rawLine := range strings.Split(content, lineBreakConstant) {
		trimmedLine := strings.TrimSpace(rawLine)
		if strings.HasPrefix(trimmedLine, commentMarkerConstant) {
			continue
		}
		if builder.Len() == 0 {
			if len(trimmedLine) == 0 {
				continue
			}
			startLine = lineIndex + 1
		}
		if strings.HasSuffix(trimmedLine, continuationMarkerConstant) {
			builder.WriteString(strings.TrimSuffix(trimmedLine, continuationMarkerConstant))
			builder.WriteString(" ")
			continue
		}
		builder.WriteString(trimmedLine)
		instructions = append(instructions, logicalInstruction{text: strings.TrimSpace(builder.String()), line: startLine})
		builder.Reset()
	}
	if builder.Len() > 0 {
		instructions = append(instructions, logicalInstruction{text: strings.TrimSpace(builder.String()), line: startLine})
	}
	return instructions
}

func parseFromDirective(arguments string, line int) StageDeclaration {
	fields := strings.Fields(arguments)
	positional := make([]string, 0, len(fields))
	for _, field := range fields {
		if strings.HasPrefix(field, platformOptionPrefixConstant) {
			continue
		}
		positional = append(positional, field)
	}

	declaration := StageDeclaration{Line: line}
	if len(positional) > 0 {
		declaration.Image = positional[0]
	}
	if len(positional) >= 3 && strings.EqualFold(positional[1], stageAliasKeywordConstant) {
		declaration.Name = strings.ToLower(positional[2])
	}
	return declaration
}

// installedPackages reads package names following every apt install in one RUN instruction.
func installedPackages(instruction string) []string {
	packageNames := make([]string, 0)
	for _, location := range installCommandPattern.FindAllStringIndex(instruction, -1) {
		remainder := statementSeparatorSpacer.Replace(instruction[location[1]:])
		skipNext := false
		for _, field := range strings.Fields(remainder) {
			if _, separator := shellSeparators[field]; separator {
				break
			}
			if skipNext {
				skipNext = false
				continue
			}
			if strings.HasPrefix(field, optionPrefixConstant) {
				_, skipNext = optionsWithValues[field]
				continue
			}
			if candidate := normalizePackageToken(field); packageNamePattern.MatchString(candidate) {
				packageNames = append(packageNames, candidate)
			}
		}
	}
	return packageNames
}

func normalizePackageToken(token string) string {
	normalized := strings.TrimSuffix(strings.TrimSpace(token), continuationMarkerConstant)
	if separatorIndex := strings.Index(normalized, versionSeparatorConstant); separatorIndex >= 0 {
		normalized = normalized[:separatorIndex]
	}
	if separatorIndex := strings.Index(normalized, architectureSeparatorConstant); separatorIndex >= 0 {
		normalized = normalized[:separatorIndex]
	}
	return normalized
}

func inheritedPackages(stages []StageDeclaration, stagesByName map[string]int, declaration StageDeclaration) []string {
	inherited := make([]string, 0)
	visited := map[string]struct{}{declaration.Name: {}}
	parentName := declaration.Parent
	for len(parentName) > 0 {
		if _, seen := visited[parentName]; seen {
			break
		}
		visited[parentName] = struct{}{}
		parentIndex, known := stagesByName[parentName]
		if !known {
			break
		}
		inherited = appendUnique(inherited, stages[parentIndex].Installed...)
		parentName = stages[parentIndex].Parent
	}
	return inherited
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, value := range existing {
		seen[value] = struct{}{}
	}
	for _, value := range additions {
		if _, duplicate := seen[value]; duplicate {
			continue
		}
		seen[value] = struct{}{}
		existing = append(existing, value)
	}
	return existing
}
