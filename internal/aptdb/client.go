package aptdb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/temirov/dockwise/internal/execshell"
)

const (
	dpkgSearchFlagConstant                  = "-S"
	aptFileSearchSubcommandConstant         = "search"
	aptFileListSubcommandConstant           = "list"
	aptFilePackageOnlyFlagConstant          = "--package-only"
	aptFileRegexpFlagConstant               = "--regexp"
	aptFileFixedStringFlagConstant          = "--fixed-string"
	aptCacheDependsSubcommandConstant       = "depends"
	ownerSeparatorConstant                  = ": "
	packageListSeparatorConstant            = ","
	architectureSeparatorConstant           = ":"
	diversionPrefixConstant                 = "diversion by"
	alternativeMarkerConstant               = "|"
	virtualTargetPrefixConstant             = "<"
	virtualTargetSuffixConstant             = ">"
	wildcardCharacterConstant               = "*"
	wildcardRegexpConstant                  = "[^/]*"
	pathSeparatorConstant                   = "/"
	requiredValueMessageConstant            = "value required"
	executorNotConfiguredMessageConstant    = "package tooling executor not configured"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	packageFieldNameConstant                = "package"
	pathFieldNameConstant                   = "path"
	patternFieldNameConstant                = "pattern"
	dependenciesOperationNameConstant       = OperationName("DependenciesOf")
	fileOwnersOperationNameConstant         = OperationName("FileOwnersOf")
	contentsSearchOperationNameConstant     = OperationName("ContentsSearch")
	executablesOperationNameConstant        = OperationName("ExecutablesOf")
)

// Dependency relation kinds reported by apt-cache.
const (
	RelationDepends    = "Depends"
	RelationPreDepends = "PreDepends"
	RelationRecommends = "Recommends"
	RelationSuggests   = "Suggests"
)

var dependencyLinePattern = regexp.MustCompile(`^\s+(\|)?([A-Za-z-]+):\s*(\S+)`)

// OperationName describes a named package database query supported by the client.
type OperationName string

// Dependency is one declared relation of a package.
type Dependency struct {
	Relation string
	Target   string
	// Alternative marks a member of an "a | b" group.
	Alternative bool
	// Virtual marks targets that no concrete package carries, printed as <name>.
	Virtual bool
}

// IsHard reports whether the dependency must be satisfied by exactly the named concrete package.
func (dependency Dependency) IsHard() bool {
	if dependency.Alternative || dependency.Virtual {
		return false
	}
	return dependency.Relation == RelationDepends || dependency.Relation == RelationPreDepends
}

// PackageToolExecutor is the minimal interface required from execshell.ShellExecutor.
type PackageToolExecutor interface {
	ExecuteDpkg(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteAptFile(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteAptCache(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client answers package database questions through dpkg, apt-file and apt-cache.
type Client struct {
	executor PackageToolExecutor
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for package database queries.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// NewClient constructs a package database client.
func NewClient(executor PackageToolExecutor) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor}, nil
}

// DependenciesOf lists the relations declared by a package using apt-cache depends, in output order.
func (client *Client) DependenciesOf(executionContext context.Context, packageName string) ([]Dependency, error) {
	trimmedPackageName := strings.TrimSpace(packageName)
	if len(trimmedPackageName) == 0 {
		return nil, InvalidInputError{FieldName: packageFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.executor.ExecuteAptCache(executionContext, execshell.CommandDetails{
		Arguments: []string{aptCacheDependsSubcommandConstant, trimmedPackageName},
	})
	if executionError != nil {
		return nil, client.operationFailure(dependenciesOperationNameConstant, executionError)
	}

	return parseDependencies(executionResult.StandardOutput), nil
}

// FileOwnersOf lists installed packages owning the path using dpkg -S.
func (client *Client) FileOwnersOf(executionContext context.Context, path string) ([]string, error) {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return nil, InvalidInputError{FieldName: pathFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.executor.ExecuteDpkg(executionContext, execshell.CommandDetails{
		Arguments: []string{dpkgSearchFlagConstant, trimmedPath},
	})
	if executionError != nil {
		return nil, client.operationFailure(fileOwnersOperationNameConstant, executionError)
	}

	return parseOwners(executionResult.StandardOutput), nil
}

// ContentsSearch lists packages from the apt-file index that ship a file matching the pattern.
// An asterisk matches within one path segment. Patterns without a slash match a trailing path segment.
func (client *Client) ContentsSearch(executionContext context.Context, pattern string) ([]string, error) {
	trimmedPattern := strings.TrimSpace(pattern)
	if len(trimmedPattern) == 0 {
		return nil, InvalidInputError{FieldName: patternFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.executor.ExecuteAptFile(executionContext, execshell.CommandDetails{
		Arguments: []string{
			aptFileSearchSubcommandConstant,
			aptFilePackageOnlyFlagConstant,
			aptFileRegexpFlagConstant,
			contentsPatternExpression(trimmedPattern),
		},
	})
	if executionError != nil {
		return nil, client.operationFailure(contentsSearchOperationNameConstant, executionError)
	}

	return uniqueSortedLines(executionResult.StandardOutput), nil
}

// ExecutablesOf lists every file path that apt-file knows the package ships.
func (client *Client) ExecutablesOf(executionContext context.Context, packageName string) ([]string, error) {
	trimmedPackageName := strings.TrimSpace(packageName)
	if len(trimmedPackageName) == 0 {
		return nil, InvalidInputError{FieldName: packageFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.executor.ExecuteAptFile(executionContext, execshell.CommandDetails{
		Arguments: []string{aptFileListSubcommandConstant, aptFileFixedStringFlagConstant, trimmedPackageName},
	})
	if executionError != nil {
		return nil, client.operationFailure(executablesOperationNameConstant, executionError)
	}

	return parsePackageListing(executionResult.StandardOutput, trimmedPackageName), nil
}

// operationFailure treats a non-zero exit as an empty answer: dpkg and apt-file exit 1 when nothing matches.
func (client *Client) operationFailure(operation OperationName, executionError error) error {
	var failedError execshell.CommandFailedError
	if errors.As(executionError, &failedError) {
		return nil
	}
	return OperationError{Operation: operation, Cause: executionError}
}

func parseDependencies(output string) []Dependency {
	dependencies := make([]Dependency, 0)
	alternativeContinues := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		matches := dependencyLinePattern.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		startsAlternative := len(matches[1]) > 0
		target := matches[3]
		virtual := strings.HasPrefix(target, virtualTargetPrefixConstant) && strings.HasSuffix(target, virtualTargetSuffixConstant)
		if virtual {
			target = strings.TrimSuffix(strings.TrimPrefix(target, virtualTargetPrefixConstant), virtualTargetSuffixConstant)
		}
		dependencies = append(dependencies, Dependency{
			Relation:    matches[2],
			Target:      stripArchitecture(target),
			Alternative: startsAlternative || alternativeContinues,
			Virtual:     virtual,
		})
		alternativeContinues = startsAlternative
	}
	return dependencies
}

func parseOwners(output string) []string {
	owners := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, diversionPrefixConstant) {
			continue
		}
		separatorIndex := strings.Index(line, ownerSeparatorConstant)
		if separatorIndex <= 0 {
			continue
		}
		for _, ownerCandidate := range strings.Split(line[:separatorIndex], packageListSeparatorConstant) {
			owner := stripArchitecture(strings.TrimSpace(ownerCandidate))
			if len(owner) > 0 {
				owners[owner] = struct{}{}
			}
		}
	}
	return sortedKeys(owners)
}

func parsePackageListing(output string, packageName string) []string {
	paths := make([]string, 0)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		separatorIndex := strings.Index(line, ownerSeparatorConstant)
		if separatorIndex <= 0 {
			continue
		}
		if stripArchitecture(line[:separatorIndex]) != packageName {
			continue
		}
		paths = append(paths, strings.TrimSpace(line[separatorIndex+len(ownerSeparatorConstant):]))
	}
	return paths
}

func uniqueSortedLines(output string) []string {
	values := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		value := stripArchitecture(strings.TrimSpace(scanner.Text()))
		if len(value) > 0 {
			values[value] = struct{}{}
		}
	}
	return sortedKeys(values)
}

// contentsPatternExpression converts a probe pattern into an anchored apt-file regular expression.
func contentsPatternExpression(pattern string) string {
	segments := strings.Split(pattern, wildcardCharacterConstant)
	for segmentIndex := range segments {
		segments[segmentIndex] = regexp.QuoteMeta(segments[segmentIndex])
	}
	expression := strings.Join(segments, wildcardRegexpConstant) + "$"
	if strings.HasPrefix(pattern, pathSeparatorConstant) {
		return "^" + expression
	}
	return pathSeparatorConstant + expression
}

func stripArchitecture(packageName string) string {
	if separatorIndex := strings.Index(packageName, architectureSeparatorConstant); separatorIndex > 0 {
		return packageName[:separatorIndex]
	}
	return packageName
}

func sortedKeys(values map[string]struct{}) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
