package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

const (
	lockFileNameConstant               = "go.sum"
	goModHashSuffixConstant            = "/go.mod"
	manifestMissingMessageConstant     = "go.mod not found"
	lockFileMissingMessageConstant     = "go.sum not found"
	missingFileTemplateConstant        = "%w: %s"
	manifestParseErrorTemplateConstant = "unable to parse %s: %w"
	pathSeparatorConstant              = "/"
)

var (
	// ErrManifestNotFound indicates that go.mod does not exist.
	ErrManifestNotFound = errors.New(manifestMissingMessageConstant)
	// ErrLockFileNotFound indicates that go.sum does not exist next to go.mod.
	ErrLockFileNotFound = errors.New(lockFileMissingMessageConstant)
)

// Group is the constraint group a module belongs to.
type Group string

// Module groups.
const (
	GroupProduction  Group = "production"
	GroupDevelopment Group = "development"
)

// ModuleDependency is one required module of the audited project.
type ModuleDependency struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version" yaml:"version"`
	Group    Group  `json:"group" yaml:"group"`
	Indirect bool   `json:"indirect" yaml:"indirect"`
	Native   bool   `json:"native" yaml:"native"`
	Locked   bool   `json:"locked" yaml:"locked"`
	Line     int    `json:"line" yaml:"line"`
}

// Manifest is the parsed go.mod with its lock file status.
type Manifest struct {
	Path         string
	LockPath     string
	ModulePath   string
	Dependencies []ModuleDependency
}

// Extractor reads go.mod and go.sum.
type Extractor struct {
	rules RuleSet
}

// NewExtractor constructs an Extractor that flags native modules using rules.
func NewExtractor(rules RuleSet) *Extractor {
	return &Extractor{rules: rules}
}

// Extract parses goModPath and the go.sum beside it. Modules only present for tool directives are development dependencies.
func (extractor *Extractor) Extract(goModPath string) (Manifest, error) {
	content, readError := os.ReadFile(goModPath)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf(missingFileTemplateConstant, ErrManifestNotFound, goModPath)
		}
		return Manifest{}, readError
	}

	lockPath := filepath.Join(filepath.Dir(goModPath), lockFileNameConstant)
	lockedModules, lockError := readLockFile(lockPath)
	if lockError != nil {
		return Manifest{}, lockError
	}

	parsedFile, parseError := modfile.Parse(goModPath, content, nil)
	if parseError != nil {
		return Manifest{}, fmt.Errorf(manifestParseErrorTemplateConstant, goModPath, parseError)
	}

	manifest := Manifest{Path: goModPath, LockPath: lockPath}
	if parsedFile.Module != nil {
		manifest.ModulePath = parsedFile.Module.Mod.Path
	}

	toolPackages := make([]string, 0, len(parsedFile.Tool))
	for _, tool := range parsedFile.Tool {
		toolPackages = append(toolPackages, tool.Path)
	}

	for _, requirement := range parsedFile.Require {
		modulePath := requirement.Mod.Path
		group := GroupProduction
		if requirement.Indirect && providesTool(modulePath, toolPackages) {
			group = GroupDevelopment
		}
		line := 0
		if requirement.Syntax != nil {
			line = requirement.Syntax.Start.Line
		}
		_, locked := lockedModules[modulePath+" "+requirement.Mod.Version]
		manifest.Dependencies = append(manifest.Dependencies, ModuleDependency{
			Name:     modulePath,
			Version:  requirement.Mod.Version,
			Group:    group,
			Indirect: requirement.Indirect,
			Native:   extractor.rules.IsNative(modulePath),
			Locked:   locked,
			Line:     line,
		})
	}

	return manifest, nil
}

func providesTool(modulePath string, toolPackages []string) bool {
	for _, toolPackage := range toolPackages {
		if matchesModule(toolPackage, modulePath) {
			return true
		}
	}
	return false
}

// matchesModule reports whether path is modulePath or lies inside it.
func matchesModule(path string, modulePath string) bool {
	return path == modulePath || strings.HasPrefix(path, modulePath+pathSeparatorConstant)
}

// readLockFile returns the "module version" pairs recorded in go.sum.
func readLockFile(lockPath string) (map[string]struct{}, error) {
	lockFile, openError := os.Open(lockPath)
	if openError != nil {
		if errors.Is(openError, os.ErrNotExist) {
			return nil, fmt.Errorf(missingFileTemplateConstant, ErrLockFileNotFound, lockPath)
		}
		return nil, openError
	}
	defer lockFile.Close()

	lockedModules := make(map[string]struct{})
	lineScanner := bufio.NewScanner(lockFile)
	for lineScanner.Scan() {
		fields := strings.Fields(lineScanner.Text())
		if len(fields) < 2 {
			continue
		}
		version := strings.TrimSuffix(fields[1], goModHashSuffixConstant)
		lockedModules[fields[0]+" "+version] = struct{}{}
	}
	return lockedModules, lineScanner.Err()
}
