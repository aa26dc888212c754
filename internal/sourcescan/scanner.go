package sourcescan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/dockwise/internal/buildstage"
)

const (
	goSourceExtensionConstant         = ".go"
	hiddenDirectoryPrefixConstant     = "."
	ignoredDirectoryPrefixConstant    = "_"
	projectRootMissingMessageConstant = "project root not found"
	projectRootErrorTemplateConstant  = "%w: %s"
	extractorMissingMessageConstant   = "source extractor not configured"
	skippedFileMessageConstant        = "Skipping unparseable source file"
	unreadableFileMessageConstant     = "Skipping unreadable source file"
	directoryScannedMessageConstant   = "Analyzed source directory"
	logFieldPathConstant              = "path"
	logFieldStageConstant             = "stage"
	logFieldFileCountConstant         = "files"
)

var (
	// ErrProjectRootMissing indicates the project root does not exist or is not a directory.
	ErrProjectRootMissing = errors.New(projectRootMissingMessageConstant)
	// ErrExtractorNotConfigured indicates NewScanner received a nil extractor.
	ErrExtractorNotConfigured = errors.New(extractorMissingMessageConstant)
)

// ScanDirectory is one project-relative directory and the stage its sources default to.
type ScanDirectory struct {
	Path      string           `mapstructure:"path"`
	Stage     buildstage.Stage `mapstructure:"stage"`
	Recursive bool             `mapstructure:"recursive"`
}

// DefaultScanDirectories lists directories in priority order; earlier entries win when a command appears twice.
var DefaultScanDirectories = []ScanDirectory{
	{Path: "cmd", Stage: buildstage.Base, Recursive: true},
	{Path: "internal", Stage: buildstage.Base, Recursive: true},
	{Path: "pkg", Stage: buildstage.Base, Recursive: true},
	{Path: "app", Stage: buildstage.Base, Recursive: true},
	{Path: "lib", Stage: buildstage.Base, Recursive: true},
	{Path: ".", Stage: buildstage.Base, Recursive: false},
	{Path: "test", Stage: buildstage.Development, Recursive: true},
	{Path: "tests", Stage: buildstage.Development, Recursive: true},
	{Path: "scripts", Stage: buildstage.Development, Recursive: true},
	{Path: "hack", Stage: buildstage.Development, Recursive: true},
	{Path: "tools", Stage: buildstage.Development, Recursive: true},
}

// DefaultSkippedDirectories never contain sources that ship with the project.
var DefaultSkippedDirectories = []string{"vendor", "testdata", "node_modules"}

// ScannerConfiguration selects what the scanner walks.
type ScannerConfiguration struct {
	Directories        []ScanDirectory
	SkippedDirectories []string
}

// ScanResult aggregates the invocations of every analyzed file.
type ScanResult struct {
	Index         *CommandIndex
	CgoFiles      []string
	AnalyzedFiles int
	SkippedFiles  []string
}

// Scanner walks a project's source directories and feeds every Go file to the Extractor.
type Scanner struct {
	extractor     *Extractor
	configuration ScannerConfiguration
	skipped       map[string]struct{}
	logger        *zap.Logger
}

// NewScanner constructs a Scanner. Empty configuration lists fall back to the defaults.
func NewScanner(extractor *Extractor, configuration ScannerConfiguration, logger *zap.Logger) (*Scanner, error) {
	if extractor == nil {
		return nil, ErrExtractorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(configuration.Directories) == 0 {
		configuration.Directories = DefaultScanDirectories
	}
	if configuration.SkippedDirectories == nil {
		configuration.SkippedDirectories = DefaultSkippedDirectories
	}

	skipped := make(map[string]struct{}, len(configuration.SkippedDirectories))
	for _, directoryName := range configuration.SkippedDirectories {
		skipped[directoryName] = struct{}{}
	}
	return &Scanner{extractor: extractor, configuration: configuration, skipped: skipped, logger: logger}, nil
}

// Scan analyzes the configured directories under projectRoot. Missing directories and unparseable files are skipped.
func (scanner *Scanner) Scan(executionContext context.Context, projectRoot string) (ScanResult, error) {
	rootInfo, statError := os.Stat(projectRoot)
	if statError != nil || !rootInfo.IsDir() {
		return ScanResult{}, fmt.Errorf(projectRootErrorTemplateConstant, ErrProjectRootMissing, projectRoot)
	}

	result := ScanResult{Index: NewCommandIndex()}
	analyzed := make(map[string]struct{})

	for _, directory := range scanner.configuration.Directories {
		if contextError := executionContext.Err(); contextError != nil {
			return result, contextError
		}
		directoryPath := filepath.Join(projectRoot, directory.Path)
		directoryInfo, directoryError := os.Stat(directoryPath)
		if directoryError != nil || !directoryInfo.IsDir() {
			continue
		}

		fileCount := 0
		walkError := filepath.WalkDir(directoryPath, func(path string, directoryEntry fs.DirEntry, walkError error) error {
			if walkError != nil {
				return nil
			}
			if directoryEntry.IsDir() {
				if path == directoryPath {
					return nil
				}
				if !directory.Recursive || scanner.isSkippedDirectory(directoryEntry.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != goSourceExtensionConstant {
				return nil
			}
			if _, seen := analyzed[path]; seen {
				return nil
			}
			analyzed[path] = struct{}{}
			if scanner.analyzeFile(projectRoot, path, directory.Stage, &result) {
				fileCount++
			}
			return nil
		})
		if walkError != nil {
			return result, walkError
		}

		scanner.logger.Debug(
			directoryScannedMessageConstant,
			zap.String(logFieldPathConstant, directory.Path),
			zap.String(logFieldStageConstant, string(directory.Stage)),
			zap.Int(logFieldFileCountConstant, fileCount),
		)
	}

	return result, nil
}

func (scanner *Scanner) analyzeFile(projectRoot string, path string, defaultStage buildstage.Stage, result *ScanResult) bool {
	relativePath, relativeError := filepath.Rel(projectRoot, path)
	if relativeError != nil {
		relativePath = path
	}

	content, readError := os.ReadFile(path)
	if readError != nil {
		scanner.logger.Warn(unreadableFileMessageConstant, zap.String(logFieldPathConstant, relativePath), zap.Error(readError))
		result.SkippedFiles = append(result.SkippedFiles, relativePath)
		return false
	}

	extraction, extractionError := scanner.extractor.ExtractFile(relativePath, content, defaultStage)
	if extractionError != nil {
		scanner.logger.Warn(skippedFileMessageConstant, zap.String(logFieldPathConstant, relativePath), zap.Error(extractionError))
		result.SkippedFiles = append(result.SkippedFiles, relativePath)
		return false
	}

	for _, invocation := range extraction.Invocations {
		result.Index.Add(invocation)
	}
	if extraction.UsesCgo {
		result.CgoFiles = append(result.CgoFiles, relativePath)
	}
	result.AnalyzedFiles++
	return true
}

func (scanner *Scanner) isSkippedDirectory(name string) bool {
	if strings.HasPrefix(name, hiddenDirectoryPrefixConstant) || strings.HasPrefix(name, ignoredDirectoryPrefixConstant) {
		return true
	}
	_, skipped := scanner.skipped[name]
	return skipped
}
