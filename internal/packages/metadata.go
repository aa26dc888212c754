package packages

import (
	"context"

	"go.uber.org/zap"

	"github.com/temirov/dockwise/internal/aptdb"
)

const (
	metadataQueryFailedMessageConstant = "package metadata unavailable"
	metadataOperationFieldConstant     = "operation"
	metadataSubjectFieldConstant       = "subject"
	dependenciesOperationConstant      = "dependencies"
	fileOwnersOperationConstant        = "file_owners"
	contentsSearchOperationConstant    = "contents_search"
	packageFilesOperationConstant      = "package_files"
)

// MetadataProvider answers questions about the OS package database.
type MetadataProvider interface {
	DependenciesOf(executionContext context.Context, packageName string) ([]aptdb.Dependency, error)
	FileOwnersOf(executionContext context.Context, path string) ([]string, error)
	ContentsSearch(executionContext context.Context, pattern string) ([]string, error)
	ExecutablesOf(executionContext context.Context, packageName string) ([]string, error)
}

// SearchPathProbe answers questions about commands on PATH.
type SearchPathProbe interface {
	IsExecutableOnPath(command string) bool
	ResolvedPathOf(command string) (string, bool)
}

// cachedMetadata memoizes raw metadata per key and turns every failure into an empty answer.
type cachedMetadata struct {
	provider          MetadataProvider
	resolutionContext *ResolutionContext
	logger            *zap.Logger
}

func (metadata cachedMetadata) dependencies(executionContext context.Context, packageName string) []aptdb.Dependency {
	return metadata.resolutionContext.dependencies.load(packageName, func() []aptdb.Dependency {
		dependencies, queryError := metadata.provider.DependenciesOf(executionContext, packageName)
		if queryError != nil {
			metadata.logFailure(dependenciesOperationConstant, packageName, queryError)
			return nil
		}
		return dependencies
	})
}

func (metadata cachedMetadata) owners(executionContext context.Context, path string) []string {
	return metadata.resolutionContext.fileOwners.load(path, func() []string {
		return metadata.softList(fileOwnersOperationConstant, path, func() ([]string, error) {
			return metadata.provider.FileOwnersOf(executionContext, path)
		})
	})
}

func (metadata cachedMetadata) contents(executionContext context.Context, pattern string) []string {
	return metadata.resolutionContext.contentsMatches.load(pattern, func() []string {
		return metadata.softList(contentsSearchOperationConstant, pattern, func() ([]string, error) {
			return metadata.provider.ContentsSearch(executionContext, pattern)
		})
	})
}

func (metadata cachedMetadata) files(executionContext context.Context, packageName string) []string {
	return metadata.resolutionContext.packageFiles.load(packageName, func() []string {
		return metadata.softList(packageFilesOperationConstant, packageName, func() ([]string, error) {
			return metadata.provider.ExecutablesOf(executionContext, packageName)
		})
	})
}

func (metadata cachedMetadata) softList(operation string, subject string, query func() ([]string, error)) []string {
	values, queryError := query()
	if queryError != nil {
		metadata.logFailure(operation, subject, queryError)
		return nil
	}
	return values
}

func (metadata cachedMetadata) logFailure(operation string, subject string, queryError error) {
	metadata.logger.Debug(
		metadataQueryFailedMessageConstant,
		zap.String(metadataOperationFieldConstant, operation),
		zap.String(metadataSubjectFieldConstant, subject),
		zap.Error(queryError),
	)
}
