package aptdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dockwise/internal/aptdb"
	"github.com/temirov/dockwise/internal/execshell"
)

const (
	testAptCacheDependsOutputConstant = `git
  Depends: libc6
  Depends: libcurl3-gnutls
 |Depends: perl
  Depends: liberror-perl
  PreDepends: dpkg:any
  Depends: <perlapi-5.36.0>
    perl-base
  Recommends: less
`
	testDpkgSearchOutputConstant = `diversion by dash from: /bin/sh
coreutils, busybox:amd64: /bin/ls
git: /usr/bin/git
`
	testAptFileListOutputConstant = `git: /usr/bin/git
git: /usr/share/doc/git/README
git-man: /usr/share/man/man1/git.1.gz
`
)

type stubPackageToolExecutor struct {
	executeFunc     func(execshell.CommandName, execshell.CommandDetails) (execshell.ExecutionResult, error)
	recordedNames   []execshell.CommandName
	recordedDetails []execshell.CommandDetails
}

func (executor *stubPackageToolExecutor) record(name execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedNames = append(executor.recordedNames, name)
	executor.recordedDetails = append(executor.recordedDetails, details)
	if executor.executeFunc != nil {
		return executor.executeFunc(name, details)
	}
	return execshell.ExecutionResult{}, nil
}

func (executor *stubPackageToolExecutor) ExecuteDpkg(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.record(execshell.CommandDpkg, details)
}

func (executor *stubPackageToolExecutor) ExecuteAptFile(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.record(execshell.CommandAptFile, details)
}

func (executor *stubPackageToolExecutor) ExecuteAptCache(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.record(execshell.CommandAptCache, details)
}

func respondWith(output string) func(execshell.CommandName, execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return func(execshell.CommandName, execshell.CommandDetails) (execshell.ExecutionResult, error) {
		return execshell.ExecutionResult{StandardOutput: output}, nil
	}
}

func TestNewClientValidation(testInstance *testing.T) {
	client, creationError := aptdb.NewClient(nil)
	require.ErrorIs(testInstance, creationError, aptdb.ErrExecutorNotConfigured)
	require.Nil(testInstance, client)
}

func TestDependenciesOfParsesRelations(testInstance *testing.T) {
	executor := &stubPackageToolExecutor{executeFunc: respondWith(testAptCacheDependsOutputConstant)}
	client, creationError := aptdb.NewClient(executor)
	require.NoError(testInstance, creationError)

	dependencies, queryError := client.DependenciesOf(context.Background(), "git")
	require.NoError(testInstance, queryError)
	require.Equal(testInstance, []execshell.CommandName{execshell.CommandAptCache}, executor.recordedNames)
	require.Equal(testInstance, []string{"depends", "git"}, executor.recordedDetails[0].Arguments)

	require.Equal(testInstance, []aptdb.Dependency{
		{Relation: aptdb.RelationDepends, Target: "libc6"},
		{Relation: aptdb.RelationDepends, Target: "libcurl3-gnutls"},
		{Relation: aptdb.RelationDepends, Target: "perl", Alternative: true},
		{Relation: aptdb.RelationDepends, Target: "liberror-perl", Alternative: true},
		{Relation: aptdb.RelationPreDepends, Target: "dpkg"},
		{Relation: aptdb.RelationDepends, Target: "perlapi-5.36.0", Virtual: true},
		{Relation: aptdb.RelationRecommends, Target: "less"},
	}, dependencies)

	hardTargets := make([]string, 0)
	for _, dependency := range dependencies {
		if dependency.IsHard() {
			hardTargets = append(hardTargets, dependency.Target)
		}
	}
	require.Equal(testInstance, []string{"libc6", "libcurl3-gnutls", "dpkg"}, hardTargets)
}

func TestFileOwnersOf(testInstance *testing.T) {
	testCases := []struct {
		name           string
		executeFunc    func(execshell.CommandName, execshell.CommandDetails) (execshell.ExecutionResult, error)
		expectedOwners []string
		expectError    bool
	}{
		{
			name:           "owners_parsed",
			executeFunc:    respondWith(testDpkgSearchOutputConstant),
			expectedOwners: []string{"busybox", "coreutils", "git"},
		},
		{
			name: "not_found_is_empty",
			executeFunc: func(name execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
				result := execshell.ExecutionResult{ExitCode: 1, StandardError: "dpkg-query: no path found"}
				return execshell.ExecutionResult{}, execshell.CommandFailedError{Command: execshell.ShellCommand{Name: name, Details: details}, Result: result}
			},
			expectedOwners: nil,
		},
		{
			name: "execution_failure",
			executeFunc: func(name execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
				return execshell.ExecutionResult{}, execshell.CommandExecutionError{Command: execshell.ShellCommand{Name: name}, Cause: context.DeadlineExceeded}
			},
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := aptdb.NewClient(&stubPackageToolExecutor{executeFunc: testCase.executeFunc})
			require.NoError(testInstance, creationError)

			owners, queryError := client.FileOwnersOf(context.Background(), "/usr/bin/git")
			if testCase.expectError {
				require.Error(testInstance, queryError)
				require.IsType(testInstance, aptdb.OperationError{}, queryError)
				require.True(testInstance, errors.Is(queryError, context.DeadlineExceeded))
				return
			}
			require.NoError(testInstance, queryError)
			require.Equal(testInstance, testCase.expectedOwners, owners)
		})
	}
}

func TestContentsSearchBuildsAnchoredExpressions(testInstance *testing.T) {
	testCases := []struct {
		name               string
		pattern            string
		expectedExpression string
	}{
		{name: "absolute_path", pattern: "/usr/bin/jq", expectedExpression: `^/usr/bin/jq$`},
		{name: "wildcard_path", pattern: "*bin*/jq", expectedExpression: `/[^/]*bin[^/]*/jq$`},
		{name: "bare_name", pattern: "node.js", expectedExpression: `/node\.js$`},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &stubPackageToolExecutor{executeFunc: respondWith("jq\njq\nlibjq1:amd64\n")}
			client, creationError := aptdb.NewClient(executor)
			require.NoError(testInstance, creationError)

			packages, queryError := client.ContentsSearch(context.Background(), testCase.pattern)
			require.NoError(testInstance, queryError)
			require.Equal(testInstance, []string{"jq", "libjq1"}, packages)
			require.Equal(testInstance, []string{"search", "--package-only", "--regexp", testCase.expectedExpression}, executor.recordedDetails[0].Arguments)
		})
	}
}

func TestExecutablesOfKeepsOnlyTheRequestedPackage(testInstance *testing.T) {
	client, creationError := aptdb.NewClient(&stubPackageToolExecutor{executeFunc: respondWith(testAptFileListOutputConstant)})
	require.NoError(testInstance, creationError)

	paths, queryError := client.ExecutablesOf(context.Background(), "git")
	require.NoError(testInstance, queryError)
	require.Equal(testInstance, []string{"/usr/bin/git", "/usr/share/doc/git/README"}, paths)
}

func TestQueriesRejectBlankInput(testInstance *testing.T) {
	executor := &stubPackageToolExecutor{}
	client, creationError := aptdb.NewClient(executor)
	require.NoError(testInstance, creationError)

	_, dependenciesError := client.DependenciesOf(context.Background(), " ")
	_, ownersError := client.FileOwnersOf(context.Background(), "")
	_, searchError := client.ContentsSearch(context.Background(), "")
	_, listingError := client.ExecutablesOf(context.Background(), "")

	for _, queryError := range []error{dependenciesError, ownersError, searchError, listingError} {
		require.IsType(testInstance, aptdb.InvalidInputError{}, queryError)
	}
	require.Empty(testInstance, executor.recordedNames)
}
