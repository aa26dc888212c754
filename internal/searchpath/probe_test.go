package searchpath_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/dockwise/internal/searchpath"
)

type countingLookup struct {
	results map[string]string
	calls   map[string]int
}

func (lookup *countingLookup) find(command string) (string, error) {
	if lookup.calls == nil {
		lookup.calls = make(map[string]int)
	}
	lookup.calls[command]++
	if resolvedPath, found := lookup.results[command]; found {
		return resolvedPath, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func TestResolvedPathOfCachesLookups(testInstance *testing.T) {
	lookup := &countingLookup{results: map[string]string{"git": "/usr/bin/git"}}
	probe, creationError := searchpath.NewProbe(searchpath.WithLookupFunc(lookup.find))
	require.NoError(testInstance, creationError)

	for attempt := 0; attempt < 3; attempt++ {
		resolvedPath, found := probe.ResolvedPathOf("git")
		require.True(testInstance, found)
		require.Equal(testInstance, "/usr/bin/git", resolvedPath)
		require.False(testInstance, probe.IsExecutableOnPath("missing-tool"))
	}

	require.Equal(testInstance, 1, lookup.calls["git"])
	require.Equal(testInstance, 1, lookup.calls["missing-tool"])
}

func TestUnsafeNamesNeverReachLookup(testInstance *testing.T) {
	lookup := &countingLookup{}
	probe, creationError := searchpath.NewProbe(searchpath.WithLookupFunc(lookup.find))
	require.NoError(testInstance, creationError)

	for _, unsafeName := range []string{"", "rm -rf", "git;ls", "$(id)", "tool`x`"} {
		require.False(testInstance, searchpath.IsSafeCommandName(unsafeName))
		require.False(testInstance, probe.IsExecutableOnPath(unsafeName))
	}
	require.Empty(testInstance, lookup.calls)
	require.True(testInstance, searchpath.IsSafeCommandName("bin/tool-v1.2_x"))
}

func TestNewProbeValidatesOptions(testInstance *testing.T) {
	_, sizeError := searchpath.NewProbe(searchpath.WithCacheSize(0))
	require.ErrorIs(testInstance, sizeError, searchpath.ErrInvalidCacheSize)

	_, lookupError := searchpath.NewProbe(searchpath.WithLookupFunc(nil))
	require.ErrorIs(testInstance, lookupError, searchpath.ErrLookupNotConfigured)
}

func TestIsExecutableFile(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	executablePath := filepath.Join(temporaryDirectory, "tool")
	plainPath := filepath.Join(temporaryDirectory, "notes.txt")
	require.NoError(testInstance, os.WriteFile(executablePath, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(testInstance, os.WriteFile(plainPath, []byte("text"), 0o644))

	require.True(testInstance, searchpath.IsExecutableFile(executablePath))
	require.False(testInstance, searchpath.IsExecutableFile(plainPath))
	require.False(testInstance, searchpath.IsExecutableFile(temporaryDirectory))
	require.False(testInstance, searchpath.IsExecutableFile(filepath.Join(temporaryDirectory, "absent")))
}
