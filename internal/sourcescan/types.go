package sourcescan

import (
	"fmt"

	"github.com/temirov/dockwise/internal/buildstage"
)

const parseErrorTemplateConstant = "unable to parse %s: %v"

// CommandInvocation records where a shell command is spawned and which stage needs it.
type CommandInvocation struct {
	Command string           `json:"command" yaml:"command"`
	File    string           `json:"file" yaml:"file"`
	Line    int              `json:"line" yaml:"line"`
	Stage   buildstage.Stage `json:"stage" yaml:"stage"`
}

// FileExtraction is what one source file contributes.
type FileExtraction struct {
	Invocations []CommandInvocation
	// UsesCgo is set when the file imports "C".
	UsesCgo bool
}

// ParseError reports a source file that could not be parsed.
type ParseError struct {
	Path  string
	Cause error
}

// Error describes the parse failure.
func (parseError ParseError) Error() string {
	return fmt.Sprintf(parseErrorTemplateConstant, parseError.Path, parseError.Cause)
}

// Unwrap exposes the parser error.
func (parseError ParseError) Unwrap() error {
	return parseError.Cause
}

// CommandIndex keeps the first invocation seen for every command.
type CommandIndex struct {
	order       []string
	invocations map[string]CommandInvocation
}

// NewCommandIndex constructs an empty CommandIndex.
func NewCommandIndex() *CommandIndex {
	return &CommandIndex{invocations: make(map[string]CommandInvocation)}
}

// Add records the invocation unless its command is already known. It reports whether the invocation was kept.
func (index *CommandIndex) Add(invocation CommandInvocation) bool {
	if _, known := index.invocations[invocation.Command]; known {
		return false
	}
	index.invocations[invocation.Command] = invocation
	index.order = append(index.order, invocation.Command)
	return true
}

// Lookup returns the recorded invocation for command.
func (index *CommandIndex) Lookup(command string) (CommandInvocation, bool) {
	invocation, found := index.invocations[command]
	return invocation, found
}

// Commands lists command names in the order they were first seen.
func (index *CommandIndex) Commands() []string {
	return append([]string(nil), index.order...)
}

// Invocations lists recorded invocations in the order they were first seen.
func (index *CommandIndex) Invocations() []CommandInvocation {
	invocations := make([]CommandInvocation, 0, len(index.order))
	for _, command := range index.order {
		invocations = append(invocations, index.invocations[command])
	}
	return invocations
}

// Len reports the number of distinct commands.
func (index *CommandIndex) Len() int {
	return len(index.order)
}
