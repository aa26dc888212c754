// Package buildstage names the phases of a multi-stage container build.
package buildstage

import (
	"fmt"
	"strings"
)

const unknownStageErrorTemplateConstant = "unknown build stage %q (expected base, build or development)"

// Stage is one phase of the container build.
type Stage string

// Recognized stages.
const (
	Base        Stage = "base"
	Build       Stage = "build"
	Development Stage = "development"
)

// All lists the stages in build order.
var All = []Stage{Base, Build, Development}

// Parse converts a case-insensitive stage name.
func Parse(value string) (Stage, error) {
	candidate := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range All {
		if candidate == stage {
			return stage, nil
		}
	}
	return "", fmt.Errorf(unknownStageErrorTemplateConstant, value)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (stage *Stage) UnmarshalText(text []byte) error {
	parsed, parseError := Parse(string(text))
	if parseError != nil {
		return parseError
	}
	*stage = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (stage Stage) MarshalText() ([]byte, error) {
	return []byte(stage), nil
}

func (stage Stage) String() string {
	return string(stage)
}

// Requirement states that a package is needed in a stage, and why.
type Requirement struct {
	Package string `json:"package" yaml:"package"`
	Reason  string `json:"reason" yaml:"reason"`
	Stage   Stage  `json:"stage" yaml:"stage"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
}
