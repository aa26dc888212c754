package audit

import (
	"errors"
	"fmt"

	"github.com/temirov/dockwise/internal/report"
)

const (
	inputMissingTemplateConstant          = "%s not found at %s"
	inputMissingWithCauseTemplateConstant = "%s not found at %s: %v"
)

// Artifact names an input the audit reads.
type Artifact string

// Audit inputs.
const (
	ArtifactProjectDirectory Artifact = "project directory"
	ArtifactDockerfile       Artifact = "Dockerfile"
	ArtifactManifest         Artifact = "go.mod"
	ArtifactLockFile         Artifact = "go.sum"
)

// InputMissingError reports an audit input that does not exist.
type InputMissingError struct {
	Artifact Artifact
	Path     string
	Cause    error
}

func (missingError InputMissingError) Error() string {
	if missingError.Cause == nil {
		return fmt.Sprintf(inputMissingTemplateConstant, missingError.Artifact, missingError.Path)
	}
	return fmt.Sprintf(inputMissingWithCauseTemplateConstant, missingError.Artifact, missingError.Path, missingError.Cause)
}

// Unwrap exposes the underlying cause.
func (missingError InputMissingError) Unwrap() error {
	return missingError.Cause
}

var (
	// ErrScannerNotConfigured indicates the service has no source scanner.
	ErrScannerNotConfigured = errors.New("source scanner not configured")
	// ErrResolverNotConfigured indicates the service has no command resolver.
	ErrResolverNotConfigured = errors.New("command resolver not configured")
	// ErrCalculatorNotConfigured indicates the service has no completeness calculator.
	ErrCalculatorNotConfigured = errors.New("completeness calculator not configured")
	// ErrSinkNotConfigured indicates the service has nowhere to write the report.
	ErrSinkNotConfigured = errors.New("report sink not configured")
)

// Options selects the project and artifacts to audit. Paths are absolute.
type Options struct {
	ProjectRoot    string
	DockerfilePath string
	GoModPath      string
	Format         report.Format
}
