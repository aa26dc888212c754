package completeness

import (
	"fmt"

	"github.com/temirov/dockwise/internal/buildstage"
	"github.com/temirov/dockwise/internal/dockerfile"
	"github.com/temirov/dockwise/internal/packages"
	"github.com/temirov/dockwise/internal/sourcescan"
)

const systemCommandReasonTemplateConstant = "Required for system command: %s"

// DockerfileRequirements derives requirements from the Dockerfile itself: default development
// packages absent from the development stage, and command packages no stage installs.
func (calculator *Calculator) DockerfileRequirements(description dockerfile.Description, dockerfilePath string, invocations []sourcescan.CommandInvocation, resolutions map[string]packages.Resolution) []buildstage.Requirement {
	requirements := make([]buildstage.Requirement, 0)

	developmentPackages := description.Inventory(buildstage.Development).Available()
	for _, defaultPackage := range calculator.developmentPackages {
		if _, installed := developmentPackages[defaultPackage.Package]; installed {
			continue
		}
		requirements = append(requirements, buildstage.Requirement{
			Package: defaultPackage.Package,
			Reason:  fmt.Sprintf(defaultPackageReasonTemplateConstant, defaultPackage.Reason),
			Stage:   buildstage.Development,
			File:    dockerfilePath,
			Line:    description.LineOf(defaultPackage.Package),
		})
	}

	for _, invocation := range sortedInvocations(invocations) {
		packageName, found := resolutions[invocation.Command].PackageName()
		if !found || description.Installs(packageName) {
			continue
		}
		requirements = append(requirements, buildstage.Requirement{
			Package: packageName,
			Reason:  fmt.Sprintf(systemCommandReasonTemplateConstant, invocation.Command),
			Stage:   invocation.Stage,
			File:    invocation.File,
			Line:    invocation.Line,
		})
	}
	return requirements
}
