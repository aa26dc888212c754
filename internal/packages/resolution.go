package packages

import "fmt"

// ResolutionKind tags the outcome of resolving a command.
type ResolutionKind int

// Resolution outcomes.
const (
	ResolutionNotFound ResolutionKind = iota
	ResolutionFound
	ResolutionNotNeeded
)

// NotNeededReason explains why a command requires no OS package.
type NotNeededReason string

// Reasons a command needs no OS package.
const (
	ReasonProjectLocal   NotNeededReason = "project-local"
	ReasonRuntimeManaged NotNeededReason = "runtime-managed"
)

const (
	foundLabelTemplateConstant     = "found(%s)"
	notNeededLabelTemplateConstant = "not-needed(%s)"
	notFoundLabelConstant          = "not-found"
)

// Resolution is the tagged result of mapping a command to the OS package providing it.
type Resolution struct {
	Kind    ResolutionKind
	Package string
	Reason  NotNeededReason
}

// Found reports the package providing a command.
func Found(packageName string) Resolution {
	return Resolution{Kind: ResolutionFound, Package: packageName}
}

// NotNeeded reports a command that no OS package has to provide.
func NotNeeded(reason NotNeededReason) Resolution {
	return Resolution{Kind: ResolutionNotNeeded, Reason: reason}
}

// NotFound reports a command no package could be found for.
func NotFound() Resolution {
	return Resolution{Kind: ResolutionNotFound}
}

// PackageName returns the providing package when the resolution found one.
func (resolution Resolution) PackageName() (string, bool) {
	if resolution.Kind != ResolutionFound {
		return "", false
	}
	return resolution.Package, true
}

func (resolution Resolution) String() string {
	switch resolution.Kind {
	case ResolutionFound:
		return fmt.Sprintf(foundLabelTemplateConstant, resolution.Package)
	case ResolutionNotNeeded:
		return fmt.Sprintf(notNeededLabelTemplateConstant, resolution.Reason)
	default:
		return notFoundLabelConstant
	}
}
