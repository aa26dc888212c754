package manifest

import (
	"fmt"

	"github.com/temirov/dockwise/internal/buildstage"
)

const (
	toolchainReasonConstant      = "Required for Go module downloads"
	moduleReasonTemplateConstant = "Required for module %s"
	nativeReasonTemplateConstant = "Required to compile native code for module %s"
	cgoReasonConstant            = "Required to compile cgo sources"
)

// PackageRule names an OS package and the stage that needs it.
type PackageRule struct {
	Package string           `mapstructure:"package"`
	Stage   buildstage.Stage `mapstructure:"stage"`
}

// ModuleRule maps a Go module to the OS packages it needs.
type ModuleRule struct {
	Module   string        `mapstructure:"module"`
	Native   bool          `mapstructure:"native"`
	Packages []PackageRule `mapstructure:"packages"`
}

// RuleSet turns manifest facts into package requirements.
type RuleSet struct {
	// Toolchain applies whenever a go.mod is present.
	Toolchain []PackageRule `mapstructure:"toolchain"`
	// Native applies once per native module and once for cgo sources.
	Native  []PackageRule `mapstructure:"native"`
	Modules []ModuleRule  `mapstructure:"modules"`
}

// DefaultRuleSet returns the built-in rules.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Toolchain: []PackageRule{
			{Package: "git", Stage: buildstage.Base},
			{Package: "ca-certificates", Stage: buildstage.Base},
		},
		Native: []PackageRule{
			{Package: "build-essential", Stage: buildstage.Build},
			{Package: "pkg-config", Stage: buildstage.Build},
		},
		Modules: []ModuleRule{
			{Module: "github.com/mattn/go-sqlite3", Native: true, Packages: []PackageRule{
				{Package: "libsqlite3-0", Stage: buildstage.Base},
				{Package: "libsqlite3-dev", Stage: buildstage.Build},
			}},
			{Module: "gopkg.in/gographics/imagick.v3", Native: true, Packages: []PackageRule{
				{Package: "libmagickwand-6.q16-6", Stage: buildstage.Base},
				{Package: "libmagickwand-dev", Stage: buildstage.Build},
			}},
			{Module: "github.com/libgit2/git2go", Native: true, Packages: []PackageRule{
				{Package: "libgit2-1.5", Stage: buildstage.Base},
				{Package: "libgit2-dev", Stage: buildstage.Build},
			}},
			{Module: "github.com/h2non/bimg", Native: true, Packages: []PackageRule{
				{Package: "libvips42", Stage: buildstage.Base},
				{Package: "libvips-dev", Stage: buildstage.Build},
			}},
			{Module: "github.com/google/gopacket", Native: true, Packages: []PackageRule{
				{Package: "libpcap0.8", Stage: buildstage.Base},
				{Package: "libpcap-dev", Stage: buildstage.Build},
			}},
		},
	}
}

// IsNative reports whether a module rule marks modulePath as carrying native code.
func (rules RuleSet) IsNative(modulePath string) bool {
	for _, moduleRule := range rules.Modules {
		if moduleRule.Native && matchesModule(modulePath, moduleRule.Module) {
			return true
		}
	}
	return false
}

// Requirements derives package requirements from the manifest and the cgo source files, in rule order.
// A rule stage of base follows the dependency's group; build and development rule stages are kept.
func (rules RuleSet) Requirements(manifest Manifest, cgoFiles []string) []buildstage.Requirement {
	requirements := make([]buildstage.Requirement, 0)

	for _, rule := range rules.Toolchain {
		requirements = append(requirements, buildstage.Requirement{
			Package: rule.Package,
			Reason:  toolchainReasonConstant,
			Stage:   rule.Stage,
			File:    manifest.Path,
			Line:    1,
		})
	}

	for _, dependency := range manifest.Dependencies {
		groupStage := buildstage.Base
		if dependency.Group == GroupDevelopment {
			groupStage = buildstage.Development
		}

		if dependency.Native {
			for _, rule := range rules.Native {
				requirements = append(requirements, buildstage.Requirement{
					Package: rule.Package,
					Reason:  fmt.Sprintf(nativeReasonTemplateConstant, dependency.Name),
					Stage:   groupAdjustedStage(rule.Stage, groupStage),
					File:    manifest.Path,
					Line:    dependency.Line,
				})
			}
		}

		for _, moduleRule := range rules.Modules {
			if !matchesModule(dependency.Name, moduleRule.Module) {
				continue
			}
			for _, rule := range moduleRule.Packages {
				requirements = append(requirements, buildstage.Requirement{
					Package: rule.Package,
					Reason:  fmt.Sprintf(moduleReasonTemplateConstant, dependency.Name),
					Stage:   groupAdjustedStage(rule.Stage, groupStage),
					File:    manifest.Path,
					Line:    dependency.Line,
				})
			}
		}
	}

	if len(cgoFiles) > 0 {
		for _, rule := range rules.Native {
			requirements = append(requirements, buildstage.Requirement{
				Package: rule.Package,
				Reason:  cgoReasonConstant,
				Stage:   rule.Stage,
				File:    cgoFiles[0],
				Line:    1,
			})
		}
	}

	return requirements
}

func groupAdjustedStage(ruleStage buildstage.Stage, groupStage buildstage.Stage) buildstage.Stage {
	if ruleStage == buildstage.Base {
		return groupStage
	}
	return ruleStage
}
