package platform

import (
	"regexp"
	"strings"

	"github.com/oshokin/node-bin-gen/internal/archive"
)

// windowsInstaller matches installer and 7-Zip bundles, which hold no raw binary tree.
var windowsInstaller = regexp.MustCompile(`^win-.*-(exe|msi|7z)$`)

// Plan is the outcome of turning a file list into build targets.
type Plan struct {
	// Targets are the buildable targets, at most one per "<os>-<cpu>".
	Targets []Target
	// Excluded are tokens dropped by the exclusion rules.
	Excluded []string
	// Malformed are tokens Parse rejected.
	Malformed []string
}

// Excluded reports whether token names something other than a runtime archive:
// headers and sources, macOS .pkg installers, and Windows installers.
func Excluded(token string) bool {
	return strings.HasPrefix(token, "headers") ||
		strings.HasPrefix(token, "src") ||
		strings.HasSuffix(token, "pkg") ||
		windowsInstaller.MatchString(token)
}

// NewPlan builds the target list for files, or for only when it is set.
// A malformed only token is an error; malformed index tokens are just recorded.
func NewPlan(files []string, only string, tarball archive.Format, guessed bool) (*Plan, error) {
	if only != "" {
		target, err := Parse(only)
		if err != nil {
			return nil, err
		}

		target.Format = FormatFor(target.OS, tarball)

		return &Plan{Targets: []Target{target}}, nil
	}

	plan := new(Plan)
	seen := make(map[string]struct{}, len(files))

	for _, token := range files {
		if Excluded(token) {
			plan.Excluded = append(plan.Excluded, token)
			continue
		}

		target, err := Parse(token)
		if err != nil {
			plan.Malformed = append(plan.Malformed, token)
			continue
		}

		if _, dup := seen[target.Key()]; dup {
			continue
		}

		seen[target.Key()] = struct{}{}

		target.Format = FormatFor(target.OS, tarball)
		target.Guessed = guessed
		plan.Targets = append(plan.Targets, target)
	}

	return plan, nil
}
