package extensions

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Warning is a non-fatal finding surfaced to the operator.
type Warning struct {
	File    string
	Message string
}

func (w Warning) String() string {
	if w.File == "" {
		return w.Message
	}
	return w.File + ": " + w.Message
}

// riskPatterns are heuristics for high-risk calls in extension source.
// Matches produce warnings, never hard failures; this is not a sandbox.
var riskPatterns = []struct {
	re   *regexp.Regexp
	desc string
}{
	{regexp.MustCompile(`\bos/exec\b|\bexec\.Command(Context)?\s*\(`), "arbitrary shell execution"},
	{regexp.MustCompile(`\bsyscall\.(Exec|ForkExec)\s*\(`), "process replacement"},
	{regexp.MustCompile(`\bplugin\.Open\s*\(`), "dynamic code loading"},
	{regexp.MustCompile(`\bunsafe\.Pointer\b`), "unsafe memory access"},
	{regexp.MustCompile(`\breflect\.Value\b.*\.Call\s*\(`), "dynamic code evaluation via reflection"},
}

// Validator checks manifests against the host's dependency allow-list and
// version, and scans extension source for risky call patterns.
type Validator struct {
	allowlist   map[string]struct{}
	hostVersion string
}

// NewValidator builds a validator for the given host version using the
// default allow-list.
func NewValidator(hostVersion string) *Validator {
	return NewValidatorWithAllowlist(hostVersion, defaultAllowlist)
}

// NewValidatorWithAllowlist builds a validator with a custom allow-list.
func NewValidatorWithAllowlist(hostVersion string, allowed []string) *Validator {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}
	return &Validator{allowlist: set, hostVersion: canonicalVersion(hostVersion)}
}

// ValidateManifest enforces the fatal manifest rules: every declared
// dependency must be on the allow-list and the host must satisfy the
// manifest's minimum version. Returns a *ValidationError on any failure.
func (v *Validator) ValidateManifest(m *Manifest) error {
	var issues []string

	disallowed := make([]string, 0)
	for _, dep := range m.Dependencies {
		if _, ok := v.allowlist[dep.Name]; !ok {
			disallowed = append(disallowed, dep.Name)
		}
	}
	sort.Strings(disallowed)
	for _, name := range disallowed {
		issues = append(issues, fmt.Sprintf("dependency %q is not on the allow-list", name))
	}

	if m.MinHostVersion != "" {
		min := canonicalVersion(m.MinHostVersion)
		if !semver.IsValid(min) {
			issues = append(issues, fmt.Sprintf("min_host_version %q is not a valid semantic version", m.MinHostVersion))
		} else if semver.Compare(v.hostVersion, min) < 0 {
			issues = append(issues, fmt.Sprintf("requires host %s or newer, host is %s", m.MinHostVersion, strings.TrimPrefix(v.hostVersion, "v")))
		}
	}

	if len(issues) > 0 {
		return &ValidationError{ExtensionID: m.ID, Issues: issues}
	}
	return nil
}

// ScanSource walks the extension's src directory looking for the risk
// patterns. Findings are warnings for the operator, not errors.
func (v *Validator) ScanSource(dir string) ([]Warning, error) {
	srcDir := filepath.Join(dir, "src")
	if _, err := os.Stat(srcDir); err != nil {
		return nil, nil
	}
	var warnings []Warning
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		for _, p := range riskPatterns {
			if p.re.Match(data) {
				warnings = append(warnings, Warning{File: rel, Message: p.desc})
			}
		}
		return nil
	})
	if err != nil {
		return warnings, fmt.Errorf("extensions: scan source: %w", err)
	}
	return warnings, nil
}

// CheckDependencyVersions verifies that every declared dependency is
// present in the host's pre-bundled set and satisfies its constraint.
// bundled maps package name to the bundled version.
func (v *Validator) CheckDependencyVersions(m *Manifest, bundled map[string]string) error {
	var issues []string
	for _, dep := range m.Dependencies {
		have, ok := bundled[dep.Name]
		if !ok {
			issues = append(issues, fmt.Sprintf("dependency %q is not bundled with this host", dep.Name))
			continue
		}
		if dep.Version == "" {
			continue
		}
		if !constraintSatisfied(have, dep.Version) {
			issues = append(issues, fmt.Sprintf("dependency %q bundled at %s does not satisfy %q", dep.Name, have, dep.Version))
		}
	}
	if len(issues) > 0 {
		return &ValidationError{ExtensionID: m.ID, Issues: issues}
	}
	return nil
}

// constraintSatisfied supports exact ("1.2.0") and minimum (">=1.2.0")
// constraints over semantic versions.
func constraintSatisfied(have, constraint string) bool {
	constraint = strings.TrimSpace(constraint)
	min := false
	if strings.HasPrefix(constraint, ">=") {
		min = true
		constraint = strings.TrimSpace(strings.TrimPrefix(constraint, ">="))
	}
	want := canonicalVersion(constraint)
	got := canonicalVersion(have)
	if !semver.IsValid(want) || !semver.IsValid(got) {
		return false
	}
	cmp := semver.Compare(got, want)
	if min {
		return cmp >= 0
	}
	return cmp == 0
}

// canonicalVersion normalizes to the "vMAJOR.MINOR.PATCH" form x/mod/semver expects.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
