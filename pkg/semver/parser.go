// Package semver parses provider references and resolves them against the
// versions a catalog offers.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// ProviderRef is a parsed provider reference such as "stateful@^1.2.0".
type ProviderRef struct {
	// Name is the capability name (e.g., "stateful").
	Name string
	// Range is the version range; empty means any version.
	Range string
	// Raw is the trimmed input.
	Raw string
}

func (r ProviderRef) String() string {
	return BuildProviderRef(r.Name, r.Range)
}

var (
	providerNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*$`)
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseProviderRef parses a provider reference.
//
// Supported formats:
//   - stateful             (any version)
//   - stateful@1           (major only)
//   - stateful@1.2.0       (exact version)
//   - stateful@^1.2.0      (caret range)
//   - stateful@>=1.0.0 <2  (comparison range)
func ParseProviderRef(input string) (ProviderRef, error) {
	raw := strings.TrimSpace(input)
	name, rangeStr, _ := strings.Cut(raw, "@")
	name = strings.TrimSpace(name)
	rangeStr = strings.TrimSpace(rangeStr)

	if !ValidateProviderName(name) {
		return ProviderRef{}, fmt.Errorf("%s - invalid provider name in %q", logPrefix, raw)
	}
	if strings.Contains(raw, "@") && rangeStr == "" {
		return ProviderRef{}, fmt.Errorf("%s - empty version range in %q", logPrefix, raw)
	}
	return ProviderRef{Name: name, Range: rangeStr, Raw: raw}, nil
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "3.2.1").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// ExtractMajorFromRange returns the major of a major-only range, or -1.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	var major int
	fmt.Sscanf(rangeStr, "%d", &major)
	return major
}

// BuildProviderRef renders name and an optional range as a reference.
func BuildProviderRef(name, rangeStr string) string {
	if rangeStr != "" {
		return name + "@" + rangeStr
	}
	return name
}

// ValidateProviderName validates a provider name (letters, digits, dots,
// hyphens and underscores, starting with a letter).
func ValidateProviderName(name string) bool {
	return providerNameRegex.MatchString(name)
}
