package semver

import (
	"sort"

	masterminds "github.com/Masterminds/semver/v3"
)

// ResolveVersion returns the best of versions for rangeStr:
//   - empty range: the highest stable version, or the highest prerelease
//     when there is no stable one;
//   - major-only range ("2"): the same rule restricted to that major;
//   - any other range: the highest version satisfying the constraint, or an
//     exact string match when the range does not parse.
//
// Unparseable versions are ignored.
func ResolveVersion(versions []string, rangeStr string) (string, bool) {
	parsed := parseAll(versions)
	if len(parsed) == 0 {
		return "", false
	}

	if rangeStr == "" {
		return latest(parsed)
	}

	if IsMajorOnly(rangeStr) {
		major := uint64(ExtractMajorFromRange(rangeStr))
		var inMajor []*masterminds.Version
		for _, v := range parsed {
			if v.Major() == major {
				inMajor = append(inMajor, v)
			}
		}
		return latest(inMajor)
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		for _, v := range versions {
			if v == rangeStr {
				return v, true
			}
		}
		return "", false
	}

	var matching []*masterminds.Version
	for _, v := range parsed {
		if constraint.Check(v) {
			matching = append(matching, v)
		}
	}
	if len(matching) == 0 {
		return "", false
	}
	sortDesc(matching)
	return matching[0].Original(), true
}

// SatisfiesRange checks if a version string satisfies a range.
func SatisfiesRange(version, rangeStr string) bool {
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return false
	}
	if rangeStr == "" {
		return true
	}
	if IsMajorOnly(rangeStr) {
		return int(sv.Major()) == ExtractMajorFromRange(rangeStr)
	}
	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false
	}
	return constraint.Check(sv)
}

// SortVersionsDesc sorts version strings highest first. Unparseable
// versions sort last, in their original order.
func SortVersionsDesc(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, err1 := masterminds.NewVersion(versions[i])
		vj, err2 := masterminds.NewVersion(versions[j])
		switch {
		case err1 != nil:
			return false
		case err2 != nil:
			return true
		}
		return vi.GreaterThan(vj)
	})
}

// --- internal helpers ---

func parseAll(versions []string) []*masterminds.Version {
	out := make([]*masterminds.Version, 0, len(versions))
	for _, s := range versions {
		v, err := masterminds.NewVersion(s)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func latest(versions []*masterminds.Version) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}
	var stable []*masterminds.Version
	for _, v := range versions {
		if v.Prerelease() == "" {
			stable = append(stable, v)
		}
	}
	candidates := versions
	if len(stable) > 0 {
		candidates = stable
	}
	sortDesc(candidates)
	return candidates[0].Original(), true
}

func sortDesc(versions []*masterminds.Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].GreaterThan(versions[j])
	})
}
