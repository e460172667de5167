package semver

import (
	"reflect"
	"testing"
)

func makeVersions() []string {
	return []string{"1.0.0", "1.2.0", "1.2.3", "2.0.0", "2.1.0", "3.0.0-alpha.1", "not-a-version"}
}

func TestResolveVersion(t *testing.T) {
	tests := []struct {
		name    string
		rng     string
		want    string
		wantOK  bool
		version []string
	}{
		{name: "no range picks highest stable", rng: "", want: "2.1.0", wantOK: true},
		{name: "major only", rng: "1", want: "1.2.3", wantOK: true},
		{name: "major only prerelease fallback", rng: "3", want: "3.0.0-alpha.1", wantOK: true},
		{name: "caret", rng: "^1.0.0", want: "1.2.3", wantOK: true},
		{name: "tilde", rng: "~1.2.0", want: "1.2.3", wantOK: true},
		{name: "comparison", rng: ">=1.0.0 <2.0.0", want: "1.2.3", wantOK: true},
		{name: "exact", rng: "1.2.0", want: "1.2.0", wantOK: true},
		{name: "unsatisfiable", rng: "^4.0.0", wantOK: false},
		{name: "missing major", rng: "7", wantOK: false},
		{name: "no versions", rng: "", wantOK: false, version: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			versions := tt.version
			if versions == nil {
				versions = makeVersions()
			}
			got, ok := ResolveVersion(versions, tt.rng)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("semver:resolver_test - ResolveVersion(%q) = (%q, %v), want (%q, %v)", tt.rng, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSatisfiesRange(t *testing.T) {
	tests := []struct {
		version string
		rng     string
		want    bool
	}{
		{"1.2.3", "", true},
		{"1.2.3", "1", true},
		{"1.2.3", "2", false},
		{"1.2.3", "^1.0.0", true},
		{"2.0.0", "^1.0.0", false},
		{"garbage", "^1.0.0", false},
		{"1.2.3", "not a range", false},
	}
	for _, tt := range tests {
		if got := SatisfiesRange(tt.version, tt.rng); got != tt.want {
			t.Errorf("semver:resolver_test - SatisfiesRange(%q, %q) = %v, want %v", tt.version, tt.rng, got, tt.want)
		}
	}
}

func TestSortVersionsDesc(t *testing.T) {
	versions := []string{"1.0.0", "bad", "2.0.0", "1.10.0", "1.2.0"}
	SortVersionsDesc(versions)
	want := []string{"2.0.0", "1.10.0", "1.2.0", "1.0.0", "bad"}
	if !reflect.DeepEqual(versions, want) {
		t.Errorf("semver:resolver_test - got %v, want %v", versions, want)
	}
}
