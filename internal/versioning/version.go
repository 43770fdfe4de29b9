package versioning

import (
	"fmt"
	"regexp"
	"strconv"
)

// APIVersion is a semantic version for the HTTP API.
type APIVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// CurrentVersion is the API version this build serves.
var CurrentVersion = APIVersion{Major: 1, Minor: 0, Patch: 0}

func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 ordering this version against other.
func (v APIVersion) Compare(other APIVersion) int {
	pairs := [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

var versionPattern = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?$`)

// Parse parses "1", "1.0", "v1.0.0" style version strings.
func Parse(s string) (APIVersion, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return APIVersion{}, fmt.Errorf("invalid version string: %q", s)
	}

	var v APIVersion
	v.Major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		v.Minor, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		v.Patch, _ = strconv.Atoi(m[3])
	}
	return v, nil
}

// IsCompatible reports whether a client requesting the given version can be
// served. Only same-major, not-newer requests are compatible.
func IsCompatible(requested APIVersion) bool {
	if requested.Major != CurrentVersion.Major {
		return false
	}
	return requested.Compare(CurrentVersion) <= 0
}
