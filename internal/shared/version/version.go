// Package version reports the build version, set at link time with
// -ldflags "-X github.com/orris-inc/autopay/internal/shared/version.Current=1.2.3".
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Current is the raw build version.
var Current = "dev"

// Normalize ensures version string has "v" prefix for semver compatibility.
// Examples: "1.2.3" -> "v1.2.3", "v1.2.3" -> "v1.2.3"
func Normalize(version string) string {
	if version == "" {
		return ""
	}
	version = strings.TrimSpace(version)
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}
	return version
}

// String returns the canonical semver form of Current, or Current unchanged
// for non-release builds such as "dev".
func String() string {
	v := Normalize(Current)
	if semver.IsValid(v) {
		return semver.Canonical(v)
	}
	return Current
}
