package ntrip

import "fmt"

// buildNumber and gitSHA are overridable at link time via -ldflags
// "-X github.com/bramburn/ntripclient.buildNumber=... -X ...gitSHA=...";
// they default to placeholders for unreleased builds.
var (
	buildNumber = "0"
	gitSHA      = "unknown"
)

// Version returns the semantic version of this library.
func Version() string {
	return clientVersion
}

// BuildNumber returns the CI build number baked in at link time, or "0"
// for a locally built binary.
func BuildNumber() string {
	return buildNumber
}

// GitSHA returns the short git commit SHA baked in at link time, or
// "unknown" for a locally built binary.
func GitSHA() string {
	return gitSHA
}

// VersionString returns the composite "<ver> [Build <b>] (<sha>)" form
// for diagnostic logging. The handshake User-Agent header carries only
// Version().
func VersionString() string {
	return fmt.Sprintf("%s [Build %s] (%s)", Version(), BuildNumber(), GitSHA())
}
