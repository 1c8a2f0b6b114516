package session

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// VersionError is returned when a client speaks a newer API than the server.
type VersionError struct {
	ClientVersion string
	ServerVersion string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("client API version %s is not supported (server supports %s)", e.ClientVersion, e.ServerVersion)
}

// CheckVersion accepts any client version on or below the server's major
// line. An empty client version is accepted.
func CheckVersion(serverVersion, clientVersion string) error {
	if clientVersion == "" || serverVersion == "" {
		return nil
	}

	cv := normalizeVersion(clientVersion)
	sv := normalizeVersion(serverVersion)
	if !semver.IsValid(cv) {
		return &VersionError{ClientVersion: clientVersion, ServerVersion: serverVersion}
	}
	if !semver.IsValid(sv) {
		return nil
	}

	if semver.Compare(semver.Major(cv), semver.Major(sv)) > 0 {
		return &VersionError{ClientVersion: clientVersion, ServerVersion: serverVersion}
	}
	return nil
}

// normalizeVersion adds the "v" prefix semver parsing needs.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
