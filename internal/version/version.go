// Package version reports the build version of mtglibrary. Values are set at
// build time with ldflags:
//
//	go build -ldflags "-X github.com/forgemaster-mtg/mtglibrary/internal/version.Version=v1.2.3 -X github.com/forgemaster-mtg/mtglibrary/internal/version.Commit=abc123"
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version defaults to "dev" for local builds.
	Version = "dev"

	// Commit is the source revision, when known.
	Commit = ""
)

// GetVersion returns the current application version.
func GetVersion() string {
	return Version
}

// String returns a one-line description of the build.
func String() string {
	s := "mtglibrary " + Version
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	return fmt.Sprintf("%s %s/%s %s", s, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// UserAgent returns the product token sent to remote APIs.
func UserAgent() string {
	return "MTGLibrary/" + Version
}
