// Package misc keeps build time information about the program.
package misc

import (
	"runtime/debug"
	"sync"
)

// Values below could be overwritten at link time with
// -ldflags "-X poet/misc.version=... -X poet/misc.gitHash=...".
var (
	appName = "poet"
	version = "0.0.0-dev"
	gitHash = ""
)

var readBuildInfo = sync.OnceValue(func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) > 0 {
			return s.Value
		}
	}
	return "unknown"
})

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit program was built from, falling back to module
// build information when hash was not set at link time.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	return readBuildInfo()
}
