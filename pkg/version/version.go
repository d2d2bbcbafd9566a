// Package version carries build metadata injected with -ldflags.
package version

import (
	"runtime/debug"
)

// Version is the release tag of the funcscan binary.
var Version = "dev"

// Commit is the Git hash the binary was built from.
var Commit = "<unknown>"

// Date is the build timestamp.
var Date = "<unknown>"

// InitBinaryVersion fills Version and Commit from the embedded module build
// info when they were not set at link time (e.g. `go install`).
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == "<unknown>" {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == "<unknown>" {
				Date = setting.Value
			}
		}
	}
}

// String renders the one-line version banner.
func String() string {
	return "funcscan " + Version + " (commit: " + Commit + ", built: " + Date + ")"
}
