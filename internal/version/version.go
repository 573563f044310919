package version

import "fmt"

// Build metadata, set through -ldflags "-X adbudget/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the build metadata on three lines.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, BuildDate)
}
