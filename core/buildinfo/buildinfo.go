package buildinfo

// Set at build time via -ldflags, for example:
//
//	-X 'github.com/m3rciful/communitybot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/communitybot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/communitybot/core/buildinfo.Date=2025-11-02T10:00:00Z'
var (
	// Version reports the release tag of the build.
	Version = "dev"
	// Commit reports the source control revision.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders version metadata for startup logs and the health endpoint.
func String() string {
	if Date == "" {
		return Version + " (" + Commit + ")"
	}
	return Version + " (" + Commit + ", " + Date + ")"
}
