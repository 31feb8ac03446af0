// Package version reports build information for blobnet binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set with -ldflags "-X blobnet/internal/version.Version=1.0.0 -X blobnet/internal/version.Commit=abc123
// -X blobnet/internal/version.BuildTime=2024-01-01T00:00:00Z".
var (
	Version   = "0.1.0-dev"
	Commit    = "unknown"
	BuildTime = ""
)

// BlobProtocol is the blob exchange protocol spoken by this build.
const BlobProtocol = "/blobnet/blob/1.0.0"

// Info describes a build.
type Info struct {
	Version      string    `json:"version"`
	Commit       string    `json:"commit"`
	BuildTime    time.Time `json:"build_time"`
	GoVersion    string    `json:"go_version"`
	OS           string    `json:"os"`
	Arch         string    `json:"arch"`
	BlobProtocol string    `json:"blob_protocol"`
}

// Get returns the build information. Without ldflags the commit comes
// from the embedded VCS settings when available.
func Get() Info {
	info := Info{
		Version:      Version,
		Commit:       Commit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		BlobProtocol: BlobProtocol,
	}
	if BuildTime != "" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			info.BuildTime = t
		}
	}
	if info.Commit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					info.Commit = s.Value
				}
			}
		}
	}
	return info
}

// String returns "version (short commit)".
func (i Info) String() string {
	if i.Commit != "unknown" && len(i.Commit) > 7 {
		return fmt.Sprintf("%s (%s)", i.Version, i.Commit[:7])
	}
	return i.Version
}

// Full returns a multi-line description.
func (i Info) Full() string {
	built := "unknown"
	if !i.BuildTime.IsZero() {
		built = i.BuildTime.Format(time.RFC3339)
	}
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild Time: %s\nGo Version: %s\nOS/Arch: %s/%s\nBlob Protocol: %s",
		i.Version, i.Commit, built, i.GoVersion, i.OS, i.Arch, i.BlobProtocol)
}
