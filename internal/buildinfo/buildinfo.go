package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const Name = "revgraph"

var readBuildInfo = debug.ReadBuildInfo

// Version returns the module version or "dev" for local builds.
func Version() string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return "dev"
	}
	switch info.Main.Version {
	case "", "(devel)":
		return "dev"
	default:
		return info.Main.Version
	}
}

// Tags returns the -tags value recorded at compile time.
func Tags() string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "-tags" {
			return setting.Value
		}
	}
	return ""
}

// VersionWithTags is what -version prints.
func VersionWithTags() string {
	if tags := Tags(); tags != "" {
		return fmt.Sprintf("%s %s (tags: %s)", Name, Version(), tags)
	}
	return fmt.Sprintf("%s %s", Name, Version())
}

// UserAgent identifies RPC clients to the server.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s/%s)", Name, Version(), runtime.GOOS, runtime.GOARCH)
}
