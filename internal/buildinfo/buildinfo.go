package buildinfo

import (
	"runtime/debug"
)

const length = 7

// Revision returns the short vcs revision the binary was built from, or "dev" when it is unknown.
func Revision() string {
	rev := get("vcs.revision")
	if rev == "" {
		return "dev"
	}
	if len(rev) > length {
		rev = rev[:length]
	}
	if get("vcs.modified") == "true" {
		rev += "-dirty"
	}
	return rev
}

func get(key string) string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == key {
				return setting.Value
			}
		}
	}
	return ""
}
