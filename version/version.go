package version

import "runtime/debug"

// You can set the version at build time using something like:
// go build -ldflags "-X github.com/vsariola/tahti/version.Version=$(git describe --dirty)"

var Version string

// Hash is the short VCS revision the binary was built from, with a -dirty
// suffix if the work tree had local modifications.
var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return hashOf(info.Settings)
}()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	return Hash
}()

func hashOf(settings []debug.BuildSetting) string {
	modified := false
	revision := ""
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.modified":
			modified = setting.Value == "true"
		case "vcs.revision":
			revision = setting.Value
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" && modified {
		return revision + "-dirty"
	}
	return revision
}
