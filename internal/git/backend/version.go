package backend

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Minimum git for the CLI backend: "status --porcelain=v2" and
// "log --format=%aI" both need it.
var minGitVersion = semver.MustParse("2.23.0")

func MinGitVersion() string {
	return minGitVersion.String()
}

// parseGitVersionOutput accepts the vendor flavours of "git --version":
// "git version 2.39.3 (Apple Git-146)", "git version 2.39.3.windows.1".
func parseGitVersionOutput(out string) (*semver.Version, bool) {
	s := strings.TrimSpace(out)
	if idx := strings.Index(s, "git version"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("git version"):])
	}
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return nil, false
	}
	s = s[start:]
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	parts := strings.Split(strings.Trim(s[:end], "."), ".")
	if len(parts) < 2 {
		return nil, false
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, false
	}
	return v, true
}

func validateGitVersionOutput(out string) error {
	got, ok := parseGitVersionOutput(out)
	if !ok {
		return fmt.Errorf("unable to parse git version output: %q", strings.TrimSpace(out))
	}
	if got.LessThan(minGitVersion) {
		return fmt.Errorf("git %s is too old; revgraph requires git >= %s", got, minGitVersion)
	}
	return nil
}

type gitVersionInfo struct {
	out string
	err error
}

var (
	gitVersionOnce      sync.Once
	gitVersionInfoCache gitVersionInfo
)

func gitVersionInfoCached() gitVersionInfo {
	gitVersionOnce.Do(func() {
		outBytes, err := exec.Command("git", "--version").CombinedOutput()
		out := strings.TrimSpace(string(outBytes))
		gitVersionInfoCache.out = out
		switch {
		case err != nil && out != "":
			gitVersionInfoCache.err = fmt.Errorf("git --version: %v: %s", err, out)
		case err != nil:
			gitVersionInfoCache.err = fmt.Errorf("git --version: %w", err)
		}
	})
	return gitVersionInfoCache
}

// GitVersion returns the raw "git --version" output.
func GitVersion() (string, error) {
	info := gitVersionInfoCached()
	return info.out, info.err
}

func ensureMinGitVersion() error {
	info := gitVersionInfoCached()
	if info.err != nil {
		return info.err
	}
	return validateGitVersionOutput(info.out)
}
