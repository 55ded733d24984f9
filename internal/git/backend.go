package git

import (
	"fmt"
	"strings"

	gitbackend "github.com/thiagokokada/revgraph/internal/git/backend"
)

// BackendKind selects how repository data is read.
type BackendKind string

const (
	// BackendNative reads the repository with go-git.
	BackendNative BackendKind = "native"
	// BackendCLI shells out to the git executable.
	BackendCLI BackendKind = "gitcli"
)

func ParseBackendKind(s string) (BackendKind, error) {
	switch BackendKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendNative:
		return BackendNative, nil
	case BackendCLI, "cli", "git":
		return BackendCLI, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want native or gitcli)", s)
	}
}

func openBackend(repoPath string, kind BackendKind) (gitbackend.Backend, error) {
	switch kind {
	case BackendCLI:
		return gitbackend.OpenCLI(repoPath)
	case BackendNative, "":
		return openNative(repoPath)
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}
