package backend

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is returned when a hash or revision does not resolve
// to a commit.
var ErrObjectNotFound = errors.New("object not found")

type gitCLI struct {
	path string
}

// OpenCLI opens the repository containing repoPath using the git executable.
func OpenCLI(repoPath string) (Backend, error) {
	if err := ensureMinGitVersion(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	probe := &gitCLI{path: abs}
	root, err := probe.runGitCommand([]string{"rev-parse", "--show-toplevel"}, false, "git rev-parse")
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("open repository: git rev-parse returned empty root")
	}
	return &gitCLI{path: root}, nil
}

func (g *gitCLI) RepoPath() string {
	if g == nil {
		return ""
	}
	return g.path
}

func (g *gitCLI) command(args ...string) (*exec.Cmd, error) {
	if g == nil || g.path == "" {
		return nil, errors.New("repository root not set")
	}
	return exec.Command("git", append([]string{"-C", g.path}, args...)...), nil
}

// runGitCommand runs git and returns stdout. With allowExit1, a silent exit
// status of 1 counts as success ("git diff" and "rev-parse -q" use it).
func (g *gitCLI) runGitCommand(args []string, allowExit1 bool, what string) (string, error) {
	cmd, err := g.command(args...)
	if err != nil {
		return "", err
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if allowExit1 && errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && stderr.Len() == 0 {
			return stdout.String(), nil
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s: %v: %s", what, err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%s: %w", what, err)
	}
	return stdout.String(), nil
}
