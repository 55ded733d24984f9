package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/thiagokokada/revgraph/internal/buildinfo"
	"github.com/thiagokokada/revgraph/internal/render"
	"github.com/thiagokokada/revgraph/internal/review"
)

// forkedRepo builds main: m1 - m2 - m3 with feature forked at m2 (f1, f2)
// and returns its path and commit hashes.
func forkedRepo(t *testing.T) (string, map[string]string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gitlib.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))
	if err := repo.Storer.SetReference(head); err != nil {
		t.Fatalf("set HEAD: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	commit := func(msg, name, content string) string {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
		when = when.Add(time.Minute)
		sig := &object.Signature{Name: "Tester", Email: "tester@example.com", When: when}
		h, err := wt.Commit(msg, &gitlib.CommitOptions{Author: sig, Committer: sig})
		if err != nil {
			t.Fatalf("commit %s: %v", msg, err)
		}
		return h.String()
	}
	checkout := func(branch string) {
		t.Helper()
		if err := wt.Checkout(&gitlib.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branch)}); err != nil {
			t.Fatalf("checkout %s: %v", branch, err)
		}
	}

	h := map[string]string{}
	h["m1"] = commit("m1", "a.txt", "one\n")
	h["m2"] = commit("m2", "a.txt", "one\ntwo\n")
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName("feature"), plumbing.NewHash(h["m2"]))
	if err := repo.Storer.SetReference(ref); err != nil {
		t.Fatalf("branch feature: %v", err)
	}
	checkout("feature")
	h["f1"] = commit("f1", "b.txt", "feature\n")
	h["f2"] = commit("f2", "a.txt", "one\n2\n")
	checkout("main")
	h["m3"] = commit("m3", "c.txt", "main\n")
	return dir, h
}

// isolate points config, preferences and logging at throwaway locations.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"REVGRAPH_ADDR", "REVGRAPH_PAGE_SIZE", "REVGRAPH_THEME"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	prefsPath := filepath.Join(dir, "prefs.yaml")
	cfgPath := filepath.Join(dir, "config.toml")
	contents := "prefs_path = " + `"` + filepath.ToSlash(prefsPath) + `"` + "\n[graph]\ntheme = \"light\"\n"
	if err := os.WriteFile(cfgPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })
	return cfgPath
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := run(ctx, args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "defaults", args: nil},
		{name: "repo path", args: []string{"-format", "svg", "/tmp/repo"}},
		{name: "bad format", args: []string{"-format", "png"}, wantErr: true},
		{name: "negative offset", args: []string{"-offset", "-3"}, wantErr: true},
		{name: "start without select", args: []string{"-start"}, wantErr: true},
		{name: "serve and remote", args: []string{"-serve", ":1", "-remote", "ws://x/rpc"}, wantErr: true},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseFlags(tt.args, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags(%v) err = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
		})
	}

	o, err := parseFlags([]string{"-limit", "5", "-remotes", "repo"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if o.repoPath != "repo" || !o.set["limit"] || !o.set["remotes"] || o.set["mode"] {
		t.Fatalf("options = %+v", o)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := runCmd(t, "-version")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(stdout) != buildinfo.VersionWithTags() {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestTextOutput(t *testing.T) {
	cfg := isolate(t)
	repo, h := forkedRepo(t)

	stdout, stderr, err := runCmd(t, "-config", cfg, repo)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines = %d:\n%s", len(lines), stdout)
	}
	if !strings.Contains(lines[0], h["m3"][:7]) || !strings.Contains(lines[0], "main") {
		t.Fatalf("first row = %q", lines[0])
	}

	stdout, _, err = runCmd(t, "-config", cfg, "-offset", "3", "-limit", "1", repo)
	if err != nil {
		t.Fatalf("run with offset: %v", err)
	}
	if got := strings.TrimSpace(stdout); !strings.Contains(got, h["m2"][:7]) || strings.Count(stdout, "\n") != 1 {
		t.Fatalf("offset window = %q", stdout)
	}
}

func TestJSONSelectionOnAmbiguousCommit(t *testing.T) {
	cfg := isolate(t)
	repo, h := forkedRepo(t)

	stdout, stderr, err := runCmd(t, "-config", cfg, "-format", "json", "-select", h["m2"], "-branch", "feature", repo)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	var out struct {
		Commits   []json.RawMessage `json:"commits"`
		CanStart  bool              `json:"can_start"`
		Lanes     []json.RawMessage `json:"lanes"`
		Selection struct {
			State      string `json:"state"`
			SHA        string `json:"sha"`
			Branch     string `json:"branch"`
			Resolution struct {
				Selected struct {
					Name string `json:"name"`
				} `json:"selected"`
			} `json:"resolution"`
		} `json:"selection"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if len(out.Commits) != 5 || len(out.Lanes) != 2 {
		t.Fatalf("commits = %d lanes = %d", len(out.Commits), len(out.Lanes))
	}
	if out.Selection.SHA != h["m2"] || out.Selection.Branch != "feature" || !out.CanStart {
		t.Fatalf("selection = %+v can_start = %v", out.Selection, out.CanStart)
	}
	if out.Selection.State != "selected-resolved" || out.Selection.Resolution.Selected.Name != "feature" {
		t.Fatalf("state = %q resolution selects %q", out.Selection.State, out.Selection.Resolution.Selected.Name)
	}
}

func TestModeIsRemembered(t *testing.T) {
	cfg := isolate(t)
	repo, _ := forkedRepo(t)

	if _, stderr, err := runCmd(t, "-config", cfg, "-format", "svg", "-mode", "dark", repo); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	stdout, stderr, err := runCmd(t, "-config", cfg, "-format", "svg", repo)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, render.DarkTheme.Background) {
		t.Fatalf("stored dark mode not applied:\n%s", stdout)
	}
}

func TestAmbiguousNeedsBranchWhenNotInteractive(t *testing.T) {
	cfg := isolate(t)
	repo, h := forkedRepo(t)

	_, _, err := runCmd(t, "-config", cfg, "-select", h["m2"], repo)
	if !errors.Is(err, review.ErrSelectionIncomplete) {
		t.Fatalf("err = %v, want ErrSelectionIncomplete", err)
	}
	if !strings.Contains(err.Error(), "feature") || !strings.Contains(err.Error(), "main") {
		t.Fatalf("error should list candidates: %v", err)
	}
}

func TestStartReview(t *testing.T) {
	cfg := isolate(t)
	repo, h := forkedRepo(t)

	stdout, stderr, err := runCmd(t, "-config", cfg, "-select", h["m2"], "-branch", "feature", "-start", repo)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	for _, want := range []string{
		"Branch: feature",
		"Range:  " + h["m2"] + ".." + h["f2"],
		"2 commit(s):",
		"a.txt +1 -1",
		"b.txt +1 -0",
		"diff --git a/a.txt b/a.txt",
	} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("review output missing %q:\n%s", want, stdout)
		}
	}
}

func TestDirtyWorktreeBlocksReview(t *testing.T) {
	cfg := isolate(t)
	repo, _ := forkedRepo(t)
	if err := os.WriteFile(filepath.Join(repo, "a.txt"), []byte("edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := runCmd(t, "-config", cfg, repo)
	if !errors.Is(err, review.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if !strings.Contains(stderr, "git stash push") {
		t.Fatalf("stderr should carry remediation hints:\n%s", stderr)
	}
}
