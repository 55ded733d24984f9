package backend

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseStatusPorcelainV2(t *testing.T) {
	t.Parallel()

	const entry = " N... 100644 100644 100644 abcdef0 abcdef0 "
	tests := []struct {
		name string
		in   []string
		want LocalChanges
	}{
		{name: "clean", in: nil},
		{name: "unstaged edit", in: []string{"1 .M" + entry + "a.go"}, want: LocalChanges{HasWorktree: true}},
		{name: "staged edit", in: []string{"1 M." + entry + "a.go"}, want: LocalChanges{HasStaged: true}},
		{name: "staged add then edit", in: []string{"1 AM" + entry + "a.go"}, want: LocalChanges{HasWorktree: true, HasStaged: true}},
		{name: "conflict blocks review", in: []string{"u UU" + entry + "a.go"}, want: LocalChanges{HasWorktree: true, HasStaged: true}},
		{name: "untracked does not block", in: []string{"? scratch.txt"}},
		{name: "ignored does not block", in: []string{"! build/"}},
		{name: "truncated records skipped", in: []string{"1", "1 .", "?"}},
		{
			name: "mixed files",
			in: []string{
				"1 .." + entry + "a.go",
				"1 .M" + entry + "b.go",
				"? c.go",
				"1 D." + entry + "d.go",
			},
			want: LocalChanges{HasWorktree: true, HasStaged: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := strings.Join(tt.in, "\n")
			if in != "" {
				in += "\n"
			}
			got, err := parseStatusPorcelainV2(strings.NewReader(in))
			if err != nil {
				t.Fatalf("parseStatusPorcelainV2: %v", err)
			}
			if got != tt.want {
				t.Fatalf("parseStatusPorcelainV2 = %+v, want %+v", got, tt.want)
			}
			if got.Clean() != (tt.want == LocalChanges{}) {
				t.Fatalf("Clean() = %v for %+v", got.Clean(), got)
			}
		})
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestParseStatusPorcelainV2ReadError(t *testing.T) {
	t.Parallel()

	if _, err := parseStatusPorcelainV2(errReader{}); err == nil {
		t.Fatal("expected read error")
	}
}

func TestParseRefsFromShowRef(t *testing.T) {
	t.Parallel()

	tip := strings.Repeat("1", 40)
	other := strings.Repeat("2", 40)
	tagObject := strings.Repeat("a", 40)
	out := fmt.Sprintf(`%[1]s refs/heads/main
%[2]s refs/heads/feature/login
%[1]s refs/remotes/origin/main
%[1]s refs/remotes/origin/HEAD
%[2]s refs/tags/light
%[3]s refs/tags/annotated
%[1]s refs/tags/annotated^{}
%[1]s refs/notes/commits
`, tip, other, tagObject)

	refs, err := parseRefsFromShowRef(out)
	if err != nil {
		t.Fatalf("parseRefsFromShowRef: %v", err)
	}
	want := map[Ref]bool{
		{Hash: tip, Kind: RefKindBranch, Name: "main"}:              true,
		{Hash: other, Kind: RefKindBranch, Name: "feature/login"}:   true,
		{Hash: tip, Kind: RefKindRemoteBranch, Name: "origin/main"}: true,
		{Hash: tip, Kind: RefKindRemoteBranch, Name: "origin/HEAD"}: true,
		{Hash: other, Kind: RefKindTag, Name: "light"}:              true,
		{Hash: tip, Kind: RefKindTag, Name: "annotated"}:            true,
	}
	if len(refs) != len(want) {
		t.Fatalf("refs = %+v, want %d entries", refs, len(want))
	}
	for _, r := range refs {
		if !want[r] {
			t.Fatalf("unexpected ref %+v in %+v", r, refs)
		}
	}

	if _, err := parseRefsFromShowRef("refs/heads/main\n"); err == nil {
		t.Fatal("expected error for a line without hash")
	}
}

// cliRepo is a throwaway repository driven through the git executable.
type cliRepo struct {
	t    *testing.T
	dir  string
	tick int
}

func newCLIRepo(t *testing.T) *cliRepo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	if err := ensureMinGitVersion(); err != nil {
		t.Skipf("git too old: %v", err)
	}
	r := &cliRepo{t: t, dir: t.TempDir()}
	r.git("init", "-q")
	r.git("symbolic-ref", "HEAD", "refs/heads/main")
	return r
}

func (r *cliRepo) git(args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", append([]string{"-C", r.dir}, args...)...)
	date := fmt.Sprintf("2024-01-01T00:%02d:00Z", r.tick)
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_GLOBAL="+os.DevNull,
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=Tester",
		"GIT_AUTHOR_EMAIL=tester@example.com",
		"GIT_COMMITTER_NAME=Tester",
		"GIT_COMMITTER_EMAIL=tester@example.com",
		"GIT_AUTHOR_DATE="+date,
		"GIT_COMMITTER_DATE="+date,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

func (r *cliRepo) commit(msg, name, content string) string {
	r.t.Helper()
	if err := os.WriteFile(filepath.Join(r.dir, name), []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", name, err)
	}
	r.tick++
	r.git("add", name)
	r.git("commit", "-q", "-m", msg)
	return r.git("rev-parse", "HEAD")
}

func TestGitCLIBackend(t *testing.T) {
	t.Parallel()

	r := newCLIRepo(t)
	base := r.commit("base", "a.txt", "one\n")
	r.git("branch", "feature")
	tip := r.commit("main work\n\nwith a body", "a.txt", "one\ntwo\n")

	b, err := OpenCLI(filepath.Join(r.dir, "."))
	if err != nil {
		t.Fatalf("OpenCLI: %v", err)
	}

	hash, name, ok, err := b.HeadState()
	if err != nil || !ok || hash != tip || name != "main" {
		t.Fatalf("HeadState = %q, %q, %v, %v", hash, name, ok, err)
	}

	refs, err := b.ListRefs()
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	got := map[string]string{}
	for _, ref := range refs {
		got[ref.Name] = ref.Hash
	}
	if got["main"] != tip || got["feature"] != base {
		t.Fatalf("refs = %v", got)
	}

	c, err := b.ReadCommit(tip[:8])
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Hash != tip || c.Subject() != "main work" || len(c.ParentHashes) != 1 || c.ParentHashes[0] != base {
		t.Fatalf("commit = %+v", c)
	}
	if _, err := b.ReadCommit(strings.Repeat("f", 40)); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("ReadCommit(missing) err = %v, want ErrObjectNotFound", err)
	}

	diff, err := b.ReviewDiffText(base, tip)
	if err != nil {
		t.Fatalf("ReviewDiffText: %v", err)
	}
	if !strings.Contains(diff, "diff --git a/a.txt b/a.txt") || !strings.Contains(diff, "\n+two\n") {
		t.Fatalf("diff = %q", diff)
	}

	changes, err := b.LocalChangesStatus()
	if err != nil || !changes.Clean() {
		t.Fatalf("LocalChangesStatus = %+v, %v", changes, err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, "a.txt"), []byte("dirty\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changes, err = b.LocalChangesStatus()
	if err != nil || !changes.HasWorktree || changes.HasStaged {
		t.Fatalf("LocalChangesStatus after edit = %+v, %v", changes, err)
	}
}

func TestGitCLILogStreamOrder(t *testing.T) {
	t.Parallel()

	r := newCLIRepo(t)
	c1 := r.commit("c1", "a.txt", "1\n")
	c2 := r.commit("c2", "a.txt", "2\n")
	r.git("checkout", "-q", "-b", "side", c1)
	s1 := r.commit("s1", "b.txt", "s\n")
	r.git("checkout", "-q", "main")
	c3 := r.commit("c3", "a.txt", "3\n")

	b, err := OpenCLI(r.dir)
	if err != nil {
		t.Fatalf("OpenCLI: %v", err)
	}
	stream, err := b.StartLogStream([]string{c3, s1})
	if err != nil {
		t.Fatalf("StartLogStream: %v", err)
	}
	defer stream.Close()

	var order []string
	for {
		c, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		order = append(order, c.Hash)
	}
	want := []string{c3, s1, c2, c1}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", order, want)
	}
}
