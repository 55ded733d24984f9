package backend

import (
	"testing"

	"github.com/Masterminds/semver/v3"
)

func TestParseGitVersionOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "empty", in: "", ok: false},
		{name: "plain", in: "git version 2.44.0\n", want: "2.44.0", ok: true},
		{name: "apple_git", in: "git version 2.39.3 (Apple Git-146)\n", want: "2.39.3", ok: true},
		{name: "windows_suffix", in: "git version 2.39.3.windows.1\n", want: "2.39.3", ok: true},
		{name: "no_prefix", in: "2.42.1\n", want: "2.42.1", ok: true},
		{name: "no_patch", in: "git version 2.42\n", want: "2.42.0", ok: true},
		{name: "major_only", in: "git version 3\n", ok: false},
		{name: "invalid", in: "git version not-a-version\n", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := parseGitVersionOutput(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (got=%v)", ok, tt.ok, got)
			}
			if !ok {
				return
			}
			if !got.Equal(semver.MustParse(tt.want)) {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidateGitVersionOutput(t *testing.T) {
	old := minGitVersion
	t.Cleanup(func() { minGitVersion = old })
	minGitVersion = semver.MustParse("2.23.0")

	if err := validateGitVersionOutput("git version 2.23.0\n"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := validateGitVersionOutput("git version 2.22.9\n"); err == nil {
		t.Fatal("expected error for old git")
	}
	if err := validateGitVersionOutput("garbage"); err == nil {
		t.Fatal("expected parse error")
	}
}
