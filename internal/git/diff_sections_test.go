package git

import "testing"

func TestParseDiffStats(t *testing.T) {
	t.Parallel()

	diff := "diff --git \"a/with space.txt\" \"b/with space.txt\"\n" +
		"--- \"a/with space.txt\"\n" +
		"+++ \"b/with space.txt\"\n" +
		"@@ -1 +1 @@\n" +
		"--- looks like a header\n" +
		"+++ but is content\n" +
		"diff --git a/img.png b/img.png\n" +
		"Binary files a/img.png and b/img.png differ\n"

	got := parseDiffStats(diff)
	if len(got) != 2 {
		t.Fatalf("sections = %+v", got)
	}
	if got[0].Path != "with space.txt" || got[0].Line != 1 || got[0].Added != 1 || got[0].Removed != 1 {
		t.Fatalf("unexpected first section: %+v", got[0])
	}
	if got[1].Path != "img.png" || got[1].Line != 7 || !got[1].Binary || got[1].Added != 0 {
		t.Fatalf("unexpected binary section: %+v", got[1])
	}
}

func TestParseGitDiffPath(t *testing.T) {
	t.Parallel()

	tests := []struct{ line, want string }{
		{"diff --git a/foo.go b/foo.go", "foo.go"},
		{"diff --git a/old.go b/new.go", "new.go"},
		{`diff --git "a/q\"uote" "b/q\"uote"`, `q"uote`},
		{"diff --git a/only", ""},
		{"not a header", ""},
	}
	for _, tt := range tests {
		if got := parseGitDiffPath(tt.line); got != tt.want {
			t.Fatalf("parseGitDiffPath(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
