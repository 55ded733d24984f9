package git

import "strings"

// FileStat summarizes one file of a unified diff.
type FileStat struct {
	Path    string
	Line    int // 1-based line of the "diff --git" header
	Added   int
	Removed int
	Binary  bool
}

// parseDiffStats splits diffText into per-file sections and counts added
// and removed lines inside hunks.
func parseDiffStats(diffText string) []FileStat {
	var (
		stats  []FileStat
		cur    *FileStat
		inHunk bool
	)
	for i, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			stats = append(stats, FileStat{Path: parseGitDiffPath(line), Line: i + 1})
			cur = &stats[len(stats)-1]
			inHunk = false
			continue
		}
		if cur == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case !inHunk:
			if strings.HasPrefix(line, "Binary files ") {
				cur.Binary = true
			}
		case strings.HasPrefix(line, "+"):
			cur.Added++
		case strings.HasPrefix(line, "-"):
			cur.Removed++
		}
	}
	return stats
}

// DiffHeaderPath returns the post-image path named by a "diff --git" header.
// ok is false for any other line.
func DiffHeaderPath(line string) (path string, ok bool) {
	if !strings.HasPrefix(line, "diff --git ") {
		return "", false
	}
	return parseGitDiffPath(line), true
}

func parseGitDiffPath(line string) string {
	const prefix = "diff --git "
	if !strings.HasPrefix(line, prefix) {
		return ""
	}
	tokens := diffLineTokens(strings.TrimSpace(line[len(prefix):]))
	if len(tokens) < 2 {
		return ""
	}
	return normalizeDiffPath(tokens[1])
}

// diffLineTokens splits on blanks, honouring git's C-style quoting of
// paths with unusual characters.
func diffLineTokens(s string) []string {
	var tokens []string
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return tokens
		}
		if s[0] != '"' {
			end := strings.IndexAny(s, " \t")
			if end < 0 {
				end = len(s)
			}
			tokens = append(tokens, s[:end])
			s = s[end:]
			continue
		}
		var buf strings.Builder
		i := 1
		for ; i < len(s); i++ {
			ch := s[i]
			if ch == '\\' && i+1 < len(s) {
				i++
				buf.WriteByte(s[i])
				continue
			}
			if ch == '"' {
				i++
				break
			}
			buf.WriteByte(ch)
		}
		tokens = append(tokens, buf.String())
		s = s[i:]
	}
}

func normalizeDiffPath(token string) string {
	if rest, ok := strings.CutPrefix(token, "b/"); ok {
		return rest
	}
	return strings.TrimPrefix(token, "a/")
}
