package backend

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

func (g *gitCLI) HeadState() (hash string, headName string, ok bool, err error) {
	out, err := g.runGitCommand([]string{"rev-parse", "-q", "--verify", "HEAD"}, true, "git rev-parse")
	if err != nil {
		return "", "", false, err
	}
	hash = strings.TrimSpace(out)
	if hash == "" {
		return "", "", false, nil
	}
	ref, err := g.runGitCommand([]string{"symbolic-ref", "-q", "--short", "HEAD"}, true, "git symbolic-ref")
	if err != nil {
		return "", "", false, err
	}
	headName = strings.TrimSpace(ref)
	if headName == "" {
		headName = "HEAD"
	}
	return hash, headName, true, nil
}

func (g *gitCLI) ReadCommit(hash string) (*Commit, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" || strings.HasPrefix(hash, "-") {
		return nil, fmt.Errorf("read commit %q: %w", hash, ErrObjectNotFound)
	}
	out, err := g.runGitCommand([]string{"rev-parse", "-q", "--verify", hash + "^{commit}"}, true, "git rev-parse")
	if err != nil {
		return nil, err
	}
	full := strings.TrimSpace(out)
	if full == "" {
		return nil, fmt.Errorf("read commit %q: %w", hash, ErrObjectNotFound)
	}
	out, err = g.runGitCommand([]string{"log", "-1", "--format=" + logFormat, full, "--"}, false, "git log")
	if err != nil {
		return nil, err
	}
	return parseGitLogRecord([]byte(strings.TrimSuffix(out, "\n")))
}

func (g *gitCLI) ReviewDiffText(baseHash string, tipHash string) (string, error) {
	baseHash = strings.TrimSpace(baseHash)
	tipHash = strings.TrimSpace(tipHash)
	if baseHash == "" || tipHash == "" {
		return "", errors.New("review range not specified")
	}
	return g.runGitCommand(
		[]string{"diff", "--no-color", "--no-ext-diff", baseHash, tipHash, "--"},
		true,
		"git diff",
	)
}

func (g *gitCLI) LocalChangesStatus() (LocalChanges, error) {
	var res LocalChanges
	out, err := g.runGitCommand([]string{"status", "--porcelain=v2"}, false, "git status")
	if err != nil {
		return res, err
	}
	res, err = parseStatusPorcelainV2(strings.NewReader(out))
	if err != nil {
		return res, fmt.Errorf("parse git status: %w", err)
	}
	return res, nil
}

func parseStatusPorcelainV2(r io.Reader) (LocalChanges, error) {
	var res LocalChanges
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		// '?' untracked and '!' ignored entries never block a review.
		if len(line) < 4 {
			continue
		}
		switch line[0] {
		case '1', '2', 'u':
			if line[2] != '.' {
				res.HasStaged = true
			}
			if line[3] != '.' && line[3] != '?' {
				res.HasWorktree = true
			}
		}
		if res.HasWorktree && res.HasStaged {
			break
		}
	}
	return res, scanner.Err()
}

func (g *gitCLI) ListRefs() ([]Ref, error) {
	out, err := g.runGitCommand([]string{"--no-pager", "show-ref", "--dereference"}, true, "git show-ref")
	if err != nil {
		return nil, err
	}
	return parseRefsFromShowRef(out)
}

var refPrefixes = []struct {
	prefix string
	kind   RefKind
}{
	{"refs/heads/", RefKindBranch},
	{"refs/remotes/", RefKindRemoteBranch},
	{"refs/tags/", RefKindTag},
}

func parseRefsFromShowRef(out string) ([]Ref, error) {
	type refEntry struct {
		hash string
		ref  string
	}

	peeled := map[string]string{}
	var entries []refEntry
	for rawLine := range strings.SplitSeq(out, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("unexpected show-ref output line: %q", rawLine)
		}
		if base, ok := strings.CutSuffix(parts[1], "^{}"); ok {
			peeled[base] = parts[0]
			continue
		}
		entries = append(entries, refEntry{hash: parts[0], ref: parts[1]})
	}

	var refs []Ref
	for _, entry := range entries {
		for _, p := range refPrefixes {
			short, ok := strings.CutPrefix(entry.ref, p.prefix)
			if !ok || short == "" {
				continue
			}
			hash := entry.hash
			if p.kind == RefKindTag && peeled[entry.ref] != "" {
				hash = peeled[entry.ref]
			}
			refs = append(refs, Ref{Hash: hash, Kind: p.kind, Name: short})
			break
		}
	}
	return refs, nil
}
