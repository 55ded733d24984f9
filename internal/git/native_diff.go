package git

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pmezard/go-difflib/difflib"
)

const diffContextLines = 3

// ReviewDiffText renders the tree difference between base and tip in git's
// unified format, one "diff --git" section per changed path.
func (n *nativeBackend) ReviewDiffText(baseHash string, tipHash string) (string, error) {
	base, err := n.commitObject(baseHash)
	if err != nil {
		return "", err
	}
	tip, err := n.commitObject(tipHash)
	if err != nil {
		return "", err
	}
	baseTree, err := base.Tree()
	if err != nil {
		return "", fmt.Errorf("read tree %s: %w", base.Hash, err)
	}
	tipTree, err := tip.Tree()
	if err != nil {
		return "", fmt.Errorf("read tree %s: %w", tip.Hash, err)
	}
	changes, err := object.DiffTree(baseTree, tipTree)
	if err != nil {
		return "", fmt.Errorf("diff trees: %w", err)
	}

	var b strings.Builder
	for _, change := range changes {
		if err := writeChange(&b, change); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func changePath(change *object.Change) string {
	if change.To.Name != "" {
		return change.To.Name
	}
	return change.From.Name
}

func writeChange(b *strings.Builder, change *object.Change) error {
	from, to, err := change.Files()
	if err != nil {
		return fmt.Errorf("read change %s: %w", changePath(change), err)
	}
	fromName, toName := change.From.Name, change.To.Name
	if fromName == "" {
		fromName = toName
	}
	if toName == "" {
		toName = fromName
	}
	fmt.Fprintf(b, "diff --git a/%s b/%s\n", fromName, toName)
	fromLabel, toLabel := "a/"+fromName, "b/"+toName
	switch {
	case from == nil:
		fmt.Fprintf(b, "new file mode %s\n", modeString(change.To.TreeEntry.Mode))
		fromLabel = "/dev/null"
	case to == nil:
		fmt.Fprintf(b, "deleted file mode %s\n", modeString(change.From.TreeEntry.Mode))
		toLabel = "/dev/null"
	case change.From.TreeEntry.Mode != change.To.TreeEntry.Mode:
		fmt.Fprintf(b, "old mode %s\nnew mode %s\n",
			modeString(change.From.TreeEntry.Mode), modeString(change.To.TreeEntry.Mode))
	}

	fromText, fromBinary, err := fileText(from)
	if err != nil {
		return err
	}
	toText, toBinary, err := fileText(to)
	if err != nil {
		return err
	}
	if fromBinary || toBinary {
		fmt.Fprintf(b, "Binary files %s and %s differ\n", fromLabel, toLabel)
		return nil
	}
	if fromText == toText {
		return nil
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(fromText),
		B:        splitLines(toText),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  diffContextLines,
	})
	if err != nil {
		return fmt.Errorf("diff %s: %w", toName, err)
	}
	b.WriteString(text)
	return nil
}

func modeString(m filemode.FileMode) string {
	return fmt.Sprintf("%06o", uint32(m))
}

func fileText(f *object.File) (string, bool, error) {
	if f == nil {
		return "", false, nil
	}
	binary, err := f.IsBinary()
	if err != nil {
		return "", false, fmt.Errorf("inspect %s: %w", f.Name, err)
	}
	if binary {
		return "", true, nil
	}
	text, err := f.Contents()
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return text, false, nil
}

// splitLines keeps line terminators and terminates the last line.
// difflib.SplitLines adds a spurious empty line to text ending in "\n".
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(strings.TrimSuffix(s, "\n"), "\n")
	lines[len(lines)-1] += "\n"
	return lines
}
