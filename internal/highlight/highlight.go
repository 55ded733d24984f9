// Package highlight colours unified diffs for terminals, running each file's
// code lines through the chroma lexer picked from its path.
package highlight

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/thiagokokada/revgraph/internal/git"
)

// Highlighter is safe for concurrent use once built.
type Highlighter struct {
	style     *chroma.Style
	formatter chroma.Formatter
}

// New returns a highlighter using the github styles. formatter names a chroma
// formatter such as "terminal256" or "terminal16m"; unknown names fall back
// to chroma's default.
func New(dark bool, formatter string) *Highlighter {
	f := formatters.Get(formatter)
	if f == nil {
		f = formatters.Fallback
	}
	return &Highlighter{style: styleFor(dark), formatter: f}
}

func styleFor(dark bool) *chroma.Style {
	name := "github"
	if dark {
		name = "github-dark"
	}
	if st := styles.Get(name); st != nil {
		return st
	}
	return styles.Fallback
}

func lexerForPath(path string) chroma.Lexer {
	if path == "" {
		return nil
	}
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// diffLineCode splits a hunk line into its marker and code.
func diffLineCode(line string) (marker byte, code string, ok bool) {
	if line == "" {
		return 0, "", false
	}
	switch line[0] {
	case '+', '-', ' ':
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			return 0, "", false
		}
		return line[0], line[1:], true
	default:
		return 0, "", false
	}
}

func markerType(marker byte) chroma.TokenType {
	switch marker {
	case '+':
		return chroma.GenericInserted
	case '-':
		return chroma.GenericDeleted
	default:
		return chroma.Text
	}
}

// Write highlights diff into w. Header lines go through chroma's diff lexer;
// hunk lines keep a coloured +/- marker and get their code lexed by path.
func (h *Highlighter) Write(w io.Writer, diff string) error {
	if diff == "" {
		return nil
	}
	bw := bufio.NewWriter(w)
	diffLexer := lexers.Get("diff")
	if diffLexer == nil {
		diffLexer = lexers.Fallback
	}
	diffLexer = chroma.Coalesce(diffLexer)
	var current chroma.Lexer
	for line := range strings.SplitSeq(strings.TrimSuffix(diff, "\n"), "\n") {
		if path, ok := git.DiffHeaderPath(line); ok {
			current = lexerForPath(path)
		}
		var tokens []chroma.Token
		marker, code, isCode := diffLineCode(line)
		if isCode && current != nil {
			tokens = append(tokens, chroma.Token{Type: markerType(marker), Value: string(marker)})
			tokens = append(tokens, h.tokenise(current, code)...)
		} else {
			tokens = h.tokenise(diffLexer, line)
		}
		if err := h.formatter.Format(bw, h.style, chroma.Literator(tokens...)); err != nil {
			return fmt.Errorf("highlight: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("highlight: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("highlight: %w", err)
	}
	return nil
}

// String is Write into a string.
func (h *Highlighter) String(diff string) string {
	var b strings.Builder
	if err := h.Write(&b, diff); err != nil {
		return diff
	}
	return b.String()
}

// tokenise lexes one line. Lexers that force a trailing newline get it
// trimmed so output lines stay aligned with input lines.
func (h *Highlighter) tokenise(lexer chroma.Lexer, line string) []chroma.Token {
	if line == "" {
		return nil
	}
	it, err := lexer.Tokenise(nil, line)
	if err != nil {
		return []chroma.Token{{Type: chroma.Text, Value: line}}
	}
	tokens := it.Tokens()
	for len(tokens) > 0 {
		last := &tokens[len(tokens)-1]
		trimmed := strings.TrimSuffix(last.Value, "\n")
		if trimmed == last.Value {
			break
		}
		if trimmed == "" {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		last.Value = trimmed
		break
	}
	return tokens
}
