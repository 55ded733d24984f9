package backend

import (
	"strings"
	"time"
)

type Signature struct {
	Name  string
	Email string
	When  time.Time
}

type Commit struct {
	Hash         string
	ParentHashes []string
	Author       Signature
	Committer    Signature
	Message      string
}

// Subject is the first line of the commit message.
func (c *Commit) Subject() string {
	if c == nil {
		return ""
	}
	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return strings.TrimSpace(subject)
}

type LocalChanges struct {
	HasWorktree bool
	HasStaged   bool
}

// Clean reports whether there are no tracked changes, staged or not.
func (l LocalChanges) Clean() bool {
	return !l.HasWorktree && !l.HasStaged
}

type RefKind uint8

const (
	RefKindBranch RefKind = iota
	RefKindRemoteBranch
	RefKindTag
)

type Ref struct {
	Hash string
	Kind RefKind
	Name string // short name: main, origin/main, v1
}
