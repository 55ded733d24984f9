package review

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is wrapped by PreconditionError.
	ErrNotReady            = errors.New("working tree is not clean")
	ErrSelectionIncomplete = errors.New("select a commit and a branch first")
	ErrNoMorePages         = errors.New("no more commits to load")
	ErrUnknownCommit       = errors.New("commit is not in the loaded graph")
	ErrNoBranches          = errors.New("no branches to attribute the commit to")
	ErrNotCandidate        = errors.New("branch does not contain the selected commit")
)

// PreconditionError blocks the whole selector until the working tree is
// clean. There is no retry short of reopening.
type PreconditionError struct {
	Staged   bool
	Unstaged bool
}

func (e *PreconditionError) Error() string {
	switch {
	case e.Staged && e.Unstaged:
		return "working tree has staged and unstaged changes"
	case e.Staged:
		return "working tree has staged changes"
	case e.Unstaged:
		return "working tree has unstaged changes"
	default:
		return "working tree has uncommitted changes"
	}
}

func (e *PreconditionError) Unwrap() error { return ErrNotReady }

// Hints are remediation steps shown with the warning.
func (e *PreconditionError) Hints() []string {
	hints := []string{"Commit your changes, or stash them with \"git stash push\"."}
	if e.Staged {
		hints = append(hints, "Unstage changes you do not want with \"git restore --staged <path>\".")
	}
	if e.Unstaged {
		hints = append(hints, "Discard unwanted edits with \"git restore <path>\".")
	}
	return append(hints, "Reopen the review selector afterwards.")
}

// FetchError is a failed graph load. Loaded commits stay; pagination stops
// until Retry.
type FetchError struct {
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load commits at offset %d: %v", e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StartError is a rejected start_review. The selection is kept.
type StartError struct {
	Branch  string
	BaseSHA string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start review of %s from %s: %v", e.Branch, e.BaseSHA, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
