package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/thiagokokada/revgraph/internal/events"
	"github.com/thiagokokada/revgraph/internal/graph"
	"github.com/thiagokokada/revgraph/internal/rpc"
)

// State is the selection state machine:
//
//	Unselected -> SelectedUnambiguous
//	Unselected -> SelectedAmbiguous (popover open) -> SelectedResolved
//
// Selecting another commit restarts from the click.
type State int

const (
	Unselected State = iota
	SelectedUnambiguous
	SelectedAmbiguous
	SelectedResolved
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case SelectedUnambiguous:
		return "selected-unambiguous"
	case SelectedAmbiguous:
		return "selected-ambiguous"
	case SelectedResolved:
		return "selected-resolved"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Point is where the disambiguation popover is anchored.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type selection struct {
	state      State
	resolution graph.Resolution
	branch     string
	popover    Point
}

func (sel selection) event() events.SelectionChanged {
	return events.SelectionChanged{
		SHA:       sel.resolution.SHA,
		Branch:    sel.branch,
		Ambiguous: sel.state == SelectedAmbiguous,
	}
}

// SelectCommit attributes a clicked commit to a branch. With several
// candidate branches the popover opens at (x, y) with a pre-selected
// branch that Confirm accepts.
func (s *Session) SelectCommit(sha string, x, y float64) (graph.Resolution, error) {
	s.mu.Lock()
	res, ok := s.layout.Disambiguate(sha)
	if !ok {
		_, inWindow := s.layout.Row(sha)
		s.mu.Unlock()
		if !inWindow {
			return graph.Resolution{}, fmt.Errorf("%w: %s", ErrUnknownCommit, sha)
		}
		return graph.Resolution{}, ErrNoBranches
	}
	tips := s.layout.LabelsAt(sha)
	s.sel = selection{resolution: res, branch: res.Selected.Name}
	if res.Ambiguous {
		s.sel.state = SelectedAmbiguous
		s.sel.popover = Point{X: x, Y: y}
	} else {
		s.sel.state = SelectedUnambiguous
	}
	s.startErr = nil
	ev := s.sel.event()
	s.mu.Unlock()

	slog.Debug("commit selected",
		slog.String("sha", sha),
		slog.String("branch", res.Selected.Name),
		slog.Int("candidates", len(res.Candidates)),
		slog.Bool("fallback", res.Fallback),
		slog.Any("tip_of", tips),
	)
	events.Publish(s.bus, ev)
	return res, nil
}

// ChooseBranch changes the branch picked in the open popover. The
// resolution's Selected follows the choice.
func (s *Session) ChooseBranch(name string) error {
	s.mu.Lock()
	if s.sel.state != SelectedAmbiguous {
		s.mu.Unlock()
		return ErrSelectionIncomplete
	}
	idx := slices.IndexFunc(s.sel.resolution.Candidates, func(c graph.Candidate) bool {
		return c.Branch.Name == name
	})
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotCandidate, name)
	}
	s.sel.branch = name
	s.sel.resolution.Selected = s.sel.resolution.Candidates[idx].Branch
	ev := s.sel.event()
	s.mu.Unlock()
	events.Publish(s.bus, ev)
	return nil
}

// Confirm closes the popover with the chosen branch. It is a no-op for an
// unambiguous selection.
func (s *Session) Confirm() error {
	s.mu.Lock()
	switch s.sel.state {
	case SelectedUnambiguous, SelectedResolved:
		s.mu.Unlock()
		return nil
	case SelectedAmbiguous:
	default:
		s.mu.Unlock()
		return ErrSelectionIncomplete
	}
	s.sel.state = SelectedResolved
	ev := s.sel.event()
	s.mu.Unlock()
	events.Publish(s.bus, ev)
	return nil
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	if s.sel.state == Unselected {
		s.mu.Unlock()
		return
	}
	s.sel = selection{}
	s.startErr = nil
	s.mu.Unlock()
	events.Publish(s.bus, events.SelectionChanged{})
}

// reconcileSelectionLocked drops the selection when a reload removed its
// commit or branch.
func (s *Session) reconcileSelectionLocked() (events.SelectionChanged, bool) {
	if s.sel.state == Unselected {
		return events.SelectionChanged{}, false
	}
	_, commitOK := s.layout.Row(s.sel.resolution.SHA)
	branchOK := false
	for _, bl := range s.layout.Lanes {
		if bl.Name == s.sel.branch {
			branchOK = true
			break
		}
	}
	if commitOK && branchOK {
		return events.SelectionChanged{}, false
	}
	slog.Debug("selection dropped after reload", slog.String("sha", s.sel.resolution.SHA), slog.String("branch", s.sel.branch))
	s.sel = selection{}
	return events.SelectionChanged{}, true
}

func (s *Session) canStartLocked() bool {
	if s.precondition != nil || s.starting || s.sel.branch == "" || s.sel.resolution.SHA == "" {
		return false
	}
	return s.sel.state == SelectedUnambiguous || s.sel.state == SelectedResolved
}

// CanStart reports whether a commit and a resolved branch are selected.
func (s *Session) CanStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canStartLocked()
}

// StartReview asks the service to start a review of the selected branch
// from the selected commit. Failures are kept as a *StartError and leave
// the selection in place.
func (s *Session) StartReview(ctx context.Context) (*rpc.StartReviewResponse, error) {
	s.mu.Lock()
	if s.precondition != nil {
		err := s.precondition
		s.mu.Unlock()
		return nil, err
	}
	if !s.canStartLocked() {
		s.mu.Unlock()
		return nil, ErrSelectionIncomplete
	}
	req := rpc.StartReviewRequest{BranchName: s.sel.branch, BaseSHA: s.sel.resolution.SHA}
	s.starting = true
	s.startErr = nil
	s.mu.Unlock()

	resp, err := s.svc.StartReview(ctx, req)
	if err == nil && resp.Error != "" {
		err = errors.New(resp.Error)
	}

	s.mu.Lock()
	s.starting = false
	if err != nil {
		s.startErr = &StartError{Branch: req.BranchName, BaseSHA: req.BaseSHA, Err: err}
		startErr := s.startErr
		s.mu.Unlock()
		slog.Warn("start review failed", slog.String("branch", req.BranchName), slog.Any("error", err))
		return nil, startErr
	}
	s.mu.Unlock()

	slog.Info("review started", slog.String("id", resp.ID), slog.String("branch", resp.Branch))
	events.Publish(s.bus, events.ReviewStarted{ID: resp.ID, Branch: req.BranchName, BaseSHA: req.BaseSHA})
	return resp, nil
}
