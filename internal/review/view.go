package review

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/thiagokokada/revgraph/internal/graph"
)

// SelectionView is the renderer's copy of the selection.
type SelectionView struct {
	State      State            `json:"state"`
	SHA        string           `json:"sha,omitempty"`
	Branch     string           `json:"branch,omitempty"`
	Resolution graph.Resolution `json:"resolution"`
	// Popover is set while the disambiguation popover is open.
	Popover *Point `json:"popover,omitempty"`
}

// Snapshot is an immutable copy of the session for renderers.
type Snapshot struct {
	Commits        []graph.Commit    `json:"commits"`
	Branches       []graph.BranchRef `json:"branches"`
	Layout         *graph.Layout     `json:"-"`
	HasMore        bool              `json:"has_more"`
	Loading        bool              `json:"loading"`
	IncludeRemotes bool              `json:"include_remotes"`
	Selection      SelectionView     `json:"selection"`
	CanStart       bool              `json:"can_start"`

	Precondition *PreconditionError `json:"-"`
	FetchErr     error              `json:"-"`
	StartErr     error              `json:"-"`
}

// View returns a snapshot. The layout is shared, which is fine because a
// new one is computed for every page rather than mutated.
func (s *Session) View() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := Snapshot{
		Commits:        slices.Clone(s.commits),
		Branches:       slices.Clone(s.branches),
		Layout:         s.layout,
		HasMore:        s.hasMore && s.opened,
		Loading:        s.loading,
		IncludeRemotes: s.includeRemotes,
		CanStart:       s.canStartLocked(),
		Selection: SelectionView{
			State:      s.sel.state,
			SHA:        s.sel.resolution.SHA,
			Branch:     s.sel.branch,
			Resolution: s.sel.resolution,
		},
	}
	if s.sel.state == SelectedAmbiguous {
		p := s.sel.popover
		v.Selection.Popover = &p
	}
	if s.precondition != nil {
		v.Precondition = s.precondition
	}
	if s.fetchErr != nil {
		v.FetchErr = s.fetchErr
	}
	if s.startErr != nil {
		v.StartErr = s.startErr
	}
	return v
}

// LoadUntil pages in commits until sha is loaded. It returns
// ErrNoMorePages when the history ends first.
func (s *Session) LoadUntil(ctx context.Context, sha string) error {
	for {
		s.mu.Lock()
		_, found := s.layout.Row(sha)
		more := s.hasMore && s.opened
		fetchErr := s.fetchErr
		s.mu.Unlock()
		switch {
		case found:
			return nil
		case fetchErr != nil:
			return fetchErr
		case !more:
			return fmt.Errorf("%w: %s not found", ErrNoMorePages, sha)
		}
		loaded, err := s.load(ctx, false)
		if err != nil {
			return err
		}
		if !loaded {
			// Another load is in flight.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}
