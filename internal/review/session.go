// Package review drives the review selector: it pages in the commit graph,
// tracks which commit and branch the user picked, and starts the review.
package review

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/thiagokokada/revgraph/internal/events"
	"github.com/thiagokokada/revgraph/internal/graph"
	"github.com/thiagokokada/revgraph/internal/prefs"
	"github.com/thiagokokada/revgraph/internal/rpc"
)

const (
	DefaultPageSize     = 100
	MaxPageSize         = 1000
	DefaultNearBottomPx = 200

	reloadTimeout = 30 * time.Second
)

type Options struct {
	PageSize       int
	NearBottomPx   float64
	IncludeRemotes bool
	Bus            *events.Bus
	// Prefs, when set, overrides PageSize and IncludeRemotes with stored
	// values and records include-remotes changes.
	Prefs prefs.Store
}

// Session is the state of one review selector. Methods are safe for
// concurrent use; RPCs run without holding the lock, and the loading flag
// keeps page fetches from overlapping.
type Session struct {
	svc        rpc.RepoService
	bus        *events.Bus
	prefs      prefs.Store
	pageSize   int
	nearBottom float64

	mu             sync.Mutex
	opened         bool
	includeRemotes bool
	commits        []graph.Commit
	branches       []graph.BranchRef
	layout         *graph.Layout
	fetched        int
	hasMore        bool
	loading        bool
	// generation is bumped on every reload so pages from a superseded load
	// are dropped.
	generation int
	// resetPending marks a failed load that had restarted from the first
	// page; Retry repeats it instead of appending to the old window.
	resetPending bool

	precondition *PreconditionError
	fetchErr     *FetchError
	startErr     *StartError
	starting     bool

	sel selection

	unsubscribe func()
	bg          sync.WaitGroup
}

func New(svc rpc.RepoService, opts Options) *Session {
	s := &Session{
		svc:            svc,
		bus:            opts.Bus,
		prefs:          opts.Prefs,
		pageSize:       opts.PageSize,
		nearBottom:     opts.NearBottomPx,
		includeRemotes: opts.IncludeRemotes,
		layout:         graph.ComputeLayout(nil, nil),
	}
	if s.prefs != nil {
		s.pageSize = prefs.Int(s.prefs, prefs.KeyPageSize, s.pageSize)
		s.includeRemotes = prefs.Bool(s.prefs, prefs.KeyIncludeRemotes, s.includeRemotes)
	}
	switch {
	case s.pageSize <= 0:
		s.pageSize = DefaultPageSize
	case s.pageSize > MaxPageSize:
		s.pageSize = MaxPageSize
	}
	if opts.NearBottomPx <= 0 {
		s.nearBottom = DefaultNearBottomPx
	}
	if s.bus != nil {
		s.unsubscribe = events.Subscribe(s.bus, s.onRepoChanged)
	}
	return s
}

// Close stops reacting to repository changes and waits for background
// reloads.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.bg.Wait()
}

// Open checks that the working tree is clean and loads the first page.
// A dirty tree yields a *PreconditionError and nothing is loaded.
func (s *Session) Open(ctx context.Context) error {
	ready, err := s.svc.CheckReviewReady(ctx)
	if err != nil {
		s.mu.Lock()
		s.fetchErr = &FetchError{Err: err}
		s.mu.Unlock()
		events.Publish(s.bus, events.GraphFailed{Err: err})
		return s.fetchErrSnapshot()
	}
	s.mu.Lock()
	if !ready.Clean {
		s.precondition = &PreconditionError{Staged: ready.Staged, Unstaged: ready.Unstaged}
		s.opened = false
		s.mu.Unlock()
		slog.Info("review selector blocked", slog.Bool("staged", ready.Staged), slog.Bool("unstaged", ready.Unstaged))
		return s.precondition
	}
	s.precondition = nil
	s.opened = true
	s.mu.Unlock()
	_, err = s.load(ctx, true)
	return err
}

func (s *Session) fetchErrSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr == nil {
		return nil
	}
	return s.fetchErr
}

// LoadMore fetches the next page. It reports false without fetching while
// a load is in flight, when there are no more pages, or while a fetch
// error is pending.
func (s *Session) LoadMore(ctx context.Context) (bool, error) {
	return s.load(ctx, false)
}

// Retry clears a pending fetch error and repeats the failed request: the
// first page again when a reload failed, otherwise the next page.
func (s *Session) Retry(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.fetchErr == nil {
		s.mu.Unlock()
		return false, nil
	}
	s.fetchErr = nil
	opened := s.opened
	reset := s.resetPending
	s.mu.Unlock()
	if !opened {
		if err := s.Open(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return s.load(ctx, reset)
}

// Scrolled loads the next page once the viewport is within the near-bottom
// threshold of the content's end.
func (s *Session) Scrolled(ctx context.Context, top, viewport, content float64) (bool, error) {
	if content-(top+viewport) > s.nearBottom {
		return false, nil
	}
	return s.load(ctx, false)
}

// SetIncludeRemotes stores the preference and reloads from the first page.
func (s *Session) SetIncludeRemotes(ctx context.Context, include bool) error {
	if s.prefs != nil {
		if err := s.prefs.Set(prefs.KeyIncludeRemotes, include); err != nil {
			slog.Warn("save preference", slog.String("key", prefs.KeyIncludeRemotes), slog.Any("error", err))
		}
	}
	s.mu.Lock()
	changed := s.includeRemotes != include
	s.includeRemotes = include
	opened := s.opened
	s.mu.Unlock()
	if !changed || !opened {
		return nil
	}
	_, err := s.load(ctx, true)
	return err
}

// Reload discards loaded pages and fetches the first page again.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	opened := s.opened
	s.mu.Unlock()
	if !opened {
		return ErrNotReady
	}
	_, err := s.load(ctx, true)
	return err
}

func (s *Session) onRepoChanged(ev events.RepoChanged) {
	s.mu.Lock()
	skip := !s.opened || s.loading
	s.mu.Unlock()
	if skip {
		slog.Debug("repo change ignored", slog.String("source", ev.Source))
		return
	}
	// Publishers may be the RPC read loop; reloading inline would wait on
	// a response that loop has to deliver.
	s.bg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		if _, err := s.load(ctx, true); err != nil {
			slog.Debug("reload after repo change", slog.Any("error", err))
		}
	})
}

func (s *Session) load(ctx context.Context, reset bool) (bool, error) {
	s.mu.Lock()
	if reset {
		s.generation++
		s.fetchErr = nil
		s.hasMore = true
	} else if !s.opened || s.loading || !s.hasMore || s.fetchErr != nil {
		s.mu.Unlock()
		return false, nil
	}
	gen := s.generation
	offset := s.fetched
	if reset {
		offset = 0
	}
	s.loading = true
	req := rpc.GraphRequest{Limit: s.pageSize, Offset: offset, IncludeRemotes: s.includeRemotes}
	s.mu.Unlock()

	slog.Debug("graph page requested", slog.Int("offset", req.Offset), slog.Int("limit", req.Limit), slog.Bool("reset", reset))
	resp, err := s.svc.GetCommitGraph(ctx, req)
	if err == nil && resp.Error != "" {
		err = errors.New(resp.Error)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		slog.Debug("stale graph page dropped", slog.Int("offset", req.Offset))
		return false, nil
	}
	s.loading = false
	if err != nil {
		s.fetchErr = &FetchError{Offset: req.Offset, Err: err}
		s.resetPending = reset
		fetchErr := s.fetchErr
		s.mu.Unlock()
		slog.Warn("graph page failed", slog.Int("offset", req.Offset), slog.Any("error", err))
		events.Publish(s.bus, events.GraphFailed{Err: fetchErr})
		return false, fetchErr
	}
	s.resetPending = false
	if reset {
		s.commits = nil
		s.fetched = 0
	}
	s.commits = graph.AppendCommits(s.commits, resp.Commits)
	s.fetched += len(resp.Commits)
	s.branches = resp.Branches
	s.hasMore = resp.HasMore
	s.layout = graph.ComputeLayout(s.commits, s.branches)
	selEvent, selChanged := s.reconcileSelectionLocked()
	loaded := events.GraphLoaded{Commits: len(s.commits), HasMore: s.hasMore, Reset: reset}
	s.mu.Unlock()

	events.Publish(s.bus, loaded)
	if selChanged {
		events.Publish(s.bus, selEvent)
	}
	return true, nil
}
