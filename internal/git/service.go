// Package git answers commit graph and review requests from a local
// repository, read either with go-git or with the git executable.
package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	gitbackend "github.com/thiagokokada/revgraph/internal/git/backend"
	"github.com/thiagokokada/revgraph/internal/graph"
)

const (
	DefaultBatch = 100
	MaxBatch     = 1000
)

var (
	ErrBranchNotFound = errors.New("branch not found")
	ErrCommitNotFound = errors.New("commit not found")
	ErrNotAncestor    = errors.New("base commit is not on the branch's first-parent history")
)

type Service struct {
	// mu serializes access to the scan session.
	mu sync.Mutex

	backend gitbackend.Backend
	scan    *scanSession
}

// Page is one window of the commit graph.
type Page struct {
	Commits  []graph.Commit
	Branches []graph.BranchRef
	HasMore  bool
}

func Open(repoPath string, kind BackendKind) (*Service, error) {
	b, err := openBackend(repoPath, kind)
	if err != nil {
		return nil, err
	}
	slog.Debug("repository opened", slog.String("path", b.RepoPath()), slog.String("backend", string(kind)))
	return NewWithBackend(b), nil
}

func NewWithBackend(b gitbackend.Backend) *Service {
	return &Service{backend: b}
}

func (s *Service) RepoPath() string {
	if s.backend == nil {
		return ""
	}
	return s.backend.RepoPath()
}

// ClampLimit maps a requested page size into [1, MaxBatch], using
// DefaultBatch for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultBatch
	case limit > MaxBatch:
		return MaxBatch
	default:
		return limit
	}
}

// CommitGraph returns up to limit commits starting at offset, walking the
// history of every branch tip newest first. Consecutive pages reuse one
// log walk; any other offset restarts it.
func (s *Service) CommitGraph(ctx context.Context, limit, offset int, includeRemotes bool) (*Page, error) {
	limit = ClampLimit(limit)
	offset = max(offset, 0)
	slog.Debug("CommitGraph start",
		slog.Int("limit", limit),
		slog.Int("offset", offset),
		slog.Bool("include_remotes", includeRemotes),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	branches, err := s.branchRefs(includeRemotes)
	if err != nil {
		return nil, err
	}
	page := &Page{Commits: []graph.Commit{}, Branches: branches}
	tips := branchTips(branches)
	if len(tips) == 0 {
		s.closeScanLocked()
		return page, nil
	}

	if err := s.ensureScanSessionLocked(tips); err != nil {
		return nil, err
	}
	if offset != s.scan.returned {
		slog.Debug("CommitGraph reset session",
			slog.Int("requested_offset", offset),
			slog.Int("session_returned", s.scan.returned),
		)
		if err := s.resetScanLocked(tips); err != nil {
			return nil, err
		}
		if err := s.scan.discard(offset); err != nil {
			if errors.Is(err, io.EOF) {
				return page, nil
			}
			return nil, fmt.Errorf("iterate commits: %w", err)
		}
	}

	for len(page.Commits) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		commit, err := s.scan.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("iterate commits: %w", err)
		}
		page.Commits = append(page.Commits, toGraphCommit(commit))
	}
	page.HasMore, err = s.scan.hasMore()
	if err != nil {
		return nil, err
	}
	slog.Debug("CommitGraph done",
		slog.Int("returned", len(page.Commits)),
		slog.Int("session_returned", s.scan.returned),
		slog.Bool("has_more", page.HasMore),
	)
	return page, nil
}

// Invalidate drops the cached log walk so the next page re-reads the
// repository.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeScanLocked()
}

// ReviewReady reports tracked changes that block starting a review.
func (s *Service) ReviewReady(ctx context.Context) (gitbackend.LocalChanges, error) {
	if err := ctx.Err(); err != nil {
		return gitbackend.LocalChanges{}, err
	}
	if s.backend == nil {
		return gitbackend.LocalChanges{}, errors.New("repository not initialized")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.LocalChangesStatus()
}

const shortSHALen = 7

func toGraphCommit(c *gitbackend.Commit) graph.Commit {
	short := c.Hash
	if len(short) > shortSHALen {
		short = short[:shortSHALen]
	}
	parents := c.ParentHashes
	if parents == nil {
		parents = []string{}
	}
	var date string
	if !c.Author.When.IsZero() {
		date = c.Author.When.Format(time.RFC3339)
	}
	return graph.Commit{
		SHA:      c.Hash,
		Parents:  parents,
		Message:  strings.TrimSpace(c.Message),
		Author:   c.Author.Name,
		Date:     date,
		ShortSHA: short,
	}
}
