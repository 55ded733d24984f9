package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	gitbackend "github.com/thiagokokada/revgraph/internal/git/backend"
	"github.com/thiagokokada/revgraph/internal/graph"
)

// maxReviewCommits bounds the first-parent walk from tip to base.
const maxReviewCommits = 10000

// Review is the range (BaseSHA, TipSHA] of a branch.
type Review struct {
	ID      string
	Branch  string
	BaseSHA string
	TipSHA  string
	// Commits run from the tip back to, but excluding, the base.
	Commits []graph.Commit
	Files   []FileStat
	Diff    string
}

// CreateReview resolves branch and base and collects the commits and diff
// between them. base must be the tip itself or lie on the branch's
// first-parent history.
func (s *Service) CreateReview(ctx context.Context, branchName, baseSHA string) (*Review, error) {
	branchName = strings.TrimSpace(branchName)
	baseSHA = strings.TrimSpace(baseSHA)
	if branchName == "" {
		return nil, fmt.Errorf("%w: empty branch name", ErrBranchNotFound)
	}
	if baseSHA == "" {
		return nil, fmt.Errorf("%w: empty base", ErrCommitNotFound)
	}

	// go-git repositories are not safe for concurrent use; share the
	// service lock with CommitGraph.
	s.mu.Lock()
	defer s.mu.Unlock()

	branches, err := s.branchRefs(true)
	if err != nil {
		return nil, err
	}
	branch, ok := findBranch(branches, branchName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, branchName)
	}

	base, err := s.readCommit(baseSHA)
	if err != nil {
		return nil, err
	}
	commits, err := s.firstParentRange(ctx, branch.SHA, base.Hash)
	if err != nil {
		return nil, err
	}

	review := &Review{
		ID:      uuid.NewString(),
		Branch:  branch.Name,
		BaseSHA: base.Hash,
		TipSHA:  branch.SHA,
		Commits: commits,
		Files:   []FileStat{},
	}
	if base.Hash != branch.SHA {
		review.Diff, err = s.backend.ReviewDiffText(base.Hash, branch.SHA)
		if err != nil {
			return nil, fmt.Errorf("review diff: %w", err)
		}
		review.Files = parseDiffStats(review.Diff)
	}
	slog.Info("review created",
		slog.String("id", review.ID),
		slog.String("branch", review.Branch),
		slog.String("base", review.BaseSHA),
		slog.Int("commits", len(review.Commits)),
		slog.Int("files", len(review.Files)),
	)
	return review, nil
}

func (s *Service) readCommit(hash string) (*gitbackend.Commit, error) {
	c, err := s.backend.ReadCommit(hash)
	if err != nil {
		if errors.Is(err, gitbackend.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, hash)
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) firstParentRange(ctx context.Context, tip, base string) ([]graph.Commit, error) {
	commits := []graph.Commit{}
	cur := tip
	for range maxReviewCommits {
		if cur == base {
			return commits, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := s.readCommit(cur)
		if err != nil {
			return nil, err
		}
		slog.Debug("review commit", slog.String("sha", c.Hash), slog.String("subject", c.Subject()))
		commits = append(commits, toGraphCommit(c))
		if len(c.ParentHashes) == 0 {
			break
		}
		cur = c.ParentHashes[0]
	}
	return nil, fmt.Errorf("%w: %s", ErrNotAncestor, base)
}
