package git

import (
	"context"
	"errors"
	"log/slog"

	"github.com/thiagokokada/revgraph/internal/graph"
	"github.com/thiagokokada/revgraph/internal/rpc"
)

var _ rpc.RepoService = (*Service)(nil)

// GetCommitGraph reports repository failures in the response's Error
// field. Only cancellation fails the call itself.
func (s *Service) GetCommitGraph(ctx context.Context, req rpc.GraphRequest) (*rpc.GraphResponse, error) {
	page, err := s.CommitGraph(ctx, req.Limit, req.Offset, req.IncludeRemotes)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		slog.Warn("commit graph failed", slog.Any("error", err))
		return &rpc.GraphResponse{Commits: []graph.Commit{}, Branches: []graph.BranchRef{}, Error: err.Error()}, nil
	}
	return &rpc.GraphResponse{
		Commits:  page.Commits,
		Branches: page.Branches,
		HasMore:  page.HasMore,
	}, nil
}

func (s *Service) CheckReviewReady(ctx context.Context) (*rpc.ReadyResponse, error) {
	changes, err := s.ReviewReady(ctx)
	if err != nil {
		return nil, err
	}
	return &rpc.ReadyResponse{
		Clean:    changes.Clean(),
		Staged:   changes.HasStaged,
		Unstaged: changes.HasWorktree,
	}, nil
}

func (s *Service) StartReview(ctx context.Context, req rpc.StartReviewRequest) (*rpc.StartReviewResponse, error) {
	review, err := s.CreateReview(ctx, req.BranchName, req.BaseSHA)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		return &rpc.StartReviewResponse{Error: err.Error()}, nil
	}
	files := make([]rpc.ReviewFile, 0, len(review.Files))
	for _, f := range review.Files {
		files = append(files, rpc.ReviewFile{Path: f.Path, Added: f.Added, Removed: f.Removed, Binary: f.Binary})
	}
	return &rpc.StartReviewResponse{
		ID:      review.ID,
		Branch:  review.Branch,
		BaseSHA: review.BaseSHA,
		TipSHA:  review.TipSHA,
		Commits: review.Commits,
		Files:   files,
		Diff:    review.Diff,
	}, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
