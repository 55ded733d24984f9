// Package rpc defines the typed contracts between the review selector and
// the repository service, and a websocket transport for them.
package rpc

import (
	"context"

	"github.com/thiagokokada/revgraph/internal/graph"
)

// Method names on the wire.
const (
	MethodGetCommitGraph   = "Repo.get_commit_graph"
	MethodCheckReviewReady = "Repo.check_review_ready"
	MethodStartReview      = "Repo.start_review"

	// NotifyRepoChanged is sent by the server, without an id, when the
	// repository changed on disk.
	NotifyRepoChanged = "Repo.changed"
)

type GraphRequest struct {
	Limit          int  `json:"limit" minimum:"0"`
	Offset         int  `json:"offset" minimum:"0"`
	IncludeRemotes bool `json:"include_remotes"`
}

type GraphResponse struct {
	Commits  []graph.Commit    `json:"commits"`
	Branches []graph.BranchRef `json:"branches"`
	HasMore  bool              `json:"has_more"`
	Error    string            `json:"error,omitempty"`
}

type ReadyRequest struct{}

// ReadyResponse reports whether the working tree is clean. Staged and
// Unstaged say which kind of tracked change blocks a review.
type ReadyResponse struct {
	Clean    bool `json:"clean"`
	Staged   bool `json:"staged,omitempty"`
	Unstaged bool `json:"unstaged,omitempty"`
}

type StartReviewRequest struct {
	BranchName string `json:"branch_name" required:"true"`
	BaseSHA    string `json:"base_sha" required:"true"`
}

type ReviewFile struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Binary  bool   `json:"binary,omitempty"`
}

type StartReviewResponse struct {
	ID      string         `json:"id,omitempty"`
	Branch  string         `json:"branch,omitempty"`
	BaseSHA string         `json:"base_sha,omitempty"`
	TipSHA  string         `json:"tip_sha,omitempty"`
	Commits []graph.Commit `json:"commits,omitempty"`
	Files   []ReviewFile   `json:"files,omitempty"`
	Diff    string         `json:"diff,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type ChangedNotification struct {
	Source string `json:"source"`
	Path   string `json:"path,omitempty"`
}

// RepoService is the repository backend, one method per endpoint.
//
// Application level failures travel in the Error field of the response;
// a non-nil error means the call itself failed.
type RepoService interface {
	GetCommitGraph(ctx context.Context, req GraphRequest) (*GraphResponse, error)
	CheckReviewReady(ctx context.Context) (*ReadyResponse, error)
	StartReview(ctx context.Context, req StartReviewRequest) (*StartReviewResponse, error)
}
