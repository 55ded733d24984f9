package git

import (
	"errors"
	"io"
	"slices"

	gitbackend "github.com/thiagokokada/revgraph/internal/git/backend"
)

type fakeBackend struct {
	repoPath string

	headStateFunc          func() (hash string, headName string, ok bool, err error)
	listRefsFunc           func() ([]gitbackend.Ref, error)
	readCommitFunc         func(hash string) (*gitbackend.Commit, error)
	reviewDiffTextFunc     func(baseHash, tipHash string) (string, error)
	localChangesStatusFunc func() (gitbackend.LocalChanges, error)
	startLogStreamFunc     func(tips []string) (gitbackend.LogStream, error)

	logStreams int
	lastTips   []string
}

func (f *fakeBackend) RepoPath() string { return f.repoPath }

func (f *fakeBackend) StartLogStream(tips []string) (gitbackend.LogStream, error) {
	f.logStreams++
	f.lastTips = slices.Clone(tips)
	if f.startLogStreamFunc != nil {
		return f.startLogStreamFunc(tips)
	}
	return nil, errors.New("unexpected StartLogStream call")
}

func (f *fakeBackend) HeadState() (hash string, headName string, ok bool, err error) {
	if f.headStateFunc != nil {
		return f.headStateFunc()
	}
	return "", "", false, errors.New("unexpected HeadState call")
}

func (f *fakeBackend) ListRefs() ([]gitbackend.Ref, error) {
	if f.listRefsFunc != nil {
		return f.listRefsFunc()
	}
	return nil, errors.New("unexpected ListRefs call")
}

func (f *fakeBackend) ReadCommit(hash string) (*gitbackend.Commit, error) {
	if f.readCommitFunc != nil {
		return f.readCommitFunc(hash)
	}
	return nil, errors.New("unexpected ReadCommit call")
}

func (f *fakeBackend) ReviewDiffText(baseHash, tipHash string) (string, error) {
	if f.reviewDiffTextFunc != nil {
		return f.reviewDiffTextFunc(baseHash, tipHash)
	}
	return "", errors.New("unexpected ReviewDiffText call")
}

func (f *fakeBackend) LocalChangesStatus() (gitbackend.LocalChanges, error) {
	if f.localChangesStatusFunc != nil {
		return f.localChangesStatusFunc()
	}
	return gitbackend.LocalChanges{}, errors.New("unexpected LocalChangesStatus call")
}

type sliceLogStream struct {
	commits []*gitbackend.Commit
	pos     int
	failAt  int // 1-based; 0 never fails
	closed  bool
}

func (s *sliceLogStream) Next() (*gitbackend.Commit, error) {
	if s.failAt > 0 && s.pos+1 == s.failAt {
		return nil, errors.New("stream broke")
	}
	if s.pos >= len(s.commits) {
		return nil, io.EOF
	}
	c := s.commits[s.pos]
	s.pos++
	return c, nil
}

func (s *sliceLogStream) Close() error {
	s.closed = true
	return nil
}

// linearHistory returns commits c<n> ... c1, newest first, each the first
// parent of the previous one, indexed by hash.
func linearHistory(n int) ([]*gitbackend.Commit, map[string]*gitbackend.Commit) {
	commits := make([]*gitbackend.Commit, 0, n)
	byHash := make(map[string]*gitbackend.Commit, n)
	for i := n; i >= 1; i-- {
		c := &gitbackend.Commit{Hash: hashN(i), Message: "commit " + hashN(i) + "\n"}
		if i > 1 {
			c.ParentHashes = []string{hashN(i - 1)}
		}
		commits = append(commits, c)
		byHash[c.Hash] = c
	}
	return commits, byHash
}

func hashN(i int) string {
	return "c" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func newLinearFake(n int) (*fakeBackend, map[string]*gitbackend.Commit) {
	commits, byHash := linearHistory(n)
	f := &fakeBackend{
		repoPath: "/repo",
		headStateFunc: func() (string, string, bool, error) {
			return commits[0].Hash, "main", true, nil
		},
		listRefsFunc: func() ([]gitbackend.Ref, error) {
			return []gitbackend.Ref{
				{Hash: commits[0].Hash, Kind: gitbackend.RefKindBranch, Name: "main"},
				{Hash: commits[0].Hash, Kind: gitbackend.RefKindRemoteBranch, Name: "origin/main"},
				{Hash: commits[0].Hash, Kind: gitbackend.RefKindRemoteBranch, Name: "origin/HEAD"},
				{Hash: commits[len(commits)-1].Hash, Kind: gitbackend.RefKindTag, Name: "v1"},
			}, nil
		},
		readCommitFunc: func(hash string) (*gitbackend.Commit, error) {
			if c, ok := byHash[hash]; ok {
				return c, nil
			}
			return nil, gitbackend.ErrObjectNotFound
		},
	}
	f.startLogStreamFunc = func([]string) (gitbackend.LogStream, error) {
		return &sliceLogStream{commits: commits}, nil
	}
	return f, byHash
}
