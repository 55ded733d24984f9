package git

import (
	"errors"
	"fmt"
	"path/filepath"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	gitbackend "github.com/thiagokokada/revgraph/internal/git/backend"
)

type nativeBackend struct {
	path string
	repo *gitlib.Repository
}

func openNative(repoPath string) (gitbackend.Backend, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	root := abs
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	return &nativeBackend{path: root, repo: repo}, nil
}

func (n *nativeBackend) RepoPath() string {
	return n.path
}

func (n *nativeBackend) HeadState() (string, string, bool, error) {
	ref, err := n.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("resolve HEAD: %w", err)
	}
	name := "HEAD"
	if ref.Name().IsBranch() {
		name = ref.Name().Short()
	}
	return ref.Hash().String(), name, true, nil
}

func (n *nativeBackend) ListRefs() ([]gitbackend.Ref, error) {
	iter, err := n.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer iter.Close()

	var refs []gitbackend.Ref
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		hash := ref.Hash()
		var kind gitbackend.RefKind
		switch {
		case name.IsBranch():
			kind = gitbackend.RefKindBranch
		case name.IsRemote():
			kind = gitbackend.RefKindRemoteBranch
		case name.IsTag():
			kind = gitbackend.RefKindTag
			if tag, err := n.repo.TagObject(hash); err == nil && tag.TargetType == plumbing.CommitObject {
				hash = tag.Target
			}
		default:
			return nil
		}
		refs = append(refs, gitbackend.Ref{Hash: hash.String(), Kind: kind, Name: name.Short()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	return refs, nil
}

func (n *nativeBackend) resolve(rev string) (plumbing.Hash, error) {
	if plumbing.IsHash(rev) {
		return plumbing.NewHash(rev), nil
	}
	h, err := n.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve %q: %w", rev, gitbackend.ErrObjectNotFound)
	}
	return *h, nil
}

func (n *nativeBackend) commitObject(rev string) (*object.Commit, error) {
	h, err := n.resolve(rev)
	if err != nil {
		return nil, err
	}
	c, err := n.repo.CommitObject(h)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("read commit %s: %w", rev, gitbackend.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("read commit %s: %w", rev, err)
	}
	return c, nil
}

func (n *nativeBackend) ReadCommit(hash string) (*gitbackend.Commit, error) {
	c, err := n.commitObject(hash)
	if err != nil {
		return nil, err
	}
	return convertCommit(c), nil
}

func (n *nativeBackend) LocalChangesStatus() (gitbackend.LocalChanges, error) {
	var res gitbackend.LocalChanges
	wt, err := n.repo.Worktree()
	if err != nil {
		if errors.Is(err, gitlib.ErrIsBareRepository) {
			return res, nil
		}
		return res, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return res, fmt.Errorf("worktree status: %w", err)
	}
	for _, fs := range status {
		if fs.Staging != gitlib.Unmodified && fs.Staging != gitlib.Untracked {
			res.HasStaged = true
		}
		if fs.Worktree != gitlib.Unmodified && fs.Worktree != gitlib.Untracked {
			res.HasWorktree = true
		}
	}
	return res, nil
}

func convertCommit(c *object.Commit) *gitbackend.Commit {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return &gitbackend.Commit{
		Hash:         c.Hash.String(),
		ParentHashes: parents,
		Author: gitbackend.Signature{
			Name:  c.Author.Name,
			Email: c.Author.Email,
			When:  c.Author.When,
		},
		Committer: gitbackend.Signature{
			Name:  c.Committer.Name,
			Email: c.Committer.Email,
			When:  c.Committer.When,
		},
		Message: c.Message,
	}
}
