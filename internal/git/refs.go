package git

import (
	"cmp"
	"slices"
	"strings"

	gitbackend "github.com/thiagokokada/revgraph/internal/git/backend"
	"github.com/thiagokokada/revgraph/internal/graph"
)

// branchRefs lists local branches, and remote ones when asked, sorted by
// name. A detached HEAD is reported as a current branch named "HEAD".
func (s *Service) branchRefs(includeRemotes bool) ([]graph.BranchRef, error) {
	branches := []graph.BranchRef{}
	if s.backend == nil || s.backend.RepoPath() == "" {
		return branches, nil
	}
	refs, err := s.backend.ListRefs()
	if err != nil {
		return nil, err
	}
	headHash, headName, headOK, err := s.backend.HeadState()
	if err != nil {
		return nil, err
	}

	for _, ref := range refs {
		if ref.Hash == "" || ref.Name == "" {
			continue
		}
		switch ref.Kind {
		case gitbackend.RefKindBranch:
			branches = append(branches, graph.BranchRef{
				Name:      ref.Name,
				SHA:       ref.Hash,
				IsCurrent: headOK && headName == ref.Name,
			})
		case gitbackend.RefKindRemoteBranch:
			if !includeRemotes || strings.HasSuffix(ref.Name, "/HEAD") {
				continue
			}
			branches = append(branches, graph.BranchRef{Name: ref.Name, SHA: ref.Hash, IsRemote: true})
		}
	}
	slices.SortStableFunc(branches, func(a, b graph.BranchRef) int {
		return cmp.Compare(a.Name, b.Name)
	})
	if headOK && headName == "HEAD" && headHash != "" {
		branches = append([]graph.BranchRef{{Name: "HEAD", SHA: headHash, IsCurrent: true}}, branches...)
	}
	return branches, nil
}

// branchTips returns the distinct tip hashes in branch order.
func branchTips(branches []graph.BranchRef) []string {
	seen := make(map[string]struct{}, len(branches))
	tips := make([]string, 0, len(branches))
	for _, b := range branches {
		if _, ok := seen[b.SHA]; ok {
			continue
		}
		seen[b.SHA] = struct{}{}
		tips = append(tips, b.SHA)
	}
	return tips
}

func findBranch(branches []graph.BranchRef, name string) (graph.BranchRef, bool) {
	for _, b := range branches {
		if b.Name == name {
			return b, true
		}
	}
	return graph.BranchRef{}, false
}
