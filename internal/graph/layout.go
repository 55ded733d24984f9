package graph

// Layout is the computed lane assignment and edge set for one commit window.
type Layout struct {
	Commits      []Commit
	Lanes        []BranchLane
	Edges        []ForkEdge
	FallbackLane int

	rows       map[string]int
	commitLane map[string]int
}

// ComputeLayout runs the full pipeline over a commit window: branch priority
// sort, lane assignment, first-parent walks and edge building.
func ComputeLayout(commits []Commit, refs []BranchRef) *Layout {
	lanes := AssignBranchLanes(SortBranches(refs))
	commitLane, fallback := WalkCommitLanes(commits, lanes)
	return &Layout{
		Commits:      commits,
		Lanes:        lanes,
		Edges:        BuildEdges(commits, commitLane),
		FallbackLane: fallback,
		rows:         indexCommits(commits),
		commitLane:   commitLane,
	}
}

// Row returns the row of sha in the window.
func (l *Layout) Row(sha string) (int, bool) {
	if l == nil {
		return 0, false
	}
	row, ok := l.rows[sha]
	return row, ok
}

// Lane returns the lane sha was assigned to.
func (l *Layout) Lane(sha string) (int, bool) {
	if l == nil {
		return 0, false
	}
	lane, ok := l.commitLane[sha]
	return lane, ok
}

// Width is the number of lane columns needed to draw the window.
func (l *Layout) Width() int {
	if l == nil {
		return 0
	}
	width := 0
	for _, lane := range l.commitLane {
		width = max(width, lane+1)
	}
	for _, bl := range l.Lanes {
		width = max(width, bl.Lane+1)
	}
	return width
}

// TipLabels maps tip commits to the branches pointing at them, in lane order.
func (l *Layout) TipLabels() map[string][]BranchLane {
	labels := map[string][]BranchLane{}
	if l == nil {
		return labels
	}
	for _, bl := range l.Lanes {
		labels[bl.SHA] = append(labels[bl.SHA], bl)
	}
	return labels
}

// LabelsAt returns the names of the branches whose tip is sha, in lane order.
func (l *Layout) LabelsAt(sha string) []string {
	if l == nil {
		return nil
	}
	var names []string
	for _, bl := range l.Lanes {
		if bl.SHA == sha {
			names = append(names, bl.Name)
		}
	}
	return names
}

// Candidate is a branch whose first-parent history reaches a commit.
// Distance is the number of first-parent steps from the tip to the commit.
type Candidate struct {
	Branch   BranchLane `json:"branch"`
	Distance int        `json:"distance"`
}

// Candidates returns every branch whose first-parent walk from its tip reaches
// sha within the loaded window, in lane-list order. Unlike lane claiming, the
// walk does not stop at commits owned by other branches.
func (l *Layout) Candidates(sha string) []Candidate {
	if l == nil {
		return nil
	}
	if _, ok := l.rows[sha]; !ok {
		return nil
	}
	var out []Candidate
	for _, bl := range l.Lanes {
		if dist, ok := l.firstParentDistance(bl.SHA, sha); ok {
			out = append(out, Candidate{Branch: bl, Distance: dist})
		}
	}
	return out
}

func (l *Layout) firstParentDistance(from, target string) (int, bool) {
	cur := from
	// A well formed history cannot revisit a commit; the bound guards bad input.
	for steps := 0; steps <= len(l.Commits); steps++ {
		if cur == target {
			return steps, true
		}
		row, ok := l.rows[cur]
		if !ok {
			return 0, false
		}
		parents := l.Commits[row].Parents
		if len(parents) == 0 {
			return 0, false
		}
		cur = parents[0]
	}
	return 0, false
}

// Resolution is the outcome of attributing a clicked commit to a branch.
type Resolution struct {
	SHA        string      `json:"sha"`
	Candidates []Candidate `json:"candidates"`
	Selected   BranchLane  `json:"selected"`
	// Ambiguous is set when more than one branch reaches the commit and the
	// user should confirm the pre-selected one.
	Ambiguous bool `json:"ambiguous"`
	// Fallback is set when no branch reaches the commit and Selected is just
	// the first branch in the lane list.
	Fallback bool `json:"fallback"`
}

// Disambiguate picks the branch a commit most likely belongs to. With several
// candidates it prefers the one drawn in the commit's own lane, then the one
// with the longest first-parent walk. It reports false when sha is not in the
// window or there are no branches at all.
func (l *Layout) Disambiguate(sha string) (Resolution, bool) {
	if l == nil {
		return Resolution{}, false
	}
	if _, ok := l.rows[sha]; !ok {
		return Resolution{}, false
	}
	res := Resolution{SHA: sha, Candidates: l.Candidates(sha)}
	switch len(res.Candidates) {
	case 0:
		if len(l.Lanes) == 0 {
			return res, false
		}
		res.Selected = l.Lanes[0]
		res.Fallback = true
	case 1:
		res.Selected = res.Candidates[0].Branch
	default:
		res.Ambiguous = true
		res.Selected = preselect(res.Candidates, l.commitLane[sha])
	}
	return res, true
}

func preselect(candidates []Candidate, lane int) BranchLane {
	for _, c := range candidates {
		if c.Branch.Lane == lane {
			return c.Branch
		}
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Distance > best.Distance {
			best = c
		}
	}
	return best.Branch
}
