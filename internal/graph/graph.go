// Package graph lays out a window of commits into lanes and connector edges
// for a vertical commit graph, and resolves which branch a commit belongs to.
//
// Layout is recomputed from scratch for every page of commits; nothing here
// is incremental.
package graph

import (
	"cmp"
	"slices"
)

// Palette is the ordered lane colour cycle. Lane n uses Palette[n%len(Palette)].
var Palette = [...]string{
	"#2563eb", // blue
	"#16a34a", // green
	"#ea580c", // orange
	"#9333ea", // purple
	"#dc2626", // red
	"#0891b2", // cyan
	"#ca8a04", // amber
	"#db2777", // pink
	"#4d7c0f", // olive
	"#6b7280", // grey
}

// Commit is a single commit as returned by the repository service. The slice
// order of a commit window is topological, newest first.
type Commit struct {
	SHA      string   `json:"sha"`
	Parents  []string `json:"parents"`
	Message  string   `json:"message"`
	Author   string   `json:"author"`
	Date     string   `json:"date"`
	ShortSHA string   `json:"short_sha"`
}

// BranchRef is a branch pointing at a tip commit.
type BranchRef struct {
	Name      string `json:"name"`
	SHA       string `json:"sha"`
	IsCurrent bool   `json:"is_current"`
	IsRemote  bool   `json:"is_remote"`
}

// BranchLane is a branch with its assigned lane and colour.
type BranchLane struct {
	Name      string `json:"name"`
	Lane      int    `json:"lane"`
	Color     string `json:"color"`
	SHA       string `json:"sha"`
	IsCurrent bool   `json:"is_current"`
	IsRemote  bool   `json:"is_remote"`
}

// ForkEdge connects a commit row to one of its parent rows.
type ForkEdge struct {
	FromRow  int  `json:"from_row"`
	FromLane int  `json:"from_lane"`
	ToRow    int  `json:"to_row"`
	ToLane   int  `json:"to_lane"`
	IsMerge  bool `json:"is_merge"`
}

func LaneColor(lane int) string {
	if lane < 0 {
		lane = -lane
	}
	return Palette[lane%len(Palette)]
}

func branchRank(b BranchRef) int {
	switch {
	case b.IsCurrent:
		return 0
	case !b.IsRemote:
		return 1
	default:
		return 2
	}
}

// SortBranches orders refs by priority: current branch, then local branches,
// then remote branches. The input order is kept within each group.
func SortBranches(refs []BranchRef) []BranchRef {
	sorted := slices.Clone(refs)
	slices.SortStableFunc(sorted, func(a, b BranchRef) int {
		return cmp.Compare(branchRank(a), branchRank(b))
	})
	return sorted
}

// AssignBranchLanes gives every branch a lane, counting up from 0 per distinct
// tip. Branches sharing a tip share a lane. Refs without a tip are dropped.
func AssignBranchLanes(sorted []BranchRef) []BranchLane {
	laneByTip := make(map[string]int, len(sorted))
	out := make([]BranchLane, 0, len(sorted))
	next := 0
	for _, b := range sorted {
		if b.SHA == "" {
			continue
		}
		lane, ok := laneByTip[b.SHA]
		if !ok {
			lane = next
			laneByTip[b.SHA] = lane
			next++
		}
		out = append(out, BranchLane{
			Name:      b.Name,
			Lane:      lane,
			Color:     LaneColor(lane),
			SHA:       b.SHA,
			IsCurrent: b.IsCurrent,
			IsRemote:  b.IsRemote,
		})
	}
	return out
}

func indexCommits(commits []Commit) map[string]int {
	rows := make(map[string]int, len(commits))
	for i, c := range commits {
		if _, ok := rows[c.SHA]; ok {
			continue
		}
		rows[c.SHA] = i
	}
	return rows
}

// WalkCommitLanes claims commits for branch lanes by following first parents
// from every tip, in lane-list order. A walk stops at the first parent that is
// outside the window or already claimed, so earlier branches win. Commits left
// unclaimed all land on a single fallback lane, one past the highest branch lane.
func WalkCommitLanes(commits []Commit, lanes []BranchLane) (map[string]int, int) {
	rows := indexCommits(commits)
	assigned := make(map[string]int, len(commits))
	maxLane := -1
	for _, bl := range lanes {
		maxLane = max(maxLane, bl.Lane)
		sha := bl.SHA
		for {
			row, ok := rows[sha]
			if !ok {
				break
			}
			if _, claimed := assigned[sha]; claimed {
				break
			}
			assigned[sha] = bl.Lane
			parents := commits[row].Parents
			if len(parents) == 0 {
				break
			}
			sha = parents[0]
		}
	}
	fallback := maxLane + 1
	for _, c := range commits {
		if _, ok := assigned[c.SHA]; !ok {
			assigned[c.SHA] = fallback
		}
	}
	return assigned, fallback
}

// BuildEdges emits a connector for every parent inside the window whose lane
// differs from the child's, and for every non-first parent. Same-lane
// first-parent links are left to the lane line.
func BuildEdges(commits []Commit, commitLane map[string]int) []ForkEdge {
	rows := indexCommits(commits)
	var edges []ForkEdge
	for row, c := range commits {
		if rows[c.SHA] != row {
			continue
		}
		fromLane := commitLane[c.SHA]
		for i, parent := range c.Parents {
			toRow, ok := rows[parent]
			if !ok {
				continue
			}
			toLane := commitLane[parent]
			if i == 0 && toLane == fromLane {
				continue
			}
			edges = append(edges, ForkEdge{
				FromRow:  row,
				FromLane: fromLane,
				ToRow:    toRow,
				ToLane:   toLane,
				IsMerge:  i > 0,
			})
		}
	}
	return edges
}

// AppendCommits appends page to existing, skipping commits already loaded.
func AppendCommits(existing, page []Commit) []Commit {
	seen := make(map[string]struct{}, len(existing)+len(page))
	for _, c := range existing {
		seen[c.SHA] = struct{}{}
	}
	out := slices.Clip(existing)
	for _, c := range page {
		if _, ok := seen[c.SHA]; ok {
			continue
		}
		seen[c.SHA] = struct{}{}
		out = append(out, c)
	}
	return out
}
