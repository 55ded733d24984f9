package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/thiagokokada/revgraph/internal/graph"
)

const (
	glyphNode     = "●"
	glyphHead     = "◉"
	glyphLane     = "│"
	glyphForkJoin = "╯"
	glyphMergeIn  = "╮"
)

type cell struct {
	glyph string
	lane  int
}

// laneGrid works out which glyph each lane column shows on each row.
func laneGrid(layout *graph.Layout) [][]cell {
	rows := len(layout.Commits)
	width := layout.Width()
	grid := make([][]cell, rows)
	for r := range grid {
		grid[r] = make([]cell, width)
	}
	mark := func(lane, from, to int, glyph string) {
		for r := max(from, 0); r < min(to, rows); r++ {
			if grid[r][lane].glyph == "" {
				grid[r][lane] = cell{glyph: glyph, lane: lane}
			}
		}
	}

	current := map[string]bool{}
	for _, bl := range layout.Lanes {
		if bl.IsCurrent {
			current[bl.SHA] = true
		}
	}
	for row, c := range layout.Commits {
		lane, _ := layout.Lane(c.SHA)
		glyph := glyphNode
		if current[c.SHA] {
			glyph = glyphHead
		}
		grid[row][lane] = cell{glyph: glyph, lane: lane}
	}
	for row, c := range layout.Commits {
		if len(c.Parents) == 0 {
			continue
		}
		lane, _ := layout.Lane(c.SHA)
		parentRow, ok := layout.Row(c.Parents[0])
		if !ok {
			mark(lane, row+1, rows, glyphLane)
			continue
		}
		if parentLane, _ := layout.Lane(c.Parents[0]); parentLane == lane {
			mark(lane, row+1, parentRow, glyphLane)
		}
	}
	for _, e := range layout.Edges {
		if e.IsMerge {
			mark(e.ToLane, e.FromRow, e.FromRow+1, glyphMergeIn)
			mark(e.ToLane, e.FromRow+1, e.ToRow, glyphLane)
			continue
		}
		mark(e.FromLane, e.FromRow+1, e.ToRow, glyphLane)
		mark(e.FromLane, e.ToRow, e.ToRow+1, glyphForkJoin)
	}
	return grid
}

// Text renders layout for a terminal: lane glyphs, short sha, branch labels
// and subject, one commit per line. Colours are dropped automatically when
// the output is not a terminal.
func Text(layout *graph.Layout, theme Theme) string {
	if layout == nil || len(layout.Commits) == 0 {
		return ""
	}
	grid := laneGrid(layout)
	tips := layout.TipLabels()
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted))
	laneStyles := map[int]lipgloss.Style{}
	laneStyle := func(lane int) lipgloss.Style {
		st, ok := laneStyles[lane]
		if !ok {
			st = lipgloss.NewStyle().Foreground(lipgloss.Color(graph.LaneColor(lane)))
			laneStyles[lane] = st
		}
		return st
	}

	var b strings.Builder
	for row, c := range layout.Commits {
		for _, cl := range grid[row] {
			if cl.glyph == "" {
				b.WriteString("  ")
				continue
			}
			b.WriteString(laneStyle(cl.lane).Render(cl.glyph))
			b.WriteByte(' ')
		}
		b.WriteString(muted.Render(c.ShortSHA))
		for _, bl := range tips[c.SHA] {
			st := theme.labelStyleFor(bl.IsCurrent, bl.IsRemote, bl.Color)
			pill := lipgloss.NewStyle().
				Foreground(lipgloss.Color(st.Text)).
				Background(lipgloss.Color(st.Fill)).
				Bold(bl.IsCurrent)
			b.WriteByte(' ')
			b.WriteString(pill.Render("[" + bl.Name + "]"))
		}
		b.WriteByte(' ')
		b.WriteString(subject(c.Message))
		b.WriteByte('\n')
	}
	return b.String()
}
