// Package render turns a graph.Layout into something a person can look at:
// a vector scene (drawn as SVG) or coloured terminal text.
package render

import (
	"strings"
	"unicode/utf8"

	"github.com/thiagokokada/revgraph/internal/graph"
)

const (
	LaneSpacing = 16.0
	RowHeight   = 24.0
	MarginX     = 12.0
	MarginY     = 12.0
	NodeRadius  = 5.0
	LineWidth   = 2.0

	labelGap       = 6.0
	labelPadX      = 5.0
	labelHeight    = 16.0
	labelCharWidth = 7.0
	textCharWidth  = 7.5
)

type Line struct {
	X1, Y1, X2, Y2 float64
	Color          string
	Dashed         bool
}

// Curve is a cubic Bezier from (X1,Y1) to (X2,Y2).
type Curve struct {
	X1, Y1   float64
	C1X, C1Y float64
	C2X, C2Y float64
	X2, Y2   float64
	Color    string
	Dashed   bool
}

type Node struct {
	X, Y, R float64
	SHA     string
	Stroke  string
	Fill    string
}

// Label is a branch name pill drawn right of a tip node, joined to it by a
// connector when it does not touch the node.
type Label struct {
	X, Y, W, H float64
	Text       string
	Fill       string
	Stroke     string
	TextColor  string
	Current    bool
	ConnectX   float64
}

// RowText is the per-commit caption drawn after the graph and labels.
type RowText struct {
	X, Y     float64
	SHA      string
	ShortSHA string
	Subject  string
}

type Band struct {
	Y, H  float64
	Color string
}

type Scene struct {
	Width, Height float64
	Background    string
	Foreground    string
	Muted         string
	Selected      *Band
	Lines         []Line
	Curves        []Curve
	Nodes         []Node
	Labels        []Label
	Rows          []RowText
}

func laneX(lane int) float64 {
	return MarginX + float64(lane)*LaneSpacing + LaneSpacing/2
}

func rowY(row int) float64 {
	return MarginY + float64(row)*RowHeight + RowHeight/2
}

// Build lays out the scene for layout. A nil layout gives an empty scene
// with only margins.
func Build(layout *graph.Layout, theme Theme) Scene {
	s := Scene{
		Background: theme.Background,
		Foreground: theme.Foreground,
		Muted:      theme.Muted,
	}
	rows := 0
	width := 0
	if layout != nil {
		rows = len(layout.Commits)
		width = layout.Width()
	}
	graphRight := MarginX + float64(width)*LaneSpacing
	s.Height = 2*MarginY + float64(rows)*RowHeight
	s.Width = graphRight + MarginX
	if layout == nil || rows == 0 {
		return s
	}

	bottom := s.Height - MarginY
	for row, c := range layout.Commits {
		if r, _ := layout.Row(c.SHA); r != row {
			continue
		}
		lane, _ := layout.Lane(c.SHA)
		if len(c.Parents) == 0 {
			continue
		}
		x := laneX(lane)
		parentRow, ok := layout.Row(c.Parents[0])
		if !ok {
			// First parent lies beyond the loaded window.
			s.Lines = append(s.Lines, Line{X1: x, Y1: rowY(row), X2: x, Y2: bottom, Color: graph.LaneColor(lane), Dashed: true})
			continue
		}
		if parentLane, _ := layout.Lane(c.Parents[0]); parentLane == lane {
			s.Lines = append(s.Lines, Line{X1: x, Y1: rowY(row), X2: x, Y2: rowY(parentRow), Color: graph.LaneColor(lane)})
		}
	}

	for _, e := range layout.Edges {
		x1, y1 := laneX(e.FromLane), rowY(e.FromRow)
		x2, y2 := laneX(e.ToLane), rowY(e.ToRow)
		midY := (y1 + y2) / 2
		color := graph.LaneColor(e.FromLane)
		if e.IsMerge {
			color = graph.LaneColor(e.ToLane)
		}
		s.Curves = append(s.Curves, Curve{
			X1: x1, Y1: y1,
			C1X: x1, C1Y: midY,
			C2X: x2, C2Y: midY,
			X2: x2, Y2: y2,
			Color:  color,
			Dashed: e.IsMerge,
		})
	}

	tips := layout.TipLabels()
	textX := graphRight + labelGap
	for row, c := range layout.Commits {
		lane, _ := layout.Lane(c.SHA)
		x, y := laneX(lane), rowY(row)
		node := Node{X: x, Y: y, R: NodeRadius, SHA: c.SHA, Stroke: graph.LaneColor(lane), Fill: theme.NodeFill}
		labelX := max(graphRight+labelGap, x+NodeRadius+labelGap)
		connected := false
		for _, bl := range tips[c.SHA] {
			if bl.IsCurrent {
				node.Fill = theme.HeadFill
			}
			st := theme.labelStyleFor(bl.IsCurrent, bl.IsRemote, bl.Color)
			w := float64(utf8.RuneCountInString(bl.Name))*labelCharWidth + 2*labelPadX
			label := Label{
				X: labelX, Y: y - labelHeight/2, W: w, H: labelHeight,
				Text:      bl.Name,
				Fill:      st.Fill,
				Stroke:    st.Stroke,
				TextColor: st.Text,
				Current:   bl.IsCurrent,
			}
			if !connected && labelX > x+NodeRadius {
				connected = true
				label.ConnectX = x + NodeRadius
			}
			s.Labels = append(s.Labels, label)
			labelX += w + labelGap
		}
		textX = max(textX, labelX)
		s.Nodes = append(s.Nodes, node)
	}

	right := textX
	for row, c := range layout.Commits {
		rt := RowText{X: textX, Y: rowY(row), SHA: c.SHA, ShortSHA: c.ShortSHA, Subject: subject(c.Message)}
		s.Rows = append(s.Rows, rt)
		right = max(right, textX+float64(utf8.RuneCountInString(rt.ShortSHA)+1+utf8.RuneCountInString(rt.Subject))*textCharWidth)
	}
	s.Width = right + MarginX
	return s
}

// Select highlights the row of sha. It reports false when sha is not in the
// layout, leaving the scene untouched.
func (s *Scene) Select(layout *graph.Layout, sha string, theme Theme) bool {
	row, ok := layout.Row(sha)
	if !ok {
		return false
	}
	s.Selected = &Band{Y: MarginY + float64(row)*RowHeight, H: RowHeight, Color: theme.SelectedRow}
	return true
}

func subject(msg string) string {
	first, _, _ := strings.Cut(msg, "\n")
	return first
}
