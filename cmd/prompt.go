package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/thiagokokada/revgraph/internal/graph"
)

// promptBranch asks which branch an ambiguous commit should be reviewed on,
// starting from the pre-selected one.
var promptBranch = func(res graph.Resolution) (string, error) {
	choice := res.Selected.Name
	options := make([]huh.Option[string], 0, len(res.Candidates))
	for _, c := range res.Candidates {
		label := fmt.Sprintf("%s (%d commits from tip)", c.Branch.Name, c.Distance)
		options = append(options, huh.NewOption(label, c.Branch.Name))
	}
	short := res.SHA
	if len(short) > 7 {
		short = short[:7]
	}
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Commit %s is on several branches", short)).
			Description("Pick the branch to review.").
			Options(options...).
			Value(&choice),
	)).Run()
	if err != nil {
		return "", fmt.Errorf("choose branch: %w", err)
	}
	return choice, nil
}
