package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/umbralabs/twophase/internal/fancy"
	"github.com/umbralabs/twophase/internal/scenario"
	"github.com/urfave/cli/v3"
)

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "Validate a scenario file",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() < 1 {
			return fmt.Errorf("scenario file path required")
		}

		path := cmd.Args().Get(0)
		s, err := scenario.LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}

		fmt.Printf("Scenario file %s is valid\n\n", path)
		fmt.Println(scenarioTree(s))
		return nil
	},
}

// scenarioTree renders a scenario as a styled tree for terminal output.
func scenarioTree(s scenario.Scenario) string {
	t := fancy.Tree()
	t.Root(fancy.RootStyle.Render("scenario"))
	t.Child(fancy.InfoStyle.Render("client: ") + fancy.ClientText(s.Client))

	branch := fancy.BranchNode("participants", fmt.Sprintf("(%d)", len(s.Participants)))
	for _, p := range s.Participants {
		node := tree.New().Root(fancy.ParticipantText(p.Name) +
			fancy.InfoStyle.Render(" votes ") + fancy.PhaseText(voteLabel(p.Vote)))
		for _, w := range p.Writes {
			node.Child(fancy.KeyText(w.Key) + fancy.InfoStyle.Render(" = ") + w.Value)
		}
		branch.Child(node)
	}
	t.Child(branch)

	return t.String()
}

func voteLabel(vote string) string {
	if vote == scenario.VoteAbort {
		return "aborted"
	}
	return "committed"
}
