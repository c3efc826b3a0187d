package fancy

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// TransactionTree renders one transaction as a styled tree: the root names
// the transaction and its phase, participants still awaited are marked.
func TransactionTree(id, client, phase string, participants, awaiting []string) *tree.Tree {
	t := Tree()
	t.Root(lipgloss.JoinHorizontal(
		lipgloss.Top,
		RootStyle.Render(TruncateString(id, 36)),
		" ",
		PhaseText(phase),
	))

	t.Child(InfoStyle.Render("client: ") + ClientText(client))

	pending := make(map[string]struct{}, len(awaiting))
	for _, name := range awaiting {
		pending[name] = struct{}{}
	}

	branch := BranchNode("participants", fmt.Sprintf("(%d)", len(participants)))
	for _, name := range participants {
		label := ParticipantText(name)
		if _, waiting := pending[name]; waiting {
			label += " " + PendingStyle.Render("(awaiting)")
		}
		branch.Child(label)
	}
	t.Child(branch)

	return t
}

// StoreTree renders a participant's committed key/value pairs.
func StoreTree(name string, items [][2]string) *tree.Tree {
	t := Tree()
	t.Root(ParticipantText(name))

	if len(items) == 0 {
		t.Child(InfoStyle.Render("(empty)"))
		return t
	}
	for _, kv := range items {
		t.Child(KeyText(kv[0]) + InfoStyle.Render(" = ") + kv[1])
	}
	return t
}
