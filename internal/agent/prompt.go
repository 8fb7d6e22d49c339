package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rahul/robodriver/internal/browser"
)

// turnPrompt renders the goal, a condensed history and the current page.
// Earlier snapshots are reduced to their one-line brief.
func turnPrompt(goal string, history []StepRecord, snap *browser.PageSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "GOAL: %q\n\n", goal)

	b.WriteString("HISTORY:\n")
	if len(history) == 0 {
		b.WriteString("  (no steps taken yet)\n")
	}
	for _, rec := range history {
		act, _ := json.Marshal(rec.Action)
		status := "ok"
		if !rec.Outcome.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "  %d. on %s: %s -> %s: %s\n", rec.Step, rec.Snapshot, act, status, rec.Outcome.Message)
	}

	b.WriteString("\nCURRENT PAGE:\n")
	fmt.Fprintf(&b, "  URL: %s\n", orUnknown(snap.URL))
	fmt.Fprintf(&b, "  Title: %s\n", orUnknown(snap.Title))
	if snap.Summary != "" {
		fmt.Fprintf(&b, "  Text: %s\n", snap.Summary)
	}

	b.WriteString("\nINTERACTIVE ELEMENTS:\n")
	if len(snap.Elements) == 0 {
		b.WriteString("  (no elements found)\n")
	}
	for _, el := range snap.Elements {
		b.WriteString("  " + describeElement(el) + "\n")
	}
	if snap.Omitted > 0 {
		fmt.Fprintf(&b, "  (%d more elements not shown)\n", snap.Omitted)
	}

	b.WriteString("\nWhat is the next single action? Reply with one JSON object.")
	return b.String()
}

func describeElement(el browser.ElementDescriptor) string {
	parts := []string{fmt.Sprintf("[%d] %s", el.Index, el.Role)}
	if el.Name != "" {
		parts = append(parts, fmt.Sprintf("%q", el.Name))
	}
	if el.Tag != "" && el.Tag != el.Role {
		parts = append(parts, "<"+el.Tag+">")
	}
	if el.InputType != "" {
		parts = append(parts, "type="+el.InputType)
	}
	if el.ID != "" {
		parts = append(parts, "id="+el.ID)
	}
	if el.Placeholder != "" {
		parts = append(parts, fmt.Sprintf("placeholder=%q", el.Placeholder))
	}
	if el.Disabled {
		parts = append(parts, "disabled")
	}
	return strings.Join(parts, " ")
}

func correctionPrompt(reason string) string {
	return fmt.Sprintf("Your previous reply was rejected: %s.\n"+
		"Reply again with exactly one JSON object using one of the listed action types and only its fields.", reason)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
