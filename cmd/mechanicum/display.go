package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/guardian"
	"github.com/questlog/mechanicum/internal/types"
)

// printJSON writes v as indented JSON to stdout for the --json escape
// hatch on read commands.
func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// healthColor returns the sprint func conventionally used for a health
// status: green healthy, yellow warning, bold red critical.
func healthColor(s types.HealthStatus) func(a ...interface{}) string {
	switch s {
	case types.HealthCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case types.HealthWarning:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgGreen).SprintFunc()
	}
}

// priorityLabel renders a priority in its conventional color.
func priorityLabel(p types.Priority) string {
	switch p {
	case types.PriorityCritical:
		return color.New(color.FgRed, color.Bold).Sprint(string(p))
	case types.PriorityHigh:
		return color.New(color.FgYellow).Sprint(string(p))
	default:
		return color.New(color.FgGreen).Sprint(string(p))
	}
}

// renderSweepSummary prints one sweep result in the standard layout
// shared by the sweep and review commands.
func renderSweepSummary(summary *guardian.SweepSummary) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s (%s, %s)\n\n", cyan("Sweep complete"), summary.Kind, summary.Duration.Round(time.Millisecond))
	fmt.Printf("  Checks run:   %d\n", summary.ChecksRun)
	fmt.Printf("  Issues:       %s\n", issueList(summary.IssuesFound))
	fmt.Printf("  Repairs:      %d applied, %d queued for review\n",
		summary.RepairsApplied, summary.SuggestionsQueued)
	if summary.AlertsShown > 0 {
		fmt.Printf("  Alerts:       %d shown\n", summary.AlertsShown)
	}
	if len(summary.Failures) > 0 {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("  Failures:     %s\n", red(strings.Join(summary.Failures, "; ")))
	}
	fmt.Printf("  Status:       %s\n\n", healthColor(summary.Status)(string(summary.Status)))
}

func issueList(issues []string) string {
	if len(issues) == 0 {
		return "none"
	}
	return strings.Join(issues, ", ")
}

// renderEvent prints one guardian event line. Quiet lifecycle events
// stay gray so findings and repairs stand out in the watch stream.
func renderEvent(ev events.GuardianEvent) {
	gray := color.New(color.FgHiBlack).SprintFunc()

	glyph := gray("·")
	switch ev.Type {
	case events.EventTypeIssueDetected:
		glyph = color.New(color.FgYellow).Sprint("●")
	case events.EventTypeRepairApplied, events.EventTypeRepairCommitted:
		glyph = color.New(color.FgGreen).Sprint("✓")
	case events.EventTypeRepairSimulated:
		glyph = color.New(color.FgCyan).Sprint("→")
	case events.EventTypeSuggestionCreated:
		glyph = color.New(color.FgYellow).Sprint("?")
	case events.EventTypeEscalationRecommended:
		glyph = color.New(color.FgRed).Sprint("!")
	case events.EventTypeCheckLearned, events.EventTypeRepairLearned:
		glyph = color.New(color.FgMagenta).Sprint("+")
	}

	text := ev.Issue
	if ev.Action != "" {
		if text != "" {
			text += ": "
		}
		text += ev.Action
	}
	if ev.RecordID != "" {
		text += gray(" ["+ev.RecordID+"]")
	}
	fmt.Printf("%s %s %s %s\n",
		gray(ev.Timestamp.Format("15:04:05")), glyph, ev.Type, text)
}
