package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dyluth/sortie/internal/mission"
	"github.com/dyluth/sortie/pkg/blackboard"
)

// FormatAssignments writes assignments as a table.
// Columns: GROUP, RECIPIENT, TARGETS, TOP (first target and its survival), ID, AGE.
// Returns the number of assignments formatted.
func FormatAssignments(w io.Writer, assignments []*blackboard.Assignment, instanceName string) int {
	if len(assignments) == 0 {
		fmt.Fprintf(w, "No assignments found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Assignments for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-5s %-18s %-7s %-16s %-8s %s\n",
		"GROUP", "RECIPIENT", "TARGETS", "TOP", "ID", "AGE")
	fmt.Fprintf(w, "%-5s %-18s %-7s %-16s %-8s %s\n",
		"-----", "------------------", "-------", "----------------", "--------", "--------")

	for _, a := range assignments {
		fmt.Fprintf(w, "%-5d %-18s %-7d %-16s %-8s %s\n",
			a.Group,
			formatName(a.Recipient, 18),
			len(a.Targets),
			formatTop(a.Targets),
			formatID(a.ID),
			formatTimestamp(a.CreatedAtMs),
		)
	}

	noun := "assignment"
	if len(assignments) != 1 {
		noun = "assignments"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(assignments), noun)

	return len(assignments)
}

// FormatJSONL writes one compact JSON object per line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes v as pretty-printed JSON followed by a newline.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// FormatSyncReport writes the explorer leader's synchronization report:
// per-peer counts, the union size and the overlap ratio with its derivation.
func FormatSyncReport(w io.Writer, r *blackboard.SyncReport) {
	if r == nil {
		fmt.Fprintln(w, "No synchronization took place")
		return
	}

	fmt.Fprintf(w, "Synchronization by %s (run %s)\n\n", r.LeaderID, formatID(r.RunID))
	fmt.Fprintf(w, "%-18s %s\n", "AGENT", "TARGETS")
	fmt.Fprintf(w, "%-18s %s\n", "------------------", "-------")
	for _, p := range r.PerPeer {
		count := fmt.Sprintf("%d", p.Targets)
		if p.Missing {
			count += " (missing)"
		}
		fmt.Fprintf(w, "%-18s %s\n", formatName(p.AgentID, 18), count)
	}

	fmt.Fprintf(w, "\nUnique targets:   %d\n", r.UniqueTargets)
	fmt.Fprintf(w, "Unique obstacles: %d\n", r.UniqueObstacles)
	fmt.Fprintf(w, "Overlap:          %.4f (%d / %d - 1)\n", r.Overlap, r.SumTargets, r.UniqueTargets)
}

// FormatSummary writes the outcome of a mission run.
func FormatSummary(w io.Writer, res *mission.Result) {
	status := "completed"
	if !res.Stats.Completed {
		status = "stopped"
	}
	fmt.Fprintf(w, "Mission %s %s after %d ticks\n\n", formatID(res.RunID), status, res.Stats.Ticks)

	fmt.Fprintf(w, "%-18s %-18s %-13s %-6s %-8s %-7s %-7s %s\n",
		"EXPLORER", "ROLE", "STATE", "HOST", "POSITION", "VISITED", "TARGETS", "BUDGET")
	for _, e := range res.Explorers {
		fmt.Fprintf(w, "%-18s %-18s %-13s %-6s %-8s %-7d %-7d %.1f\n",
			formatName(e.ID, 18), e.Role, e.State, e.Host, e.Position, e.Visited, e.Targets, e.Budget)
	}
	fmt.Fprintln(w)

	FormatSyncReport(w, res.Report)

	if len(res.Groups) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%-5s %-7s %s\n", "GROUP", "TARGETS", "ORDER")
	for _, g := range res.Groups {
		ids := make([]string, len(g.Targets))
		for i, t := range g.Targets {
			ids[i] = t.ID
		}
		fmt.Fprintf(w, "%-5d %-7d %v\n", g.Number, len(g.Targets), ids)
	}
}

// SortAssignments orders assignments by group, then recipient.
func SortAssignments(assignments []*blackboard.Assignment) {
	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].Group != assignments[j].Group {
			return assignments[i].Group < assignments[j].Group
		}
		return assignments[i].Recipient < assignments[j].Recipient
	})
}

// formatID truncates an ID to its first 8 characters.
func formatID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatName(name string, width int) string {
	if len(name) > width {
		return name[:width-3] + "..."
	}
	return name
}

func formatTop(targets []blackboard.TriagedTarget) string {
	if len(targets) == 0 {
		return "-"
	}
	t := targets[0]
	return fmt.Sprintf("%s@%.2f", formatName(t.ID, 10), t.Survival)
}

// formatTimestamp renders a millisecond timestamp as relative age ("2m ago").
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
