package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/sortie/pkg/blackboard"
)

// MinShortIDLength is the shortest prefix accepted for an assignment ID.
const MinShortIDLength = 6

// AssignmentLister lists the stored assignments of an instance.
type AssignmentLister interface {
	ListAssignments(ctx context.Context) ([]*blackboard.Assignment, error)
}

// ResolveAssignment finds the assignment whose ID is id or starts with id.
// A full UUID must match exactly; a prefix must be at least MinShortIDLength
// characters and match exactly one assignment.
func ResolveAssignment(ctx context.Context, client AssignmentLister, id string) (*blackboard.Assignment, error) {
	full := len(id) == 36 && strings.Count(id, "-") == 4
	if !full && len(id) < MinShortIDLength {
		return nil, fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(id))
	}

	assignments, err := client.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search for assignment: %w", err)
	}

	var matches []*blackboard.Assignment
	for _, a := range assignments {
		if a.ID == id || (!full && strings.HasPrefix(a.ID, id)) {
			matches = append(matches, a)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &NotFoundError{ShortID: id}
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, &AmbiguousError{ShortID: id, Matches: ids}
	}
}

// NotFoundError indicates no assignment matched.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no assignments found matching '%s'", e.ShortID)
}

// AmbiguousError indicates several assignments matched a prefix.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d assignments", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists up to ten matching IDs for display.
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d assignments:\n", err.ShortID, len(err.Matches))

	shown := min(len(err.Matches), 10)
	for _, id := range err.Matches[:shown] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(err.Matches) > shown {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-shown)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the assignment.")
	return b.String()
}
