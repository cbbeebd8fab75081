package report

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/sortie/internal/filter"
	"github.com/dyluth/sortie/pkg/blackboard"
)

// OutputFormat selects how listed records are rendered.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSONL   OutputFormat = "jsonl"
)

// ParseOutputFormat accepts "default" or "jsonl".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

// AssignmentLister is the read side of the blackboard used for listing.
type AssignmentLister interface {
	InstanceName() string
	ListAssignments(ctx context.Context) ([]*blackboard.Assignment, error)
}

// ListAssignments reads the stored assignments, keeps those matching filters
// (nil keeps all) and writes them in the requested format, ordered by group.
func ListAssignments(ctx context.Context, client AssignmentLister, format OutputFormat, filters *filter.Criteria, w io.Writer) error {
	assignments, err := client.ListAssignments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list assignments: %w", err)
	}
	assignments = filters.Apply(assignments)
	SortAssignments(assignments)

	switch format {
	case OutputFormatDefault:
		FormatAssignments(w, assignments, client.InstanceName())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, assignments); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}
