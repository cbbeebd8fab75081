package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/sortie/pkg/blackboard"
)

// EventSource delivers mission events. blackboard.EventSubscription satisfies it.
type EventSource interface {
	Events() <-chan *blackboard.MissionEvent
	Errors() <-chan error
}

// AssignmentGetter reads one recipient's assignment.
type AssignmentGetter interface {
	GetAssignment(ctx context.Context, recipient string) (*blackboard.Assignment, error)
}

// StreamEvents writes events from src to w until ctx is done or src closes.
// With jsonl set every event is written as one JSON line, otherwise as a
// human-readable line. Subscription errors are reported inline and skipped.
// Stops early once stopAfterAssignments assignment events were seen (0 = never).
func StreamEvents(ctx context.Context, src EventSource, w io.Writer, jsonl bool, stopAfterAssignments int) error {
	assignments := 0
	events, errs := src.Events(), src.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(w, "⚠️  %v\n", err)

		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if jsonl {
				data, err := json.Marshal(ev)
				if err != nil {
					return fmt.Errorf("failed to marshal event: %w", err)
				}
				fmt.Fprintf(w, "%s\n", data)
			} else {
				fmt.Fprintf(w, "%s %s\n", formatTime(ev.CreatedAtMs), FormatEvent(ev))
			}

			if ev.Type == blackboard.EventAssignment {
				assignments++
				if stopAfterAssignments > 0 && assignments >= stopAfterAssignments {
					return nil
				}
			}
		}
	}
}

// FormatEvent renders an event as a single line without timestamp.
func FormatEvent(ev *blackboard.MissionEvent) string {
	switch ev.Type {
	case blackboard.EventWorldView:
		return fmt.Sprintf("🗺️  World view: agent=%s targets=%d", ev.AgentID, ev.Count)
	case blackboard.EventMerged:
		return fmt.Sprintf("🔀 Merged world: targets=%d", ev.Count)
	case blackboard.EventSyncReport:
		return fmt.Sprintf("📊 Sync report: leader=%s unique=%d run=%s", ev.AgentID, ev.Count, shortID(ev.RefID))
	case blackboard.EventAssignment:
		return fmt.Sprintf("🚑 Assignment: to=%s targets=%d id=%s", ev.AgentID, ev.Count, shortID(ev.RefID))
	default:
		return fmt.Sprintf("❓ %s: agent=%s count=%d", ev.Type, ev.AgentID, ev.Count)
	}
}

// PollForAssignment polls every 200ms until recipient has an assignment.
// Returns an error if timeout elapses first.
func PollForAssignment(ctx context.Context, client AssignmentGetter, recipient string, timeout time.Duration) (*blackboard.Assignment, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for assignment of %s after %v", recipient, timeout)

		case <-ticker.C:
			a, err := client.GetAssignment(ctx, recipient)
			if err != nil {
				if blackboard.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query for assignment: %w", err)
			}
			return a, nil
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "--:--:--.---"
	}
	return time.UnixMilli(ms).Format("15:04:05.000")
}
