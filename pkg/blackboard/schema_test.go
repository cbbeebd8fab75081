package blackboard

import (
	"strings"
	"testing"
)

// TestWorldViewKey tests world view key generation
func TestWorldViewKey(t *testing.T) {
	key := WorldViewKey("mission-1", "EXPLORER_2")

	expected := "sortie:mission-1:worldview:EXPLORER_2"
	if key != expected {
		t.Errorf("WorldViewKey() = %q, expected %q", key, expected)
	}
}

// TestInstanceScopedKeys verifies every key carries the instance namespace
func TestInstanceScopedKeys(t *testing.T) {
	keys := map[string]string{
		"merged":      MergedViewKey("alpha"),
		"report":      SyncReportKey("alpha"),
		"assignment":  AssignmentKey("alpha", "RESCUER_1"),
		"assignments": AssignmentIndexKey("alpha"),
		"run":         AssignmentRunKey("alpha"),
		"events":      MissionEventsChannel("alpha"),
	}

	for name, key := range keys {
		if !strings.HasPrefix(key, "sortie:alpha:") {
			t.Errorf("%s key %q should start with 'sortie:alpha:'", name, key)
		}
	}

	if AssignmentKey("alpha", "RESCUER_1") == AssignmentKey("beta", "RESCUER_1") {
		t.Error("assignment keys for different instances must differ")
	}
	if MissionEventsChannel("alpha") != "sortie:alpha:mission_events" {
		t.Errorf("unexpected channel name %q", MissionEventsChannel("alpha"))
	}
}
