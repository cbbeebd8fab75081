package blackboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// several missions can share one Redis server.
//
// Key pattern: sortie:{instance_name}:{entity}[:{id}]

// WorldViewKey returns the Redis key for an explorer's snapshot.
// Pattern: sortie:{instance_name}:worldview:{agent_id}
func WorldViewKey(instanceName, agentID string) string {
	return fmt.Sprintf("sortie:%s:worldview:%s", instanceName, agentID)
}

// MergedViewKey returns the Redis key for the leader's merged view.
// Pattern: sortie:{instance_name}:merged
func MergedViewKey(instanceName string) string {
	return fmt.Sprintf("sortie:%s:merged", instanceName)
}

// SyncReportKey returns the Redis key for the synchronization report.
// Pattern: sortie:{instance_name}:report
func SyncReportKey(instanceName string) string {
	return fmt.Sprintf("sortie:%s:report", instanceName)
}

// AssignmentKey returns the Redis key for a recipient's assignment.
// Pattern: sortie:{instance_name}:assignment:{recipient}
func AssignmentKey(instanceName, recipient string) string {
	return fmt.Sprintf("sortie:%s:assignment:%s", instanceName, recipient)
}

// AssignmentIndexKey returns the Redis key of the ZSET indexing assignments by group.
// Pattern: sortie:{instance_name}:assignments
func AssignmentIndexKey(instanceName string) string {
	return fmt.Sprintf("sortie:%s:assignments", instanceName)
}

// AssignmentRunKey returns the Redis key holding the run ID the stored
// assignments belong to.
// Pattern: sortie:{instance_name}:assignments:run
func AssignmentRunKey(instanceName string) string {
	return fmt.Sprintf("sortie:%s:assignments:run", instanceName)
}

// MissionEventsChannel returns the Pub/Sub channel name for mission events.
// Pattern: sortie:{instance_name}:mission_events
func MissionEventsChannel(instanceName string) string {
	return fmt.Sprintf("sortie:%s:mission_events", instanceName)
}
