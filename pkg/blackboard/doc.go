// Package blackboard provides the types exchanged between sortie agents and a
// Redis-backed journal for them.
//
// # Overview
//
// Agents never share mutable state. At the single synchronization point of a
// mission every explorer exports an immutable WorldView; the explorer leader
// merges them into a MergedView, computes a SyncReport, and the allocator
// leader later produces one Assignment per rescuer. These four types are the
// only data that crosses agent boundaries.
//
// The in-process mission works without Redis. When a Client is configured,
// every snapshot, the merged view, the report and each assignment are also
// written to Redis so that other tools (the `sortie assignments` and
// `sortie watch` commands, dashboards, rescuer processes) can read them.
//
// # Usage Example
//
//	client, err := blackboard.NewClient(&redis.Options{Addr: "localhost:6379"}, "mission-7")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	a := &blackboard.Assignment{
//		ID:        uuid.New().String(),
//		RunID:     runID,
//		Recipient: "RESCUER_2",
//		Group:     2,
//		Targets:   triaged,
//	}
//	if err := client.PutAssignment(ctx, a); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// All keys follow the pattern: sortie:{instance_name}:{entity}[:{id}]
//
// World views: sortie:{instance_name}:worldview:{agent_id}
// Merged view: sortie:{instance_name}:merged
// Sync report: sortie:{instance_name}:report
// Assignments: sortie:{instance_name}:assignment:{recipient}
// Assignment index (ZSET by group): sortie:{instance_name}:assignments
//
// Pub/Sub channel: sortie:{instance_name}:mission_events
package blackboard
