package blackboard

import (
	"fmt"
	"sort"

	"github.com/dyluth/sortie/internal/grid"
	"github.com/google/uuid"
)

// Role is an agent's fixed position in the mission, assigned once from configuration.
type Role string

const (
	// RoleExplorerLeader explores its own sector and then runs the synchronization barrier.
	RoleExplorerLeader Role = "explorer_leader"

	// RoleExplorerFollower explores its own sector and returns home.
	RoleExplorerFollower Role = "explorer_follower"

	// RoleAllocatorLeader receives the merged world and partitions the targets.
	RoleAllocatorLeader Role = "allocator_leader"

	// RoleAllocatorFollower waits for its assignment.
	RoleAllocatorFollower Role = "allocator_follower"
)

// Validate checks if the Role is a valid enum value.
func (r Role) Validate() error {
	switch r {
	case RoleExplorerLeader, RoleExplorerFollower, RoleAllocatorLeader, RoleAllocatorFollower:
		return nil
	default:
		return fmt.Errorf("unknown role: %q", r)
	}
}

// IsLeader reports whether the role leads its team.
func (r Role) IsLeader() bool {
	return r == RoleExplorerLeader || r == RoleAllocatorLeader
}

// IsExplorer reports whether the role belongs to the exploring team.
func (r Role) IsExplorer() bool {
	return r == RoleExplorerLeader || r == RoleExplorerFollower
}

// TargetRecord is a sensed target with the raw vital-signal vector read at its cell.
// Records are created once by the discovering agent and never mutated.
type TargetRecord struct {
	ID       string        `json:"id"`       // Host-assigned target identifier
	Position grid.Position `json:"position"` // Cell where the target was sensed
	Signals  []float64     `json:"signals"`  // Raw signal vector as read from the host
}

// Clone returns a deep copy so the signal slice is never shared.
func (t TargetRecord) Clone() TargetRecord {
	out := t
	out.Signals = append([]float64(nil), t.Signals...)
	return out
}

// Obstacle is one entry of an obstacle map.
type Obstacle struct {
	Position grid.Position   `json:"position"`
	Status   grid.CellStatus `json:"status"`
}

// WorldView is an immutable snapshot of one explorer's knowledge.
type WorldView struct {
	AgentID      string         `json:"agent_id"`
	Role         Role           `json:"role"`
	Obstacles    []Obstacle     `json:"obstacles"` // Sorted by position
	Targets      []TargetRecord `json:"targets"`   // Discovery order
	CapturedAtMs int64          `json:"captured_at_ms"`
}

// NewWorldView builds a snapshot from an obstacle map and target list.
// Obstacles are sorted by position so snapshots of equal maps are equal.
func NewWorldView(agentID string, role Role, obstacles map[grid.Position]grid.CellStatus, targets []TargetRecord) WorldView {
	obs := make([]Obstacle, 0, len(obstacles))
	for p, s := range obstacles {
		obs = append(obs, Obstacle{Position: p, Status: s})
	}
	sortObstacles(obs)

	recs := make([]TargetRecord, len(targets))
	for i, t := range targets {
		recs[i] = t.Clone()
	}

	return WorldView{
		AgentID:   agentID,
		Role:      role,
		Obstacles: obs,
		Targets:   recs,
	}
}

// Validate checks if the WorldView has valid field values.
func (w *WorldView) Validate() error {
	if w.AgentID == "" {
		return fmt.Errorf("agent_id cannot be empty")
	}
	if err := w.Role.Validate(); err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}
	return validateTargets(w.Targets)
}

// MergedView is the leader's union of every explorer's world view.
type MergedView struct {
	Obstacles []Obstacle     `json:"obstacles"` // Sorted by position
	Targets   []TargetRecord `json:"targets"`   // First-seen order
	Sources   []string       `json:"sources"`   // Agent IDs merged, in merge order
}

// Validate checks if the MergedView has valid field values.
func (m *MergedView) Validate() error {
	return validateTargets(m.Targets)
}

// ObstacleMap returns the merged obstacles as a map.
func (m *MergedView) ObstacleMap() map[grid.Position]grid.CellStatus {
	out := make(map[grid.Position]grid.CellStatus, len(m.Obstacles))
	for _, o := range m.Obstacles {
		out[o.Position] = o.Status
	}
	return out
}

// PeerCount is the number of targets one explorer reported.
type PeerCount struct {
	AgentID string `json:"agent_id"`
	Targets int    `json:"targets"`
	Missing bool   `json:"missing,omitempty"` // Snapshot could not be obtained
}

// SyncReport summarises the merge performed at the synchronization barrier.
type SyncReport struct {
	RunID           string      `json:"run_id"`
	LeaderID        string      `json:"leader_id"`
	UniqueTargets   int         `json:"unique_targets"`
	UniqueObstacles int         `json:"unique_obstacles"`
	PerPeer         []PeerCount `json:"per_peer"`
	SumTargets      int         `json:"sum_targets"`
	Overlap         float64     `json:"overlap"` // SumTargets/UniqueTargets - 1, 0 when nothing found
	CreatedAtMs     int64       `json:"created_at_ms"`
}

// Validate checks if the SyncReport has valid field values.
func (r *SyncReport) Validate() error {
	if !isValidUUID(r.RunID) {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}
	if r.LeaderID == "" {
		return fmt.Errorf("leader_id cannot be empty")
	}
	if r.UniqueTargets > r.SumTargets {
		return fmt.Errorf("unique targets (%d) exceed reported targets (%d)", r.UniqueTargets, r.SumTargets)
	}
	return nil
}

// OverlapRatio returns sum/unique - 1, defined as 0 when unique is 0.
func OverlapRatio(sum, unique int) float64 {
	if unique == 0 {
		return 0
	}
	return float64(sum)/float64(unique) - 1
}

// TriagedTarget is a target record annotated by the classifier.
type TriagedTarget struct {
	TargetRecord
	Severity int     `json:"severity"` // Severity class, -1 when the classifier was unavailable
	Survival float64 `json:"survival"` // Survival estimate in [0,1]
}

// Assignment is the ordered target list handed to one downstream agent.
// Assignments are created once by the allocator and never modified.
type Assignment struct {
	ID          string          `json:"id"`        // UUID
	RunID       string          `json:"run_id"`    // UUID of the mission run
	Recipient   string          `json:"recipient"` // Downstream agent ID
	Group       int             `json:"group"`     // 1-based group number
	Targets     []TriagedTarget `json:"targets"`   // Descending survival
	CreatedAtMs int64           `json:"created_at_ms"`
}

// Validate checks if the Assignment has valid field values.
func (a *Assignment) Validate() error {
	if !isValidUUID(a.ID) {
		return fmt.Errorf("invalid assignment ID: not a valid UUID")
	}
	if !isValidUUID(a.RunID) {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}
	if a.Recipient == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if a.Group < 1 {
		return fmt.Errorf("invalid group: must be >= 1, got %d", a.Group)
	}
	for i := 1; i < len(a.Targets); i++ {
		if a.Targets[i].Survival > a.Targets[i-1].Survival {
			return fmt.Errorf("targets not in descending survival order at index %d", i)
		}
	}
	return nil
}

func validateTargets(targets []TargetRecord) error {
	seen := make(map[string]bool, len(targets))
	for i, t := range targets {
		if t.ID == "" {
			return fmt.Errorf("target at index %d has empty id", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate target id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

func sortObstacles(obs []Obstacle) {
	sort.Slice(obs, func(i, j int) bool {
		return obs[i].Position.Less(obs[j].Position)
	})
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// EventType labels a mission event.
type EventType string

const (
	EventWorldView  EventType = "world_view"
	EventMerged     EventType = "merged"
	EventSyncReport EventType = "sync_report"
	EventAssignment EventType = "assignment"
)

// MissionEvent is published on the mission events channel whenever the journal changes.
type MissionEvent struct {
	Type        EventType `json:"type"`
	AgentID     string    `json:"agent_id,omitempty"`
	RefID       string    `json:"ref_id,omitempty"` // Assignment or run ID
	Count       int       `json:"count"`            // Targets carried by the entity
	CreatedAtMs int64     `json:"created_at_ms"`
}
