package blackboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Scalar fields are stored as individual hash fields; slices are JSON-encoded
// into a single field. This keeps entities inspectable with HGETALL while
// allowing arbitrary target lists.

// WorldViewToHash converts a WorldView to a Redis hash.
func WorldViewToHash(w *WorldView) (map[string]interface{}, error) {
	obstaclesJSON, err := json.Marshal(nonNilObstacles(w.Obstacles))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal obstacles: %w", err)
	}

	targetsJSON, err := json.Marshal(nonNilTargets(w.Targets))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal targets: %w", err)
	}

	return map[string]interface{}{
		"agent_id":       w.AgentID,
		"role":           string(w.Role),
		"obstacles":      string(obstaclesJSON),
		"targets":        string(targetsJSON),
		"captured_at_ms": w.CapturedAtMs,
	}, nil
}

// HashToWorldView converts a Redis hash to a WorldView.
func HashToWorldView(hash map[string]string) (*WorldView, error) {
	var obstacles []Obstacle
	if err := unmarshalField(hash, "obstacles", &obstacles); err != nil {
		return nil, err
	}

	var targets []TargetRecord
	if err := unmarshalField(hash, "targets", &targets); err != nil {
		return nil, err
	}

	capturedAtMs, _ := strconv.ParseInt(hash["captured_at_ms"], 10, 64)

	return &WorldView{
		AgentID:      hash["agent_id"],
		Role:         Role(hash["role"]),
		Obstacles:    nonNilObstacles(obstacles),
		Targets:      nonNilTargets(targets),
		CapturedAtMs: capturedAtMs,
	}, nil
}

// MergedViewToHash converts a MergedView to a Redis hash.
func MergedViewToHash(m *MergedView) (map[string]interface{}, error) {
	obstaclesJSON, err := json.Marshal(nonNilObstacles(m.Obstacles))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal obstacles: %w", err)
	}

	targetsJSON, err := json.Marshal(nonNilTargets(m.Targets))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal targets: %w", err)
	}

	sources := m.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sources: %w", err)
	}

	return map[string]interface{}{
		"obstacles": string(obstaclesJSON),
		"targets":   string(targetsJSON),
		"sources":   string(sourcesJSON),
	}, nil
}

// HashToMergedView converts a Redis hash to a MergedView.
func HashToMergedView(hash map[string]string) (*MergedView, error) {
	m := &MergedView{}
	if err := unmarshalField(hash, "obstacles", &m.Obstacles); err != nil {
		return nil, err
	}
	if err := unmarshalField(hash, "targets", &m.Targets); err != nil {
		return nil, err
	}
	if err := unmarshalField(hash, "sources", &m.Sources); err != nil {
		return nil, err
	}

	m.Obstacles = nonNilObstacles(m.Obstacles)
	m.Targets = nonNilTargets(m.Targets)
	if m.Sources == nil {
		m.Sources = []string{}
	}
	return m, nil
}

// SyncReportToHash converts a SyncReport to a Redis hash.
func SyncReportToHash(r *SyncReport) (map[string]interface{}, error) {
	perPeer := r.PerPeer
	if perPeer == nil {
		perPeer = []PeerCount{}
	}
	perPeerJSON, err := json.Marshal(perPeer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal per_peer: %w", err)
	}

	return map[string]interface{}{
		"run_id":           r.RunID,
		"leader_id":        r.LeaderID,
		"unique_targets":   r.UniqueTargets,
		"unique_obstacles": r.UniqueObstacles,
		"per_peer":         string(perPeerJSON),
		"sum_targets":      r.SumTargets,
		"overlap":          strconv.FormatFloat(r.Overlap, 'f', -1, 64),
		"created_at_ms":    r.CreatedAtMs,
	}, nil
}

// HashToSyncReport converts a Redis hash to a SyncReport.
func HashToSyncReport(hash map[string]string) (*SyncReport, error) {
	unique, err := strconv.Atoi(hash["unique_targets"])
	if err != nil {
		return nil, fmt.Errorf("invalid unique_targets field: %w", err)
	}
	sum, err := strconv.Atoi(hash["sum_targets"])
	if err != nil {
		return nil, fmt.Errorf("invalid sum_targets field: %w", err)
	}
	overlap, err := strconv.ParseFloat(hash["overlap"], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid overlap field: %w", err)
	}
	uniqueObstacles, _ := strconv.Atoi(hash["unique_obstacles"])
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	var perPeer []PeerCount
	if err := unmarshalField(hash, "per_peer", &perPeer); err != nil {
		return nil, err
	}
	if perPeer == nil {
		perPeer = []PeerCount{}
	}

	return &SyncReport{
		RunID:           hash["run_id"],
		LeaderID:        hash["leader_id"],
		UniqueTargets:   unique,
		UniqueObstacles: uniqueObstacles,
		PerPeer:         perPeer,
		SumTargets:      sum,
		Overlap:         overlap,
		CreatedAtMs:     createdAtMs,
	}, nil
}

// AssignmentToHash converts an Assignment to a Redis hash.
func AssignmentToHash(a *Assignment) (map[string]interface{}, error) {
	targets := a.Targets
	if targets == nil {
		targets = []TriagedTarget{}
	}
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal targets: %w", err)
	}

	return map[string]interface{}{
		"id":            a.ID,
		"run_id":        a.RunID,
		"recipient":     a.Recipient,
		"group":         a.Group,
		"targets":       string(targetsJSON),
		"created_at_ms": a.CreatedAtMs,
	}, nil
}

// HashToAssignment converts a Redis hash to an Assignment.
func HashToAssignment(hash map[string]string) (*Assignment, error) {
	group, err := strconv.Atoi(hash["group"])
	if err != nil {
		return nil, fmt.Errorf("invalid group field: %w", err)
	}

	var targets []TriagedTarget
	if err := unmarshalField(hash, "targets", &targets); err != nil {
		return nil, err
	}
	if targets == nil {
		targets = []TriagedTarget{}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Assignment{
		ID:          hash["id"],
		RunID:       hash["run_id"],
		Recipient:   hash["recipient"],
		Group:       group,
		Targets:     targets,
		CreatedAtMs: createdAtMs,
	}, nil
}

func unmarshalField(hash map[string]string, field string, out interface{}) error {
	raw := hash[field]
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", field, err)
	}
	return nil
}

func nonNilObstacles(o []Obstacle) []Obstacle {
	if o == nil {
		return []Obstacle{}
	}
	return o
}

func nonNilTargets(t []TargetRecord) []TargetRecord {
	if t == nil {
		return []TargetRecord{}
	}
	return t
}
