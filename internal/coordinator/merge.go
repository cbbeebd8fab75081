package coordinator

import (
	"sort"

	"github.com/dyluth/sortie/internal/grid"
	"github.com/dyluth/sortie/pkg/blackboard"
)

// Merge unions world views in the given order. The first view to mention
// an obstacle position or a target ID wins; later duplicates are dropped.
func Merge(views []blackboard.WorldView) blackboard.MergedView {
	obstacles := make(map[grid.Position]grid.CellStatus)
	seen := make(map[string]struct{})
	merged := blackboard.MergedView{
		Obstacles: []blackboard.Obstacle{},
		Targets:   []blackboard.TargetRecord{},
	}

	for _, v := range views {
		merged.Sources = append(merged.Sources, v.AgentID)
		for _, o := range v.Obstacles {
			if _, ok := obstacles[o.Position]; ok {
				continue
			}
			obstacles[o.Position] = o.Status
			merged.Obstacles = append(merged.Obstacles, o)
		}
		for _, t := range v.Targets {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			merged.Targets = append(merged.Targets, t.Clone())
		}
	}

	sort.Slice(merged.Obstacles, func(i, j int) bool {
		return merged.Obstacles[i].Position.Less(merged.Obstacles[j].Position)
	})
	return merged
}
