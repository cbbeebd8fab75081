package mission

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/sortie/internal/config"
	"github.com/dyluth/sortie/internal/explorer"
	"github.com/dyluth/sortie/internal/grid"
	"github.com/dyluth/sortie/internal/metrics"
	"github.com/dyluth/sortie/pkg/blackboard"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const model = `classes: 4
nodes:
  - {feature: 0, threshold: 50, left: 1, right: 2}
  - {probs: [0.1, 0.1, 0.1, 0.7]}
  - {probs: [0.8, 0.1, 0.05, 0.05]}
`

func signals(first float64) []float64 {
	s := make([]float64, 11)
	s[0] = 99
	s[1] = first
	return s
}

func missionConfig(t *testing.T) *config.MissionConfig {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yml")
	require.NoError(t, os.WriteFile(modelPath, []byte(model), 0644))

	cfg := &config.MissionConfig{
		Version: "1.0",
		Grid: config.GridConfig{
			Width:  7,
			Height: 7,
			Walls:  []grid.Position{grid.Pos(1, 1), grid.Pos(5, 5)},
		},
		Base: grid.Pos(3, 3),
		Explorers: map[string]config.ExplorerConfig{
			"EXPLORER_1": {Role: config.RoleExplorerLeader, Sector: config.SectorConfig{Kind: config.SectorHalfPlane, Side: "north"}},
			"EXPLORER_2": {Role: config.RoleExplorerFollower, Sector: config.SectorConfig{Kind: config.SectorQuadrant, Quadrant: "south_east"}},
			"EXPLORER_3": {Role: config.RoleExplorerFollower, Sector: config.SectorConfig{Kind: config.SectorQuadrant, Quadrant: "south_west"}},
		},
		Rescuers: map[string]config.RescuerConfig{
			"RESCUER_1": {Role: config.RoleAllocatorLeader, Order: 1},
			"RESCUER_2": {Role: config.RoleAllocatorFollower, Order: 2},
			"RESCUER_3": {Role: config.RoleAllocatorFollower, Order: 3},
		},
		Targets: []config.TargetConfig{
			{ID: "1", Position: grid.Pos(0, 0), Signals: signals(80)},
			{ID: "2", Position: grid.Pos(6, 0), Signals: signals(10)},
			{ID: "3", Position: grid.Pos(6, 6), Signals: signals(90)},
			{ID: "4", Position: grid.Pos(0, 6), Signals: signals(20)},
			{ID: "5", Position: grid.Pos(3, 3), Signals: signals(60)},
		},
		Classifier: &config.ClassifierConfig{Model: modelPath},
		Output:     &config.OutputConfig{ClustersDir: filepath.Join(dir, "clusters")},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestMission_FullRun(t *testing.T) {
	ctx := context.Background()
	cfg := missionConfig(t)

	mr := miniredis.RunT(t)
	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, cfg.Blackboard.Instance)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	collector := metrics.NewCollector()
	m, err := Build(cfg, Options{Journal: client, Collector: collector})
	require.NoError(t, err)

	res, err := m.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Stats.Completed)
	assert.Equal(t, m.RunID(), res.RunID)

	for _, ex := range res.Explorers {
		assert.Equal(t, explorer.StateDone, ex.State, ex.ID)
		assert.Equal(t, grid.Pos(3, 3), ex.Position, "%s made it home", ex.ID)
		assert.GreaterOrEqual(t, ex.Budget, 0.0)
	}

	require.NotNil(t, res.Report)
	assert.Equal(t, 5, res.Report.UniqueTargets)
	assert.Equal(t, 7, res.Report.SumTargets, "the target at home is seen by every explorer")
	assert.InDelta(t, 0.4, res.Report.Overlap, 1e-9)

	expected := `
# HELP sortie_unique_targets Unique targets after merging every world view
# TYPE sortie_unique_targets gauge
sortie_unique_targets 5
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "sortie_unique_targets"))

	require.Len(t, res.Groups, 3)
	total := 0
	for _, g := range res.Groups {
		assert.NotEmpty(t, g.Targets)
		total += len(g.Targets)
	}
	assert.Equal(t, 5, total)

	files, err := filepath.Glob(filepath.Join(cfg.Output.ClustersDir, "cluster_*.txt"))
	require.NoError(t, err)
	assert.Len(t, files, 3)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,vict_id,x,y,sobr,tri\n"))

	stored, err := client.ListAssignments(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	report, err := client.GetSyncReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, report.RunID)
}

func TestMission_NoRescuers(t *testing.T) {
	cfg := missionConfig(t)
	cfg.Rescuers = nil

	m, err := Build(cfg, Options{})
	require.NoError(t, err)

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stats.Completed)
	require.NotNil(t, res.Report)
	assert.Empty(t, res.Groups)

	_, err = os.Stat(cfg.Output.ClustersDir)
	assert.True(t, os.IsNotExist(err))
}

func TestMission_TickLimit(t *testing.T) {
	cfg := missionConfig(t)
	one := 1
	cfg.MaxTicks = &one

	m, err := Build(cfg, Options{})
	require.NoError(t, err)

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Stats.Completed)
	assert.Nil(t, res.Report)
}

func TestMission_Cancelled(t *testing.T) {
	m, err := Build(missionConfig(t), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildSector(t *testing.T) {
	home := grid.Pos(3, 3)

	s, err := BuildSector(config.SectorConfig{Kind: config.SectorQuadrant, Quadrant: "north_west"}, home)
	require.NoError(t, err)
	assert.True(t, s.Contains(grid.Pos(0, 0)))
	assert.False(t, s.Contains(grid.Pos(4, 0)))

	s, err = BuildSector(config.SectorConfig{Kind: config.SectorAll}, home)
	require.NoError(t, err)
	assert.True(t, s.Contains(grid.Pos(100, -4)))

	_, err = BuildSector(config.SectorConfig{Kind: "ring"}, home)
	assert.Error(t, err)
}
