package blackboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/sortie/internal/grid"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// testRunID is shared so assignments built by testAssignment belong to one run.
var testRunID = uuid.New().String()

func testAssignment(recipient string, group int) *Assignment {
	return &Assignment{
		ID:        uuid.New().String(),
		RunID:     testRunID,
		Recipient: recipient,
		Group:     group,
		Targets: []TriagedTarget{
			{TargetRecord: TargetRecord{ID: "4", Position: grid.Pos(2, 3), Signals: []float64{4, 1}}, Severity: 1, Survival: 0.75},
			{TargetRecord: TargetRecord{ID: "9", Position: grid.Pos(5, 1), Signals: []float64{9, 2}}, Severity: -1, Survival: 0},
		},
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestWorldViewRoundTrip(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	w := NewWorldView("EXPLORER_2", RoleExplorerFollower,
		map[grid.Position]grid.CellStatus{grid.Pos(7, 7): grid.Obstacle},
		[]TargetRecord{{ID: "12", Position: grid.Pos(6, 6), Signals: []float64{12, 80.5}}},
	)

	t.Run("stores and reads back", func(t *testing.T) {
		require.NoError(t, client.PutWorldView(ctx, &w))
		assert.True(t, mr.Exists(WorldViewKey("test-instance", "EXPLORER_2")))

		got, err := client.GetWorldView(ctx, "EXPLORER_2")
		require.NoError(t, err)
		assert.Equal(t, w.Obstacles, got.Obstacles)
		assert.Equal(t, w.Targets, got.Targets)
	})

	t.Run("missing view is not found", func(t *testing.T) {
		_, err := client.GetWorldView(ctx, "EXPLORER_9")
		assert.True(t, IsNotFound(err))
	})

	t.Run("rejects invalid view", func(t *testing.T) {
		err := client.PutWorldView(ctx, &WorldView{AgentID: "", Role: RoleExplorerLeader})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid world view")
	})
}

func TestMergedViewAndReport(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	m := &MergedView{
		Obstacles: []Obstacle{{Position: grid.Pos(1, 0), Status: grid.Boundary}},
		Targets:   []TargetRecord{{ID: "1", Position: grid.Pos(2, 2)}},
		Sources:   []string{"EXPLORER_1", "EXPLORER_2"},
	}
	require.NoError(t, client.PutMergedView(ctx, m))

	gotMerged, err := client.GetMergedView(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.Sources, gotMerged.Sources)
	assert.Len(t, gotMerged.Targets, 1)

	r := &SyncReport{
		RunID:         uuid.New().String(),
		LeaderID:      "EXPLORER_1",
		UniqueTargets: 1,
		SumTargets:    3,
		Overlap:       OverlapRatio(3, 1),
		PerPeer: []PeerCount{
			{AgentID: "EXPLORER_1", Targets: 1},
			{AgentID: "EXPLORER_2", Targets: 1},
			{AgentID: "EXPLORER_3", Targets: 1},
		},
	}
	require.NoError(t, client.PutSyncReport(ctx, r))

	gotReport, err := client.GetSyncReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, gotReport.Overlap)
	assert.Equal(t, r.PerPeer, gotReport.PerPeer)

	t.Run("rejects report with more unique than reported targets", func(t *testing.T) {
		bad := *r
		bad.UniqueTargets = 4
		assert.Error(t, client.PutSyncReport(ctx, &bad))
	})
}

func TestAssignments(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("empty list when none stored", func(t *testing.T) {
		list, err := client.ListAssignments(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	require.NoError(t, client.PutAssignment(ctx, testAssignment("RESCUER_3", 3)))
	require.NoError(t, client.PutAssignment(ctx, testAssignment("RESCUER_1", 1)))
	require.NoError(t, client.PutAssignment(ctx, testAssignment("RESCUER_2", 2)))

	t.Run("lists by group order", func(t *testing.T) {
		list, err := client.ListAssignments(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "RESCUER_1", list[0].Recipient)
		assert.Equal(t, "RESCUER_2", list[1].Recipient)
		assert.Equal(t, "RESCUER_3", list[2].Recipient)
	})

	t.Run("reads single assignment", func(t *testing.T) {
		a, err := client.GetAssignment(ctx, "RESCUER_2")
		require.NoError(t, err)
		assert.Equal(t, 2, a.Group)
		require.Len(t, a.Targets, 2)
		assert.Equal(t, "4", a.Targets[0].ID)
		assert.Equal(t, -1, a.Targets[1].Severity)
	})

	t.Run("rejects unsorted targets", func(t *testing.T) {
		a := testAssignment("RESCUER_4", 4)
		a.Targets[0], a.Targets[1] = a.Targets[1], a.Targets[0]
		assert.Error(t, client.PutAssignment(ctx, a))
	})
}

func TestAssignments_NewRunReplacesPrevious(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, client.PutAssignment(ctx, testAssignment(fmt.Sprintf("RESCUER_%d", i), i)))
	}

	next := uuid.New().String()
	a := testAssignment("RESCUER_1", 1)
	a.RunID = next
	require.NoError(t, client.PutAssignment(ctx, a))

	list, err := client.ListAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	_, err = client.GetAssignment(ctx, "RESCUER_3")
	assert.True(t, IsNotFound(err))
	assert.False(t, mr.Exists(AssignmentKey("test-instance", "RESCUER_2")))

	run, err := mr.Get(AssignmentRunKey("test-instance"))
	require.NoError(t, err)
	assert.Equal(t, next, run)

	b := testAssignment("RESCUER_2", 2)
	b.RunID = next
	require.NoError(t, client.PutAssignment(ctx, b))
	list, err = client.ListAssignments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2, "assignments of the same run accumulate")
}

func TestSubscribeMissionEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.SubscribeMissionEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.PutAssignment(ctx, testAssignment("RESCUER_1", 1)))

	select {
	case ev := <-sub.Events():
		require.NotNil(t, ev)
		assert.Equal(t, EventAssignment, ev.Type)
		assert.Equal(t, "RESCUER_1", ev.AgentID)
		assert.Equal(t, 2, ev.Count)
		assert.NotZero(t, ev.CreatedAtMs)
	case <-ctx.Done():
		t.Fatal("timed out waiting for mission event")
	}

	// Close is idempotent
	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}
