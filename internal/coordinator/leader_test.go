package coordinator

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/sortie/internal/grid"
	"github.com/dyluth/sortie/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakePeer struct {
	id       string
	terminal bool
	view     blackboard.WorldView
	err      error
}

func (p *fakePeer) ID() string       { return p.id }
func (p *fakePeer) IsTerminal() bool { return p.terminal }
func (p *fakePeer) ExportWorldView() (blackboard.WorldView, error) {
	return p.view, p.err
}

type fakeDownstream struct {
	id        string
	role      blackboard.Role
	activated int
	received  []blackboard.MergedView
}

func (d *fakeDownstream) ID() string            { return d.id }
func (d *fakeDownstream) Role() blackboard.Role { return d.role }
func (d *fakeDownstream) Activate()             { d.activated++ }
func (d *fakeDownstream) ReceiveMergedWorld(v blackboard.MergedView) {
	d.received = append(d.received, v)
}

type failingJournal struct{ calls int }

func (j *failingJournal) PutWorldView(ctx context.Context, w *blackboard.WorldView) error {
	j.calls++
	return errors.New("connection refused")
}
func (j *failingJournal) PutMergedView(ctx context.Context, m *blackboard.MergedView) error {
	j.calls++
	return errors.New("connection refused")
}
func (j *failingJournal) PutSyncReport(ctx context.Context, r *blackboard.SyncReport) error {
	j.calls++
	return errors.New("connection refused")
}

func viewWith(agent string, role blackboard.Role, targetIDs ...string) blackboard.WorldView {
	var targets []blackboard.TargetRecord
	for i, id := range targetIDs {
		targets = append(targets, blackboard.TargetRecord{ID: id, Position: grid.Pos(i, i), Signals: []float64{float64(i)}})
	}
	return blackboard.NewWorldView(agent, role, nil, targets)
}

func setup(t *testing.T, peers ...*fakePeer) (*Leader, *Registry, []*fakeDownstream) {
	t.Helper()
	reg := NewRegistry()
	for _, p := range peers {
		require.NoError(t, reg.AddPeer(p))
	}

	ds := []*fakeDownstream{
		{id: "RESCUER_1", role: blackboard.RoleAllocatorLeader},
		{id: "RESCUER_2", role: blackboard.RoleAllocatorFollower},
		{id: "RESCUER_3", role: blackboard.RoleAllocatorFollower},
	}
	for _, d := range ds {
		require.NoError(t, reg.AddDownstream(d))
	}

	l, err := NewLeader("EXPLORER_1", reg, WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	return l, reg, ds
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	t.Run("rejects nil handles", func(t *testing.T) {
		assert.Error(t, reg.AddPeer(nil))
		assert.Error(t, reg.AddDownstream(nil))
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		require.NoError(t, reg.AddPeer(&fakePeer{id: "EXPLORER_2"}))
		err := reg.AddPeer(&fakePeer{id: "EXPLORER_2"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("rejects explorer as downstream", func(t *testing.T) {
		err := reg.AddDownstream(&fakeDownstream{id: "X", role: blackboard.RoleExplorerFollower})
		assert.Error(t, err)
	})

	t.Run("finds downstream leader", func(t *testing.T) {
		_, ok := reg.DownstreamLeader()
		assert.False(t, ok)

		require.NoError(t, reg.AddDownstream(&fakeDownstream{id: "R2", role: blackboard.RoleAllocatorFollower}))
		require.NoError(t, reg.AddDownstream(&fakeDownstream{id: "R1", role: blackboard.RoleAllocatorLeader}))
		d, ok := reg.DownstreamLeader()
		require.True(t, ok)
		assert.Equal(t, "R1", d.ID())
	})
}

func TestNewLeader(t *testing.T) {
	_, err := NewLeader("", NewRegistry())
	assert.Error(t, err)

	_, err = NewLeader("EXPLORER_1", nil)
	assert.Error(t, err)

	_, err = NewLeader("EXPLORER_1", NewRegistry(), WithRunID("not-a-uuid"))
	assert.Error(t, err)

	l, err := NewLeader("EXPLORER_1", NewRegistry())
	require.NoError(t, err)
	assert.NotEmpty(t, l.RunID())
}

func TestLeader_ReadyWaitsForActivePeers(t *testing.T) {
	ctx := context.Background()
	p2 := &fakePeer{id: "EXPLORER_2", terminal: true}
	p3 := &fakePeer{id: "EXPLORER_3"}
	l, _, ds := setup(t, p2, p3)

	for i := 0; i < 100; i++ {
		assert.False(t, l.Ready(ctx))
	}
	_, ok := l.Report()
	assert.False(t, ok, "nothing is merged while a peer is active")
	assert.Zero(t, ds[0].activated)

	p3.terminal = true
	assert.True(t, l.Ready(ctx))
}

func TestLeader_SynchronizeOverlap(t *testing.T) {
	ctx := context.Background()

	t.Run("disjoint targets give zero overlap", func(t *testing.T) {
		l, _, _ := setup(t,
			&fakePeer{id: "EXPLORER_2", terminal: true, view: viewWith("EXPLORER_2", blackboard.RoleExplorerFollower, "b")},
			&fakePeer{id: "EXPLORER_3", terminal: true, view: viewWith("EXPLORER_3", blackboard.RoleExplorerFollower, "c")},
		)
		r := l.Synchronize(ctx, viewWith("EXPLORER_1", blackboard.RoleExplorerLeader, "a"))
		assert.Equal(t, 3, r.UniqueTargets)
		assert.Equal(t, 3, r.SumTargets)
		assert.Equal(t, 0.0, r.Overlap)
		assert.NoError(t, r.Validate())
	})

	t.Run("same target seen three times gives overlap two", func(t *testing.T) {
		l, _, _ := setup(t,
			&fakePeer{id: "EXPLORER_2", terminal: true, view: viewWith("EXPLORER_2", blackboard.RoleExplorerFollower, "a")},
			&fakePeer{id: "EXPLORER_3", terminal: true, view: viewWith("EXPLORER_3", blackboard.RoleExplorerFollower, "a")},
		)
		r := l.Synchronize(ctx, viewWith("EXPLORER_1", blackboard.RoleExplorerLeader, "a"))
		assert.Equal(t, 1, r.UniqueTargets)
		assert.Equal(t, 3, r.SumTargets)
		assert.InDelta(t, 2.0, r.Overlap, 1e-9)
	})

	t.Run("no targets at all", func(t *testing.T) {
		l, _, _ := setup(t, &fakePeer{id: "EXPLORER_2", terminal: true, view: viewWith("EXPLORER_2", blackboard.RoleExplorerFollower)})
		r := l.Synchronize(ctx, viewWith("EXPLORER_1", blackboard.RoleExplorerLeader))
		assert.Zero(t, r.UniqueTargets)
		assert.Equal(t, 0.0, r.Overlap)
	})

	t.Run("missing snapshot counts as zero", func(t *testing.T) {
		l, _, _ := setup(t,
			&fakePeer{id: "EXPLORER_2", terminal: true, err: ErrSnapshotUnavailable},
			&fakePeer{id: "EXPLORER_3", terminal: true, view: viewWith("EXPLORER_3", blackboard.RoleExplorerFollower, "c")},
		)
		r := l.Synchronize(ctx, viewWith("EXPLORER_1", blackboard.RoleExplorerLeader, "a"))
		require.Len(t, r.PerPeer, 3)
		assert.Equal(t, blackboard.PeerCount{AgentID: "EXPLORER_2", Missing: true}, r.PerPeer[1])
		assert.Equal(t, 2, r.SumTargets)
		assert.Equal(t, 2, r.UniqueTargets)
	})
}

func TestLeader_SynchronizeHandsOver(t *testing.T) {
	ctx := context.Background()
	l, _, ds := setup(t, &fakePeer{id: "EXPLORER_2", terminal: true, view: viewWith("EXPLORER_2", blackboard.RoleExplorerFollower, "b")})

	first := l.Synchronize(ctx, viewWith("EXPLORER_1", blackboard.RoleExplorerLeader, "a"))
	second := l.Synchronize(ctx, viewWith("EXPLORER_1", blackboard.RoleExplorerLeader, "a", "z"))
	assert.Equal(t, first, second, "synchronization is a single pass")

	for _, d := range ds {
		assert.Equal(t, 1, d.activated, "%s activated once", d.id)
	}
	require.Len(t, ds[0].received, 1)
	assert.Equal(t, []string{"EXPLORER_1", "EXPLORER_2"}, ds[0].received[0].Sources)
	assert.Empty(t, ds[1].received)
	assert.Empty(t, ds[2].received)
}

func TestLeader_JournalFailureIsNotFatal(t *testing.T) {
	reg := NewRegistry()
	ds := &fakeDownstream{id: "RESCUER_1", role: blackboard.RoleAllocatorLeader}
	require.NoError(t, reg.AddDownstream(ds))

	j := &failingJournal{}
	l, err := NewLeader("EXPLORER_1", reg, WithJournal(j))
	require.NoError(t, err)

	r := l.Synchronize(context.Background(), viewWith("EXPLORER_1", blackboard.RoleExplorerLeader, "a"))
	assert.Equal(t, 1, r.UniqueTargets)
	assert.Equal(t, 3, j.calls)
	assert.Len(t, ds.received, 1)
}

func TestLeader_JournalsToBlackboard(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	reg := NewRegistry()
	require.NoError(t, reg.AddPeer(&fakePeer{id: "EXPLORER_2", terminal: true, view: viewWith("EXPLORER_2", blackboard.RoleExplorerFollower, "b")}))

	l, err := NewLeader("EXPLORER_1", reg, WithJournal(client))
	require.NoError(t, err)
	l.Synchronize(ctx, viewWith("EXPLORER_1", blackboard.RoleExplorerLeader, "a"))

	stored, err := client.GetSyncReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, l.RunID(), stored.RunID)
	assert.Equal(t, 2, stored.UniqueTargets)

	merged, err := client.GetMergedView(ctx)
	require.NoError(t, err)
	assert.Len(t, merged.Targets, 2)

	view, err := client.GetWorldView(ctx, "EXPLORER_2")
	require.NoError(t, err)
	assert.Equal(t, "b", view.Targets[0].ID)
}

func TestMerge_FirstWriterWins(t *testing.T) {
	leader := blackboard.NewWorldView("EXPLORER_1", blackboard.RoleExplorerLeader,
		map[grid.Position]grid.CellStatus{grid.Pos(1, 1): grid.Boundary},
		[]blackboard.TargetRecord{{ID: "a", Position: grid.Pos(0, 0), Signals: []float64{1}}})
	peer := blackboard.NewWorldView("EXPLORER_2", blackboard.RoleExplorerFollower,
		map[grid.Position]grid.CellStatus{grid.Pos(1, 1): grid.Obstacle, grid.Pos(0, 2): grid.Obstacle},
		[]blackboard.TargetRecord{{ID: "a", Position: grid.Pos(0, 0), Signals: []float64{2}}})

	m := Merge([]blackboard.WorldView{leader, peer})
	require.Len(t, m.Obstacles, 2)
	assert.Equal(t, grid.Boundary, m.ObstacleMap()[grid.Pos(1, 1)])
	require.Len(t, m.Targets, 1)
	assert.Equal(t, []float64{1}, m.Targets[0].Signals)
}

func TestMerge_UnionBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "views")
		var views []blackboard.WorldView
		sum, most := 0, 0
		all := make(map[string]struct{})

		for i := 0; i < n; i++ {
			ids := rapid.SliceOfDistinct(rapid.IntRange(0, 20), rapid.ID[int]).Draw(rt, "ids")
			var labels []string
			for _, id := range ids {
				label := strconv.Itoa(id)
				labels = append(labels, label)
				all[label] = struct{}{}
			}
			views = append(views, viewWith("E"+strconv.Itoa(i), blackboard.RoleExplorerFollower, labels...))
			sum += len(labels)
			if len(labels) > most {
				most = len(labels)
			}
		}

		unique := len(Merge(views).Targets)
		if unique > sum {
			rt.Fatalf("unique %d exceeds sum %d", unique, sum)
		}
		if unique < most {
			rt.Fatalf("unique %d below largest view %d", unique, most)
		}
		if unique != len(all) {
			rt.Fatalf("unique %d, want %d", unique, len(all))
		}
	})
}
