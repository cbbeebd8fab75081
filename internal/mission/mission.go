// Package mission assembles a complete run from a sortie.yml configuration:
// the world, the explorers, the coordinator, the rescue team and the
// optional blackboard journal and metrics.
package mission

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/dyluth/sortie/internal/allocator"
	"github.com/dyluth/sortie/internal/classifier"
	"github.com/dyluth/sortie/internal/config"
	"github.com/dyluth/sortie/internal/coordinator"
	"github.com/dyluth/sortie/internal/explorer"
	"github.com/dyluth/sortie/internal/grid"
	"github.com/dyluth/sortie/internal/metrics"
	"github.com/dyluth/sortie/internal/rescuer"
	"github.com/dyluth/sortie/internal/sim"
	"github.com/dyluth/sortie/pkg/blackboard"
	"github.com/google/uuid"
)

// Journal persists everything the mission publishes. blackboard.Client
// satisfies it.
type Journal interface {
	coordinator.Journal
	allocator.Journal
}

// Options carries the optional collaborators of a mission.
type Options struct {
	Journal    Journal
	Collector  *metrics.Collector
	Classifier classifier.Classifier // Overrides classifier.model
	RunID      string
}

// Mission is a fully wired run, ready to tick.
type Mission struct {
	cfg       *config.MissionConfig
	runID     string
	world     *sim.World
	scheduler *sim.Scheduler
	leader    *coordinator.Leader
	explorers []*explorer.Explorer
	rescuers  []*rescuer.Rescuer
	allocLead *rescuer.Rescuer
}

// ExplorerSummary is the final state of one explorer.
type ExplorerSummary struct {
	ID       string          `json:"id"`
	Role     blackboard.Role `json:"role"`
	State    explorer.State  `json:"state"`
	Host     sim.AgentState  `json:"host_state"`
	Budget   float64         `json:"budget"`
	Visited  int             `json:"visited"`
	Targets  int             `json:"targets"`
	Position grid.Position   `json:"position"`
}

// Result is the outcome of Run.
type Result struct {
	RunID     string                 `json:"run_id"`
	Stats     sim.RunStats           `json:"stats"`
	Report    *blackboard.SyncReport `json:"report,omitempty"`
	Groups    []allocator.Group      `json:"groups,omitempty"`
	Explorers []ExplorerSummary      `json:"explorers"`
}

// Build wires a mission from a validated configuration.
func Build(cfg *config.MissionConfig, opts Options) (*Mission, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	world, err := buildWorld(cfg)
	if err != nil {
		return nil, err
	}

	m := &Mission{cfg: cfg, runID: runID, world: world}

	var tickObserver sim.TickObserver
	if opts.Collector != nil {
		tickObserver = opts.Collector
	}
	m.scheduler = sim.NewScheduler(tickObserver)

	registry := coordinator.NewRegistry()
	if err := m.buildExplorers(registry, opts); err != nil {
		return nil, err
	}
	if err := m.buildRescuers(registry, opts); err != nil {
		return nil, err
	}
	return m, nil
}

func buildWorld(cfg *config.MissionConfig) (*sim.World, error) {
	targets := make([]sim.Target, len(cfg.Targets))
	for i, t := range cfg.Targets {
		targets[i] = sim.Target{ID: t.ID, Position: t.Position, Signals: t.Signals}
	}
	world, err := sim.NewWorld(cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.Walls, targets)
	if err != nil {
		return nil, fmt.Errorf("failed to build world: %w", err)
	}
	return world, nil
}

func (m *Mission) costs() sim.Costs {
	return sim.Costs{Line: *m.cfg.Costs.Line, Diag: *m.cfg.Costs.Diag, Read: *m.cfg.Costs.Read}
}

func (m *Mission) buildExplorers(registry *coordinator.Registry, opts Options) error {
	cfg := m.cfg
	seed := *cfg.Seed

	leaderOpts := []coordinator.Option{
		coordinator.WithRunID(m.runID),
		coordinator.WithRand(rand.New(rand.NewSource(seed))),
		coordinator.WithInstance(cfg.Blackboard.Instance),
	}
	if opts.Journal != nil {
		leaderOpts = append(leaderOpts, coordinator.WithJournal(opts.Journal))
	}
	if opts.Collector != nil {
		leaderOpts = append(leaderOpts, coordinator.WithObserver(opts.Collector))
	}

	for i, name := range cfg.ExplorerNames() {
		ec := cfg.Explorers[name]
		role := blackboard.Role(ec.Role)

		sector, err := BuildSector(ec.Sector, *ec.Home)
		if err != nil {
			return fmt.Errorf("explorer %s: %w", name, err)
		}

		budget := *cfg.Costs.Budget
		if ec.Budget != nil {
			budget = *ec.Budget
		}
		body, err := m.world.NewBody(*ec.Home, budget, m.costs())
		if err != nil {
			return fmt.Errorf("explorer %s: %w", name, err)
		}

		profile := explorer.Profile{
			ID:           name,
			Role:         role,
			Home:         *ec.Home,
			Sector:       sector,
			Goal:         *ec.Goal,
			Bounds:       cfg.Bounds(),
			BaseMargin:   *cfg.Costs.BaseMargin,
			LeaderMargin: 2 * *cfg.Costs.Read,
		}

		exOpts := []explorer.Option{
			explorer.WithRand(rand.New(rand.NewSource(seed + int64(i) + 1))),
			explorer.WithInstance(cfg.Blackboard.Instance),
		}
		if opts.Collector != nil {
			exOpts = append(exOpts, explorer.WithObserver(opts.Collector))
		}
		if role.IsLeader() {
			leader, err := coordinator.NewLeader(name, registry, leaderOpts...)
			if err != nil {
				return err
			}
			m.leader = leader
			exOpts = append(exOpts, explorer.WithCoordinator(leader))
		}

		ex, err := explorer.New(profile, body, exOpts...)
		if err != nil {
			return err
		}
		agent, err := m.scheduler.Add(ex, body, sim.StateActive)
		if err != nil {
			return err
		}
		if !role.IsLeader() {
			if err := registry.AddPeer(sim.PeerHandle(agent, ex)); err != nil {
				return err
			}
		}
		m.explorers = append(m.explorers, ex)
	}
	return nil
}

func (m *Mission) buildRescuers(registry *coordinator.Registry, opts Options) error {
	cfg := m.cfg
	names := cfg.RescuerNames()
	if len(names) == 0 {
		return nil
	}

	allocOpts := []allocator.Option{
		allocator.WithClassifier(m.loadClassifier(opts), *cfg.Classifier.FeatureOffset),
		allocator.WithClusterDir(cfg.Output.ClustersDir),
		allocator.WithRunID(m.runID),
		allocator.WithInstance(cfg.Blackboard.Instance),
	}
	if opts.Journal != nil {
		allocOpts = append(allocOpts, allocator.WithJournal(opts.Journal))
	}
	if opts.Collector != nil {
		allocOpts = append(allocOpts, allocator.WithObserver(opts.Collector))
	}
	alloc := allocator.New(allocOpts...)

	slots := cfg.Rescuers[names[len(names)-1]].Order
	team := make([]*rescuer.Rescuer, slots)

	for _, name := range names {
		rc := cfg.Rescuers[name]

		var r *rescuer.Rescuer
		var err error
		if rc.Role == config.RoleAllocatorLeader {
			r, err = rescuer.NewLeader(name, alloc)
			m.allocLead = r
		} else {
			r, err = rescuer.NewFollower(name)
		}
		if err != nil {
			return err
		}

		agent, err := m.scheduler.Add(r, nil, sim.StateIdle)
		if err != nil {
			return err
		}
		if err := registry.AddDownstream(sim.DownstreamHandle(agent, r)); err != nil {
			return err
		}
		team[rc.Order-1] = r
		m.rescuers = append(m.rescuers, r)
	}

	for i, r := range team {
		if r == nil {
			log.Printf("[Mission] No rescuer configured for slot %d", i+1)
		}
	}
	m.allocLead.SetTeam(team)
	return nil
}

func (m *Mission) loadClassifier(opts Options) classifier.Classifier {
	if opts.Classifier != nil {
		return opts.Classifier
	}
	path := m.cfg.Classifier.Model
	if path == "" {
		log.Printf("[Mission] No classifier model configured, targets will be triaged with the sentinel")
		return classifier.Unavailable{}
	}
	tree, err := classifier.LoadTree(path)
	if err != nil {
		log.Printf("[Mission] Classifier unavailable: %v", err)
		return classifier.Unavailable{}
	}
	return tree
}

// BuildSector turns a declarative sector into a predicate around home.
func BuildSector(s config.SectorConfig, home grid.Position) (explorer.Sector, error) {
	switch s.Kind {
	case config.SectorAll:
		return explorer.Everywhere, nil
	case config.SectorHalfPlane:
		return explorer.HalfPlane(home, explorer.Side(s.Side))
	case config.SectorQuadrant:
		v, h, ok := s.QuadrantSides()
		if !ok {
			return nil, fmt.Errorf("invalid quadrant %q", s.Quadrant)
		}
		return explorer.Quadrant(home, explorer.Side(v), explorer.Side(h))
	default:
		return nil, fmt.Errorf("invalid sector kind %q", s.Kind)
	}
}

// RunID returns the mission run ID.
func (m *Mission) RunID() string { return m.runID }

// World returns the simulated world.
func (m *Mission) World() *sim.World { return m.world }

// Run ticks the mission to completion or until the tick limit.
func (m *Mission) Run(ctx context.Context) (*Result, error) {
	log.Printf("[Mission] Starting run %s with %d explorers and %d rescuers",
		m.runID, len(m.explorers), len(m.rescuers))

	stats, err := m.scheduler.Run(ctx, *m.cfg.MaxTicks)
	res := &Result{RunID: m.runID, Stats: stats}

	if report, ok := m.leader.Report(); ok {
		res.Report = &report
	}
	if m.allocLead != nil {
		res.Groups = m.allocLead.Groups()
	}

	for _, ex := range m.explorers {
		agent, _ := m.scheduler.Agent(ex.ID())
		body := agent.Body()
		res.Explorers = append(res.Explorers, ExplorerSummary{
			ID:       ex.ID(),
			Role:     ex.Role(),
			State:    ex.State(),
			Host:     agent.State(),
			Budget:   body.RemainingBudget(),
			Visited:  ex.Map().VisitedCount(),
			Targets:  len(ex.Targets()),
			Position: body.Position(),
		})
	}

	if err != nil {
		return res, fmt.Errorf("mission interrupted: %w", err)
	}
	log.Printf("[Mission] Run %s finished after %d ticks", m.runID, stats.Ticks)
	return res, nil
}
