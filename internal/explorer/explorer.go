package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/dyluth/sortie/internal/grid"
	"github.com/dyluth/sortie/pkg/blackboard"
)

// DefaultBaseMargin is the budget kept in reserve on top of the estimated
// cost of getting home.
const DefaultBaseMargin = 20.0

// State is the explorer's current behavioural mode.
type State string

const (
	StateExploring     State = "exploring"
	StateReturning     State = "returning"
	StateWaiting       State = "waiting"
	StateSynchronizing State = "synchronizing"
	StateDone          State = "done"
)

// Coordinator drives the leader's WAITING and SYNCHRONIZING states.
type Coordinator interface {
	Ready(ctx context.Context) bool
	Synchronize(ctx context.Context, self blackboard.WorldView) blackboard.SyncReport
}

// Observer receives explorer lifecycle notifications. Implementations must
// not block.
type Observer interface {
	StateChanged(agentID string, from, to State)
	Replanned(agentID string)
	TargetFound(agentID, targetID string)
}

// Profile is the declarative configuration of one explorer.
type Profile struct {
	ID     string
	Role   blackboard.Role
	Home   grid.Position
	Sector Sector
	Goal   grid.Position
	Bounds grid.Bounds

	// BaseMargin defaults to DefaultBaseMargin when zero.
	BaseMargin float64
	// LeaderMargin is added for the leader, normally twice the read cost.
	LeaderMargin float64
}

// Margin is the reserve budget this explorer keeps.
func (p Profile) Margin() float64 {
	m := p.BaseMargin
	if m == 0 {
		m = DefaultBaseMargin
	}
	if p.Role.IsLeader() {
		m += p.LeaderMargin
	}
	return m
}

// Validate checks the profile is usable.
func (p Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("explorer id cannot be empty")
	}
	if !p.Role.IsExplorer() {
		return fmt.Errorf("explorer %s: role %q is not an explorer role", p.ID, p.Role)
	}
	if p.Sector != nil && !p.Sector.Contains(p.Home) {
		return fmt.Errorf("explorer %s: home %s is outside its own sector", p.ID, p.Home)
	}
	if !p.Bounds.Contains(p.Home) {
		return fmt.Errorf("explorer %s: home %s is outside the grid", p.ID, p.Home)
	}
	return nil
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithCoordinator sets the coordinator used while WAITING and SYNCHRONIZING.
// Required for the leader.
func WithCoordinator(c Coordinator) Option {
	return func(e *Explorer) { e.coord = c }
}

// WithObserver attaches a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(e *Explorer) { e.observer = o }
}

// WithRand sets the random source used for frontier tie-breaking.
func WithRand(rng *rand.Rand) Option {
	return func(e *Explorer) { e.rng = rng }
}

// WithInstance sets the instance name stamped on structured log events.
func WithInstance(name string) Option {
	return func(e *Explorer) { e.instanceName = name }
}

// Explorer maps its sector, finds targets and makes it home before the
// budget runs out. It is driven one step at a time by Deliberate.
type Explorer struct {
	profile      Profile
	body         Body
	coord        Coordinator
	observer     Observer
	rng          *rand.Rand
	instanceName string

	world    *grid.Map
	frontier *Frontier
	planner  *ReturnPlanner

	state      State
	returnPath []grid.Direction
	targets    []blackboard.TargetRecord
	seen       map[string]struct{}
}

// New creates an explorer in the EXPLORING state.
func New(profile Profile, body Body, opts ...Option) (*Explorer, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("explorer %s: body cannot be nil", profile.ID)
	}

	e := &Explorer{
		profile: profile,
		body:    body,
		world:   grid.NewMap(),
		state:   StateExploring,
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if profile.Role.IsLeader() && e.coord == nil {
		return nil, fmt.Errorf("explorer %s: leader requires a coordinator", profile.ID)
	}

	e.frontier = NewFrontier(e.world, profile.Sector, profile.Goal, e.rng)
	e.planner = NewReturnPlanner(e.world, profile.Bounds)
	return e, nil
}

// ID returns the explorer's agent ID.
func (e *Explorer) ID() string { return e.profile.ID }

// Role returns the explorer's role.
func (e *Explorer) Role() blackboard.Role { return e.profile.Role }

// State returns the current state.
func (e *Explorer) State() State { return e.state }

// IsTerminal reports whether the explorer has finished.
func (e *Explorer) IsTerminal() bool { return e.state == StateDone }

// Map exposes the explorer's map for inspection. Callers must not mutate it.
func (e *Explorer) Map() *grid.Map { return e.world }

// Targets returns a copy of the targets recorded so far.
func (e *Explorer) Targets() []blackboard.TargetRecord {
	out := make([]blackboard.TargetRecord, len(e.targets))
	for i, t := range e.targets {
		out[i] = t.Clone()
	}
	return out
}

// ExportWorldView returns an immutable snapshot of this explorer's knowledge.
func (e *Explorer) ExportWorldView() blackboard.WorldView {
	view := blackboard.NewWorldView(e.profile.ID, e.profile.Role, e.world.Obstacles(), e.targets)
	view.CapturedAtMs = time.Now().UnixMilli()
	return view
}

// Deliberate performs one step: at most one state transition and at most
// one physical move. It returns false once the explorer has ended.
func (e *Explorer) Deliberate(ctx context.Context) bool {
	switch e.state {
	case StateExploring:
		return e.explore()
	case StateReturning:
		return e.returnHome()
	case StateWaiting:
		if !e.coord.Ready(ctx) {
			return true
		}
		e.transition(StateSynchronizing)
		return true
	case StateSynchronizing:
		report := e.coord.Synchronize(ctx, e.ExportWorldView())
		log.Printf("[Explorer %s] Synchronization complete: %d unique targets, overlap %.2f",
			e.profile.ID, report.UniqueTargets, report.Overlap)
		e.transition(StateDone)
		return false
	default:
		return false
	}
}

func (e *Explorer) explore() bool {
	pos := e.body.Position()

	needed := e.planner.EstimateCost(pos, e.profile.Home, e.frontier.ReturnCost()) + e.profile.Margin()
	if remaining := e.body.RemainingBudget(); remaining < needed {
		log.Printf("[Explorer %s] Budget low (%.1f < %.1f), heading home", e.profile.ID, remaining, needed)
		e.returnPath = e.planner.Plan(pos, e.profile.Home)
		if len(e.returnPath) == 0 && pos != e.profile.Home {
			log.Printf("[Explorer %s] No known path home, will backtrack", e.profile.ID)
		}
		e.transition(StateReturning)
		return true
	}

	if !e.world.IsVisited(pos) {
		e.world.MarkVisited(pos)
		e.frontier.Expand(pos, e.body.SenseSurroundings())
		if !e.senseTarget(pos) {
			return false
		}
	}

	if dir, ok := e.frontier.Next(pos); ok {
		if e.body.Move(dir) == Executed {
			e.frontier.PushReturn(dir)
		} else {
			e.world.RecordObstacle(pos.Add(dir), grid.Obstacle)
		}
		return true
	}

	if back, ok := e.frontier.PopReturn(); ok {
		e.body.Move(back.Direction())
		return true
	}

	log.Printf("[Explorer %s] Sector fully explored (%d cells, %d targets)",
		e.profile.ID, e.world.VisitedCount(), len(e.targets))
	if e.profile.Role.IsLeader() && pos == e.profile.Home {
		e.transition(StateWaiting)
	} else {
		e.transition(StateReturning)
	}
	return true
}

// senseTarget records a newly found target. It returns false when reading
// the signals exhausted the budget.
func (e *Explorer) senseTarget(pos grid.Position) bool {
	id, ok := e.body.SenseTarget()
	if !ok {
		return true
	}
	if _, dup := e.seen[id]; dup {
		return true
	}

	signals, status := e.body.ReadSignals()
	if status == ReadTimeExceeded {
		log.Printf("[Explorer %s] Budget exhausted while reading target %s", e.profile.ID, id)
		e.transition(StateDone)
		return false
	}
	if len(signals) == 0 {
		return true
	}

	e.seen[id] = struct{}{}
	e.targets = append(e.targets, blackboard.TargetRecord{
		ID:       id,
		Position: pos,
		Signals:  append([]float64(nil), signals...),
	})
	if e.observer != nil {
		e.observer.TargetFound(e.profile.ID, id)
	}
	e.logEvent("target_found", map[string]interface{}{
		"target_id": id,
		"x":         pos.X,
		"y":         pos.Y,
	})
	return true
}

func (e *Explorer) returnHome() bool {
	pos := e.body.Position()
	e.world.MarkVisited(pos)

	if pos == e.profile.Home {
		log.Printf("[Explorer %s] Home with %.1f budget remaining", e.profile.ID, e.body.RemainingBudget())
		return e.arrive()
	}

	if len(e.returnPath) == 0 {
		e.returnPath = e.planner.Plan(pos, e.profile.Home)
	}

	if len(e.returnPath) > 0 {
		dir := e.returnPath[0]
		e.returnPath = e.returnPath[1:]
		if e.body.Move(dir) == Executed {
			e.frontier.ClearReturn()
		} else {
			e.world.RecordObstacle(pos.Add(dir), grid.Obstacle)
			e.returnPath = e.planner.Plan(pos, e.profile.Home)
			if e.observer != nil {
				e.observer.Replanned(e.profile.ID)
			}
			e.logEvent("replanned", map[string]interface{}{
				"blocked_x":   pos.Add(dir).X,
				"blocked_y":   pos.Add(dir).Y,
				"path_length": len(e.returnPath),
			})
		}
		return true
	}

	// The reversal stack is only valid from where exploration stopped.
	if back, ok := e.frontier.PopReturn(); ok {
		dir := back.Direction()
		if e.body.Move(dir) == Blocked {
			e.world.RecordObstacle(pos.Add(dir), grid.Obstacle)
			e.frontier.ClearReturn()
		}
		return true
	}

	log.Printf("[Explorer %s] Stranded at %s with no path home", e.profile.ID, pos)
	e.logEvent("stranded", map[string]interface{}{"x": pos.X, "y": pos.Y})
	return e.arrive()
}

// arrive ends the return leg: the leader goes on to coordinate, a follower
// is finished.
func (e *Explorer) arrive() bool {
	if e.profile.Role.IsLeader() {
		e.transition(StateWaiting)
		return true
	}
	e.transition(StateDone)
	return false
}

func (e *Explorer) transition(to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	if e.observer != nil {
		e.observer.StateChanged(e.profile.ID, from, to)
	}
	e.logEvent("state_transition", map[string]interface{}{
		"from":     string(from),
		"to":       string(to),
		"budget":   e.body.RemainingBudget(),
		"position": e.body.Position().String(),
	})
}

func (e *Explorer) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "explorer"
	data["event_type"] = eventType
	data["agent_id"] = e.profile.ID
	data["instance"] = e.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Explorer %s] Failed to marshal log event: %v", e.profile.ID, err)
		return
	}

	log.Println(string(jsonData))
}
