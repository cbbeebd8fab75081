package sim

import (
	"context"
	"fmt"
	"log"
)

// AgentState is the host's view of an agent.
type AgentState string

const (
	StateIdle   AgentState = "idle"
	StateActive AgentState = "active"
	StateEnded  AgentState = "ended"
	StateDead   AgentState = "dead"
)

// Mind is the decision-making side of an agent.
type Mind interface {
	ID() string
	Deliberate(ctx context.Context) bool
}

// TickObserver is told about every deliberation step.
type TickObserver interface {
	Tick(agentID string)
}

// Agent couples a mind with its optional body and host state.
type Agent struct {
	mind  Mind
	body  *Body
	state AgentState
}

func (a *Agent) ID() string        { return a.mind.ID() }
func (a *Agent) State() AgentState { return a.state }
func (a *Agent) Body() *Body       { return a.body }

// Terminal reports whether the agent has ended or died.
func (a *Agent) Terminal() bool {
	return a.state == StateEnded || a.state == StateDead
}

// Activate moves an idle agent to active.
func (a *Agent) Activate() {
	if a.state == StateIdle {
		a.state = StateActive
	}
}

// RunStats summarises a scheduler run.
type RunStats struct {
	Ticks     int            `json:"ticks"`
	Completed bool           `json:"completed"` // No active agent remained
	States    map[string]int `json:"states"`
}

// Scheduler calls each active agent's Deliberate once per tick in
// registration order.
type Scheduler struct {
	agents   []*Agent
	byID     map[string]*Agent
	observer TickObserver
}

// NewScheduler creates an empty scheduler. observer may be nil.
func NewScheduler(observer TickObserver) *Scheduler {
	return &Scheduler{byID: make(map[string]*Agent), observer: observer}
}

// Add registers an agent in the given initial state.
func (s *Scheduler) Add(mind Mind, body *Body, state AgentState) (*Agent, error) {
	if mind == nil {
		return nil, fmt.Errorf("mind cannot be nil")
	}
	if _, dup := s.byID[mind.ID()]; dup {
		return nil, fmt.Errorf("agent %s already registered", mind.ID())
	}
	if state != StateIdle && state != StateActive {
		return nil, fmt.Errorf("agent %s: initial state must be idle or active, got %s", mind.ID(), state)
	}
	a := &Agent{mind: mind, body: body, state: state}
	s.agents = append(s.agents, a)
	s.byID[a.ID()] = a
	return a, nil
}

// Agent looks up an agent by ID.
func (s *Scheduler) Agent(id string) (*Agent, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Agents returns all agents in registration order.
func (s *Scheduler) Agents() []*Agent {
	return append([]*Agent(nil), s.agents...)
}

// Run ticks until no agent is active, maxTicks is reached or ctx is done.
func (s *Scheduler) Run(ctx context.Context, maxTicks int) (RunStats, error) {
	var stats RunStats

	for stats.Ticks < maxTicks && s.anyActive() {
		if err := ctx.Err(); err != nil {
			stats.States = s.countStates()
			return stats, err
		}
		stats.Ticks++

		for _, a := range s.agents {
			if a.state != StateActive {
				continue
			}
			if s.observer != nil {
				s.observer.Tick(a.ID())
			}

			alive := a.mind.Deliberate(ctx)
			switch {
			case a.body != nil && a.body.RemainingBudget() < 0:
				a.state = StateDead
				log.Printf("[Scheduler] %s ran out of budget at tick %d", a.ID(), stats.Ticks)
			case !alive:
				a.state = StateEnded
			}
		}
	}

	stats.Completed = !s.anyActive()
	stats.States = s.countStates()
	if !stats.Completed {
		log.Printf("[Scheduler] Stopped after %d ticks with agents still active", stats.Ticks)
	}
	return stats, nil
}

func (s *Scheduler) anyActive() bool {
	for _, a := range s.agents {
		if a.state == StateActive {
			return true
		}
	}
	return false
}

func (s *Scheduler) countStates() map[string]int {
	out := make(map[string]int)
	for _, a := range s.agents {
		out[string(a.state)]++
	}
	return out
}
