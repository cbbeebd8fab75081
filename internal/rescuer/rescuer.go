// Package rescuer implements the downstream team that receives the merged
// world. The leader partitions the targets; every member then ends with
// its own assignment.
package rescuer

import (
	"context"
	"fmt"
	"log"

	"github.com/dyluth/sortie/internal/allocator"
	"github.com/dyluth/sortie/pkg/blackboard"
)

// State is a rescuer's lifecycle state.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StateEnded  State = "ended"
)

// Rescuer is one member of the downstream team.
type Rescuer struct {
	id    string
	role  blackboard.Role
	state State

	alloc *allocator.Allocator
	team  []*Rescuer

	merged     *blackboard.MergedView
	allocated  bool
	groups     []allocator.Group
	assignment *blackboard.Assignment
}

// NewLeader creates the team leader, which runs alloc once the merged view
// arrives.
func NewLeader(id string, alloc *allocator.Allocator) (*Rescuer, error) {
	if id == "" {
		return nil, fmt.Errorf("rescuer id cannot be empty")
	}
	if alloc == nil {
		return nil, fmt.Errorf("rescuer %s: leader requires an allocator", id)
	}
	return &Rescuer{id: id, role: blackboard.RoleAllocatorLeader, state: StateIdle, alloc: alloc}, nil
}

// NewFollower creates a team member that waits for its assignment.
func NewFollower(id string) (*Rescuer, error) {
	if id == "" {
		return nil, fmt.Errorf("rescuer id cannot be empty")
	}
	return &Rescuer{id: id, role: blackboard.RoleAllocatorFollower, state: StateIdle}, nil
}

// SetTeam sets the ordered recipient slots. Group i goes to team[i]; a nil
// slot is a missing member.
func (r *Rescuer) SetTeam(team []*Rescuer) {
	r.team = append([]*Rescuer(nil), team...)
}

func (r *Rescuer) ID() string            { return r.id }
func (r *Rescuer) Role() blackboard.Role { return r.role }
func (r *Rescuer) State() State          { return r.state }
func (r *Rescuer) IsTerminal() bool      { return r.state == StateEnded }

// Assignment returns the assignment received, if any.
func (r *Rescuer) Assignment() (blackboard.Assignment, bool) {
	if r.assignment == nil {
		return blackboard.Assignment{}, false
	}
	return *r.assignment, true
}

// Groups returns the groups the leader produced.
func (r *Rescuer) Groups() []allocator.Group {
	return r.groups
}

// Activate wakes an idle rescuer.
func (r *Rescuer) Activate() {
	if r.state == StateIdle {
		r.state = StateActive
	}
}

// ReceiveMergedWorld stores the merged view. Only the leader acts on it.
func (r *Rescuer) ReceiveMergedWorld(view blackboard.MergedView) {
	if !r.role.IsLeader() {
		log.Printf("[Rescuer %s] Ignoring merged view: not the team leader", r.id)
		return
	}
	r.merged = &view
	log.Printf("[Rescuer %s] Received merged view with %d targets", r.id, len(view.Targets))
}

// ReceiveAssignment stores the assignment and ends the rescuer.
func (r *Rescuer) ReceiveAssignment(a blackboard.Assignment) {
	r.assignment = &a
	r.state = StateEnded
	log.Printf("[Rescuer %s] Received assignment with %d targets", r.id, len(a.Targets))
}

// Release ends a member that was given no group.
func (r *Rescuer) Release() {
	if r.state == StateEnded {
		return
	}
	r.state = StateEnded
	log.Printf("[Rescuer %s] Released with no assignment", r.id)
}

// Deliberate performs one step and returns false once the rescuer has ended.
func (r *Rescuer) Deliberate(ctx context.Context) bool {
	if r.state == StateActive && r.role.IsLeader() && r.merged != nil && !r.allocated {
		r.allocate(ctx)
	}
	return r.state != StateEnded
}

func (r *Rescuer) allocate(ctx context.Context) {
	r.allocated = true

	recipients := make([]allocator.Recipient, len(r.team))
	for i, m := range r.team {
		if m != nil {
			recipients[i] = m
		}
	}

	groups, err := r.alloc.Allocate(ctx, *r.merged, recipients)
	if err != nil {
		log.Printf("[Rescuer %s] Allocation failed: %v", r.id, err)
	}
	r.groups = groups

	for _, m := range r.team {
		if m != nil && m.assignment == nil {
			m.Release()
		}
	}
	r.Release()
}
