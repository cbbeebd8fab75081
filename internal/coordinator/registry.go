package coordinator

import (
	"errors"
	"fmt"

	"github.com/dyluth/sortie/pkg/blackboard"
)

// ErrSnapshotUnavailable is returned by a Peer that cannot produce a world view.
var ErrSnapshotUnavailable = errors.New("world view snapshot unavailable")

// Peer is the leader's handle on one explorer.
type Peer interface {
	ID() string
	IsTerminal() bool
	ExportWorldView() (blackboard.WorldView, error)
}

// Downstream is the leader's handle on one allocating agent.
type Downstream interface {
	ID() string
	Role() blackboard.Role
	Activate()
	ReceiveMergedWorld(view blackboard.MergedView)
}

// Registry is the explicit roster the leader coordinates: the other
// explorers it waits for and the downstream team it hands over to.
type Registry struct {
	peers      []Peer
	downstream []Downstream
	ids        map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// AddPeer registers an explorer the leader must wait for.
func (r *Registry) AddPeer(p Peer) error {
	if p == nil {
		return fmt.Errorf("peer cannot be nil")
	}
	if err := r.claim(p.ID()); err != nil {
		return err
	}
	r.peers = append(r.peers, p)
	return nil
}

// AddDownstream registers a downstream agent.
func (r *Registry) AddDownstream(d Downstream) error {
	if d == nil {
		return fmt.Errorf("downstream agent cannot be nil")
	}
	if d.Role().IsExplorer() {
		return fmt.Errorf("downstream agent %s has explorer role %q", d.ID(), d.Role())
	}
	if err := r.claim(d.ID()); err != nil {
		return err
	}
	r.downstream = append(r.downstream, d)
	return nil
}

func (r *Registry) claim(id string) error {
	if id == "" {
		return fmt.Errorf("agent id cannot be empty")
	}
	if _, dup := r.ids[id]; dup {
		return fmt.Errorf("agent %s already registered", id)
	}
	r.ids[id] = struct{}{}
	return nil
}

// Peers returns the registered explorers in registration order.
func (r *Registry) Peers() []Peer {
	return append([]Peer(nil), r.peers...)
}

// Downstream returns the registered downstream agents in registration order.
func (r *Registry) Downstream() []Downstream {
	return append([]Downstream(nil), r.downstream...)
}

// DownstreamLeader returns the first downstream agent with a leader role.
func (r *Registry) DownstreamLeader() (Downstream, bool) {
	for _, d := range r.downstream {
		if d.Role().IsLeader() {
			return d, true
		}
	}
	return nil, false
}
