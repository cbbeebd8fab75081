package sim

import (
	"github.com/dyluth/sortie/internal/coordinator"
	"github.com/dyluth/sortie/internal/explorer"
	"github.com/dyluth/sortie/internal/rescuer"
	"github.com/dyluth/sortie/pkg/blackboard"
)

// explorerHandle exposes a hosted explorer to the coordinator.
type explorerHandle struct {
	agent *Agent
	ex    *explorer.Explorer
}

// PeerHandle wraps a hosted explorer as a coordinator peer. Termination
// is judged by the host, so a dead explorer also counts as finished.
func PeerHandle(a *Agent, ex *explorer.Explorer) coordinator.Peer {
	return &explorerHandle{agent: a, ex: ex}
}

func (h *explorerHandle) ID() string       { return h.ex.ID() }
func (h *explorerHandle) IsTerminal() bool { return h.agent.Terminal() }

func (h *explorerHandle) ExportWorldView() (blackboard.WorldView, error) {
	return h.ex.ExportWorldView(), nil
}

// rescuerHandle exposes a hosted rescuer to the coordinator.
type rescuerHandle struct {
	agent *Agent
	r     *rescuer.Rescuer
}

// DownstreamHandle wraps a hosted rescuer as a coordinator downstream agent.
// Activation wakes both the host agent and the rescuer.
func DownstreamHandle(a *Agent, r *rescuer.Rescuer) coordinator.Downstream {
	return &rescuerHandle{agent: a, r: r}
}

func (h *rescuerHandle) ID() string            { return h.r.ID() }
func (h *rescuerHandle) Role() blackboard.Role { return h.r.Role() }

func (h *rescuerHandle) Activate() {
	h.agent.Activate()
	h.r.Activate()
}

func (h *rescuerHandle) ReceiveMergedWorld(view blackboard.MergedView) {
	h.r.ReceiveMergedWorld(view)
}
