package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/dyluth/sortie/pkg/blackboard"
	"github.com/google/uuid"
)

// WaitLogChance is the probability of logging on each tick spent waiting.
const WaitLogChance = 0.05

// Journal persists the synchronization artefacts. blackboard.Client
// satisfies it.
type Journal interface {
	PutWorldView(ctx context.Context, w *blackboard.WorldView) error
	PutMergedView(ctx context.Context, m *blackboard.MergedView) error
	PutSyncReport(ctx context.Context, r *blackboard.SyncReport) error
}

// Observer is notified once the merge has completed.
type Observer interface {
	Synchronized(report blackboard.SyncReport)
}

// Option configures a Leader.
type Option func(*Leader)

// WithJournal persists snapshots, the merged view and the report.
// Journal failures are logged and never abort the mission.
func WithJournal(j Journal) Option {
	return func(l *Leader) { l.journal = j }
}

// WithObserver attaches a synchronization observer.
func WithObserver(o Observer) Option {
	return func(l *Leader) { l.observer = o }
}

// WithRand sets the random source for throttled wait logging.
func WithRand(rng *rand.Rand) Option {
	return func(l *Leader) { l.rng = rng }
}

// WithRunID sets the mission run ID stamped on the report.
func WithRunID(id string) Option {
	return func(l *Leader) { l.runID = id }
}

// WithInstance sets the instance name stamped on structured log events.
func WithInstance(name string) Option {
	return func(l *Leader) { l.instanceName = name }
}

// Leader runs the synchronization barrier on behalf of the leading explorer.
// It waits until every registered peer has finished, merges all world views
// once and hands the result to the downstream team.
type Leader struct {
	id           string
	registry     *Registry
	journal      Journal
	observer     Observer
	rng          *rand.Rand
	runID        string
	instanceName string

	report *blackboard.SyncReport
}

// NewLeader creates the coordinator for the explorer with the given ID.
func NewLeader(id string, registry *Registry, opts ...Option) (*Leader, error) {
	if id == "" {
		return nil, fmt.Errorf("leader id cannot be empty")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	l := &Leader{id: id, registry: registry}
	for _, opt := range opts {
		opt(l)
	}
	if l.rng == nil {
		l.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if l.runID == "" {
		l.runID = uuid.New().String()
	}
	if _, err := uuid.Parse(l.runID); err != nil {
		return nil, fmt.Errorf("invalid run ID %q: %w", l.runID, err)
	}
	return l, nil
}

// RunID returns the mission run ID.
func (l *Leader) RunID() string { return l.runID }

// Report returns the synchronization report once it exists.
func (l *Leader) Report() (blackboard.SyncReport, bool) {
	if l.report == nil {
		return blackboard.SyncReport{}, false
	}
	return *l.report, true
}

// Ready reports whether every peer has reached a terminal state. While any
// peer is still active nothing is merged.
func (l *Leader) Ready(ctx context.Context) bool {
	var active []string
	for _, p := range l.registry.Peers() {
		if !p.IsTerminal() {
			active = append(active, p.ID())
		}
	}

	if len(active) == 0 {
		log.Printf("[Coordinator] All %d explorers finished, synchronizing", len(l.registry.Peers()))
		return true
	}

	if l.rng.Float64() < WaitLogChance {
		log.Printf("[Coordinator] Waiting for %d explorers: %v", len(active), active)
	}
	return false
}

// Synchronize merges the leader's own view with every peer snapshot,
// activates the downstream team and delivers the merged view to its leader.
// It runs once; later calls return the first report unchanged.
func (l *Leader) Synchronize(ctx context.Context, self blackboard.WorldView) blackboard.SyncReport {
	if l.report != nil {
		return *l.report
	}

	views, perPeer := l.collect(self)
	merged := Merge(views)

	sum := 0
	for _, pc := range perPeer {
		sum += pc.Targets
	}
	unique := len(merged.Targets)

	report := blackboard.SyncReport{
		RunID:           l.runID,
		LeaderID:        l.id,
		UniqueTargets:   unique,
		UniqueObstacles: len(merged.Obstacles),
		PerPeer:         perPeer,
		SumTargets:      sum,
		Overlap:         blackboard.OverlapRatio(sum, unique),
		CreatedAtMs:     time.Now().UnixMilli(),
	}

	for _, pc := range perPeer {
		log.Printf("[Coordinator] %s reported %d targets", pc.AgentID, pc.Targets)
	}
	log.Printf("[Coordinator] Overlap = %d / %d - 1 = %.2f", sum, unique, report.Overlap)

	l.journalAll(ctx, views, &merged, &report)
	l.handOver(merged)

	l.logEvent("synchronized", map[string]interface{}{
		"run_id":           report.RunID,
		"unique_targets":   report.UniqueTargets,
		"unique_obstacles": report.UniqueObstacles,
		"sum_targets":      report.SumTargets,
		"overlap":          report.Overlap,
	})
	if l.observer != nil {
		l.observer.Synchronized(report)
	}

	l.report = &report
	return report
}

// collect gathers the leader's own view first, then each peer in
// registration order. An unavailable snapshot counts as zero targets.
func (l *Leader) collect(self blackboard.WorldView) ([]blackboard.WorldView, []blackboard.PeerCount) {
	var views []blackboard.WorldView
	var perPeer []blackboard.PeerCount

	add := func(id string, view blackboard.WorldView, err error) {
		if err == nil {
			err = view.Validate()
		}
		if err != nil {
			log.Printf("[Coordinator] Snapshot from %s unavailable: %v", id, err)
			perPeer = append(perPeer, blackboard.PeerCount{AgentID: id, Missing: true})
			return
		}
		views = append(views, view)
		perPeer = append(perPeer, blackboard.PeerCount{AgentID: id, Targets: len(view.Targets)})
	}

	add(l.id, self, nil)
	for _, p := range l.registry.Peers() {
		view, err := p.ExportWorldView()
		add(p.ID(), view, err)
	}
	return views, perPeer
}

func (l *Leader) handOver(merged blackboard.MergedView) {
	for _, d := range l.registry.Downstream() {
		d.Activate()
	}

	leader, ok := l.registry.DownstreamLeader()
	if !ok {
		log.Printf("[Coordinator] No downstream leader registered, merged view not delivered")
		return
	}
	leader.ReceiveMergedWorld(merged)
	log.Printf("[Coordinator] Delivered merged view (%d targets, %d obstacles) to %s",
		len(merged.Targets), len(merged.Obstacles), leader.ID())
}

func (l *Leader) journalAll(ctx context.Context, views []blackboard.WorldView, merged *blackboard.MergedView, report *blackboard.SyncReport) {
	if l.journal == nil {
		return
	}

	for i := range views {
		if err := l.journal.PutWorldView(ctx, &views[i]); err != nil {
			log.Printf("[Coordinator] Failed to journal world view of %s: %v", views[i].AgentID, err)
		}
	}
	if err := l.journal.PutMergedView(ctx, merged); err != nil {
		log.Printf("[Coordinator] Failed to journal merged view: %v", err)
	}
	if err := l.journal.PutSyncReport(ctx, report); err != nil {
		log.Printf("[Coordinator] Failed to journal sync report: %v", err)
	}
}

func (l *Leader) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "coordinator"
	data["event_type"] = eventType
	data["instance"] = l.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Coordinator] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
