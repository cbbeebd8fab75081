// Package allocator partitions the merged target list between the
// downstream agents.
package allocator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/dyluth/sortie/internal/classifier"
	"github.com/dyluth/sortie/pkg/blackboard"
	"github.com/google/uuid"
)

// ErrNoRecipients is returned when there is nobody to allocate to.
var ErrNoRecipients = errors.New("no recipients to allocate to")

// Recipient receives one group of targets. Receiving an assignment ends the
// recipient's participation.
type Recipient interface {
	ID() string
	ReceiveAssignment(a blackboard.Assignment)
}

// Journal persists assignments. blackboard.Client satisfies it.
type Journal interface {
	PutAssignment(ctx context.Context, a *blackboard.Assignment) error
}

// Observer is told the size of every delivered assignment.
type Observer interface {
	Assigned(recipient string, size int)
}

// Group is one cluster of triaged targets, ordered by descending survival.
type Group struct {
	Number  int
	Targets []blackboard.TriagedTarget
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithClassifier sets the triage model. Without one every target gets the
// sentinel result.
func WithClassifier(c classifier.Classifier, featureOffset int) Option {
	return func(a *Allocator) {
		a.classifier = c
		a.featureOffset = featureOffset
	}
}

// WithClusterDir writes cluster files into dir.
func WithClusterDir(dir string) Option {
	return func(a *Allocator) { a.writer = NewClusterWriter(dir) }
}

// WithJournal persists every assignment.
func WithJournal(j Journal) Option {
	return func(a *Allocator) { a.journal = j }
}

// WithObserver attaches an assignment observer.
func WithObserver(o Observer) Option {
	return func(a *Allocator) { a.observer = o }
}

// WithRunID stamps assignments with the mission run ID.
func WithRunID(id string) Option {
	return func(a *Allocator) { a.runID = id }
}

// WithInstance sets the instance name stamped on structured log events.
func WithInstance(name string) Option {
	return func(a *Allocator) { a.instanceName = name }
}

// Allocator classifies targets, clusters them by position and hands one
// cluster to each recipient.
type Allocator struct {
	classifier    classifier.Classifier
	featureOffset int
	writer        *ClusterWriter
	journal       Journal
	observer      Observer
	runID         string
	instanceName  string
	maxIter       int
}

// New creates an Allocator.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		classifier:    classifier.Unavailable{},
		featureOffset: classifier.DefaultFeatureOffset,
		maxIter:       DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runID == "" {
		a.runID = uuid.New().String()
	}
	return a
}

// Allocate partitions merged.Targets into min(len(recipients), targets)
// groups and delivers group i to recipients[i]. A nil recipient slot is
// logged and skipped. With no targets nothing happens.
func (a *Allocator) Allocate(ctx context.Context, merged blackboard.MergedView, recipients []Recipient) ([]Group, error) {
	if len(merged.Targets) == 0 {
		log.Printf("[Allocator] No targets to allocate")
		return nil, nil
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	triaged := a.triage(merged.Targets)
	groups := a.cluster(triaged, len(recipients))

	a.writeClusters(groups)

	for i, g := range groups {
		a.deliver(ctx, g, recipients[i])
	}
	return groups, nil
}

// writeClusters stores each group as a cluster file. Failures are logged;
// delivery does not depend on them.
func (a *Allocator) writeClusters(groups []Group) {
	if a.writer == nil {
		return
	}
	if err := a.writer.Reset(); err != nil {
		log.Printf("[Allocator] Cluster files not written: %v", err)
		a.logEvent("cluster_write_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, g := range groups {
		path, err := a.writer.Write(g)
		if err != nil {
			log.Printf("[Allocator] Failed to write group %d: %v", g.Number, err)
			a.logEvent("cluster_write_failed", map[string]interface{}{
				"group": g.Number,
				"error": err.Error(),
			})
			continue
		}
		log.Printf("[Allocator] Group %d written to %s (%d targets)", g.Number, path, len(g.Targets))
	}
}

func (a *Allocator) triage(targets []blackboard.TargetRecord) []blackboard.TriagedTarget {
	out := make([]blackboard.TriagedTarget, len(targets))
	for i, t := range targets {
		res, err := classifier.ClassifySignals(a.classifier, t.Signals, a.featureOffset)
		if err != nil {
			log.Printf("[Allocator] Classification of target %s failed: %v", t.ID, err)
		}
		out[i] = blackboard.TriagedTarget{
			TargetRecord: t.Clone(),
			Severity:     res.Severity,
			Survival:     res.Survival,
		}
	}
	return out
}

func (a *Allocator) cluster(targets []blackboard.TriagedTarget, slots int) []Group {
	points := make([]Point, len(targets))
	for i, t := range targets {
		points[i] = Point{X: float64(t.Position.X), Y: float64(t.Position.Y)}
	}

	k := slots
	if len(targets) < k {
		k = len(targets)
	}
	labels := KMeans(points, k, a.maxIter)

	groups := make([]Group, k)
	for i := range groups {
		groups[i].Number = i + 1
	}
	for i, l := range labels {
		groups[l].Targets = append(groups[l].Targets, targets[i])
	}
	for _, g := range groups {
		sort.SliceStable(g.Targets, func(i, j int) bool {
			return g.Targets[i].Survival > g.Targets[j].Survival
		})
	}
	return groups
}

func (a *Allocator) deliver(ctx context.Context, g Group, r Recipient) {
	if r == nil {
		log.Printf("[Allocator] No recipient for group %d, skipping delivery", g.Number)
		return
	}

	assignment := blackboard.Assignment{
		ID:          uuid.New().String(),
		RunID:       a.runID,
		Recipient:   r.ID(),
		Group:       g.Number,
		Targets:     g.Targets,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if a.journal != nil {
		if err := a.journal.PutAssignment(ctx, &assignment); err != nil {
			log.Printf("[Allocator] Failed to journal assignment for %s: %v", r.ID(), err)
		}
	}

	r.ReceiveAssignment(assignment)
	if a.observer != nil {
		a.observer.Assigned(r.ID(), len(g.Targets))
	}
	a.logEvent("assignment_delivered", map[string]interface{}{
		"assignment_id": assignment.ID,
		"recipient":     r.ID(),
		"group":         g.Number,
		"targets":       len(g.Targets),
	})
}

func (a *Allocator) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "allocator"
	data["event_type"] = eventType
	data["instance"] = a.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Allocator] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}

