package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the mission journal.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new blackboard client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: mission instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// InstanceName returns the namespace this client writes to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PutWorldView stores an explorer's snapshot and publishes a world_view event.
// Writing the same snapshot twice is safe.
func (c *Client) PutWorldView(ctx context.Context, w *WorldView) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("invalid world view: %w", err)
	}

	hash, err := WorldViewToHash(w)
	if err != nil {
		return fmt.Errorf("failed to serialize world view: %w", err)
	}

	key := WorldViewKey(c.instanceName, w.AgentID)
	if err := c.replaceHash(ctx, key, hash); err != nil {
		return fmt.Errorf("failed to write world view to Redis: %w", err)
	}

	return c.PublishEvent(ctx, MissionEvent{
		Type:    EventWorldView,
		AgentID: w.AgentID,
		Count:   len(w.Targets),
	})
}

// GetWorldView retrieves an explorer's snapshot.
// Returns (nil, redis.Nil) if it doesn't exist. Use IsNotFound() to check.
func (c *Client) GetWorldView(ctx context.Context, agentID string) (*WorldView, error) {
	hashData, err := c.rdb.HGetAll(ctx, WorldViewKey(c.instanceName, agentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read world view from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	w, err := HashToWorldView(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize world view: %w", err)
	}
	return w, nil
}

// PutMergedView stores the leader's merged view and publishes a merged event.
func (c *Client) PutMergedView(ctx context.Context, m *MergedView) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid merged view: %w", err)
	}

	hash, err := MergedViewToHash(m)
	if err != nil {
		return fmt.Errorf("failed to serialize merged view: %w", err)
	}

	if err := c.replaceHash(ctx, MergedViewKey(c.instanceName), hash); err != nil {
		return fmt.Errorf("failed to write merged view to Redis: %w", err)
	}

	return c.PublishEvent(ctx, MissionEvent{
		Type:  EventMerged,
		Count: len(m.Targets),
	})
}

// GetMergedView retrieves the merged view. Returns (nil, redis.Nil) if absent.
func (c *Client) GetMergedView(ctx context.Context) (*MergedView, error) {
	hashData, err := c.rdb.HGetAll(ctx, MergedViewKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read merged view from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	m, err := HashToMergedView(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize merged view: %w", err)
	}
	return m, nil
}

// PutSyncReport stores the synchronization report and publishes a sync_report event.
func (c *Client) PutSyncReport(ctx context.Context, r *SyncReport) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid sync report: %w", err)
	}

	hash, err := SyncReportToHash(r)
	if err != nil {
		return fmt.Errorf("failed to serialize sync report: %w", err)
	}

	if err := c.replaceHash(ctx, SyncReportKey(c.instanceName), hash); err != nil {
		return fmt.Errorf("failed to write sync report to Redis: %w", err)
	}

	return c.PublishEvent(ctx, MissionEvent{
		Type:    EventSyncReport,
		AgentID: r.LeaderID,
		RefID:   r.RunID,
		Count:   r.UniqueTargets,
	})
}

// GetSyncReport retrieves the synchronization report. Returns (nil, redis.Nil) if absent.
func (c *Client) GetSyncReport(ctx context.Context) (*SyncReport, error) {
	hashData, err := c.rdb.HGetAll(ctx, SyncReportKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sync report from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	r, err := HashToSyncReport(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize sync report: %w", err)
	}
	return r, nil
}

// PutAssignment stores an assignment, indexes it by group, and publishes an assignment event.
// The first assignment of a new run clears every assignment left by the previous run.
func (c *Client) PutAssignment(ctx context.Context, a *Assignment) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid assignment: %w", err)
	}

	hash, err := AssignmentToHash(a)
	if err != nil {
		return fmt.Errorf("failed to serialize assignment: %w", err)
	}

	stale, err := c.staleAssignments(ctx, a.RunID)
	if err != nil {
		return err
	}

	key := AssignmentKey(c.instanceName, a.Recipient)
	indexKey := AssignmentIndexKey(c.instanceName)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if stale != nil {
			for _, recipient := range stale {
				pipe.Del(ctx, AssignmentKey(c.instanceName, recipient))
			}
			pipe.Del(ctx, indexKey)
			pipe.Set(ctx, AssignmentRunKey(c.instanceName), a.RunID, 0)
		}
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, hash)
		pipe.ZAdd(ctx, indexKey, redis.Z{
			Score:  float64(a.Group),
			Member: a.Recipient,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write assignment to Redis: %w", err)
	}

	return c.PublishEvent(ctx, MissionEvent{
		Type:    EventAssignment,
		AgentID: a.Recipient,
		RefID:   a.ID,
		Count:   len(a.Targets),
	})
}

// staleAssignments returns the recipients indexed under a run other than
// runID, or nil when the stored assignments already belong to runID.
// The returned slice is non-nil whenever the run changes.
func (c *Client) staleAssignments(ctx context.Context, runID string) ([]string, error) {
	current, err := c.rdb.Get(ctx, AssignmentRunKey(c.instanceName)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read assignment run: %w", err)
	}
	if current == runID {
		return nil, nil
	}

	recipients, err := c.rdb.ZRange(ctx, AssignmentIndexKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment index: %w", err)
	}
	if recipients == nil {
		recipients = []string{}
	}
	return recipients, nil
}

// GetAssignment retrieves a recipient's assignment. Returns (nil, redis.Nil) if absent.
func (c *Client) GetAssignment(ctx context.Context, recipient string) (*Assignment, error) {
	hashData, err := c.rdb.HGetAll(ctx, AssignmentKey(c.instanceName, recipient)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	a, err := HashToAssignment(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize assignment: %w", err)
	}
	return a, nil
}

// ListAssignments returns every stored assignment ordered by group.
// Returns an empty slice when none exist.
func (c *Client) ListAssignments(ctx context.Context) ([]*Assignment, error) {
	recipients, err := c.rdb.ZRange(ctx, AssignmentIndexKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment index: %w", err)
	}

	out := make([]*Assignment, 0, len(recipients))
	for _, recipient := range recipients {
		a, err := c.GetAssignment(ctx, recipient)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// PublishEvent publishes a mission event. CreatedAtMs is stamped if unset.
func (c *Client) PublishEvent(ctx context.Context, ev MissionEvent) error {
	if ev.CreatedAtMs == 0 {
		ev.CreatedAtMs = time.Now().UnixMilli()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal mission event: %w", err)
	}

	if err := c.rdb.Publish(ctx, MissionEventsChannel(c.instanceName), data).Err(); err != nil {
		return fmt.Errorf("failed to publish mission event: %w", err)
	}
	return nil
}

// replaceHash overwrites a hash atomically so stale fields never survive.
func (c *Client) replaceHash(ctx context.Context, key string, hash map[string]interface{}) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, hash)
		return nil
	})
	return err
}

// EventSubscription represents an active Pub/Sub subscription to mission events.
// Caller must call Close() when done to clean up resources.
type EventSubscription struct {
	events <-chan *MissionEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of mission events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *EventSubscription) Events() <-chan *MissionEvent {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - malformed messages are skipped.
func (s *EventSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *EventSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeMissionEvents subscribes to mission events for this instance.
// Events are delivered on a buffered channel (size 10); Redis Pub/Sub is at-most-once.
func (c *Client) SubscribeMissionEvents(ctx context.Context) (*EventSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, MissionEventsChannel(c.instanceName))

	// Wait for the subscription to be confirmed so no early publish is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to mission events: %w", err)
	}

	eventsChan := make(chan *MissionEvent, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev MissionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal mission event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &EventSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
