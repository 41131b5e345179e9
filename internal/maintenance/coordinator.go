package maintenance

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"dev.helix.sqlmaint/internal/logging"
)

var coordLog = logging.Named("maintenance.coordinator")

// HistoryPersister appends one completed run's summary to durable storage,
// off the synchronous run path. Implemented by internal/history.
type HistoryPersister interface {
	PersistRun(ctx context.Context, profileID, profileName, server, startedAt, finishedAt string, summary MaintenanceSummary) error
}

// Coordinator accepts run requests, owns the per-profile control buses,
// chooses sequential vs. bounded-parallel execution, and finalizes the
// persisted summary for each run.
type Coordinator struct {
	mu      sync.Mutex
	buses   map[string]*ControlBus
	emitter *Emitter
	history HistoryPersister
	metrics *Metrics
}

// NewCoordinator wires an emitter (for UI progress) and a history
// persister (may be nil to skip persistence, e.g. in tests).
func NewCoordinator(emitter *Emitter, history HistoryPersister, metrics *Metrics) *Coordinator {
	return &Coordinator{
		buses:   make(map[string]*ControlBus),
		emitter: emitter,
		history: history,
		metrics: metrics,
	}
}

// Run validates the request, registers a control bus for profile.ID, and
// starts the dispatcher asynchronously. It returns as soon as the run has
// been accepted — not when it finishes.
func (c *Coordinator) Run(ctx context.Context, profile ServerProfile, databases []string, opts MaintenanceOptions) error {
	if err := ValidateRunRequest(profile, opts); err != nil {
		return err
	}

	c.mu.Lock()
	if _, exists := c.buses[profile.ID]; exists {
		c.mu.Unlock()
		return errors.New("maintenance run is already active for this profile")
	}
	bus := NewControlBus()
	c.buses[profile.ID] = bus
	c.mu.Unlock()

	c.metrics.recordRunStarted()

	go c.dispatch(ctx, bus, profile, databases, opts)
	return nil
}

// Pause, Resume, SkipDatabase and Stop look up the active bus for a
// profile and publish the requested transition. SkipDatabase deliberately
// emits no control event — the worker that consumes it restores Running
// and emits that transition itself.
func (c *Coordinator) Pause(profileID string) error {
	return c.publish(profileID, Paused, true)
}

func (c *Coordinator) Resume(profileID string) error {
	return c.publish(profileID, Running, true)
}

func (c *Coordinator) SkipDatabase(profileID string) error {
	return c.publish(profileID, SkipDatabase, false)
}

func (c *Coordinator) Stop(profileID string) error {
	return c.publish(profileID, Stop, true)
}

func (c *Coordinator) publish(profileID string, state ControlState, emitEvent bool) error {
	c.mu.Lock()
	bus, ok := c.buses[profileID]
	c.mu.Unlock()
	if !ok {
		return errors.New("no active maintenance run for this profile")
	}
	bus.Publish(state)
	if emitEvent {
		c.emitter.Emit(Event{Kind: EventControl, ProfileID: profileID, Control: &ControlEvent{State: state}})
	}
	return nil
}

func (c *Coordinator) dispatch(ctx context.Context, bus *ControlBus, profile ServerProfile, databases []string, opts MaintenanceOptions) {
	if opts.ParallelDatabases {
		c.dispatchParallel(ctx, bus, profile, databases, opts)
	} else {
		c.dispatchSequential(ctx, bus, profile, databases, opts)
	}
}

func (c *Coordinator) dispatchSequential(ctx context.Context, bus *ControlBus, profile ServerProfile, databases []string, opts MaintenanceOptions) {
	c.emitter.Emit(Event{Kind: EventControl, ProfileID: profile.ID, Control: &ControlEvent{State: Running}})
	runStart := time.Now()
	startedAt := time.Now().UTC().Format(time.RFC3339)
	total := uint32(len(databases))

	var results []DatabaseResult

outer:
	for i, dbName := range databases {
		if ctrl, interrupted := bus.Check(); interrupted {
			switch ctrl {
			case Stop:
				// Coordinator.Stop already emitted this transition via publish;
				// emitting it again here would duplicate it in the event stream.
				break outer
			case SkipDatabase:
				bus.ResetRunning()
				c.emitter.Emit(Event{Kind: EventControl, ProfileID: profile.ID, Control: &ControlEvent{State: Running}})
				result := MakeSkippedResult(dbName)
				c.emitter.Emit(Event{Kind: EventDBComplete, ProfileID: profile.ID, DBResult: &result})
				results = append(results, result)
				continue outer
			}
		}

		c.emitter.Emit(Event{Kind: EventDBStart, ProfileID: profile.ID, DBStart: &DBStartEvent{
			DatabaseName: dbName, Current: uint32(i) + 1, Total: total,
		}})

		result, shouldStop := processDatabase(ctx, profile.ID, profile, dbName, opts, bus, c.emitter, c.metrics)
		c.emitter.Emit(Event{Kind: EventDBComplete, ProfileID: profile.ID, DBResult: &result})
		results = append(results, result)

		if shouldStop {
			// Same as above: the operator's Stop call already emitted the
			// control{stop} transition; processDatabase only reports that it
			// observed it.
			break outer
		}
	}

	c.finishRun(ctx, profile, results, runStart, startedAt)
}

func (c *Coordinator) dispatchParallel(ctx context.Context, bus *ControlBus, profile ServerProfile, databases []string, opts MaintenanceOptions) {
	c.emitter.Emit(Event{Kind: EventControl, ProfileID: profile.ID, Control: &ControlEvent{State: Running}})
	runStart := time.Now()
	startedAt := time.Now().UTC().Format(time.RFC3339)
	total := uint32(len(databases))

	maxParallel := int(opts.MaxParallelDatabases)
	if maxParallel < 1 {
		maxParallel = 1
	}
	sem := make(chan struct{}, maxParallel)

	type indexedResult struct {
		idx    int
		result DatabaseResult
	}
	resultsCh := make(chan indexedResult, len(databases))
	var wg sync.WaitGroup
	var stopOnce sync.Once

	for i, dbName := range databases {
		// Acquire the semaphore BEFORE spawning so backpressure applies at
		// task creation, not after a goroutine already holds connection state.
		sem <- struct{}{}

		c.emitter.Emit(Event{Kind: EventDBStart, ProfileID: profile.ID, DBStart: &DBStartEvent{
			DatabaseName: dbName, Current: uint32(i) + 1, Total: total,
		}})

		wg.Add(1)
		go func(idx int, dbName string) {
			defer wg.Done()
			defer func() { <-sem }()

			result, shouldStop := processDatabase(ctx, profile.ID, profile, dbName, opts, bus, c.emitter, c.metrics)
			c.emitter.Emit(Event{Kind: EventDBComplete, ProfileID: profile.ID, DBResult: &result})
			resultsCh <- indexedResult{idx: idx, result: result}

			if shouldStop {
				// Re-publishing Stop here is a no-op if the bus is already in
				// that state; it only matters the first time a worker notices
				// a stop that hasn't yet reached the other in-flight workers.
				stopOnce.Do(func() { bus.Publish(Stop) })
			}
		}(i, dbName)
	}

	wg.Wait()
	close(resultsCh)

	ordered := make([]indexedResult, 0, len(databases))
	for r := range resultsCh {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].idx < ordered[j].idx })

	results := make([]DatabaseResult, len(ordered))
	for i, r := range ordered {
		results[i] = r.result
	}

	c.finishRun(ctx, profile, results, runStart, startedAt)
}

func (c *Coordinator) finishRun(ctx context.Context, profile ServerProfile, results []DatabaseResult, runStart time.Time, startedAt string) {
	summary := BuildSummary(results, time.Since(runStart).Seconds())
	c.emitter.Emit(Event{Kind: EventFinished, ProfileID: profile.ID, Summary: &summary})

	if c.history != nil {
		finishedAt := time.Now().UTC().Format(time.RFC3339)
		if err := c.history.PersistRun(ctx, profile.ID, profile.Name, profile.Server, startedAt, finishedAt, summary); err != nil {
			coordLog.Error("failed to persist run history for profile %s: %s", profile.ID, err)
		}
	}

	c.mu.Lock()
	delete(c.buses, profile.ID)
	c.mu.Unlock()
}

// ActiveRunCount reports how many control buses are currently registered,
// i.e. how many runs are in flight — at most one per profile id.
func (c *Coordinator) ActiveRunCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buses)
}
