package maintenance

import "sync"

// EventKind names a progress-event type.
type EventKind string

const (
	EventControl       EventKind = "control"
	EventDBStart       EventKind = "db-start"
	EventIndexFound    EventKind = "index-found"
	EventIndexAction   EventKind = "index-action"
	EventIndexComplete EventKind = "index-complete"
	EventDBComplete    EventKind = "db-complete"
	EventFinished      EventKind = "finished"
	EventError         EventKind = "error"
)

// Event is a typed, owned progress payload for one run. ProfileID and the
// natural identifying keys for the entity described are always present.
type Event struct {
	Kind      EventKind          `json:"kind"`
	ProfileID string             `json:"profileId"`
	Control   *ControlEvent      `json:"control,omitempty"`
	DBStart   *DBStartEvent      `json:"dbStart,omitempty"`
	Index     *IndexInfo         `json:"index,omitempty"`
	Action    *IndexActionEvent  `json:"action,omitempty"`
	Complete  *IndexCompleteEvent `json:"complete,omitempty"`
	DBResult  *DatabaseResult    `json:"dbResult,omitempty"`
	Summary   *MaintenanceSummary `json:"summary,omitempty"`
	Message   string             `json:"message,omitempty"`
}

type ControlEvent struct {
	State ControlState `json:"state"`
}

type DBStartEvent struct {
	DatabaseName string `json:"databaseName"`
	Current      uint32 `json:"current"`
	Total        uint32 `json:"total"`
}

type IndexActionEvent struct {
	DatabaseName string            `json:"databaseName"`
	SchemaName   string            `json:"schemaName"`
	TableName    string            `json:"tableName"`
	IndexName    string            `json:"indexName"`
	Action       MaintenanceAction `json:"action"`
}

type IndexCompleteEvent struct {
	DatabaseName  string            `json:"databaseName"`
	SchemaName    string            `json:"schemaName"`
	TableName     string            `json:"tableName"`
	IndexName     string            `json:"indexName"`
	Action        MaintenanceAction `json:"action"`
	Success       bool              `json:"success"`
	DurationSecs  float64           `json:"durationSecs"`
	RetryAttempts uint32            `json:"retryAttempts"`
	Error         *string           `json:"error,omitempty"`
}

// Emitter is a fire-and-forget fan-out of events to the UI. Delivery is
// best-effort: a slow or dropped subscriber never blocks the orchestrator.
type Emitter struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe returns a buffered channel receiving every future event. Safe to
// call while other goroutines are calling Emit — a parallel run's workers
// and a newly connecting UI client race on e.subs otherwise.
func (e *Emitter) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// Emit delivers event to every subscriber without blocking; a full
// subscriber channel silently drops the event rather than stalling the run.
func (e *Emitter) Emit(event Event) {
	e.mu.Lock()
	subs := e.subs
	e.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}
