// Package maintenance implements the index-maintenance orchestrator: it
// sequences databases and indexes, applies the fragmentation policy,
// executes ALTER INDEX operations with interruptible retry/backoff, reacts
// to live control signals, and emits a deterministic event stream plus a
// persisted summary.
package maintenance

// AuthType identifies the authentication scheme used to connect.
type AuthType string

const AuthSQLServer AuthType = "sqlServer"

// ServerProfile is a connection profile, including the password fetched
// on demand from the secret store. It is never persisted with a password.
type ServerProfile struct {
	ID                     string   `json:"id" validate:"required"`
	Name                   string   `json:"name" validate:"required"`
	Server                 string   `json:"server" validate:"required"`
	Port                   uint16   `json:"port" validate:"required"`
	AuthType               AuthType `json:"authType"`
	Username               string   `json:"username" validate:"required"`
	Password               string   `json:"password"`
	Encrypt                bool     `json:"encrypt"`
	TrustServerCertificate bool     `json:"trustServerCertificate"`
}

// ServerProfileOnDisk is the persisted shape of a profile: no password.
type ServerProfileOnDisk struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Server                 string   `json:"server"`
	Port                   uint16   `json:"port"`
	AuthType               AuthType `json:"authType"`
	Username               string   `json:"username"`
	Encrypt                bool     `json:"encrypt"`
	TrustServerCertificate bool     `json:"trustServerCertificate"`
}

// ToDisk strips the password for persistence.
func (p ServerProfile) ToDisk() ServerProfileOnDisk {
	return ServerProfileOnDisk{
		ID: p.ID, Name: p.Name, Server: p.Server, Port: p.Port,
		AuthType: p.AuthType, Username: p.Username,
		Encrypt: p.Encrypt, TrustServerCertificate: p.TrustServerCertificate,
	}
}

// WithPassword re-attaches a password fetched from the secret store.
func (d ServerProfileOnDisk) WithPassword(password string) ServerProfile {
	return ServerProfile{
		ID: d.ID, Name: d.Name, Server: d.Server, Port: d.Port,
		AuthType: d.AuthType, Username: d.Username, Password: password,
		Encrypt: d.Encrypt, TrustServerCertificate: d.TrustServerCertificate,
	}
}

// MaintenanceOptions configures one run. All fields have safe defaults —
// see DefaultOptions.
type MaintenanceOptions struct {
	RebuildOnline         bool    `json:"rebuildOnline"`
	FreeProcCache         bool    `json:"freeProcCache"`
	RebuildThreshold      float64 `json:"rebuildThreshold" validate:"gt=0"`
	ReorganizeThreshold   float64 `json:"reorganizeThreshold" validate:"gt=0"`
	RetryMaxAttempts      uint32  `json:"retryMaxAttempts" validate:"gte=1"`
	RetryBaseDelayMs      uint64  `json:"retryBaseDelayMs"`
	RetryMaxDelayMs       uint64  `json:"retryMaxDelayMs"`
	ConnectionTimeoutMs   uint64  `json:"connectionTimeoutMs"`
	RequestTimeoutMs      uint64  `json:"requestTimeoutMs"`
	ParallelDatabases     bool    `json:"parallelDatabases"`
	MaxParallelDatabases  uint32  `json:"maxParallelDatabases"`
}

// DefaultOptions returns the documented out-of-the-box defaults.
func DefaultOptions() MaintenanceOptions {
	return MaintenanceOptions{
		RebuildOnline:        true,
		FreeProcCache:        false,
		RebuildThreshold:     30.0,
		ReorganizeThreshold:  10.0,
		RetryMaxAttempts:     3,
		RetryBaseDelayMs:     1000,
		RetryMaxDelayMs:      30000,
		ConnectionTimeoutMs:  30000,
		RequestTimeoutMs:     0,
		ParallelDatabases:    false,
		MaxParallelDatabases: 4,
	}
}

// IndexInfo describes one index found by the fragmentation probe.
type IndexInfo struct {
	DatabaseName         string  `json:"databaseName"`
	SchemaName           string  `json:"schemaName"`
	TableName            string  `json:"tableName"`
	IndexName            string  `json:"indexName"`
	FragmentationPercent float64 `json:"fragmentationPercent"`
	PageCount            int64   `json:"pageCount"`
}

// MaintenanceAction is the remediation chosen for one index.
type MaintenanceAction string

const (
	ActionRebuild    MaintenanceAction = "REBUILD"
	ActionReorganize MaintenanceAction = "REORGANIZE"
	ActionSkip       MaintenanceAction = "SKIP"
)

// IndexResult is the terminal outcome for one index.
type IndexResult struct {
	SchemaName           string            `json:"schemaName"`
	TableName            string            `json:"tableName"`
	IndexName            string            `json:"indexName"`
	FragmentationPercent float64           `json:"fragmentationPercent"`
	PageCount            int64             `json:"pageCount"`
	Action               MaintenanceAction `json:"action"`
	Success              bool              `json:"success"`
	DurationSecs         float64           `json:"durationSecs"`
	RetryAttempts        uint32            `json:"retryAttempts"`
	Error                *string           `json:"error,omitempty"`
}

// DatabaseResult is the terminal outcome for one database.
type DatabaseResult struct {
	DatabaseName        string        `json:"databaseName"`
	Success             bool          `json:"success"`
	IndexesProcessed    uint32        `json:"indexesProcessed"`
	IndexesRebuilt      uint32        `json:"indexesRebuilt"`
	IndexesReorganized  uint32        `json:"indexesReorganized"`
	IndexesSkipped      uint32        `json:"indexesSkipped"`
	TotalDurationSecs   float64       `json:"totalDurationSecs"`
	Errors              []string      `json:"errors"`
	CriticalFailure     bool          `json:"criticalFailure"`
	ManuallySkipped     bool          `json:"manuallySkipped"`
	IndexResults        []IndexResult `json:"indexResults"`
}

// MaintenanceSummary aggregates a full run.
type MaintenanceSummary struct {
	DatabasesProcessed       uint32           `json:"databasesProcessed"`
	DatabasesFailed          uint32           `json:"databasesFailed"`
	DatabasesSkipped         uint32           `json:"databasesSkipped"`
	TotalIndexesRebuilt      uint32           `json:"totalIndexesRebuilt"`
	TotalIndexesReorganized  uint32           `json:"totalIndexesReorganized"`
	TotalIndexesSkipped      uint32           `json:"totalIndexesSkipped"`
	TotalDurationSecs        float64          `json:"totalDurationSecs"`
	DatabaseResults          []DatabaseResult `json:"databaseResults"`
}

// BuildSummary aggregates per-database results into a run summary, in the
// order given — callers are responsible for ordering.
func BuildSummary(results []DatabaseResult, totalSecs float64) MaintenanceSummary {
	s := MaintenanceSummary{
		DatabasesProcessed: uint32(len(results)),
		TotalDurationSecs:  totalSecs,
		DatabaseResults:    results,
	}
	for _, r := range results {
		if r.CriticalFailure {
			s.DatabasesFailed++
		}
		if r.ManuallySkipped {
			s.DatabasesSkipped++
		}
		s.TotalIndexesRebuilt += r.IndexesRebuilt
		s.TotalIndexesReorganized += r.IndexesReorganized
		s.TotalIndexesSkipped += r.IndexesSkipped
	}
	return s
}

// MakeSkippedResult builds the synthetic DatabaseResult for a database
// that was bypassed by SkipDatabase before it started.
func MakeSkippedResult(dbName string) DatabaseResult {
	return DatabaseResult{
		DatabaseName:    dbName,
		Success:         true,
		ManuallySkipped: true,
		IndexResults:    []IndexResult{},
	}
}

// ControlState is the live control signal observed by workers of one run.
type ControlState string

const (
	Running      ControlState = "running"
	Paused       ControlState = "paused"
	SkipDatabase ControlState = "skip_database"
	Stop         ControlState = "stop"
)

// RunRecord is one row of persisted run history.
type RunRecord struct {
	ID                      int64            `json:"id" db:"id"`
	ProfileID               string           `json:"profileId" db:"profile_id"`
	ProfileName             string           `json:"profileName" db:"profile_name"`
	Server                  string           `json:"server" db:"server"`
	StartedAt               string           `json:"startedAt" db:"started_at"`
	FinishedAt              string           `json:"finishedAt" db:"finished_at"`
	DatabasesProcessed      uint32           `json:"databasesProcessed" db:"databases_processed"`
	DatabasesFailed         uint32           `json:"databasesFailed" db:"databases_failed"`
	DatabasesSkipped        uint32           `json:"databasesSkipped" db:"databases_skipped"`
	TotalIndexesRebuilt     uint32           `json:"totalIndexesRebuilt" db:"total_indexes_rebuilt"`
	TotalIndexesReorganized uint32           `json:"totalIndexesReorganized" db:"total_indexes_reorganized"`
	TotalIndexesSkipped     uint32           `json:"totalIndexesSkipped" db:"total_indexes_skipped"`
	TotalDurationSecs       float64          `json:"totalDurationSecs" db:"total_duration_secs"`
	DatabaseResultsJSON     string           `json:"-" db:"database_results"`
	DatabaseResults         []DatabaseResult `json:"databaseResults" db:"-"`
}
