package maintenance

import (
	"context"
	"fmt"
	"time"

	"dev.helix.sqlmaint/internal/logging"
)

var workerLog = logging.Named("maintenance.worker")

// processDatabase runs the full per-database index maintenance state
// machine and returns the DatabaseResult plus whether the run as a whole
// should stop (a Stop signal was observed, as opposed to SkipDatabase).
func processDatabase(
	ctx context.Context,
	profileID string,
	profile ServerProfile,
	dbName string,
	opts MaintenanceOptions,
	bus *ControlBus,
	emit *Emitter,
	metrics *Metrics,
) (DatabaseResult, bool) {
	start := time.Now()
	result := DatabaseResult{DatabaseName: dbName, Success: true, IndexResults: []IndexResult{}}

	session, err := Connect(ctx, profile, dbName, opts.ConnectionTimeoutMs)
	if err != nil {
		result.Success = false
		result.CriticalFailure = true
		result.Errors = append(result.Errors, fmt.Sprintf("Connection failed: %s", err))
		emit.Emit(Event{Kind: EventError, ProfileID: profileID, Message: fmt.Sprintf("%s: %s", dbName, err)})
		result.TotalDurationSecs = time.Since(start).Seconds()
		metrics.recordCriticalFailure()
		return result, false
	}
	defer session.Close()

	return runDatabaseMaintenance(ctx, profileID, session, dbName, opts, bus, emit, metrics, start, result)
}

// runDatabaseMaintenance is the per-index state machine, split out from
// processDatabase so it can run against any Session — including a mocked
// one in tests — without requiring a live SQL Server connection.
func runDatabaseMaintenance(
	ctx context.Context,
	profileID string,
	session Session,
	dbName string,
	opts MaintenanceOptions,
	bus *ControlBus,
	emit *Emitter,
	metrics *Metrics,
	start time.Time,
	result DatabaseResult,
) (DatabaseResult, bool) {
	indexes, err := fetchFragmentedIndexes(ctx, session, dbName)
	if err != nil {
		result.Success = false
		result.CriticalFailure = true
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to fetch indexes: %s", err))
		emit.Emit(Event{Kind: EventError, ProfileID: profileID, Message: fmt.Sprintf("%s: %s", dbName, err)})
		result.TotalDurationSecs = time.Since(start).Seconds()
		metrics.recordCriticalFailure()
		return result, false
	}

	for _, idx := range indexes {
		idx := idx
		emit.Emit(Event{Kind: EventIndexFound, ProfileID: profileID, Index: &idx})
	}

	stopped := false
	manuallySkipped := false

indexLoop:
	for _, idx := range indexes {
		if ctrl, interrupted := bus.Check(); interrupted {
			switch ctrl {
			case Stop:
				stopped = true
			case SkipDatabase:
				bus.ResetRunning()
				emit.Emit(Event{Kind: EventControl, ProfileID: profileID, Control: &ControlEvent{State: Running}})
				manuallySkipped = true
			}
			break indexLoop
		}

		action := decideAction(idx.FragmentationPercent, opts.ReorganizeThreshold, opts.RebuildThreshold)

		emit.Emit(Event{Kind: EventIndexAction, ProfileID: profileID, Action: &IndexActionEvent{
			DatabaseName: idx.DatabaseName, SchemaName: idx.SchemaName, TableName: idx.TableName,
			IndexName: idx.IndexName, Action: action,
		}})

		if action == ActionSkip {
			result.IndexesProcessed++
			result.IndexesSkipped++
			result.IndexResults = append(result.IndexResults, IndexResult{
				SchemaName: idx.SchemaName, TableName: idx.TableName, IndexName: idx.IndexName,
				FragmentationPercent: idx.FragmentationPercent, PageCount: idx.PageCount,
				Action: action, Success: true,
			})
			emit.Emit(Event{Kind: EventIndexComplete, ProfileID: profileID, Complete: &IndexCompleteEvent{
				DatabaseName: idx.DatabaseName, SchemaName: idx.SchemaName, TableName: idx.TableName,
				IndexName: idx.IndexName, Action: action, Success: true,
			}})
			continue indexLoop
		}

		var sqlText string
		switch action {
		case ActionRebuild:
			sqlText = rebuildIndexSQL(idx.SchemaName, idx.TableName, idx.IndexName, opts.RebuildOnline)
		case ActionReorganize:
			sqlText = reorganizeIndexSQL(idx.SchemaName, idx.TableName, idx.IndexName)
		}

		op := executeWithRetry(ctx, session, sqlText, opts, bus)

		switch op.Outcome {
		case OpInterrupted:
			switch op.Interrupt {
			case Stop:
				stopped = true
			case SkipDatabase:
				bus.ResetRunning()
				emit.Emit(Event{Kind: EventControl, ProfileID: profileID, Control: &ControlEvent{State: Running}})
				manuallySkipped = true
			}
			break indexLoop

		case OpFailure:
			result.IndexesProcessed++
			result.Success = false
			errMsg := op.Error
			result.Errors = append(result.Errors, fmt.Sprintf("%s.%s.%s: %s", idx.SchemaName, idx.TableName, idx.IndexName, errMsg))
			result.IndexResults = append(result.IndexResults, IndexResult{
				SchemaName: idx.SchemaName, TableName: idx.TableName, IndexName: idx.IndexName,
				FragmentationPercent: idx.FragmentationPercent, PageCount: idx.PageCount,
				Action: action, Success: false, DurationSecs: op.DurationSecs,
				RetryAttempts: op.Attempts, Error: &errMsg,
			})
			emit.Emit(Event{Kind: EventIndexComplete, ProfileID: profileID, Complete: &IndexCompleteEvent{
				DatabaseName: idx.DatabaseName, SchemaName: idx.SchemaName, TableName: idx.TableName,
				IndexName: idx.IndexName, Action: action, Success: false,
				DurationSecs: op.DurationSecs, RetryAttempts: op.Attempts, Error: &errMsg,
			}})
			metrics.recordIndexFailure()

		case OpSuccess:
			result.IndexesProcessed++
			switch action {
			case ActionRebuild:
				result.IndexesRebuilt++
			case ActionReorganize:
				result.IndexesReorganized++
			}
			result.IndexResults = append(result.IndexResults, IndexResult{
				SchemaName: idx.SchemaName, TableName: idx.TableName, IndexName: idx.IndexName,
				FragmentationPercent: idx.FragmentationPercent, PageCount: idx.PageCount,
				Action: action, Success: true, DurationSecs: op.DurationSecs, RetryAttempts: op.Attempts,
			})

			// UPDATE STATISTICS is best effort; a failure here shouldn't fail the index.
			statsSQL := updateStatisticsSQL(idx.SchemaName, idx.TableName, idx.IndexName)
			if _, err := session.ExecContext(ctx, statsSQL); err != nil {
				workerLog.Debug("best-effort UPDATE STATISTICS failed for %s.%s.%s: %s", idx.SchemaName, idx.TableName, idx.IndexName, err)
			}

			emit.Emit(Event{Kind: EventIndexComplete, ProfileID: profileID, Complete: &IndexCompleteEvent{
				DatabaseName: idx.DatabaseName, SchemaName: idx.SchemaName, TableName: idx.TableName,
				IndexName: idx.IndexName, Action: action, Success: true,
				DurationSecs: op.DurationSecs, RetryAttempts: op.Attempts,
			}})
			metrics.recordIndexOutcome(action)
		}
	}

	if opts.FreeProcCache && (result.IndexesRebuilt > 0 || result.IndexesReorganized > 0) {
		if _, err := session.ExecContext(ctx, freeProcCacheSQL); err != nil {
			workerLog.Debug("best-effort DBCC FREEPROCCACHE failed for %s: %s", dbName, err)
		}
	}

	result.TotalDurationSecs = time.Since(start).Seconds()
	result.ManuallySkipped = manuallySkipped

	return result, stopped
}
