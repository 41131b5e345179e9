package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dev.helix.sqlmaint/internal/app"
	"dev.helix.sqlmaint/internal/maintenance"
)

var (
	runProfileID    string
	runDatabasesCSV string
	runOpts         = maintenance.DefaultOptions()
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run index maintenance against a saved profile",
	Long: `run starts a maintenance pass against the databases named by
--databases, or every user database on the server when --databases is
omitted. It blocks and prints progress until the run finishes, fails, or
is interrupted with Ctrl-C (which sends a stop signal to the run rather
than killing it outright).`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runProfileID, "profile", "", "profile id to run against (required)")
	runCmd.Flags().StringVar(&runDatabasesCSV, "databases", "", "comma-separated database names (default: all user databases)")
	runCmd.Flags().BoolVar(&runOpts.RebuildOnline, "online", runOpts.RebuildOnline, "use WITH (ONLINE=ON) for rebuilds")
	runCmd.Flags().BoolVar(&runOpts.FreeProcCache, "free-proc-cache", runOpts.FreeProcCache, "run DBCC FREEPROCCACHE after each database in which an index was rebuilt or reorganized")
	runCmd.Flags().Float64Var(&runOpts.RebuildThreshold, "rebuild-threshold", runOpts.RebuildThreshold, "fragmentation %% at or above which an index is rebuilt")
	runCmd.Flags().Float64Var(&runOpts.ReorganizeThreshold, "reorganize-threshold", runOpts.ReorganizeThreshold, "fragmentation %% at or above which an index is reorganized")
	runCmd.Flags().Uint32Var(&runOpts.RetryMaxAttempts, "retry-max-attempts", runOpts.RetryMaxAttempts, "maximum attempts per index operation")
	runCmd.Flags().Uint64Var(&runOpts.RetryBaseDelayMs, "retry-base-delay-ms", runOpts.RetryBaseDelayMs, "base retry backoff in milliseconds")
	runCmd.Flags().Uint64Var(&runOpts.RetryMaxDelayMs, "retry-max-delay-ms", runOpts.RetryMaxDelayMs, "retry backoff ceiling in milliseconds")
	runCmd.Flags().Uint64Var(&runOpts.ConnectionTimeoutMs, "connection-timeout-ms", runOpts.ConnectionTimeoutMs, "connection timeout in milliseconds")
	runCmd.Flags().Uint64Var(&runOpts.RequestTimeoutMs, "request-timeout-ms", runOpts.RequestTimeoutMs, "per-statement timeout in milliseconds (0 disables)")
	runCmd.Flags().BoolVar(&runOpts.ParallelDatabases, "parallel", runOpts.ParallelDatabases, "process databases concurrently")
	runCmd.Flags().Uint32Var(&runOpts.MaxParallelDatabases, "max-parallel", runOpts.MaxParallelDatabases, "maximum concurrent databases when --parallel is set")

	runCmd.MarkFlagRequired("profile")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmdContext(cmd)

	profile, err := a.ResolveProfile(runProfileID)
	if err != nil {
		return fmt.Errorf("resolve profile: %w", err)
	}

	databases, err := resolveDatabases(ctx, a, runProfileID)
	if err != nil {
		return err
	}
	if len(databases) == 0 {
		return fmt.Errorf("no databases to run against")
	}

	events := a.Emitter.Subscribe(256)
	if err := a.Coordinator.Run(ctx, profile, databases, runOpts); err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nstop requested, finishing the current index...")
		a.Coordinator.Stop(runProfileID)
	}()

	return watchRun(events, runProfileID)
}

func resolveDatabases(ctx context.Context, a *app.App, profileID string) ([]string, error) {
	if runDatabasesCSV != "" {
		var out []string
		for _, name := range strings.Split(runDatabasesCSV, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				out = append(out, name)
			}
		}
		return out, nil
	}
	return a.GetDatabases(ctx, profileID)
}

// watchRun prints events for profileID until the run's terminal event
// arrives, then returns an error if the run ended badly.
func watchRun(events <-chan maintenance.Event, profileID string) error {
	for event := range events {
		if event.ProfileID != profileID {
			continue
		}
		switch event.Kind {
		case maintenance.EventDBStart:
			fmt.Printf("[%d/%d] %s: starting\n", event.DBStart.Current, event.DBStart.Total, event.DBStart.DatabaseName)
		case maintenance.EventIndexAction:
			fmt.Printf("  %s.%s.%s: %s\n", event.Action.SchemaName, event.Action.TableName, event.Action.IndexName, event.Action.Action)
		case maintenance.EventIndexComplete:
			if event.Complete.Success {
				fmt.Printf("  %s.%s.%s: done in %.1fs\n", event.Complete.SchemaName, event.Complete.TableName, event.Complete.IndexName, event.Complete.DurationSecs)
			} else {
				fmt.Printf("  %s.%s.%s: failed: %s\n", event.Complete.SchemaName, event.Complete.TableName, event.Complete.IndexName, derefStr(event.Complete.Error))
			}
		case maintenance.EventDBComplete:
			fmt.Printf("[%s] complete: %d rebuilt, %d reorganized, %d skipped\n",
				event.DBResult.DatabaseName, event.DBResult.IndexesRebuilt, event.DBResult.IndexesReorganized, event.DBResult.IndexesSkipped)
		case maintenance.EventControl:
			fmt.Printf("control: %s\n", event.Control.State)
		case maintenance.EventError:
			fmt.Printf("error: %s\n", event.Message)
		case maintenance.EventFinished:
			s := event.Summary
			fmt.Printf("\nrun finished: %d databases processed, %d failed, %d skipped, %d indexes touched\n",
				s.DatabasesProcessed, s.DatabasesFailed, s.DatabasesSkipped,
				s.TotalIndexesRebuilt+s.TotalIndexesReorganized+s.TotalIndexesSkipped)
			if s.DatabasesFailed > 0 {
				return fmt.Errorf("%d database(s) failed", s.DatabasesFailed)
			}
			return nil
		}
	}
	return fmt.Errorf("event stream closed before run finished")
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
