package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/microsoft/go-mssqldb"
)

// Session is the subset of *sql.DB the maintenance engine depends on. It
// exists so tests can substitute a fake driver without a live SQL Server.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

// routingPattern matches the text go-mssqldb surfaces when the server
// issues a session-routing redirect (ROUTING token), e.g.
// "mssql: login error: routed to <host>:<port>".
var routingPattern = regexp.MustCompile(`routed to ([^:]+):(\d+)`)

// Connect opens a session to the given database, following at most one
// server-side routing redirect. connectTimeoutMs bounds the connect ping;
// 0 removes that deadline. The DSN always sets a 30-second driver dial
// timeout, which applies whatever connectTimeoutMs is.
func Connect(ctx context.Context, profile ServerProfile, database string, connectTimeoutMs uint64) (Session, error) {
	db, err := open(profile, database)
	if err != nil {
		return nil, fmt.Errorf("%s:%d: %w", profile.Server, profile.Port, err)
	}

	pingCtx, cancel := withOptionalTimeout(ctx, connectTimeoutMs)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		if host, port, ok := parseRouting(err.Error()); ok {
			redirected := profile
			redirected.Server = host
			redirected.Port = port
			return connectOnce(ctx, redirected, database, connectTimeoutMs)
		}
		if pingCtx.Err() != nil {
			return nil, fmt.Errorf("%s:%d: connect timed out after %dms", profile.Server, profile.Port, connectTimeoutMs)
		}
		return nil, fmt.Errorf("%s:%d: %w", profile.Server, profile.Port, err)
	}

	return db, nil
}

// connectOnce is used for the single permitted redirect hop: it does not
// itself follow a further redirect, reporting one as a connection failure.
func connectOnce(ctx context.Context, profile ServerProfile, database string, connectTimeoutMs uint64) (Session, error) {
	db, err := open(profile, database)
	if err != nil {
		return nil, fmt.Errorf("routing to %s:%d failed: %w", profile.Server, profile.Port, err)
	}

	pingCtx, cancel := withOptionalTimeout(ctx, connectTimeoutMs)
	defer cancel()

	if err := pingCtxAndCheck(pingCtx, db); err != nil {
		db.Close()
		if pingCtx.Err() != nil {
			return nil, fmt.Errorf("routing to %s:%d timed out after %dms", profile.Server, profile.Port, connectTimeoutMs)
		}
		return nil, fmt.Errorf("routing to %s:%d failed: %w", profile.Server, profile.Port, err)
	}
	return db, nil
}

func pingCtxAndCheck(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		if _, _, ok := parseRouting(err.Error()); ok {
			return fmt.Errorf("a second routing redirect was offered and rejected: %w", err)
		}
		return err
	}
	return nil
}

func open(profile ServerProfile, database string) (*sql.DB, error) {
	dsn := buildDSN(profile, database)
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(0)
	return db, nil
}

func buildDSN(profile ServerProfile, database string) string {
	encrypt := "disable"
	if profile.Encrypt {
		encrypt = "true"
	}
	trust := "false"
	if profile.TrustServerCertificate {
		trust = "true"
	}
	return fmt.Sprintf(
		"sqlserver://%s:%s@%s:%d?database=%s&encrypt=%s&trustservercertificate=%s&dial timeout=30",
		profile.Username, profile.Password, profile.Server, profile.Port, database, encrypt, trust,
	)
}

func parseRouting(msg string) (host string, port uint16, ok bool) {
	m := routingPattern.FindStringSubmatch(msg)
	if m == nil {
		return "", 0, false
	}
	var p uint64
	fmt.Sscanf(m[2], "%d", &p)
	return m[1], uint16(p), true
}

func withOptionalTimeout(ctx context.Context, ms uint64) (context.Context, context.CancelFunc) {
	if ms == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}
