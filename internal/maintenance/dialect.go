package maintenance

import (
	"fmt"
	"strings"
)

// Fixed probe queries run against the server.
const (
	queryUserDatabases = `
		SELECT name FROM sys.databases
		WHERE database_id > 4 AND state_desc = 'ONLINE'
		  AND name NOT IN ('master','tempdb','model','msdb')
		ORDER BY name;`

	queryFragmentedIndexes = `
		SELECT
		  s.name AS SchemaName,
		  t.name AS TableName,
		  i.name AS IndexName,
		  CAST(ips.avg_fragmentation_in_percent AS float) AS FragmentationPercent,
		  CAST(ips.page_count AS bigint) AS PageCount
		FROM sys.dm_db_index_physical_stats(DB_ID(), NULL, NULL, NULL, 'LIMITED') AS ips
		INNER JOIN sys.indexes AS i ON ips.object_id = i.object_id AND ips.index_id = i.index_id
		INNER JOIN sys.tables AS t ON i.object_id = t.object_id
		INNER JOIN sys.schemas AS s ON t.schema_id = s.schema_id
		WHERE ips.index_id > 0
		  AND ips.page_count > 100
		  AND t.is_ms_shipped = 0
		  AND i.name IS NOT NULL
		ORDER BY ips.avg_fragmentation_in_percent DESC;`

	freeProcCacheSQL = `DBCC FREEPROCCACHE;`

	testConnectionSQL = `SELECT 1`
)

// bracketEscape neutralizes injection through an identifier by doubling any
// `]` before wrapping it in `[...]`. No other component builds SQL from
// untrusted input.
func bracketEscape(s string) string {
	return strings.ReplaceAll(s, "]", "]]")
}

func rebuildIndexSQL(schema, table, index string, online bool) string {
	mode := "OFF"
	if online {
		mode = "ON"
	}
	return fmt.Sprintf("ALTER INDEX [%s] ON [%s].[%s] REBUILD WITH (ONLINE = %s);",
		bracketEscape(index), bracketEscape(schema), bracketEscape(table), mode)
}

func reorganizeIndexSQL(schema, table, index string) string {
	return fmt.Sprintf("ALTER INDEX [%s] ON [%s].[%s] REORGANIZE;",
		bracketEscape(index), bracketEscape(schema), bracketEscape(table))
}

func updateStatisticsSQL(schema, table, index string) string {
	return fmt.Sprintf("UPDATE STATISTICS [%s].[%s] [%s] WITH FULLSCAN;",
		bracketEscape(schema), bracketEscape(table), bracketEscape(index))
}
