package maintenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBracketEscapeDoublesClosingBracket(t *testing.T) {
	assert.Equal(t, "plain", bracketEscape("plain"))
	assert.Equal(t, "weird]]name", bracketEscape("weird]name"))
	assert.Equal(t, "a]]b]]c", bracketEscape("a]b]c"))
}

func TestRebuildIndexSQL(t *testing.T) {
	online := rebuildIndexSQL("dbo", "Orders", "IX_Orders_Date", true)
	assert.Contains(t, online, "ALTER INDEX [IX_Orders_Date] ON [dbo].[Orders] REBUILD")
	assert.Contains(t, online, "ONLINE = ON")

	offline := rebuildIndexSQL("dbo", "Orders", "IX_Orders_Date", false)
	assert.Contains(t, offline, "ONLINE = OFF")
}

func TestRebuildIndexSQLEscapesIdentifiers(t *testing.T) {
	sql := rebuildIndexSQL("dbo", "Weird]Table", "IX]Name", true)
	assert.Contains(t, sql, "[Weird]]Table]")
	assert.Contains(t, sql, "[IX]]Name]")
}

func TestReorganizeIndexSQL(t *testing.T) {
	sql := reorganizeIndexSQL("dbo", "Orders", "IX_Orders_Date")
	assert.Equal(t, "ALTER INDEX [IX_Orders_Date] ON [dbo].[Orders] REORGANIZE;", sql)
}

func TestUpdateStatisticsSQL(t *testing.T) {
	sql := updateStatisticsSQL("dbo", "Orders", "IX_Orders_Date")
	assert.Equal(t, "UPDATE STATISTICS [dbo].[Orders] [IX_Orders_Date] WITH FULLSCAN;", sql)
}
