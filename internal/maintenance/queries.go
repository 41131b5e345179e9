package maintenance

import "context"

// fetchFragmentedIndexes runs the fixed fragmentation probe against the
// current database on the session (the session must already be connected
// to the target database — see Connect).
func fetchFragmentedIndexes(ctx context.Context, s Session, dbName string) ([]IndexInfo, error) {
	rows, err := s.QueryContext(ctx, queryFragmentedIndexes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IndexInfo
	for rows.Next() {
		var info IndexInfo
		if err := rows.Scan(&info.SchemaName, &info.TableName, &info.IndexName,
			&info.FragmentationPercent, &info.PageCount); err != nil {
			return nil, err
		}
		info.DatabaseName = dbName
		out = append(out, info)
	}
	return out, rows.Err()
}

// FetchUserDatabases runs the fixed user-database probe. Exported for the
// get_databases command surface, which lists databases independent of a run.
func FetchUserDatabases(ctx context.Context, s Session) ([]string, error) {
	rows, err := s.QueryContext(ctx, queryUserDatabases)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
