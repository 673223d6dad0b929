package tabledb

import (
	"context"
	"fmt"
	"strings"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS outcomes (
  id         {{pk}},
  entity_id  VARCHAR(128) NOT NULL,
  outcome    VARCHAR(32) NOT NULL,
  ts         BIGINT NOT NULL
);
CREATE INDEX {{ifnotexists}} outcomes_entity_idx ON outcomes (entity_id, id);
CREATE INDEX {{ifnotexists}} outcomes_ts_idx ON outcomes (ts);

CREATE TABLE IF NOT EXISTS score_log (
  id          {{pk}},
  scorer      VARCHAR(64) NOT NULL,
  entity_id   VARCHAR(128) NOT NULL,
  ts          BIGINT NOT NULL,
  value       DOUBLE NOT NULL,
  composite   DOUBLE NOT NULL,
  sample_count INTEGER NOT NULL,
  attributes  TEXT NOT NULL
);
CREATE INDEX {{ifnotexists}} score_log_entity_idx ON score_log (scorer, entity_id, id);

CREATE TABLE IF NOT EXISTS selections (
  id         {{pk}},
  cycle_id   VARCHAR(26) NOT NULL,
  seq        BIGINT NOT NULL,
  reason     VARCHAR(64) NOT NULL,
  created_on BIGINT NOT NULL,
  entities   TEXT NOT NULL
);
`

func schemaStatements(driver string) ([]string, error) {
	var pk, ifNotExists string

	switch driver {
	case DriverMySQL:
		pk = "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
		// MySQL has no IF NOT EXISTS for indexes; errors are checked below
		ifNotExists = ""
	case DriverSQLite:
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
		ifNotExists = "IF NOT EXISTS"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	s := strings.NewReplacer("{{pk}}", pk, "{{ifnotexists}}", ifNotExists).Replace(schemaTemplate)

	stmts := []string{}
	for _, stmt := range strings.Split(s, ";") {
		stmt = strings.TrimSpace(stmt)
		if len(stmt) == 0 {
			continue
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// CreateSchema creates the tables and indexes if they don't exist.
func (q *Queries) CreateSchema(ctx context.Context, driver string) error {
	stmts, err := schemaStatements(driver)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		_, err := q.db.ExecContext(ctx, stmt)
		if err != nil {
			// 1061: duplicate key name
			if driver == DriverMySQL && strings.Contains(err.Error(), "1061") {
				continue
			}
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}
