// Package database opens the optional SQL database and inspects its schema.
//
// Connect wraps GORM for MySQL and SQLite. The service keeps working without a
// database; only the sync history depends on it.
//
// GetTableColumns reads the live column definitions of a table (SHOW COLUMNS on MySQL,
// PRAGMA table_info on SQLite) so the integrity feature can compare them with the
// history model.
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    logger.Warn("Running without sync history", zap.Error(err))
//	}
//
//	columns, err := database.GetTableColumns(db, "sync_runs")
package database
