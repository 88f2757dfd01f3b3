// Package runhistory records each verification run and its per-record
// outcomes in a SQLite database so operators can review what changed and
// which strategies resolved what.
//
// The schema is embedded from schema.sql and stamped into PRAGMA
// user_version. A database stamped with another version refuses to open;
// deleting the file resets history.
package runhistory
