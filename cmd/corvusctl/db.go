package main

import (
	"io"
	"log/slog"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/db"
)

// openDatabase opens the shared SQLite file with a discard-level logger:
// corvusctl is a short-lived CLI invocation, not a long-running daemon, so
// OpenDatabase's "database opened and schema migrated" info line would
// just be noise on every single command.
func openDatabase() (*db.Database, error) {
	quietLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return db.OpenDatabase(dbPath, quietLogger)
}
