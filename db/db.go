package db

import (
	"database/sql"
	"fmt"
	"log"
)

// BridgeDB is the process-wide handle to the account and settings store.
var BridgeDB *sql.DB

// InitDB opens the sqlite file backing the bridge and verifies foreign key
// enforcement is active before anything queries it.
func InitDB(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open bridge store: %w", err)
	}

	var enabled int
	if err := database.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return nil, fmt.Errorf("check foreign keys: %w", err)
	}
	if enabled != 1 {
		return nil, fmt.Errorf("foreign keys are not enabled")
	}

	return database, nil
}

func CloseDB(database *sql.DB) {
	if database != nil {
		database.Close()
		log.Println("Bridge store closed")
	}
}
