package main

import (
	"database/sql"
	"sync/atomic"

	"chatbridge/db"
)

// accepting mirrors the persisted accept_messages setting so the send path
// never touches the database for it.
var accepting atomic.Bool

func init() {
	accepting.Store(true)
}

func acceptingMessages() bool {
	return accepting.Load()
}

func loadSettings() error {
	var value string
	err := db.BridgeDB.QueryRow(`SELECT value FROM settings WHERE name = 'accept_messages'`).Scan(&value)
	if err == sql.ErrNoRows {
		accepting.Store(true)
		return nil
	}
	if err != nil {
		return err
	}
	accepting.Store(value != "0")
	return nil
}

func setAcceptingMessages(enabled bool) error {
	value := "1"
	if !enabled {
		value = "0"
	}
	_, err := db.BridgeDB.Exec(
		`INSERT INTO settings (name, value) VALUES ('accept_messages', ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		value,
	)
	if err != nil {
		return err
	}
	accepting.Store(enabled)
	return nil
}
