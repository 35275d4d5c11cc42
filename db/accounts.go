package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Account is one bridge user record. ID is the platform-side identifier;
// Key is the opaque token a client connects with.
type Account struct {
	ID         int
	Key        string
	Admin      bool
	Banned     bool
	BanReason  string
	MutedUntil *time.Time
	MuteReason string
	LinkedName string
}

// IsMuted reports whether the account is muted at the given instant. A
// MutedUntil in the past is equivalent to not muted.
func (a *Account) IsMuted(now time.Time) bool {
	return a.MutedUntil != nil && a.MutedUntil.After(now)
}

// MuteRemaining returns how long the mute has left, zero if not muted.
func (a *Account) MuteRemaining(now time.Time) time.Duration {
	if !a.IsMuted(now) {
		return 0
	}
	return a.MutedUntil.Sub(now)
}

const accountColumns = `id, key, admin, banned, ban_reason, muted_until, mute_reason, linked_name`

func scanAccount(row *sql.Row) (*Account, error) {
	var account Account
	var banReason, mutedUntil, muteReason, linkedName sql.NullString
	err := row.Scan(
		&account.ID,
		&account.Key,
		&account.Admin,
		&account.Banned,
		&banReason,
		&mutedUntil,
		&muteReason,
		&linkedName,
	)
	if err != nil {
		return nil, err
	}
	account.BanReason = banReason.String
	account.MuteReason = muteReason.String
	account.LinkedName = linkedName.String
	if mutedUntil.Valid {
		until, err := time.Parse(time.RFC3339, mutedUntil.String)
		if err == nil {
			account.MutedUntil = &until
		}
	}
	return &account, nil
}

func GetAccountByKey(key string) (*Account, error) {
	row := BridgeDB.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE key = ?`, key)
	return scanAccount(row)
}

func GetAccountByID(id int) (*Account, error) {
	row := BridgeDB.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// UpsertAccountKey mints a fresh connection key for the account, creating
// the row if needed, and returns the new key.
func UpsertAccountKey(id int) (string, error) {
	key := uuid.New().String()
	_, err := BridgeDB.Exec(
		`INSERT INTO accounts (id, key) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET key = excluded.key`,
		id, key,
	)
	if err != nil {
		return "", err
	}
	return key, nil
}

func SetBanned(id int, banned bool, reason string) error {
	var reasonValue interface{}
	if banned && reason != "" {
		reasonValue = reason
	}
	_, err := BridgeDB.Exec(
		`UPDATE accounts SET banned = ?, ban_reason = ? WHERE id = ?`,
		banned, reasonValue, id,
	)
	return err
}

// SetMute sets or lifts a timed mute. A nil until clears it.
func SetMute(id int, until *time.Time, reason string) error {
	var untilValue, reasonValue interface{}
	if until != nil {
		untilValue = until.UTC().Format(time.RFC3339)
		if reason != "" {
			reasonValue = reason
		}
	}
	_, err := BridgeDB.Exec(
		`UPDATE accounts SET muted_until = ?, mute_reason = ? WHERE id = ?`,
		untilValue, reasonValue, id,
	)
	return err
}

func SetLinkedName(id int, name string) error {
	_, err := BridgeDB.Exec(`UPDATE accounts SET linked_name = ? WHERE id = ?`, name, id)
	return err
}

func SetAdmin(id int, admin bool) error {
	_, err := BridgeDB.Exec(`UPDATE accounts SET admin = ? WHERE id = ?`, admin, id)
	return err
}
