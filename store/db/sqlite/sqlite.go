package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hyeonwoo/calmate/internal/profile"
	"github.com/hyeonwoo/calmate/store"
)

// DB implements store.Driver on SQLite.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database at the profile's DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", profile.DSN)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent token refreshes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}

	return &DB{db: db, profile: profile}, nil
}

// Migrate creates the schema when missing.
func (d *DB) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS oauth_token (
		chat_id INTEGER PRIMARY KEY,
		token TEXT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "create oauth_token table")
	}
	return nil
}

func (d *DB) GetToken(ctx context.Context, chatID int64) (*oauth2.Token, error) {
	var raw string
	err := d.db.QueryRowContext(ctx,
		"SELECT token FROM oauth_token WHERE chat_id = ?", chatID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query token for chat %d", chatID)
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal([]byte(raw), token); err != nil {
		return nil, errors.Wrapf(err, "decode token for chat %d", chatID)
	}
	return token, nil
}

func (d *DB) UpsertToken(ctx context.Context, chatID int64, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return errors.Wrap(err, "encode token")
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO oauth_token (chat_id, token, updated_ts)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			token = excluded.token,
			updated_ts = excluded.updated_ts`,
		chatID, string(raw), time.Now().Unix(),
	)
	if err != nil {
		return errors.Wrapf(err, "upsert token for chat %d", chatID)
	}
	return nil
}

func (d *DB) DeleteToken(ctx context.Context, chatID int64) error {
	if _, err := d.db.ExecContext(ctx,
		"DELETE FROM oauth_token WHERE chat_id = ?", chatID,
	); err != nil {
		return errors.Wrapf(err, "delete token for chat %d", chatID)
	}
	return nil
}

func (d *DB) ListChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT chat_id FROM oauth_token ORDER BY chat_id")
	if err != nil {
		return nil, errors.Wrap(err, "list chat ids")
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, errors.Wrap(err, "scan chat id")
		}
		chatIDs = append(chatIDs, chatID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate chat ids")
	}
	return chatIDs, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

var _ store.Driver = (*DB)(nil)
