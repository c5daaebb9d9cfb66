package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cginside/hobi/pkg/database"
	"github.com/cginside/hobi/pkg/logging"
)

// Store persists settings overrides in Postgres. Only keys that differ from
// the defaults are stored; Load overlays them onto Defaults().
type Store struct {
	db     database.PostgresConn
	logger logging.Logger
}

func NewStore(db database.PostgresConn, logger logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Load returns the effective settings: defaults overlaid with every stored
// override.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM hobi_settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	overrides := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, fmt.Errorf("scan settings row: %w", err)
		}
		overrides[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("iterate settings rows: %w", err)
	}

	return merge(Defaults(), overrides)
}

// Update applies a partial update: provided keys are upserted, everything
// else is left untouched. Unknown keys are rejected. Returns the effective
// settings after the update.
func (s *Store) Update(ctx context.Context, patch map[string]json.RawMessage) (Settings, error) {
	for key := range patch {
		if _, ok := recognizedKeys[key]; !ok {
			return Settings{}, fmt.Errorf("unknown settings key %q", key)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Settings{}, fmt.Errorf("begin settings update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range Keys() {
		value, ok := patch[key]
		if !ok {
			continue
		}
		if !json.Valid(value) {
			return Settings{}, fmt.Errorf("settings key %q has invalid JSON value", key)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO hobi_settings (key, value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			key, []byte(value))
		if err != nil {
			return Settings{}, fmt.Errorf("upsert settings key %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Settings{}, fmt.Errorf("commit settings update: %w", err)
	}

	s.logger.WithField("keys", len(patch)).Info("Settings updated")
	return s.Load(ctx)
}
