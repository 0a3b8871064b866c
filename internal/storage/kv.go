package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lotas/notebridge/internal/types"
)

// PutJSON stores v as JSON under key, replacing any previous value.
func PutJSON(ctx context.Context, db *sql.DB, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	enc, err := encodeValue(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = CURRENT_TIMESTAMP`,
		key, enc,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the value under key into v. It reports false if the key
// does not exist.
func GetJSON(ctx context.Context, db *sql.DB, key string, v any) (bool, error) {
	var raw []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	data, err := decodeValue(raw)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func Delete(ctx context.Context, db *sql.DB, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Store is the local storage used by the handlers: the persisted summary and
// the quick-note draft.
type Store struct {
	DB *sql.DB
}

// SaveSummary writes the persisted summary.
func (s *Store) SaveSummary(ctx context.Context, p types.PersistedSummary) error {
	return PutJSON(ctx, s.DB, KeyCurrentSummary, p)
}

// LoadSummary returns the persisted summary, or nil if there is none.
func (s *Store) LoadSummary(ctx context.Context) (*types.PersistedSummary, error) {
	var p types.PersistedSummary
	ok, err := GetJSON(ctx, s.DB, KeyCurrentSummary, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// DeleteSummary removes the persisted summary.
func (s *Store) DeleteSummary(ctx context.Context) error {
	return Delete(ctx, s.DB, KeyCurrentSummary)
}

// SaveDraft writes the quick-note draft.
func (s *Store) SaveDraft(ctx context.Context, d types.QuickNoteDraft) error {
	return PutJSON(ctx, s.DB, KeyQuickNoteDraft, d)
}

// LoadDraft returns the quick-note draft; a missing draft is empty.
func (s *Store) LoadDraft(ctx context.Context) (types.QuickNoteDraft, error) {
	var d types.QuickNoteDraft
	if _, err := GetJSON(ctx, s.DB, KeyQuickNoteDraft, &d); err != nil {
		return types.QuickNoteDraft{}, err
	}
	return d, nil
}

// DeleteDraft removes the quick-note draft.
func (s *Store) DeleteDraft(ctx context.Context) error {
	return Delete(ctx, s.DB, KeyQuickNoteDraft)
}
