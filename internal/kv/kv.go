// Package kv is the local key-value persistence used by the stores.
// Values are JSON documents keyed by a short string.
package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound reports an absent key.
var ErrNotFound = errors.New("not found")

// Store is the get/set contract the task and video stores rely on.
type Store interface {
	Load(ctx context.Context, key string, dst any) error
	Save(ctx context.Context, key string, value any) error
}

// Repo keeps values in the workspace SQLite database.
type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

func (r Repo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Get returns the raw JSON stored under key.
func (r Repo) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT value_json FROM kv WHERE key=?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

// Set replaces the raw JSON stored under key.
func (r Repo) Set(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("kv %s: invalid json", key)
	}
	now := r.now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO kv(key,value_json,updated_at) VALUES (?,?,?)
ON CONFLICT(key) DO UPDATE SET value_json=excluded.value_json, updated_at=excluded.updated_at`, key, string(value), now)
	return err
}

func (r Repo) Load(ctx context.Context, key string, dst any) error {
	raw, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r Repo) Save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.Set(ctx, key, data)
}

// Delete removes key; absent keys are not an error.
func (r Repo) Delete(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key)
	return err
}

// Keys lists stored keys in lexical order.
func (r Repo) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Memory is an in-process Store. Error fields inject failures in tests.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
	writes map[string]int

	LoadErr error
	SaveErr error
}

func NewMemory() *Memory {
	return &Memory{values: map[string][]byte{}, writes: map[string]int{}}
}

func (m *Memory) Load(_ context.Context, key string, dst any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return m.LoadErr
	}
	data, ok := m.values[key]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, dst)
}

func (m *Memory) Save(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = data
	m.writes[key]++
	return nil
}

// Writes counts successful saves for key.
func (m *Memory) Writes(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[key]
}

// Raw returns the stored JSON for key, or nil.
func (m *Memory) Raw(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.values[key]...)
}
