package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Get returns a cached value, or ok=false when no entry exists. Entries never
// expire: shape changes are handled by versioned namespace names, so stale
// namespaces are simply never read again.
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	if s == nil || s.DB == nil {
		return nil, false, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	namespace = strings.TrimSpace(namespace)
	key = strings.TrimSpace(key)
	if namespace == "" || key == "" {
		return nil, false, errors.New("cache namespace and key are required")
	}

	var value []byte
	row := s.DB.QueryRowContext(ctx, `
		SELECT value FROM quiz_cache
		WHERE namespace = ? AND key = ?
	`, namespace, key)

	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetch cached value: %w", err)
	}

	return value, true, nil
}

// Set stores a value. An existing entry for the same key is overwritten;
// entries are immutable in practice since writers always store the same
// value for the same key within a namespace version.
func (s *Store) Set(ctx context.Context, namespace, key string, value []byte) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	namespace = strings.TrimSpace(namespace)
	key = strings.TrimSpace(key)
	if namespace == "" || key == "" {
		return errors.New("cache namespace and key are required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO quiz_cache (namespace, key, value, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at
	`, namespace, key, value, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store cached value: %w", err)
	}

	return nil
}

// NamespaceCount reports the number of entries per namespace.
func (s *Store) NamespaceCount(ctx context.Context) (map[string]int, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT namespace, COUNT(*) FROM quiz_cache GROUP BY namespace
	`)
	if err != nil {
		return nil, fmt.Errorf("count cache entries: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	counts := make(map[string]int)
	for rows.Next() {
		var namespace string
		var count int
		if err := rows.Scan(&namespace, &count); err != nil {
			return nil, fmt.Errorf("scan cache counts: %w", err)
		}
		counts[namespace] = count
	}

	return counts, rows.Err()
}

// Clear removes all entries, or only one namespace when given.
func (s *Store) Clear(ctx context.Context, namespace string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var result sql.Result
	var err error
	if namespace = strings.TrimSpace(namespace); namespace != "" {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM quiz_cache WHERE namespace = ?`, namespace)
	} else {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM quiz_cache`)
	}
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return removed, nil
}
