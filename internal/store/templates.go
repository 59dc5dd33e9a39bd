package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertTemplate inserts or updates a message template.
func (db *DB) UpsertTemplate(t *Template) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO templates (id, user_id, name, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		t.ID, t.UserID, t.Name, t.Body, now, now)
	return err
}

// GetTemplate returns a template by id.
func (db *DB) GetTemplate(userID, id string) (*Template, error) {
	var t Template
	err := db.QueryRow(`
		SELECT id, user_id, name, body FROM templates WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&t.ID, &t.UserID, &t.Name, &t.Body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns all templates for a user.
func (db *DB) ListTemplates(userID string) ([]Template, error) {
	rows, err := db.Query(`
		SELECT id, user_id, name, body FROM templates WHERE user_id = ? ORDER BY name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	templates := make([]Template, 0)
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Body); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// DeleteTemplate removes a template.
func (db *DB) DeleteTemplate(userID, id string) error {
	_, err := db.Exec(`DELETE FROM templates WHERE id = ? AND user_id = ?`, id, userID)
	return err
}

// ReplaceTemplates reconciles the user's template collection against an
// authoritative snapshot, in one transaction.
func (db *DB) ReplaceTemplates(userID string, templates []Template) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	keep := make(map[string]bool, len(templates))
	for _, t := range templates {
		keep[t.ID] = true
		if _, err := tx.Exec(`
			INSERT INTO templates (id, user_id, name, body, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				body = excluded.body,
				updated_at = excluded.updated_at`,
			t.ID, userID, t.Name, t.Body, now, now); err != nil {
			return fmt.Errorf("upsert template %q: %w", t.ID, err)
		}
	}

	rows, err := tx.Query(`SELECT id FROM templates WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := tx.Exec(`DELETE FROM templates WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete stale template %q: %w", id, err)
		}
	}

	return tx.Commit()
}
