package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpsertTag inserts or updates a tag.
func (db *DB) UpsertTag(t *Tag) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO tags (id, user_id, name, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			updated_at = excluded.updated_at`,
		t.ID, t.UserID, t.Name, t.Color, now, now)
	return err
}

// GetTag returns a tag by id with its derived contact count.
func (db *DB) GetTag(userID, id string) (*Tag, error) {
	var t Tag
	err := db.QueryRow(`
		SELECT t.id, t.user_id, t.name, t.color,
			(SELECT COUNT(*) FROM contact_tags ct WHERE ct.tag_id = t.id) AS contact_count
		FROM tags t
		WHERE t.id = ? AND t.user_id = ?`, id, userID).
		Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.ContactCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTags returns all tags for a user, each with its derived contact
// count. The count is an aggregate over contact_tags, never a stored
// column, so it cannot drift from the contacts that reference the tag.
func (db *DB) ListTags(userID string) ([]Tag, error) {
	rows, err := db.Query(`
		SELECT t.id, t.user_id, t.name, t.color,
			(SELECT COUNT(*) FROM contact_tags ct WHERE ct.tag_id = t.id) AS contact_count
		FROM tags t
		WHERE t.user_id = ?
		ORDER BY t.name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tags := make([]Tag, 0)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.ContactCount); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteTags removes the given tags and detaches them from every contact
// in a single transaction: either all tag rows and all contact links are
// gone, or nothing changed.
func (db *DB) DeleteTags(userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, userID)

	// Both statements scope by user_id, so an id belonging to another
	// user touches neither that user's tag nor its contact links.
	if _, err := tx.Exec(
		`DELETE FROM contact_tags WHERE tag_id IN
			(SELECT id FROM tags WHERE id IN (`+placeholders+`) AND user_id = ?)`, args...); err != nil {
		return fmt.Errorf("detach tags: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM tags WHERE id IN (`+placeholders+`) AND user_id = ?`, args...); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}

	return tx.Commit()
}

// ReplaceTags reconciles the user's tag collection against an
// authoritative snapshot: every tag in the payload is upserted and every
// local tag absent from it is deleted, in one transaction.
func (db *DB) ReplaceTags(userID string, tags []Tag) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	keep := make(map[string]bool, len(tags))
	for _, t := range tags {
		keep[t.ID] = true
		if _, err := tx.Exec(`
			INSERT INTO tags (id, user_id, name, color, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				color = excluded.color,
				updated_at = excluded.updated_at`,
			t.ID, userID, t.Name, t.Color, now, now); err != nil {
			return fmt.Errorf("upsert tag %q: %w", t.ID, err)
		}
	}

	rows, err := tx.Query(`SELECT id FROM tags WHERE user_id = ?`, userID)
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
		if _, err := tx.Exec(`DELETE FROM contact_tags WHERE tag_id = ?`, id); err != nil {
			return fmt.Errorf("detach stale tag %q: %w", id, err)
		}
		if _, err := tx.Exec(`DELETE FROM tags WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete stale tag %q: %w", id, err)
		}
	}

	return tx.Commit()
}
