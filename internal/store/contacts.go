package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpsertContact inserts or updates a contact and replaces its tag links.
func (db *DB) UpsertContact(c *Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertContactTx(tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertContactTx(tx *sql.Tx, c *Contact) error {
	now := time.Now().UnixMilli()
	source := c.Source
	if source == "" {
		source = SourceManual
	}
	if _, err := tx.Exec(`
		INSERT INTO contacts (id, user_id, name, avatar_url, platform_user_id, source, source_group_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			avatar_url = excluded.avatar_url,
			platform_user_id = CASE WHEN excluded.platform_user_id != '' THEN excluded.platform_user_id ELSE contacts.platform_user_id END,
			source = excluded.source,
			source_group_id = excluded.source_group_id,
			updated_at = excluded.updated_at`,
		c.ID, c.UserID, c.Name, c.AvatarURL, c.PlatformUserID, source, c.SourceGroupID, now, now); err != nil {
		return fmt.Errorf("upsert contact %q: %w", c.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM contact_tags WHERE contact_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear tag links for %q: %w", c.ID, err)
	}
	for _, tagID := range c.TagIDs {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO contact_tags (contact_id, tag_id) VALUES (?, ?)`,
			c.ID, tagID); err != nil {
			return fmt.Errorf("link contact %q to tag %q: %w", c.ID, tagID, err)
		}
	}
	return nil
}

// GetContact returns a contact by id, tag ids included.
func (db *DB) GetContact(userID, id string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`
		SELECT id, user_id, name, avatar_url, platform_user_id, source, source_group_id
		FROM contacts WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.AvatarURL, &c.PlatformUserID, &c.Source, &c.SourceGroupID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.TagIDs, err = db.contactTagIDs(c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) contactTagIDs(contactID string) ([]string, error) {
	rows, err := db.Query(`SELECT tag_id FROM contact_tags WHERE contact_id = ? ORDER BY tag_id`, contactID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListContacts returns all contacts for a user with their tag ids.
func (db *DB) ListContacts(userID string) ([]Contact, error) {
	rows, err := db.Query(`
		SELECT id, user_id, name, avatar_url, platform_user_id, source, source_group_id
		FROM contacts WHERE user_id = ? ORDER BY name ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	contacts := make([]Contact, 0)
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.AvatarURL, &c.PlatformUserID, &c.Source, &c.SourceGroupID); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range contacts {
		tagIDs, err := db.contactTagIDs(contacts[i].ID)
		if err != nil {
			return nil, err
		}
		contacts[i].TagIDs = tagIDs
	}
	return contacts, nil
}

// ListContactsByIDs returns the subset of the given contacts that exist,
// in recipient-list order.
func (db *DB) ListContactsByIDs(userID string, ids []string) ([]Contact, error) {
	contacts := make([]Contact, 0, len(ids))
	for _, id := range ids {
		c, err := db.GetContact(userID, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			contacts = append(contacts, *c)
		}
	}
	return contacts, nil
}

// DeleteContacts removes the given contacts (and their tag links, via
// cascade) in one transaction.
func (db *DB) DeleteContacts(userID string, ids []string) error {
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

	if _, err := tx.Exec(
		`DELETE FROM contacts WHERE id IN (`+placeholders+`) AND user_id = ?`, args...); err != nil {
		return fmt.Errorf("delete contacts: %w", err)
	}
	return tx.Commit()
}

// TagContacts attaches a tag to every listed contact in one transaction.
func (db *DB) TagContacts(userID, tagID string, contactIDs []string) error {
	return db.retagContacts(userID, tagID, contactIDs, true)
}

// UntagContacts detaches a tag from every listed contact in one transaction.
func (db *DB) UntagContacts(userID, tagID string, contactIDs []string) error {
	return db.retagContacts(userID, tagID, contactIDs, false)
}

func (db *DB) retagContacts(userID, tagID string, contactIDs []string, attach bool) error {
	if len(contactIDs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, contactID := range contactIDs {
		if attach {
			_, err = tx.Exec(`
				INSERT OR IGNORE INTO contact_tags (contact_id, tag_id)
				SELECT id, ? FROM contacts WHERE id = ? AND user_id = ?`,
				tagID, contactID, userID)
		} else {
			_, err = tx.Exec(`
				DELETE FROM contact_tags WHERE contact_id = ? AND tag_id = ?
					AND EXISTS (SELECT 1 FROM contacts WHERE id = ? AND user_id = ?)`,
				contactID, tagID, contactID, userID)
		}
		if err != nil {
			return fmt.Errorf("retag contact %q: %w", contactID, err)
		}
	}
	return tx.Commit()
}

// ReplaceContacts reconciles the user's contact collection against an
// authoritative snapshot from the companion: upsert everything present,
// delete anything absent, in one transaction.
func (db *DB) ReplaceContacts(userID string, contacts []Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	keep := make(map[string]bool, len(contacts))
	for i := range contacts {
		c := contacts[i]
		c.UserID = userID
		keep[c.ID] = true
		if err := upsertContactTx(tx, &c); err != nil {
			return err
		}
	}

	rows, err := tx.Query(`SELECT id FROM contacts WHERE user_id = ?`, userID)
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
		if _, err := tx.Exec(`DELETE FROM contacts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete stale contact %q: %w", id, err)
		}
	}

	return tx.Commit()
}

// ContactCount returns the total number of contacts for a user.
func (db *DB) ContactCount(userID string) (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}
