package store

import "time"

// UpsertFriendRequest records or updates a friend-request tracking entry
// reported by the companion.
func (db *DB) UpsertFriendRequest(fr *FriendRequest) error {
	now := time.Now().UnixMilli()
	if fr.SentAt == 0 {
		fr.SentAt = now
	}
	_, err := db.Exec(`
		INSERT INTO friend_requests (id, user_id, contact_id, name, status, sent_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE friend_requests.name END,
			updated_at = excluded.updated_at`,
		fr.ID, fr.UserID, fr.ContactID, fr.Name, fr.Status, fr.SentAt, now)
	return err
}

// ListFriendRequests returns a user's friend-request log, newest first.
func (db *DB) ListFriendRequests(userID string) ([]FriendRequest, error) {
	rows, err := db.Query(`
		SELECT id, user_id, contact_id, name, status, sent_at, updated_at
		FROM friend_requests WHERE user_id = ? ORDER BY sent_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	reqs := make([]FriendRequest, 0)
	for rows.Next() {
		var fr FriendRequest
		if err := rows.Scan(&fr.ID, &fr.UserID, &fr.ContactID, &fr.Name, &fr.Status, &fr.SentAt, &fr.UpdatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, fr)
	}
	return reqs, rows.Err()
}
