package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateCampaign inserts a new campaign row.
func (db *DB) CreateCampaign(c *Campaign) error {
	now := time.Now().UnixMilli()
	tagIDs, err := json.Marshal(idsOrEmpty(c.TagIDs))
	if err != nil {
		return err
	}
	recipientIDs, err := json.Marshal(idsOrEmpty(c.RecipientIDs))
	if err != nil {
		return err
	}
	c.CreatedAt = now
	c.TotalRecipients = len(c.RecipientIDs)
	_, err = db.Exec(`
		INSERT INTO campaigns (id, user_id, name, message, delay_seconds, tag_ids, recipient_ids,
			status, total_recipients, scheduled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Message, c.DelaySeconds, string(tagIDs), string(recipientIDs),
		c.Status, c.TotalRecipients, nullableMillis(c.ScheduledAt), now, now)
	return err
}

func idsOrEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func nullableMillis(ms int64) any {
	if ms == 0 {
		return nil
	}
	return ms
}

const campaignColumns = `id, user_id, name, message, delay_seconds, tag_ids, recipient_ids,
	status, total_recipients, success_count, failure_count, current_index,
	scheduled_at, started_at, completed_at, created_at`

func scanCampaign(scan func(dest ...any) error) (*Campaign, error) {
	var c Campaign
	var tagIDs, recipientIDs string
	var scheduledAt, startedAt, completedAt sql.NullInt64
	err := scan(&c.ID, &c.UserID, &c.Name, &c.Message, &c.DelaySeconds, &tagIDs, &recipientIDs,
		&c.Status, &c.TotalRecipients, &c.SuccessCount, &c.FailureCount, &c.CurrentIndex,
		&scheduledAt, &startedAt, &completedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagIDs), &c.TagIDs); err != nil {
		return nil, fmt.Errorf("decode tag_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(recipientIDs), &c.RecipientIDs); err != nil {
		return nil, fmt.Errorf("decode recipient_ids: %w", err)
	}
	c.ScheduledAt = scheduledAt.Int64
	c.StartedAt = startedAt.Int64
	c.CompletedAt = completedAt.Int64
	return &c, nil
}

// GetCampaign returns a campaign by id.
func (db *DB) GetCampaign(userID, id string) (*Campaign, error) {
	row := db.QueryRow(`SELECT `+campaignColumns+` FROM campaigns WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCampaign(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns returns all campaigns for a user, newest first.
func (db *DB) ListCampaigns(userID string) ([]Campaign, error) {
	rows, err := db.Query(`SELECT `+campaignColumns+` FROM campaigns WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	campaigns := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// DeleteCampaign removes a campaign and its error log entries.
func (db *DB) DeleteCampaign(userID, id string) error {
	_, err := db.Exec(`DELETE FROM campaigns WHERE id = ? AND user_id = ?`, id, userID)
	return err
}

// SetCampaignStatus updates a campaign's status. Transition legality is
// the campaign package's responsibility; the store only writes.
func (db *DB) SetCampaignStatus(id, status string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	return err
}

// MarkCampaignStarted moves a campaign to in-progress, stamps started_at
// and zeroes the running counters and index. The update is conditional
// on the row still being startable, so concurrent starters race on this
// single statement and exactly one claims the campaign. Returns whether
// this caller won the claim.
func (db *DB) MarkCampaignStarted(id string) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		UPDATE campaigns SET status = 'in-progress', started_at = ?,
			success_count = 0, failure_count = 0, current_index = 0, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'scheduled')`, now, now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ApplyCampaignProgress updates the running counters from a progress
// snapshot. Counters and index are monotonic: a stale snapshot delivered
// late (poll racing push) can never move them backwards, and a
// nonconforming snapshot can never push them past total_recipients.
// Writes are limited to in-progress campaigns so late snapshots cannot
// disturb a finalized row.
func (db *DB) ApplyCampaignProgress(id string, currentIndex, successCount, failureCount int) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE campaigns SET
			current_index = MIN(MAX(current_index, ?), total_recipients),
			success_count = MIN(MAX(success_count, ?), total_recipients),
			failure_count = MIN(MAX(failure_count, ?), total_recipients - MIN(MAX(success_count, ?), total_recipients)),
			updated_at = ?
		WHERE id = ? AND status = 'in-progress'`,
		currentIndex, successCount, failureCount, successCount, now, id)
	return err
}

// MarkCampaignFinalized writes a terminal status, the final counts and a
// completion timestamp. Final counts obey the same monotonic and
// total_recipients bounds as running progress.
func (db *DB) MarkCampaignFinalized(id, status string, successCount, failureCount, currentIndex int) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE campaigns SET status = ?, completed_at = ?,
			success_count = MIN(MAX(success_count, ?), total_recipients),
			failure_count = MIN(MAX(failure_count, ?), total_recipients - MIN(MAX(success_count, ?), total_recipients)),
			current_index = MIN(MAX(current_index, ?), total_recipients),
			updated_at = ?
		WHERE id = ?`,
		status, now, successCount, failureCount, successCount, currentIndex, now, id)
	return err
}

// DueScheduledCampaigns returns scheduled campaigns whose send time has
// arrived.
func (db *DB) DueScheduledCampaigns(userID string, now time.Time) ([]Campaign, error) {
	rows, err := db.Query(`
		SELECT `+campaignColumns+` FROM campaigns
		WHERE user_id = ? AND status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		ORDER BY scheduled_at ASC`, userID, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	campaigns := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// AppendCampaignError appends one entry to a campaign's error log.
// Entries are never updated or overwritten.
func (db *DB) AppendCampaignError(e *CampaignError) error {
	if e.OccurredAt == 0 {
		e.OccurredAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO campaign_errors (campaign_id, contact_id, contact_name, message, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.CampaignID, e.ContactID, e.ContactName, e.Message, e.OccurredAt)
	return err
}

// ListCampaignErrors returns a campaign's error log in append order.
func (db *DB) ListCampaignErrors(campaignID string) ([]CampaignError, error) {
	rows, err := db.Query(`
		SELECT id, campaign_id, contact_id, contact_name, message, occurred_at
		FROM campaign_errors WHERE campaign_id = ? ORDER BY id ASC`, campaignID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	errs := make([]CampaignError, 0)
	for rows.Next() {
		var e CampaignError
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.ContactID, &e.ContactName, &e.Message, &e.OccurredAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
