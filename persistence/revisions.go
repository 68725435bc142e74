package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timoa/github-actions-gui/editor"
	"github.com/timoa/github-actions-gui/workflow"
)

// Revision is one saved version of a workflow file. Content is empty in
// listings.
type Revision struct {
	ID           string    `json:"id"`
	Locator      string    `json:"locator"`
	Fingerprint  string    `json:"fingerprint"`
	WorkflowName string    `json:"workflowName,omitempty"`
	JobCount     int       `json:"jobCount"`
	Size         int       `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
	Content      string    `json:"content,omitempty"`
}

// Record stores text as a new revision of locator. Saving the same text
// twice in a row records it once.
func (h *HistoryDB) Record(ctx context.Context, locator, text string) error {
	fp := editor.Fingerprint(text)

	var latest string
	err := h.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM revisions WHERE locator = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		locator).Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to query latest revision: %w", err)
	}
	if latest == fp {
		h.log.Debug("revision unchanged", zap.String("locator", locator))
		return nil
	}

	res := workflow.Parse(text)
	id := uuid.NewString()
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO revisions (revision_id, locator, fingerprint, content, size, created_at, workflow_name, job_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, locator, fp, text, len(text), h.now().UnixMilli(), res.Workflow.Name, len(res.Workflow.Jobs))
	if err != nil {
		return fmt.Errorf("failed to record revision: %w", err)
	}
	h.log.Debug("revision recorded", zap.String("locator", locator), zap.String("id", id))
	return nil
}

// List returns the newest revisions of locator first. A limit of zero or
// less returns all of them.
func (h *HistoryDB) List(ctx context.Context, locator string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT revision_id, locator, fingerprint, workflow_name, job_count, size, created_at
		FROM revisions WHERE locator = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, locator, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Revision
	for rows.Next() {
		var r Revision
		var name sql.NullString
		var jobs sql.NullInt64
		var created int64
		if err := rows.Scan(&r.ID, &r.Locator, &r.Fingerprint, &name, &jobs, &r.Size, &created); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		r.WorkflowName = name.String
		r.JobCount = int(jobs.Int64)
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns a revision with its content. id may be a unique prefix.
func (h *HistoryDB) Get(ctx context.Context, id string) (Revision, error) {
	if id == "" {
		return Revision{}, ErrRevisionNotFound
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT revision_id, locator, fingerprint, workflow_name, job_count, size, created_at, content
		FROM revisions WHERE revision_id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return Revision{}, fmt.Errorf("failed to get revision: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []Revision
	for rows.Next() {
		var r Revision
		var name sql.NullString
		var jobs sql.NullInt64
		var created int64
		if err := rows.Scan(&r.ID, &r.Locator, &r.Fingerprint, &name, &jobs, &r.Size, &created, &r.Content); err != nil {
			return Revision{}, fmt.Errorf("failed to scan revision: %w", err)
		}
		r.WorkflowName = name.String
		r.JobCount = int(jobs.Int64)
		r.CreatedAt = time.UnixMilli(created)
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return Revision{}, err
	}

	switch len(found) {
	case 0:
		return Revision{}, fmt.Errorf("%w: %s", ErrRevisionNotFound, id)
	case 1:
		return found[0], nil
	default:
		return Revision{}, fmt.Errorf("%w: %s", ErrAmbiguousRevision, id)
	}
}

// Prune deletes all but the newest keep revisions of locator and reports how
// many were removed.
func (h *HistoryDB) Prune(ctx context.Context, locator string, keep int) (int64, error) {
	keep = max(keep, 0)
	res, err := h.db.ExecContext(ctx, `
		DELETE FROM revisions WHERE locator = ? AND revision_id NOT IN (
			SELECT revision_id FROM revisions WHERE locator = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, locator, locator, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune revisions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned revisions: %w", err)
	}
	return n, nil
}
