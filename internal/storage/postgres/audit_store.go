package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voxsentinel/voxsentinel/internal/audit"
)

// AuditStore implements audit.Store over the transcript_segments table the
// TranscriptWriter writes into and the audit_anchors table.
type AuditStore struct {
	pool DB
}

// NewAuditStore returns an AuditStore over pool.
func NewAuditStore(pool DB) *AuditStore {
	return &AuditStore{pool: pool}
}

// LastAnchorTime returns the created_at of the most recent audit anchor, or
// nil if none has been written yet.
func (s *AuditStore) LastAnchorTime(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx, `SELECT created_at FROM audit_anchors ORDER BY created_at DESC LIMIT 1`).Scan(&t)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: last anchor time: %w", err)
	}
	return &t, nil
}

// SegmentsSince returns every transcript segment's hash, written strictly
// after since, ordered oldest first. A nil since returns every segment.
func (s *AuditStore) SegmentsSince(ctx context.Context, since *time.Time) ([]audit.SegmentHash, error) {
	var rows pgx.Rows
	var err error
	if since == nil {
		rows, err = s.pool.Query(ctx,
			`SELECT segment_id, segment_hash, created_at FROM transcript_segments ORDER BY created_at ASC`)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT segment_id, segment_hash, created_at FROM transcript_segments WHERE created_at > $1 ORDER BY created_at ASC`,
			*since)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: segments since: %w", err)
	}
	defer rows.Close()

	var out []audit.SegmentHash
	for rows.Next() {
		var s audit.SegmentHash
		if err := rows.Scan(&s.SegmentID, &s.SegmentHash, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan segment hash: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertAnchor appends anchor to the audit_anchors table.
func (s *AuditStore) InsertAnchor(ctx context.Context, anchor audit.Anchor) error {
	const stmt = `
INSERT INTO audit_anchors (merkle_root, segment_count, first_segment_id, last_segment_id, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, stmt,
		anchor.MerkleRoot, anchor.SegmentCount, anchor.FirstSegmentID, anchor.LastSegmentID, anchor.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert anchor: %w", err)
	}
	return nil
}
