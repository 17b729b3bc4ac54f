package auditstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certen/trustvm/pkg/types"
)

// DisputeRepository mirrors pkg/dao's KV-backed dispute cases into
// Postgres for governance dashboards and historical audit.
type DisputeRepository struct {
	client *Client
}

// NewDisputeRepository constructs a DisputeRepository.
func NewDisputeRepository(client *Client) *DisputeRepository {
	return &DisputeRepository{client: client}
}

// Upsert records a dispute's current state. For a dispute ID already
// stored it updates only resolved, approved and resolution_timestamp;
// sender, reason and evidence keep their first-written values.
func (r *DisputeRepository) Upsert(ctx context.Context, d *types.DisputeCase) error {
	evidence, err := json.Marshal(d.Responses)
	if err != nil {
		return fmt.Errorf("auditstore: marshal evidence for %s: %w", d.DisputeID, err)
	}

	var resolutionTS any
	if !d.ResolutionTimestamp.IsZero() {
		resolutionTS = d.ResolutionTimestamp
	}

	query := `
		INSERT INTO dispute_cases (dispute_id, sender, reason, evidence, resolved, approved, resolution_timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (dispute_id) DO UPDATE SET
			resolved = EXCLUDED.resolved,
			approved = EXCLUDED.approved,
			resolution_timestamp = EXCLUDED.resolution_timestamp`

	_, err = r.client.DB().ExecContext(ctx, query,
		d.DisputeID.Hex(), d.Sender.Hex(), d.Reason, evidence, d.Resolved, d.Approved, resolutionTS,
	)
	if err != nil {
		return fmt.Errorf("auditstore: upsert dispute %s: %w", d.DisputeID, err)
	}
	return nil
}

// UnresolvedCount returns how many dispute cases are awaiting a DAO verdict.
func (r *DisputeRepository) UnresolvedCount(ctx context.Context) (int, error) {
	var count int
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM dispute_cases WHERE resolved = false`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("auditstore: count unresolved disputes: %w", err)
	}
	return count, nil
}

// ResolvedAt returns the resolution timestamp for a dispute, or the zero
// time if it has not been resolved yet.
func (r *DisputeRepository) ResolvedAt(ctx context.Context, disputeID types.Hash) (time.Time, error) {
	var ts sql.NullTime
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT resolution_timestamp FROM dispute_cases WHERE dispute_id = $1`, disputeID.Hex(),
	).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("auditstore: resolved_at %s: %w", disputeID, err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}
