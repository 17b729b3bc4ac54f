package auditstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/certen/trustvm/pkg/types"
)

// FraudRepository mirrors pkg/fraud's KV-backed records into Postgres for
// historical querying (e.g. "all fraud by this address in the last 30 days").
type FraudRepository struct {
	client *Client
}

// NewFraudRepository constructs a FraudRepository.
func NewFraudRepository(client *Client) *FraudRepository {
	return &FraudRepository{client: client}
}

// Insert appends a fraud record. Fraud records are append-only.
func (r *FraudRepository) Insert(ctx context.Context, rec *types.FraudRecord) error {
	query := `
		INSERT INTO fraud_records (
			id, tx_hash, fraudster, claimed_score, actual_score, score_difference,
			reputation_penalty, bond_slashed, block_height, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err := r.client.DB().ExecContext(ctx, query,
		uuid.New(), rec.TxHash.Hex(), rec.Fraudster.Hex(), rec.ClaimedScore, rec.ActualScore,
		rec.ScoreDifference, rec.ReputationPenalty, rec.BondSlashed, rec.BlockHeight, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("auditstore: insert fraud record %s: %w", rec.TxHash, err)
	}
	return nil
}

// CountByFraudster returns how many fraud records exist for an address.
func (r *FraudRepository) CountByFraudster(ctx context.Context, fraudster types.Address) (int, error) {
	var count int
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM fraud_records WHERE fraudster = $1`, fraudster.Hex(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("auditstore: count fraud for %s: %w", fraudster, err)
	}
	return count, nil
}
