package auditstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/certen/trustvm/pkg/types"
)

// ReceiptRepository persists execution receipts for post-hoc audit and
// the apiserver's get_transaction_receipt RPC.
type ReceiptRepository struct {
	client *Client
}

// NewReceiptRepository constructs a ReceiptRepository.
func NewReceiptRepository(client *Client) *ReceiptRepository {
	return &ReceiptRepository{client: client}
}

// Insert records a receipt. Re-inserting the same tx hash is a no-op.
func (r *ReceiptRepository) Insert(ctx context.Context, rec *types.Receipt) error {
	var contractAddr any
	if rec.ContractAddress != nil {
		contractAddr = rec.ContractAddress.Hex()
	}

	query := `
		INSERT INTO receipts (
			tx_hash, tx_index, block_hash, block_number, from_address, to_address,
			contract_address, gas_used, cumulative_gas_used, status,
			sender_reputation, reputation_discount, used_free_gas
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (tx_hash) DO NOTHING`

	_, err := r.client.DB().ExecContext(ctx, query,
		rec.TxHash.Hex(), rec.TxIndex, rec.BlockHash.Hex(), rec.BlockNumber,
		rec.From.Hex(), rec.To.Hex(), contractAddr, rec.GasUsed, rec.CumulativeGasUsed,
		rec.Status, rec.SenderReputation, rec.ReputationDiscount, rec.UsedFreeGas,
	)
	if err != nil {
		return fmt.Errorf("auditstore: insert receipt %s: %w", rec.TxHash, err)
	}
	return nil
}

// ByTxHash returns the receipt row for a transaction hash, or nil if none
// was recorded.
func (r *ReceiptRepository) ByTxHash(ctx context.Context, txHash string) (*types.Receipt, error) {
	query := `
		SELECT tx_hash, tx_index, block_hash, block_number, from_address, to_address,
			contract_address, gas_used, cumulative_gas_used, status,
			sender_reputation, reputation_discount, used_free_gas
		FROM receipts WHERE tx_hash = $1`

	var rec types.Receipt
	var txHashStr, blockHashStr, fromStr, toStr string
	var contractAddr sql.NullString
	err := r.client.DB().QueryRowContext(ctx, query, txHash).Scan(
		&txHashStr, &rec.TxIndex, &blockHashStr, &rec.BlockNumber, &fromStr, &toStr,
		&contractAddr, &rec.GasUsed, &rec.CumulativeGasUsed, &rec.Status,
		&rec.SenderReputation, &rec.ReputationDiscount, &rec.UsedFreeGas,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auditstore: get receipt %s: %w", txHash, err)
	}

	rec.TxHash = types.HexToHash(txHashStr)
	rec.BlockHash = types.HexToHash(blockHashStr)
	rec.From = types.HexToAddress(fromStr)
	rec.To = types.HexToAddress(toStr)
	if contractAddr.Valid {
		a := types.HexToAddress(contractAddr.String)
		rec.ContractAddress = &a
	}
	return &rec, nil
}
