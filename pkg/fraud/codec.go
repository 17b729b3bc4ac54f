package fraud

import (
	"encoding/json"

	"github.com/certen/trustvm/pkg/types"
)

func marshalRecord(r *types.FraudRecord) ([]byte, error) {
	return json.Marshal(r)
}

func unmarshalRecord(raw []byte) (*types.FraudRecord, error) {
	var r types.FraudRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
