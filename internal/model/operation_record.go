package model

import (
	"encoding/json"
)

// OperationRecord is the journal entry written for every submitted operation.
type OperationRecord struct {
	ID              string   `json:"id"`
	Network         string   `json:"network"`
	ChainID         uint64   `json:"chain_id"`
	Operation       string   `json:"operation"`
	Wallet          string   `json:"wallet"`
	PoolAddress     string   `json:"pool_address,omitempty"`
	PositionID      string   `json:"position_id,omitempty"`
	TxHash          string   `json:"tx_hash,omitempty"`
	Status          TxStatus `json:"status"`
	Fee             string   `json:"fee,omitempty"`
	BaseWrapTxHash  string   `json:"base_wrap_tx_hash,omitempty"`
	QuoteWrapTxHash string   `json:"quote_wrap_tx_hash,omitempty"`
	Stage           string   `json:"stage"`
	Error           string   `json:"error,omitempty"`
	StartedAt       string   `json:"started_at"`
	FinishedAt      string   `json:"finished_at"`
}

// MarshalJSON ensures OperationRecord is encoded with stable field names.
func (r OperationRecord) MarshalJSON() ([]byte, error) {
	type Alias OperationRecord
	return json.Marshal(Alias(r))
}

// UnmarshalJSON decodes an OperationRecord from JSON.
func (r *OperationRecord) UnmarshalJSON(data []byte) error {
	type Alias OperationRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = OperationRecord(a)
	return nil
}
