package model

import (
	"encoding/json"
	"testing"
)

func TestOperationRecordOmitsEmptyWrapHashes(t *testing.T) {
	record := OperationRecord{
		ID:        "6f1c",
		Network:   "koala",
		ChainID:   88811,
		Operation: "amm.add-liquidity",
		Wallet:    "0x1111111111111111111111111111111111111111",
		TxHash:    "0xabc",
		Status:    TxStatusConfirmed,
		Fee:       "0.00021",
		Stage:     "formatting",
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["base_wrap_tx_hash"]; ok {
		t.Fatalf("empty wrap hash should be omitted")
	}
	if status, ok := decoded["status"].(float64); !ok || status != 1 {
		t.Fatalf("status mismatch: %v", decoded["status"])
	}
	if decoded["chain_id"].(float64) != 88811 {
		t.Fatalf("chain_id mismatch: %v", decoded["chain_id"])
	}
}
