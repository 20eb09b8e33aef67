package postgres

import (
	"testing"

	"koalaswap/internal/model"
)

func TestOperationArgsOrder(t *testing.T) {
	args := operationArgs(model.OperationRecord{
		ID:        "op-1",
		Network:   "koala",
		ChainID:   88811,
		Operation: "clmm.collect-fees",
		Status:    model.TxStatusFailed,
		Stage:     "confirming",
	})
	if len(args) != 16 {
		t.Fatalf("arg count mismatch: got %d want 16", len(args))
	}
	if args[0] != "op-1" || args[2] != int64(88811) {
		t.Fatalf("leading args mismatch: %v", args[:3])
	}
	if args[8] != int16(-1) {
		t.Fatalf("status arg mismatch: %v", args[8])
	}
	if args[12] != "confirming" {
		t.Fatalf("stage arg mismatch: %v", args[12])
	}
}
