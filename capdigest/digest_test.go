package capdigest

import (
	"bytes"
	"testing"
)

func TestDeriveTaskIDStableAcrossPayloadKeyOrder(t *testing.T) {
	txHash := bytes.Repeat([]byte{0x01}, 32)
	caller := bytes.Repeat([]byte{0x02}, 32)

	p1 := map[string]any{"model": "tiny", "prompt": "hi"}
	p2 := map[string]any{"prompt": "hi", "model": "tiny"}

	id1, err := DeriveTaskID(1, 100, txHash, caller, p1)
	if err != nil {
		t.Fatalf("derive 1: %v", err)
	}
	id2, err := DeriveTaskID(1, 100, txHash, caller, p2)
	if err != nil {
		t.Fatalf("derive 2: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("task id changed with payload key order: %x != %x", id1, id2)
	}
}

func TestDeriveTaskIDChangesWithAnyField(t *testing.T) {
	txHash := bytes.Repeat([]byte{0x01}, 32)
	caller := bytes.Repeat([]byte{0x02}, 32)
	payload := map[string]any{"model": "tiny", "prompt": "hi"}

	base, err := DeriveTaskID(1, 100, txHash, caller, payload)
	if err != nil {
		t.Fatalf("base: %v", err)
	}

	variants := []struct {
		name string
		id   [32]byte
	}{
		{"chain_id", mustID(t, 2, 100, txHash, caller, payload)},
		{"height", mustID(t, 1, 101, txHash, caller, payload)},
		{"tx_hash", mustID(t, 1, 100, bytes.Repeat([]byte{0x03}, 32), caller, payload)},
		{"caller", mustID(t, 1, 100, txHash, bytes.Repeat([]byte{0x04}, 32), payload)},
		{"payload", mustID(t, 1, 100, txHash, caller, map[string]any{"model": "tiny", "prompt": "bye"})},
	}
	for _, v := range variants {
		if v.id == base {
			t.Fatalf("changing %s did not change task id", v.name)
		}
	}
}

func mustID(t *testing.T, chainID, height int64, txHash, caller []byte, payload any) [32]byte {
	t.Helper()
	id, err := DeriveTaskID(chainID, height, txHash, caller, payload)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return id
}

func TestDeriveTaskIDRejectsInvalidInputs(t *testing.T) {
	txHash := bytes.Repeat([]byte{0x01}, 32)
	caller := bytes.Repeat([]byte{0x02}, 32)
	payload := map[string]any{"a": 1}

	cases := []struct {
		name              string
		chainID, height   int64
		txHash, callerArg []byte
	}{
		{"zero chain_id", 0, 1, txHash, caller},
		{"negative chain_id", -1, 1, txHash, caller},
		{"negative height", 1, -1, txHash, caller},
		{"empty tx_hash", 1, 1, nil, caller},
		{"empty caller", 1, 1, txHash, nil},
	}
	for _, c := range cases {
		if _, err := DeriveTaskID(c.chainID, c.height, c.txHash, c.callerArg, payload); err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
	}
}

func TestDeriveTaskIDDeterministicAcrossRuns(t *testing.T) {
	txHash := bytes.Repeat([]byte{0x01}, 32)
	caller := bytes.Repeat([]byte{0x02}, 32)
	payload := map[string]any{"model": "tiny", "prompt": "hi"}

	var prev [32]byte
	for i := 0; i < 5; i++ {
		id, err := DeriveTaskID(1, 100, txHash, caller, payload)
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		if i > 0 && id != prev {
			t.Fatalf("non-deterministic across runs: %x != %x", id, prev)
		}
		prev = id
	}
}
